package template

import (
	"strings"
	"testing"
	"time"
)

func TestRenderBodySubstitutesAllVariables(t *testing.T) {
	expires := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)
	body := RenderBody(
		"code={{otp.code}} minutes={{otp.expires_minutes}} at={{otp.expires_at}} name={{user.name}} email={{user.email}}",
		&OtpData{Code: "042137", ExpiresAt: expires, TTL: 5 * time.Minute},
		&UserData{Name: "Ann", Email: "ann@x.com"},
	)

	want := "code=042137 minutes=5 at=2026-03-01T12:05:00Z name=Ann email=ann@x.com"
	if body != want {
		t.Fatalf("RenderBody() = %q, want %q", body, want)
	}
}

func TestRenderBodyNilSectionsBlankOut(t *testing.T) {
	body := RenderBody("[{{otp.code}}][{{user.name}}]", nil, nil)
	if body != "[][]" {
		t.Fatalf("RenderBody() = %q", body)
	}
}

func TestOtpMailTemplateRenders(t *testing.T) {
	body := RenderBody(OtpMailTemplate,
		&OtpData{Code: "123456", ExpiresAt: time.Now().Add(5 * time.Minute), TTL: 5 * time.Minute},
		&UserData{Name: "Ann", Email: "ann@x.com"},
	)

	if strings.Contains(body, "{{") {
		t.Fatalf("unreplaced variables remain: %q", body)
	}
	if !strings.Contains(body, "<b>123456</b>") {
		t.Fatalf("code missing from body: %q", body)
	}
	if !strings.Contains(body, "Hi Ann,") {
		t.Fatalf("greeting missing from body: %q", body)
	}
}

package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/authentic/backend/internal/config"
	"github.com/authentic/backend/internal/model"
)

func newTestOtpService(t *testing.T, store *fakeStore) *OtpService {
	t.Helper()
	svc, err := NewOtpService(store, store, config.AuthConfig{OtpTTL: "5m"})
	if err != nil {
		t.Fatalf("otp service init: %v", err)
	}
	return svc
}

func seedUser(t *testing.T, store *fakeStore, id, email string) *model.User {
	t.Helper()
	user, err := store.CreateUser(context.Background(), &model.User{
		ID:       id,
		Email:    email,
		Provider: model.ProviderLocal,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func TestOtpCodeIsFixedWidth(t *testing.T) {
	sixDigits := regexp.MustCompile(`^\d{6}$`)
	for i := 0; i < 200; i++ {
		code, err := generateOtpCode()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if !sixDigits.MatchString(code) {
			t.Fatalf("code %q is not a fixed-width 6-digit string", code)
		}
	}
}

func TestOtpVerifySucceedsAndConsumes(t *testing.T) {
	store := newFakeStore()
	svc := newTestOtpService(t, store)
	seedUser(t, store, "u1", "ann@x.com")

	ch, err := svc.Issue(context.Background(), "u1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	user, err := svc.Verify(context.Background(), "ann@x.com", ch.Code)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if user.ID != "u1" {
		t.Fatalf("resolved wrong user %q", user.ID)
	}

	stored := store.latestChallengeFor("u1")
	if !stored.Consumed || stored.Status != model.OtpStatusUsed {
		t.Fatalf("challenge not terminal used: %+v", stored)
	}
}

func TestOtpVerifyExactlyOnce(t *testing.T) {
	store := newFakeStore()
	svc := newTestOtpService(t, store)
	seedUser(t, store, "u1", "ann@x.com")

	ch, err := svc.Issue(context.Background(), "u1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := svc.Verify(context.Background(), "ann@x.com", ch.Code); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	if _, err := svc.Verify(context.Background(), "ann@x.com", ch.Code); err != ErrInvalidOtp {
		t.Fatalf("second verify = %v, want ErrInvalidOtp", err)
	}
}

func TestOtpVerifyWrongCodeAndUnknownEmailIndistinguishable(t *testing.T) {
	store := newFakeStore()
	svc := newTestOtpService(t, store)
	seedUser(t, store, "u1", "ann@x.com")

	if _, err := svc.Issue(context.Background(), "u1"); err != nil {
		t.Fatalf("issue: %v", err)
	}

	_, errWrong := svc.Verify(context.Background(), "ann@x.com", "999999")
	_, errUnknown := svc.Verify(context.Background(), "nobody@x.com", "000000")

	if errWrong != ErrInvalidOtp || errUnknown != ErrInvalidOtp {
		t.Fatalf("wrong code = %v, unknown email = %v, both must be ErrInvalidOtp", errWrong, errUnknown)
	}
}

func TestOtpVerifyNoPendingChallenge(t *testing.T) {
	store := newFakeStore()
	svc := newTestOtpService(t, store)
	seedUser(t, store, "u1", "ann@x.com")

	if _, err := svc.Verify(context.Background(), "ann@x.com", "000000"); err != ErrInvalidOtp {
		t.Fatalf("verify without pending challenge = %v, want ErrInvalidOtp", err)
	}
}

func TestOtpVerifyExpiryBoundary(t *testing.T) {
	store := newFakeStore()
	svc := newTestOtpService(t, store)
	seedUser(t, store, "u1", "ann@x.com")

	// Still inside the window.
	if _, err := store.InsertOtpChallenge(context.Background(), "u1", "123456", time.Now().Add(50*time.Millisecond)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := svc.Verify(context.Background(), "ann@x.com", "123456"); err != nil {
		t.Fatalf("verify just before expiry: %v", err)
	}

	// Past the deadline.
	if _, err := store.InsertOtpChallenge(context.Background(), "u1", "654321", time.Now().Add(-time.Millisecond)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := svc.Verify(context.Background(), "ann@x.com", "654321"); err != ErrExpiredOtp {
		t.Fatalf("verify after expiry = %v, want ErrExpiredOtp", err)
	}

	stored := store.latestChallengeFor("u1")
	if stored.Status != model.OtpStatusExpired {
		t.Fatalf("late challenge status = %q, want expired", stored.Status)
	}
}

func TestOtpExpiredChallengeStaysTerminal(t *testing.T) {
	store := newFakeStore()
	svc := newTestOtpService(t, store)
	seedUser(t, store, "u1", "ann@x.com")

	if _, err := store.InsertOtpChallenge(context.Background(), "u1", "111111", time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := svc.Verify(context.Background(), "ann@x.com", "111111"); err != ErrExpiredOtp {
		t.Fatalf("first late verify = %v, want ErrExpiredOtp", err)
	}
	// The expired mark consumed it; a retry no longer matches anything.
	if _, err := svc.Verify(context.Background(), "ann@x.com", "111111"); err != ErrInvalidOtp {
		t.Fatalf("retry against terminal challenge = %v, want ErrInvalidOtp", err)
	}
}

func TestOtpResendInvalidatesPrevious(t *testing.T) {
	store := newFakeStore()
	svc := newTestOtpService(t, store)
	seedUser(t, store, "u1", "ann@x.com")

	first, err := svc.Issue(context.Background(), "u1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	second, err := svc.IssueAndInvalidatePrevious(context.Background(), "u1")
	if err != nil {
		t.Fatalf("reissue: %v", err)
	}

	if _, err := svc.Verify(context.Background(), "ann@x.com", first.Code); err != ErrInvalidOtp {
		t.Fatalf("old code after resend = %v, want ErrInvalidOtp", err)
	}
	if _, err := svc.Verify(context.Background(), "ann@x.com", second.Code); err != nil {
		t.Fatalf("fresh code after resend: %v", err)
	}
}

func TestOtpCodeOnlyLookupResolvesUser(t *testing.T) {
	store := newFakeStore()
	svc := newTestOtpService(t, store)
	seedUser(t, store, "u1", "ann@x.com")

	ch, err := svc.Issue(context.Background(), "u1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	user, err := svc.Verify(context.Background(), "", ch.Code)
	if err != nil {
		t.Fatalf("code-only verify: %v", err)
	}
	if user.Email != "ann@x.com" {
		t.Fatalf("resolved wrong user %q", user.Email)
	}
}

func TestOtpConcurrentVerifySingleWinner(t *testing.T) {
	store := newFakeStore()
	svc := newTestOtpService(t, store)
	seedUser(t, store, "u1", "ann@x.com")

	ch, err := svc.Issue(context.Background(), "u1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	const attempts = 8
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			_, err := svc.Verify(context.Background(), "ann@x.com", ch.Code)
			results <- err
		}()
	}

	wins := 0
	for i := 0; i < attempts; i++ {
		if err := <-results; err == nil {
			wins++
		} else if err != ErrInvalidOtp {
			t.Fatalf("loser got %v, want ErrInvalidOtp", err)
		}
	}
	if wins != 1 {
		t.Fatalf("%d verifications won, want exactly 1", wins)
	}
}

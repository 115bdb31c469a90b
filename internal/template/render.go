// Package template provides mail body template rendering.
//
// Supported variables:
//
//	{{otp.code}}, {{otp.expires_minutes}}, {{otp.expires_at}}
//
//	{{user.name}}, {{user.email}}
package template

import (
	"strconv"
	"strings"
	"time"
)

// OtpMailTemplate is the default body for OTP delivery mails.
const OtpMailTemplate = `<p>Hi {{user.name}},</p>
<p>Your OTP code is <b>{{otp.code}}</b>. It expires in {{otp.expires_minutes}} minutes.</p>
<p>If you did not request this code, you can safely ignore this email.</p>`

// OtpData holds the challenge values substituted into a mail body.
type OtpData struct {
	Code      string
	ExpiresAt time.Time
	TTL       time.Duration
}

// UserData holds the recipient values substituted into a mail body.
type UserData struct {
	Name  string
	Email string
}

// RenderBody replaces template variables with their actual values.
//
// Either otp or user may be nil; variables for a nil item are replaced
// with empty strings.
func RenderBody(body string, otp *OtpData, user *UserData) string {
	pairs := make([]string, 0, 10)

	if otp != nil {
		pairs = append(pairs,
			"{{otp.code}}", otp.Code,
			"{{otp.expires_minutes}}", strconv.Itoa(int(otp.TTL.Minutes())),
			"{{otp.expires_at}}", otp.ExpiresAt.Format(time.RFC3339),
		)
	} else {
		pairs = append(pairs,
			"{{otp.code}}", "",
			"{{otp.expires_minutes}}", "",
			"{{otp.expires_at}}", "",
		)
	}

	if user != nil {
		pairs = append(pairs,
			"{{user.name}}", user.Name,
			"{{user.email}}", user.Email,
		)
	} else {
		pairs = append(pairs,
			"{{user.name}}", "",
			"{{user.email}}", "",
		)
	}

	return strings.NewReplacer(pairs...).Replace(body)
}

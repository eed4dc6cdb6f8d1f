package mailer

import (
	"fmt"
	"math"
	"time"
)

type Service interface {
	Send(toEmail, toName, subject, text, html string) (string, error)
	SendOTP(email, code string, ttl time.Duration) error
}

const otpSubject = "Your OTP Code"

// composeOTP renders the passcode message shared by every transport.
func composeOTP(code string, ttl time.Duration) (text, html string) {
	minutes := int(math.Ceil(ttl.Minutes()))
	text = fmt.Sprintf("Your OTP is %s. It expires in %d minutes.", code, minutes)
	html = fmt.Sprintf(`<p>Your OTP is <b>%s</b>.</p><p>It expires in %d minutes.</p>`, code, minutes)
	return text, html
}

package mailer

import (
	"context"
	"time"

	"github.com/diagnosis/interview-board/pkg/logger"
)

// DevMailer writes messages to the log instead of delivering them.
type DevMailer struct{}

func NewDevMailer() *DevMailer { return &DevMailer{} }

func (d *DevMailer) Send(toEmail, toName, subject, text, html string) (string, error) {
	logger.InfoContext(context.Background(), "dev mail",
		"to", toEmail,
		"subject", subject,
		"text", text,
	)
	return "", nil
}

func (d *DevMailer) SendOTP(email, code string, ttl time.Duration) error {
	text, html := composeOTP(code, ttl)
	_, err := d.Send(email, "", otpSubject, text, html)
	return err
}

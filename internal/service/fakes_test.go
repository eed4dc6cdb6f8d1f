package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/diagnosis/interview-board/internal/platform/password"
)

type sentOtp struct {
	Email string
	Code  string
	TTL   time.Duration
}

type captureMailer struct {
	mu   sync.Mutex
	sent []sentOtp
	fail bool
}

func (m *captureMailer) Send(toEmail, toName, subject, text, html string) (string, error) {
	return "", nil
}

func (m *captureMailer) SendOTP(email, code string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp down")
	}
	m.sent = append(m.sent, sentOtp{Email: email, Code: code, TTL: ttl})
	return nil
}

func (m *captureMailer) last() sentOtp {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentOtp{}
	}
	return m.sent[len(m.sent)-1]
}

type published struct {
	Subject string
	Data    interface{}
}

type capturePublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *capturePublisher) Publish(_ context.Context, subject string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{Subject: subject, Data: data})
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Subject)
	}
	return out
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func fastHasher() *password.Hasher {
	return password.NewHasherWithParams(&argon2id.Params{
		Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
}

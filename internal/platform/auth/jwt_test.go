package auth

import (
	"testing"
	"time"

	"github.com/diagnosis/interview-board/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestIssuer(clock *fakeClock) *Issuer {
	return NewIssuer("test-secret", 5*time.Hour).WithClock(clock.Now)
}

func TestIssueAndVerify(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	issuer := newTestIssuer(clock)
	id := uuid.New()

	token, err := issuer.Issue(id, domain.RoleAdmin)
	require.NoError(t, err)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, id.String(), claims.ID)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
	assert.Equal(t, clock.t.Add(5*time.Hour).Unix(), claims.ExpiresAt.Unix())

	got, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestVerifyValidityWindow(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{t: start}
	issuer := newTestIssuer(clock)

	token, err := issuer.Issue(uuid.New(), domain.RoleUser)
	require.NoError(t, err)

	clock.t = start.Add(4*time.Hour + 59*time.Minute)
	_, err = issuer.Verify(token)
	assert.NoError(t, err)

	clock.t = start.Add(5*time.Hour + time.Second)
	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyRejectsTampering(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	issuer := newTestIssuer(clock)

	token, err := issuer.Issue(uuid.New(), domain.RoleUser)
	require.NoError(t, err)

	for i := 0; i < len(token); i++ {
		if token[i] == '.' {
			continue
		}
		b := []byte(token)
		if b[i] == 'A' {
			b[i] = 'B'
		} else {
			b[i] = 'A'
		}
		_, err := issuer.Verify(string(b))
		assert.ErrorIs(t, err, ErrTokenInvalid, "byte %d", i)
	}
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	other := NewIssuer("another-secret", time.Hour).WithClock(clock.Now)

	token, err := other.Issue(uuid.New(), domain.RoleAdmin)
	require.NoError(t, err)

	_, err = newTestIssuer(clock).Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)
	for _, tok := range []string{"", "abc", "a.b.c", "Bearer x"} {
		_, err := issuer.Verify(tok)
		assert.ErrorIs(t, err, ErrTokenInvalid, tok)
	}
}

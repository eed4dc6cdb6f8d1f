package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/diagnosis/interview-board/internal/domain"
	"github.com/diagnosis/interview-board/internal/platform/auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingVerifier struct {
	inner *auth.Issuer
	calls int
}

func (v *countingVerifier) Verify(token string) (*auth.Claims, error) {
	v.calls++
	return v.inner.Verify(token)
}

func protected(v TokenVerifier, role *domain.Role) http.Handler {
	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, _ := CallerFrom(r)
		w.Header().Set("X-Caller", c.ID.String())
		w.WriteHeader(http.StatusOK)
	})
	if role != nil {
		h = RequireRole(*role)(h)
	}
	return Authenticate(v)(h)
}

func TestAuthenticateMissingOrMalformedHeader(t *testing.T) {
	v := &countingVerifier{inner: auth.NewIssuer("s", time.Hour)}
	h := protected(v, nil)

	for _, header := range []string{"", "Token abc", "Bearer", "Bearer ", "bearer abc", "Bearer a b"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
	}
	assert.Zero(t, v.calls)
}

func TestAuthenticateInvalidToken(t *testing.T) {
	v := &countingVerifier{inner: auth.NewIssuer("s", time.Hour)}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not.a.jwt")
	rec := httptest.NewRecorder()
	protected(v, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 1, v.calls)
}

func TestAuthenticateAndRequireRole(t *testing.T) {
	issuer := auth.NewIssuer("s", time.Hour)
	v := &countingVerifier{inner: issuer}
	admin := domain.RoleAdmin

	userID := uuid.New()
	userTok, err := issuer.Issue(userID, domain.RoleUser)
	require.NoError(t, err)
	adminTok, err := issuer.Issue(uuid.New(), domain.RoleAdmin)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+userTok)
	rec := httptest.NewRecorder()
	protected(v, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID.String(), rec.Header().Get("X-Caller"))

	rec = httptest.NewRecorder()
	protected(v, &admin).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+adminTok)
	rec = httptest.NewRecorder()
	protected(v, &admin).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

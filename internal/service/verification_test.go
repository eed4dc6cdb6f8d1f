package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/diagnosis/interview-board/internal/domain"
	"github.com/diagnosis/interview-board/internal/platform/auth"
	"github.com/diagnosis/interview-board/internal/repo/memory"
	"github.com/diagnosis/interview-board/pkg/events"
	"github.com/stretchr/testify/suite"
)

const adminEmail = "admin@board.io"

type VerificationSuite struct {
	suite.Suite
	ctx     context.Context
	clock   *testClock
	users   *memory.UserStore
	otps    *memory.OtpStore
	mailer  *captureMailer
	events  *capturePublisher
	issuer  *auth.Issuer
	svc     VerificationService
	nextOtp int
}

func TestVerificationSuite(t *testing.T) {
	suite.Run(t, new(VerificationSuite))
}

func (s *VerificationSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = &testClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	s.users = memory.NewUserStore()
	s.otps = memory.NewOtpStore()
	s.mailer = &captureMailer{}
	s.events = &capturePublisher{}
	s.issuer = auth.NewIssuer("test-secret", 5*time.Hour).WithClock(s.clock.Now)
	s.nextOtp = 100000
	s.svc = NewVerificationService(
		s.users, s.otps, s.mailer, fastHasher(), s.issuer, s.events,
		VerificationConfig{OtpTTL: 10 * time.Minute, AdminEmail: adminEmail},
		WithVerificationClock(s.clock.Now),
		WithCodeGenerator(func() (string, error) {
			s.nextOtp++
			return strconv.Itoa(s.nextOtp), nil
		}),
	)
}

func (s *VerificationSuite) signup(name, email, pass string) string {
	s.Require().NoError(s.svc.RequestSignupOtp(s.ctx, &domain.SignupRequest{Name: name, Email: email, Password: pass}))
	return s.mailer.last().Code
}

func (s *VerificationSuite) TestSignupHappyPath() {
	code := s.signup("Ann", "Ann@X.io ", "pw1")
	s.Equal("ann@x.io", s.mailer.last().Email)
	s.Equal(10*time.Minute, s.mailer.last().TTL)
	s.Equal(1, s.otps.Count("ann@x.io"))

	user, err := s.svc.VerifySignupOtp(s.ctx, &domain.VerifyOtpRequest{Email: "ann@x.io", Otp: code})
	s.Require().NoError(err)
	s.Equal("Ann", user.Name)
	s.Equal(domain.RoleUser, user.Role)
	s.Equal(1, s.users.Len())
	s.Equal(0, s.otps.Count("ann@x.io"))
	s.Equal([]string{events.UserRegistered}, s.events.subjects())

	resp, err := s.svc.Login(s.ctx, &domain.LoginRequest{Email: "ANN@x.io", Password: "pw1"})
	s.Require().NoError(err)
	s.Equal("/user/dashboard", resp.Redirect)
	s.Equal(user.ID, resp.User.ID)

	claims, err := s.issuer.Verify(resp.Token)
	s.Require().NoError(err)
	s.Equal(user.ID.String(), claims.ID)
	s.Equal(domain.RoleUser, claims.Role)
}

func (s *VerificationSuite) TestSignupRejectsExistingEmail() {
	code := s.signup("Ann", "ann@x.io", "pw1")
	_, err := s.svc.VerifySignupOtp(s.ctx, &domain.VerifyOtpRequest{Email: "ann@x.io", Otp: code})
	s.Require().NoError(err)

	err = s.svc.RequestSignupOtp(s.ctx, &domain.SignupRequest{Name: "Ann", Email: "ann@x.io", Password: "pw2"})
	s.ErrorIs(err, domain.ErrUserExists)
}

func (s *VerificationSuite) TestSignupValidation() {
	err := s.svc.RequestSignupOtp(s.ctx, &domain.SignupRequest{Name: "", Email: "nope", Password: ""})
	s.Require().Error(err)
	s.Equal(domain.KindValidation, domain.KindOf(err))
	s.Empty(s.mailer.sent)
}

func (s *VerificationSuite) TestAdminRoleFromConfiguredEmail() {
	code := s.signup("Root", "Admin@Board.io", "pw")
	user, err := s.svc.VerifySignupOtp(s.ctx, &domain.VerifyOtpRequest{Email: adminEmail, Otp: code})
	s.Require().NoError(err)
	s.Equal(domain.RoleAdmin, user.Role)

	resp, err := s.svc.Login(s.ctx, &domain.LoginRequest{Email: adminEmail, Password: "pw"})
	s.Require().NoError(err)
	s.Equal("/admin/dashboard", resp.Redirect)
}

func (s *VerificationSuite) TestWrongCodeIsInvalidAndKeepsRecords() {
	code := s.signup("Ann", "ann@x.io", "pw1")

	for _, bad := range []string{"999999", "12345", "abcdef", code + "0"} {
		_, err := s.svc.VerifySignupOtp(s.ctx, &domain.VerifyOtpRequest{Email: "ann@x.io", Otp: bad})
		s.ErrorIs(err, domain.ErrInvalidOtp, bad)
	}
	s.Equal(1, s.otps.Count("ann@x.io"))
	s.Equal(0, s.users.Len())
}

func (s *VerificationSuite) TestReplayFails() {
	code := s.signup("Ann", "ann@x.io", "pw1")
	_, err := s.svc.VerifySignupOtp(s.ctx, &domain.VerifyOtpRequest{Email: "ann@x.io", Otp: code})
	s.Require().NoError(err)

	_, err = s.svc.VerifySignupOtp(s.ctx, &domain.VerifyOtpRequest{Email: "ann@x.io", Otp: code})
	s.ErrorIs(err, domain.ErrInvalidOtp)
	s.Equal(1, s.users.Len())
}

func (s *VerificationSuite) TestExpiredCodePurgesRecords() {
	first := s.signup("Ann", "ann@x.io", "pw1")
	s.signup("Ann", "ann@x.io", "pw1")
	s.Equal(2, s.otps.Count("ann@x.io"))

	s.clock.Advance(10 * time.Minute)
	s.clock.Advance(time.Second)

	_, err := s.svc.VerifySignupOtp(s.ctx, &domain.VerifyOtpRequest{Email: "ann@x.io", Otp: first})
	s.ErrorIs(err, domain.ErrOtpExpired)
	s.Equal(0, s.otps.Count("ann@x.io"))
	s.Equal(0, s.users.Len())

	_, err = s.svc.VerifySignupOtp(s.ctx, &domain.VerifyOtpRequest{Email: "ann@x.io", Otp: first})
	s.ErrorIs(err, domain.ErrInvalidOtp)
}

func (s *VerificationSuite) TestCodeValidAtExactExpiry() {
	code := s.signup("Ann", "ann@x.io", "pw1")
	s.clock.Advance(10 * time.Minute)
	_, err := s.svc.VerifySignupOtp(s.ctx, &domain.VerifyOtpRequest{Email: "ann@x.io", Otp: code})
	s.NoError(err)
}

func (s *VerificationSuite) TestResetCodeCannotFinishSignup() {
	code := s.signup("Ann", "ann@x.io", "pw1")
	_, err := s.svc.VerifySignupOtp(s.ctx, &domain.VerifyOtpRequest{Email: "ann@x.io", Otp: code})
	s.Require().NoError(err)

	s.Require().NoError(s.svc.RequestReset(s.ctx, &domain.ForgotRequest{Email: "ann@x.io"}))
	resetCode := s.mailer.last().Code

	_, err = s.svc.VerifySignupOtp(s.ctx, &domain.VerifyOtpRequest{Email: "ann@x.io", Otp: resetCode})
	s.ErrorIs(err, domain.ErrInvalidOtp)
	s.Equal(1, s.otps.Count("ann@x.io"))
}

func (s *VerificationSuite) TestLoginFailures() {
	_, err := s.svc.Login(s.ctx, &domain.LoginRequest{Email: "ghost@x.io", Password: "pw"})
	s.ErrorIs(err, domain.ErrInvalidCredentials)

	code := s.signup("Ann", "ann@x.io", "pw1")
	_, err = s.svc.VerifySignupOtp(s.ctx, &domain.VerifyOtpRequest{Email: "ann@x.io", Otp: code})
	s.Require().NoError(err)

	_, err = s.svc.Login(s.ctx, &domain.LoginRequest{Email: "ann@x.io", Password: "wrong"})
	s.ErrorIs(err, domain.ErrInvalidCredentials)
}

func (s *VerificationSuite) TestPasswordReset() {
	code := s.signup("Ann", "ann@x.io", "old")
	_, err := s.svc.VerifySignupOtp(s.ctx, &domain.VerifyOtpRequest{Email: "ann@x.io", Otp: code})
	s.Require().NoError(err)

	s.Require().NoError(s.svc.RequestReset(s.ctx, &domain.ForgotRequest{Email: "ANN@x.io"}))
	resetCode := s.mailer.last().Code

	err = s.svc.ConfirmReset(s.ctx, &domain.ResetRequest{Email: "ann@x.io", Otp: "000000", NewPassword: "new"})
	s.ErrorIs(err, domain.ErrInvalidOtp)

	s.Require().NoError(s.svc.ConfirmReset(s.ctx, &domain.ResetRequest{Email: "ann@x.io", Otp: resetCode, NewPassword: "new"}))
	s.Equal(0, s.otps.Count("ann@x.io"))

	_, err = s.svc.Login(s.ctx, &domain.LoginRequest{Email: "ann@x.io", Password: "old"})
	s.ErrorIs(err, domain.ErrInvalidCredentials)
	_, err = s.svc.Login(s.ctx, &domain.LoginRequest{Email: "ann@x.io", Password: "new"})
	s.NoError(err)

	err = s.svc.ConfirmReset(s.ctx, &domain.ResetRequest{Email: "ann@x.io", Otp: resetCode, NewPassword: "again"})
	s.ErrorIs(err, domain.ErrInvalidOtp)
}

func (s *VerificationSuite) TestResetUnknownAccount() {
	err := s.svc.RequestReset(s.ctx, &domain.ForgotRequest{Email: "ghost@x.io"})
	s.ErrorIs(err, domain.ErrNoAccount)
	s.Empty(s.mailer.sent)
}

func (s *VerificationSuite) TestResetExpiredPurges() {
	code := s.signup("Ann", "ann@x.io", "old")
	_, err := s.svc.VerifySignupOtp(s.ctx, &domain.VerifyOtpRequest{Email: "ann@x.io", Otp: code})
	s.Require().NoError(err)
	s.Require().NoError(s.svc.RequestReset(s.ctx, &domain.ForgotRequest{Email: "ann@x.io"}))
	resetCode := s.mailer.last().Code

	s.clock.Advance(11 * time.Minute)
	err = s.svc.ConfirmReset(s.ctx, &domain.ResetRequest{Email: "ann@x.io", Otp: resetCode, NewPassword: "new"})
	s.ErrorIs(err, domain.ErrOtpExpired)
	s.Equal(0, s.otps.Count("ann@x.io"))
}

func (s *VerificationSuite) TestMailFailureIsInternal() {
	s.mailer.fail = true
	err := s.svc.RequestSignupOtp(s.ctx, &domain.SignupRequest{Name: "Ann", Email: "ann@x.io", Password: "pw"})
	s.Require().Error(err)
	s.Equal(domain.KindInternal, domain.KindOf(err))
}

func (s *VerificationSuite) TestEnsureAdmin() {
	u, created, err := s.svc.EnsureAdmin(s.ctx, "", "", "")
	s.Require().NoError(err)
	s.False(created)
	s.Nil(u)

	u, created, err = s.svc.EnsureAdmin(s.ctx, "Admin@Board.io", "Root", "pw")
	s.Require().NoError(err)
	s.True(created)
	s.Equal(domain.RoleAdmin, u.Role)
	s.Equal(adminEmail, u.Email)

	_, created, err = s.svc.EnsureAdmin(s.ctx, adminEmail, "Root", "pw")
	s.Require().NoError(err)
	s.False(created)
	s.Equal(1, s.users.Len())
}

func (s *VerificationSuite) TestSweepExpired() {
	s.signup("Ann", "ann@x.io", "pw")
	s.clock.Advance(domain.OtpRetention + time.Hour)
	s.signup("Bob", "bob@x.io", "pw")

	n, err := s.svc.SweepExpired(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), n)
	s.Equal(0, s.otps.Count("ann@x.io"))
	s.Equal(1, s.otps.Count("bob@x.io"))
}

func (s *VerificationSuite) TestSweepKeepsRecentlyExpiredCodes() {
	code := s.signup("Ann", "ann@x.io", "pw")
	s.clock.Advance(11 * time.Minute)

	n, err := s.svc.SweepExpired(s.ctx)
	s.Require().NoError(err)
	s.Zero(n)
	s.Equal(1, s.otps.Count("ann@x.io"))

	_, err = s.svc.VerifySignupOtp(s.ctx, &domain.VerifyOtpRequest{Email: "ann@x.io", Otp: code})
	s.ErrorIs(err, domain.ErrOtpExpired)
	s.Equal(0, s.users.Len())
}

func TestGenerateOtpCode(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := GenerateOtpCode()
		if err != nil {
			t.Fatal(err)
		}
		if !domain.IsOtpCodeShaped(code) {
			t.Fatalf("bad code %q", code)
		}
		n, _ := strconv.Atoi(code)
		if n < domain.OtpCodeMin || n > domain.OtpCodeMax {
			t.Fatalf("code %d out of range", n)
		}
	}
}

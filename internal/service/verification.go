package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/diagnosis/interview-board/internal/domain"
	"github.com/diagnosis/interview-board/internal/platform/mailer"
	"github.com/diagnosis/interview-board/internal/repo"
	"github.com/diagnosis/interview-board/pkg/events"
	"github.com/diagnosis/interview-board/pkg/logger"
	"github.com/diagnosis/interview-board/pkg/metrics"
	"github.com/google/uuid"
)

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(plain, hash string) (bool, error)
}

type TokenIssuer interface {
	Issue(userID uuid.UUID, role domain.Role) (string, error)
}

// CodeGenerator returns a fresh six digit passcode.
type CodeGenerator func() (string, error)

// GenerateOtpCode draws uniformly from [100000, 999999].
func GenerateOtpCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(domain.OtpCodeMax-domain.OtpCodeMin+1))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+domain.OtpCodeMin), nil
}

type VerificationService interface {
	RequestSignupOtp(ctx context.Context, req *domain.SignupRequest) error
	VerifySignupOtp(ctx context.Context, req *domain.VerifyOtpRequest) (*domain.User, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error)
	RequestReset(ctx context.Context, req *domain.ForgotRequest) error
	ConfirmReset(ctx context.Context, req *domain.ResetRequest) error
	EnsureAdmin(ctx context.Context, email, name, password string) (*domain.User, bool, error)
	SweepExpired(ctx context.Context) (int64, error)
}

type VerificationConfig struct {
	OtpTTL     time.Duration
	AdminEmail string
}

type verificationService struct {
	users     repo.UserRepository
	otps      repo.OtpLedger
	mailer    mailer.Service
	hasher    PasswordHasher
	tokens    TokenIssuer
	publisher events.Publisher
	cfg       VerificationConfig
	now       func() time.Time
	newCode   CodeGenerator
}

type VerificationOption func(*verificationService)

func WithVerificationClock(now func() time.Time) VerificationOption {
	return func(s *verificationService) { s.now = now }
}

func WithCodeGenerator(gen CodeGenerator) VerificationOption {
	return func(s *verificationService) { s.newCode = gen }
}

func NewVerificationService(
	users repo.UserRepository,
	otps repo.OtpLedger,
	mailer mailer.Service,
	hasher PasswordHasher,
	tokens TokenIssuer,
	publisher events.Publisher,
	cfg VerificationConfig,
	opts ...VerificationOption,
) VerificationService {
	s := &verificationService{
		users:     users,
		otps:      otps,
		mailer:    mailer,
		hasher:    hasher,
		tokens:    tokens,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
		newCode:   GenerateOtpCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *verificationService) RequestSignupOtp(ctx context.Context, req *domain.SignupRequest) error {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return err
	}

	existing, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		return fmt.Errorf("check existing user: %w", err)
	}
	if existing != nil {
		return domain.ErrUserExists
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return err
	}

	return s.issue(ctx, req.Email, domain.OtpPayload{
		Intent:       domain.IntentSignup,
		Name:         req.Name,
		PasswordHash: hash,
	})
}

func (s *verificationService) issue(ctx context.Context, email string, payload domain.OtpPayload) error {
	code, err := s.newCode()
	if err != nil {
		return err
	}
	now := s.now()
	rec := &domain.OtpRecord{
		Email:     email,
		Code:      code,
		ExpiresAt: now.Add(s.cfg.OtpTTL),
		Payload:   payload,
		CreatedAt: now,
	}
	if err := s.otps.Create(ctx, rec); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	if err := s.mailer.SendOTP(email, code, s.cfg.OtpTTL); err != nil {
		return fmt.Errorf("send otp email: %w", err)
	}

	metrics.OtpIssued(string(payload.Intent))
	logger.InfoContext(ctx, "OTP issued", "intent", payload.Intent, "email", email)
	return nil
}

// consume resolves a submitted code into its record. Every miss is
// ErrInvalidOtp; a hit past its expiry is ErrOtpExpired and the ledger
// has already dropped the email's records either way.
func (s *verificationService) consume(ctx context.Context, email, code string, intent domain.OtpIntent) (*domain.OtpRecord, error) {
	if !domain.IsOtpCodeShaped(code) {
		metrics.OtpVerified(string(intent), "invalid")
		return nil, domain.ErrInvalidOtp
	}
	rec, err := s.otps.Consume(ctx, email, code, intent)
	if err != nil {
		return nil, fmt.Errorf("consume otp: %w", err)
	}
	if rec == nil {
		metrics.OtpVerified(string(intent), "invalid")
		return nil, domain.ErrInvalidOtp
	}
	if rec.Expired(s.now()) {
		metrics.OtpVerified(string(intent), "expired")
		return nil, domain.ErrOtpExpired
	}
	metrics.OtpVerified(string(intent), "ok")
	return rec, nil
}

func (s *verificationService) VerifySignupOtp(ctx context.Context, req *domain.VerifyOtpRequest) (*domain.User, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	rec, err := s.consume(ctx, req.Email, req.Otp, domain.IntentSignup)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Create(ctx, &domain.User{
		Name:         rec.Payload.Name,
		Email:        req.Email,
		PasswordHash: rec.Payload.PasswordHash,
		Role:         domain.DetermineRole(req.Email, s.cfg.AdminEmail),
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.publish(ctx, events.UserRegistered, events.UserRegisteredEvent{
		UserID:       user.ID,
		Email:        user.Email,
		Role:         string(user.Role),
		RegisteredAt: user.CreatedAt,
	})
	logger.InfoContext(ctx, "User registered", "user_id", user.ID, "role", user.Role)
	return user, nil
}

func (s *verificationService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		metrics.Login("invalid")
		return nil, domain.ErrInvalidCredentials
	}

	ok, err := s.hasher.Compare(req.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		metrics.Login("invalid")
		return nil, domain.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, err
	}

	metrics.Login("ok")
	return &domain.LoginResponse{
		Token:    token,
		User:     user.ToUserInfo(),
		Redirect: domain.DashboardPath(user.Role),
	}, nil
}

func (s *verificationService) RequestReset(ctx context.Context, req *domain.ForgotRequest) error {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return err
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return domain.ErrNoAccount
	}

	return s.issue(ctx, req.Email, domain.OtpPayload{Intent: domain.IntentReset})
}

func (s *verificationService) ConfirmReset(ctx context.Context, req *domain.ResetRequest) error {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return err
	}

	if _, err := s.consume(ctx, req.Email, req.Otp, domain.IntentReset); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, req.Email, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	logger.InfoContext(ctx, "Password reset", "email", req.Email)
	return nil
}

// EnsureAdmin creates the configured admin account if it does not exist yet.
// The bool reports whether an account was created.
func (s *verificationService) EnsureAdmin(ctx context.Context, email, name, password string) (*domain.User, bool, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, false, nil
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, false, fmt.Errorf("find admin: %w", err)
	}
	if existing != nil {
		if existing.Role != domain.RoleAdmin {
			logger.WarnContext(ctx, "Configured admin email belongs to a non-admin account", "user_id", existing.ID)
		}
		return existing, false, nil
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, false, err
	}
	if name == "" {
		name = "Admin"
	}
	user, err := s.users.Create(ctx, &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
	})
	if errors.Is(err, domain.ErrUserExists) {
		// Another instance seeded it first.
		existing, ferr := s.users.FindByEmail(ctx, email)
		return existing, false, ferr
	}
	if err != nil {
		return nil, false, fmt.Errorf("create admin: %w", err)
	}
	logger.InfoContext(ctx, "Admin account seeded", "user_id", user.ID)
	return user, true, nil
}

// SweepExpired drops records that expired more than domain.OtpRetention ago.
func (s *verificationService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.otps.DeleteExpired(ctx, s.now().Add(-domain.OtpRetention))
	if err != nil {
		return 0, fmt.Errorf("sweep expired otps: %w", err)
	}
	metrics.OtpSwept(n)
	return n, nil
}

func (s *verificationService) publish(ctx context.Context, subject string, data interface{}) {
	if err := s.publisher.Publish(ctx, subject, data); err != nil {
		logger.WarnContext(ctx, "Failed to publish event", "subject", subject, "error", err)
	}
}

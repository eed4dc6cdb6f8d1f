// Package repo declares the storage contracts the workflows depend on.
// Lookups return (nil, nil) when nothing matches.
package repo

import (
	"context"
	"time"

	"github.com/diagnosis/interview-board/internal/domain"
	"github.com/google/uuid"
)

type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.User, error)
	// Create fails with domain.ErrUserExists when the email is taken.
	Create(ctx context.Context, u *domain.User) (*domain.User, error)
	UpdatePassword(ctx context.Context, email, hash string) error
}

type OtpLedger interface {
	Create(ctx context.Context, rec *domain.OtpRecord) error
	// Consume atomically removes every record for email when one matches
	// (email, code, intent) and returns the matching record. Expired records
	// are returned too so the caller can report expiry. No match removes nothing.
	Consume(ctx context.Context, email, code string, intent domain.OtpIntent) (*domain.OtpRecord, error)
	DeleteByEmail(ctx context.Context, email string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type CompanyRepository interface {
	Create(ctx context.Context, c *domain.Company) (*domain.Company, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Company, error)
	// List returns matches newest first.
	List(ctx context.Context, f domain.CompanyFilter) ([]*domain.Company, error)
	// SetStatus returns nil when no record has the id.
	SetStatus(ctx context.Context, id uuid.UUID, status domain.CompanyStatus, reason string, at time.Time) (*domain.Company, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/diagnosis/interview-board/internal/domain"
	"github.com/diagnosis/interview-board/internal/repo"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OtpRepoImpl struct{ pool *pgxpool.Pool }

func NewOtpRepo(pool *pgxpool.Pool) *OtpRepoImpl { return &OtpRepoImpl{pool: pool} }

func (r *OtpRepoImpl) Create(ctx context.Context, rec *domain.OtpRecord) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("marshal otp payload: %w", err)
	}
	const q = `
INSERT INTO otp_records (email, code, intent, payload, expires_at)
VALUES ($1,$2,$3,$4,$5)`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if _, err := r.pool.Exec(ctx, q, rec.Email, rec.Code, rec.Payload.Intent, payload, rec.ExpiresAt); err != nil {
		return fmt.Errorf("insert otp: %w", err)
	}
	return nil
}

// Consume deletes every record for the email in one statement, but only when
// one of them matches. Concurrent callers race on the row locks, so at most
// one of them gets rows back.
func (r *OtpRepoImpl) Consume(ctx context.Context, email, code string, intent domain.OtpIntent) (*domain.OtpRecord, error) {
	const q = `
DELETE FROM otp_records
WHERE email = $1
  AND EXISTS (
    SELECT 1 FROM otp_records
    WHERE email = $1 AND code = $2 AND intent = $3
  )
RETURNING email, code, intent, payload, expires_at, created_at`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, email, code, intent)
	if err != nil {
		return nil, fmt.Errorf("consume otp: %w", err)
	}
	defer rows.Close()

	var hit *domain.OtpRecord
	for rows.Next() {
		var (
			rec     domain.OtpRecord
			recInt  string
			payload []byte
		)
		if err := rows.Scan(&rec.Email, &rec.Code, &recInt, &payload, &rec.ExpiresAt, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan otp: %w", err)
		}
		if hit != nil || rec.Code != code || domain.OtpIntent(recInt) != intent {
			continue
		}
		if err := json.Unmarshal(payload, &rec.Payload); err != nil {
			return nil, fmt.Errorf("decode otp payload: %w", err)
		}
		rec.Payload.Intent = domain.OtpIntent(recInt)
		hit = &rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("consume otp: %w", err)
	}
	return hit, nil
}

func (r *OtpRepoImpl) DeleteByEmail(ctx context.Context, email string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if _, err := r.pool.Exec(ctx, `DELETE FROM otp_records WHERE email=$1`, email); err != nil {
		return fmt.Errorf("delete otp records: %w", err)
	}
	return nil
}

func (r *OtpRepoImpl) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	tag, err := r.pool.Exec(ctx, `DELETE FROM otp_records WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired otp records: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ repo.OtpLedger = (*OtpRepoImpl)(nil)

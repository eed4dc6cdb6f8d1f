package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/diagnosis/interview-board/internal/domain"
	"github.com/diagnosis/interview-board/internal/repo"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CompanyRepoImpl struct{ pool *pgxpool.Pool }

func NewCompanyRepo(pool *pgxpool.Pool) *CompanyRepoImpl { return &CompanyRepoImpl{pool: pool} }

const companyCols = `id, name, rounds, status, rejection_reason, created_by,
year, college, created_at, updated_at`

func scanCompany(row pgx.Row) (*domain.Company, error) {
	var (
		c      domain.Company
		rounds []byte
	)
	if err := row.Scan(
		&c.ID, &c.Name, &rounds, &c.Status, &c.RejectionReason, &c.CreatedBy,
		&c.Year, &c.College, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.Rounds = []domain.Round{}
	if len(rounds) > 0 {
		if err := json.Unmarshal(rounds, &c.Rounds); err != nil {
			return nil, fmt.Errorf("decode rounds: %w", err)
		}
	}
	return &c, nil
}

func (r *CompanyRepoImpl) Create(ctx context.Context, in *domain.Company) (*domain.Company, error) {
	rounds := in.Rounds
	if rounds == nil {
		rounds = []domain.Round{}
	}
	roundsJSON, err := json.Marshal(rounds)
	if err != nil {
		return nil, fmt.Errorf("encode rounds: %w", err)
	}
	id := in.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	const q = `
INSERT INTO companies (id, name, rounds, status, rejection_reason, created_by, year, college)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING ` + companyCols
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	c, err := scanCompany(r.pool.QueryRow(ctx, q,
		id, in.Name, roundsJSON, in.Status, in.RejectionReason, in.CreatedBy, in.Year, in.College,
	))
	if err != nil {
		return nil, fmt.Errorf("insert company: %w", err)
	}
	return c, nil
}

func (r *CompanyRepoImpl) GetByID(ctx context.Context, id uuid.UUID) (*domain.Company, error) {
	const q = `SELECT ` + companyCols + ` FROM companies WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	c, err := scanCompany(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	return c, nil
}

func (r *CompanyRepoImpl) List(ctx context.Context, f domain.CompanyFilter) ([]*domain.Company, error) {
	q, args := buildListQuery(f)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Company, 0)
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func buildListQuery(f domain.CompanyFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.Status != nil {
		where = append(where, "status = "+arg(*f.Status))
	}
	if f.CreatedBy != nil {
		where = append(where, "created_by = "+arg(*f.CreatedBy))
	}
	if f.Search != "" {
		where = append(where, `name ILIKE `+arg("%"+escapeLike(f.Search)+"%")+` ESCAPE '\'`)
	}

	q := `SELECT ` + companyCols + ` FROM companies`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC, id DESC`
	return q, args
}

// escapeLike makes the search a literal substring match.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *CompanyRepoImpl) SetStatus(ctx context.Context, id uuid.UUID, status domain.CompanyStatus, reason string, at time.Time) (*domain.Company, error) {
	const q = `
UPDATE companies
SET status=$2, rejection_reason=$3, updated_at=$4
WHERE id=$1
RETURNING ` + companyCols
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	c, err := scanCompany(r.pool.QueryRow(ctx, q, id, status, reason, at))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update company status: %w", err)
	}
	return c, nil
}

func (r *CompanyRepoImpl) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	tag, err := r.pool.Exec(ctx, `DELETE FROM companies WHERE id=$1`, id)
	if err != nil {
		return false, fmt.Errorf("delete company: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

var _ repo.CompanyRepository = (*CompanyRepoImpl)(nil)

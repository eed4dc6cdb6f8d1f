// Package memory holds map-backed stores used by tests and STORE_DRIVER=memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/diagnosis/interview-board/internal/domain"
	"github.com/diagnosis/interview-board/internal/repo"
	"github.com/google/uuid"
)

type UserStore struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*domain.User
	byEmail map[string]uuid.UUID
	now     func() time.Time
}

func NewUserStore() *UserStore {
	return &UserStore{
		byID:    make(map[uuid.UUID]*domain.User),
		byEmail: make(map[string]uuid.UUID),
		now:     time.Now,
	}
}

func (s *UserStore) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, nil
	}
	u := *s.byID[id]
	return &u, nil
}

func (s *UserStore) FindByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *UserStore) FindByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]*domain.User, len(ids))
	for _, id := range ids {
		if u, ok := s.byID[id]; ok {
			cp := *u
			out[id] = &cp
		}
	}
	return out, nil
}

func (s *UserStore) Create(_ context.Context, u *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[u.Email]; ok {
		return nil, domain.ErrUserExists
	}
	cp := *u
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	now := s.now()
	cp.CreatedAt, cp.UpdatedAt = now, now
	s.byID[cp.ID] = &cp
	s.byEmail[cp.Email] = cp.ID
	out := cp
	return &out, nil
}

func (s *UserStore) UpdatePassword(_ context.Context, email, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil
	}
	u := s.byID[id]
	u.PasswordHash = hash
	u.UpdatedAt = s.now()
	return nil
}

// Len reports the number of stored users.
func (s *UserStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

type OtpStore struct {
	mu      sync.Mutex
	records map[string][]*domain.OtpRecord
}

func NewOtpStore() *OtpStore {
	return &OtpStore{records: make(map[string][]*domain.OtpRecord)}
}

func (s *OtpStore) Create(_ context.Context, rec *domain.OtpRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.records[rec.Email] = append(s.records[rec.Email], &cp)
	return nil
}

func (s *OtpStore) Consume(_ context.Context, email, code string, intent domain.OtpIntent) (*domain.OtpRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records[email] {
		if rec.Code == code && rec.Payload.Intent == intent {
			delete(s.records, email)
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *OtpStore) DeleteByEmail(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, email)
	return nil
}

func (s *OtpStore) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for email, recs := range s.records {
		kept := recs[:0]
		for _, rec := range recs {
			if rec.ExpiresAt.Before(before) {
				n++
				continue
			}
			kept = append(kept, rec)
		}
		if len(kept) == 0 {
			delete(s.records, email)
		} else {
			s.records[email] = kept
		}
	}
	return n, nil
}

// Count reports how many records exist for email.
func (s *OtpStore) Count(email string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records[email])
}

type CompanyStore struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*domain.Company
	seq   int64
	order map[uuid.UUID]int64
	now   func() time.Time
}

func NewCompanyStore() *CompanyStore {
	return &CompanyStore{
		items: make(map[uuid.UUID]*domain.Company),
		order: make(map[uuid.UUID]int64),
		now:   time.Now,
	}
}

// WithClock sets the time used for created and updated stamps.
func (s *CompanyStore) WithClock(now func() time.Time) *CompanyStore {
	s.now = now
	return s
}

func (s *CompanyStore) Create(_ context.Context, c *domain.Company) (*domain.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := cloneCompany(c)
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	now := s.now()
	cp.CreatedAt, cp.UpdatedAt = now, now
	s.seq++
	s.items[cp.ID] = cp
	s.order[cp.ID] = s.seq
	return cloneCompany(cp), nil
}

func (s *CompanyStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	return cloneCompany(c), nil
}

func (s *CompanyStore) List(_ context.Context, f domain.CompanyFilter) ([]*domain.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Company, 0, len(s.items))
	for _, c := range s.items {
		if f.Matches(c) {
			out = append(out, cloneCompany(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return s.order[out[i].ID] > s.order[out[j].ID]
	})
	return out, nil
}

func (s *CompanyStore) SetStatus(_ context.Context, id uuid.UUID, status domain.CompanyStatus, reason string, at time.Time) (*domain.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	c.Status = status
	c.RejectionReason = reason
	c.UpdatedAt = at
	return cloneCompany(c), nil
}

func (s *CompanyStore) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return false, nil
	}
	delete(s.items, id)
	delete(s.order, id)
	return true, nil
}

func cloneCompany(c *domain.Company) *domain.Company {
	cp := *c
	if c.Rounds != nil {
		cp.Rounds = append([]domain.Round(nil), c.Rounds...)
	}
	if c.Year != nil {
		y := *c.Year
		cp.Year = &y
	}
	if c.College != nil {
		col := *c.College
		cp.College = &col
	}
	return &cp
}

var (
	_ repo.UserRepository    = (*UserStore)(nil)
	_ repo.OtpLedger         = (*OtpStore)(nil)
	_ repo.CompanyRepository = (*CompanyStore)(nil)
)

type idemEntry struct {
	value     string
	expiresAt time.Time
}

// IdempotencyStore is the in-process fallback for replayable responses.
type IdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]idemEntry
	now     func() time.Time
}

func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{entries: make(map[string]idemEntry), now: time.Now}
}

func (s *IdempotencyStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return "", nil
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return "", nil
	}
	return e.value, nil
}

func (s *IdempotencyStore) Reserve(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok && s.now().Before(e.expiresAt) {
		return false, nil
	}
	s.entries[key] = idemEntry{value: value, expiresAt: s.now().Add(ttl)}
	return true, nil
}

func (s *IdempotencyStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = idemEntry{value: value, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *IdempotencyStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

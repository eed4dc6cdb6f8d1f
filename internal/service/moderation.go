package service

import (
	"context"
	"fmt"
	"time"

	"github.com/diagnosis/interview-board/internal/domain"
	"github.com/diagnosis/interview-board/internal/repo"
	"github.com/diagnosis/interview-board/pkg/events"
	"github.com/diagnosis/interview-board/pkg/logger"
	"github.com/diagnosis/interview-board/pkg/metrics"
	"github.com/google/uuid"
)

// Caller is the authenticated identity behind a request.
type Caller struct {
	ID   uuid.UUID
	Role domain.Role
}

func (c Caller) IsAdmin() bool { return c.Role == domain.RoleAdmin }

type ModerationService interface {
	Create(ctx context.Context, caller Caller, req *domain.CreateCompanyRequest) (*domain.CompanyView, error)
	// List shows admins everything (optionally narrowed by status) and everyone else approved records only.
	List(ctx context.Context, caller Caller, search string, status *domain.CompanyStatus) ([]domain.CompanyView, error)
	ListMine(ctx context.Context, caller Caller, search string) ([]domain.CompanyView, error)
	ListPending(ctx context.Context, caller Caller, search string) ([]domain.CompanyView, error)
	Get(ctx context.Context, caller Caller, id uuid.UUID) (*domain.CompanyView, error)
	Approve(ctx context.Context, caller Caller, id uuid.UUID) (*domain.CompanyView, error)
	Reject(ctx context.Context, caller Caller, id uuid.UUID, reason string) (*domain.CompanyView, error)
	Delete(ctx context.Context, caller Caller, id uuid.UUID) error
}

type moderationService struct {
	companies repo.CompanyRepository
	users     repo.UserRepository
	publisher events.Publisher
	now       func() time.Time
}

type ModerationOption func(*moderationService)

func WithModerationClock(now func() time.Time) ModerationOption {
	return func(s *moderationService) { s.now = now }
}

func NewModerationService(
	companies repo.CompanyRepository,
	users repo.UserRepository,
	publisher events.Publisher,
	opts ...ModerationOption,
) ModerationService {
	s := &moderationService{
		companies: companies,
		users:     users,
		publisher: publisher,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *moderationService) Create(ctx context.Context, caller Caller, req *domain.CreateCompanyRequest) (*domain.CompanyView, error) {
	in, err := req.Validate(s.now())
	if err != nil {
		return nil, err
	}

	c, err := s.companies.Create(ctx, &domain.Company{
		Name:      in.Name,
		Rounds:    in.Rounds,
		Status:    domain.StatusPending,
		CreatedBy: caller.ID,
		Year:      in.Year,
		College:   in.College,
	})
	if err != nil {
		return nil, fmt.Errorf("create company: %w", err)
	}

	s.publishCompany(ctx, events.CompanySubmitted, caller, c)
	logger.InfoContext(ctx, "Company submitted", "company_id", c.ID)
	view := c.View()
	return &view, nil
}

func (s *moderationService) List(ctx context.Context, caller Caller, search string, status *domain.CompanyStatus) ([]domain.CompanyView, error) {
	f := domain.CompanyFilter{Search: search}
	if caller.IsAdmin() {
		f.Status = status
	} else {
		approved := domain.StatusApproved
		f.Status = &approved
	}
	return s.list(ctx, f)
}

func (s *moderationService) ListMine(ctx context.Context, caller Caller, search string) ([]domain.CompanyView, error) {
	owner := caller.ID
	return s.list(ctx, domain.CompanyFilter{Search: search, CreatedBy: &owner})
}

func (s *moderationService) ListPending(ctx context.Context, caller Caller, search string) ([]domain.CompanyView, error) {
	if !caller.IsAdmin() {
		return nil, domain.ErrAdminOnly
	}
	pending := domain.StatusPending
	views, err := s.list(ctx, domain.CompanyFilter{Search: search, Status: &pending})
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return views, nil
	}

	seen := make(map[uuid.UUID]struct{}, len(views))
	ids := make([]uuid.UUID, 0, len(views))
	for _, v := range views {
		if _, ok := seen[v.CreatedBy]; !ok {
			seen[v.CreatedBy] = struct{}{}
			ids = append(ids, v.CreatedBy)
		}
	}
	creators, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve creators: %w", err)
	}
	for i := range views {
		if u, ok := creators[views[i].CreatedBy]; ok {
			views[i].Creator = u.ToUserInfo()
		}
	}
	return views, nil
}

func (s *moderationService) list(ctx context.Context, f domain.CompanyFilter) ([]domain.CompanyView, error) {
	items, err := s.companies.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	views := make([]domain.CompanyView, 0, len(items))
	for _, c := range items {
		views = append(views, c.View())
	}
	return views, nil
}

func (s *moderationService) Get(ctx context.Context, caller Caller, id uuid.UUID) (*domain.CompanyView, error) {
	c, err := s.companies.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	if c == nil {
		return nil, domain.ErrNotFound
	}
	if !c.CanView(caller.ID, caller.Role) {
		return nil, domain.ErrForbidden
	}
	view := c.View()
	return &view, nil
}

func (s *moderationService) Approve(ctx context.Context, caller Caller, id uuid.UUID) (*domain.CompanyView, error) {
	return s.decide(ctx, caller, id, domain.ActionApprove, "")
}

func (s *moderationService) Reject(ctx context.Context, caller Caller, id uuid.UUID, reason string) (*domain.CompanyView, error) {
	return s.decide(ctx, caller, id, domain.ActionReject, reason)
}

func (s *moderationService) decide(ctx context.Context, caller Caller, id uuid.UUID, action domain.ModerationAction, reason string) (*domain.CompanyView, error) {
	if !caller.IsAdmin() {
		return nil, domain.ErrAdminOnly
	}
	status, reason, err := domain.Decide(action, reason)
	if err != nil {
		return nil, err
	}

	c, err := s.companies.SetStatus(ctx, id, status, reason, s.now())
	if err != nil {
		return nil, fmt.Errorf("set company status: %w", err)
	}
	if c == nil {
		return nil, domain.ErrNotFound
	}

	subject := events.CompanyApproved
	if action == domain.ActionReject {
		subject = events.CompanyRejected
	}
	s.publishCompany(ctx, subject, caller, c)
	metrics.Moderation(string(action))
	logger.InfoContext(ctx, "Company moderated", "company_id", c.ID, "action", action)

	view := c.View()
	return &view, nil
}

func (s *moderationService) Delete(ctx context.Context, caller Caller, id uuid.UUID) error {
	if !caller.IsAdmin() {
		return domain.ErrAdminOnly
	}
	c, err := s.companies.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get company: %w", err)
	}
	deleted, err := s.companies.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete company: %w", err)
	}
	if !deleted {
		return domain.ErrNotFound
	}
	if c != nil {
		s.publishCompany(ctx, events.CompanyDeleted, caller, c)
	}
	metrics.Moderation("delete")
	logger.InfoContext(ctx, "Company deleted", "company_id", id)
	return nil
}

func (s *moderationService) publishCompany(ctx context.Context, subject string, caller Caller, c *domain.Company) {
	evt := events.CompanyEvent{
		CompanyID: c.ID,
		Name:      c.Name,
		Status:    string(c.Status),
		Reason:    c.RejectionReason,
		ActorID:   caller.ID,
		At:        s.now(),
	}
	if err := s.publisher.Publish(ctx, subject, evt); err != nil {
		logger.WarnContext(ctx, "Failed to publish event", "subject", subject, "error", err)
	}
}

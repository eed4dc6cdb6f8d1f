package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/diagnosis/interview-board/internal/domain"
	"github.com/diagnosis/interview-board/internal/repo/memory"
	"github.com/diagnosis/interview-board/pkg/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type ModerationSuite struct {
	suite.Suite
	ctx       context.Context
	clock     *testClock
	users     *memory.UserStore
	companies *memory.CompanyStore
	events    *capturePublisher
	svc       ModerationService

	admin Caller
	alice Caller
	bob   Caller
}

func TestModerationSuite(t *testing.T) {
	suite.Run(t, new(ModerationSuite))
}

func (s *ModerationSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = &testClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	s.users = memory.NewUserStore()
	s.companies = memory.NewCompanyStore().WithClock(s.clock.Now)
	s.events = &capturePublisher{}
	s.svc = NewModerationService(s.companies, s.users, s.events, WithModerationClock(s.clock.Now))

	s.admin = s.mkUser("Root", "admin@board.io", domain.RoleAdmin)
	s.alice = s.mkUser("Alice", "alice@x.io", domain.RoleUser)
	s.bob = s.mkUser("Bob", "bob@x.io", domain.RoleUser)
}

func (s *ModerationSuite) mkUser(name, email string, role domain.Role) Caller {
	u, err := s.users.Create(s.ctx, &domain.User{Name: name, Email: email, Role: role})
	s.Require().NoError(err)
	return Caller{ID: u.ID, Role: u.Role}
}

func (s *ModerationSuite) submit(caller Caller, name string) *domain.CompanyView {
	s.clock.Advance(time.Second)
	v, err := s.svc.Create(s.ctx, caller, &domain.CreateCompanyRequest{Name: name})
	s.Require().NoError(err)
	return v
}

func (s *ModerationSuite) TestCreateStartsPending() {
	v, err := s.svc.Create(s.ctx, s.alice, &domain.CreateCompanyRequest{
		Name:   "  Acme  ",
		Rounds: json.RawMessage(`[{"title":"OA"},{"title":"HR","result":"pass"}]`),
		Year:   json.RawMessage(`"2024"`),
	})
	s.Require().NoError(err)
	s.Equal("Acme", v.Name)
	s.Equal(domain.StatusPending, v.Status)
	s.Equal(s.alice.ID, v.CreatedBy)
	s.Equal(2, v.RoundsCount)
	s.Equal(domain.ResultPending, v.Rounds[0].Result)
	s.Require().NotNil(v.Year)
	s.Equal(2024, *v.Year)
	s.Equal([]string{events.CompanySubmitted}, s.events.subjects())
}

func (s *ModerationSuite) TestCreateRejectsFutureYear() {
	s.clock.t = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := s.svc.Create(s.ctx, s.alice, &domain.CreateCompanyRequest{Name: "Acme", Year: json.RawMessage(`2031`)})
	s.ErrorIs(err, domain.ErrInvalidYear)
	s.Contains(err.Error(), "2026")
}

func (s *ModerationSuite) TestVisibility() {
	pending := s.submit(s.alice, "Pending Co")
	approved := s.submit(s.alice, "Approved Co")
	rejected := s.submit(s.alice, "Rejected Co")
	_, err := s.svc.Approve(s.ctx, s.admin, approved.ID)
	s.Require().NoError(err)
	_, err = s.svc.Reject(s.ctx, s.admin, rejected.ID, "spam")
	s.Require().NoError(err)

	public, err := s.svc.List(s.ctx, s.bob, "", nil)
	s.Require().NoError(err)
	s.Require().Len(public, 1)
	s.Equal(approved.ID, public[0].ID)

	// A non-admin asking for pending still gets approved only.
	p := domain.StatusPending
	public, err = s.svc.List(s.ctx, s.bob, "", &p)
	s.Require().NoError(err)
	s.Require().Len(public, 1)
	s.Equal(domain.StatusApproved, public[0].Status)

	all, err := s.svc.List(s.ctx, s.admin, "", nil)
	s.Require().NoError(err)
	s.Len(all, 3)
	s.Equal(rejected.ID, all[0].ID)

	onlyPending, err := s.svc.List(s.ctx, s.admin, "", &p)
	s.Require().NoError(err)
	s.Require().Len(onlyPending, 1)
	s.Equal(pending.ID, onlyPending[0].ID)

	mine, err := s.svc.ListMine(s.ctx, s.alice, "")
	s.Require().NoError(err)
	s.Len(mine, 3)

	bobs, err := s.svc.ListMine(s.ctx, s.bob, "")
	s.Require().NoError(err)
	s.Empty(bobs)

	_, err = s.svc.Get(s.ctx, s.bob, pending.ID)
	s.ErrorIs(err, domain.ErrForbidden)
	_, err = s.svc.Get(s.ctx, s.bob, rejected.ID)
	s.ErrorIs(err, domain.ErrForbidden)
	got, err := s.svc.Get(s.ctx, s.bob, approved.ID)
	s.Require().NoError(err)
	s.Equal("Approved Co", got.Name)

	_, err = s.svc.Get(s.ctx, s.alice, pending.ID)
	s.NoError(err)
	_, err = s.svc.Get(s.ctx, s.admin, rejected.ID)
	s.NoError(err)

	_, err = s.svc.Get(s.ctx, s.admin, uuid.New())
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *ModerationSuite) TestSearchIsLiteralAndCaseInsensitive() {
	a := s.submit(s.alice, "Acme (100%)")
	s.submit(s.alice, "Globex")
	_, err := s.svc.Approve(s.ctx, s.admin, a.ID)
	s.Require().NoError(err)

	got, err := s.svc.List(s.ctx, s.bob, "acme (1", nil)
	s.Require().NoError(err)
	s.Len(got, 1)

	got, err = s.svc.List(s.ctx, s.admin, "%", nil)
	s.Require().NoError(err)
	s.Len(got, 1)

	got, err = s.svc.List(s.ctx, s.admin, ".*", nil)
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *ModerationSuite) TestPendingListingResolvesCreators() {
	s.submit(s.alice, "A")
	s.submit(s.bob, "B")
	s.submit(s.alice, "C")

	_, err := s.svc.ListPending(s.ctx, s.alice, "")
	s.ErrorIs(err, domain.ErrAdminOnly)

	views, err := s.svc.ListPending(s.ctx, s.admin, "")
	s.Require().NoError(err)
	s.Require().Len(views, 3)
	s.Equal("C", views[0].Name)
	s.Require().NotNil(views[0].Creator)
	s.Equal("alice@x.io", views[0].Creator.Email)
	s.Equal("Bob", views[1].Creator.Name)
}

func (s *ModerationSuite) TestApproveClearsReason() {
	c := s.submit(s.alice, "Acme")

	rejected, err := s.svc.Reject(s.ctx, s.admin, c.ID, "  duplicate  ")
	s.Require().NoError(err)
	s.Equal(domain.StatusRejected, rejected.Status)
	s.Equal("duplicate", rejected.RejectionReason)

	approved, err := s.svc.Approve(s.ctx, s.admin, c.ID)
	s.Require().NoError(err)
	s.Equal(domain.StatusApproved, approved.Status)
	s.Empty(approved.RejectionReason)

	again, err := s.svc.Reject(s.ctx, s.admin, c.ID, "")
	s.Require().NoError(err)
	s.Equal(domain.StatusRejected, again.Status)

	s.Equal([]string{
		events.CompanySubmitted, events.CompanyRejected, events.CompanyApproved, events.CompanyRejected,
	}, s.events.subjects())
}

func (s *ModerationSuite) TestAdminOnlyTransitions() {
	c := s.submit(s.alice, "Acme")

	_, err := s.svc.Approve(s.ctx, s.alice, c.ID)
	s.ErrorIs(err, domain.ErrAdminOnly)
	_, err = s.svc.Reject(s.ctx, s.bob, c.ID, "x")
	s.ErrorIs(err, domain.ErrAdminOnly)
	s.ErrorIs(s.svc.Delete(s.ctx, s.alice, c.ID), domain.ErrAdminOnly)

	_, err = s.svc.Approve(s.ctx, s.admin, uuid.New())
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *ModerationSuite) TestDelete() {
	c := s.submit(s.alice, "Acme")

	s.Require().NoError(s.svc.Delete(s.ctx, s.admin, c.ID))
	s.ErrorIs(s.svc.Delete(s.ctx, s.admin, c.ID), domain.ErrNotFound)

	_, err := s.svc.Get(s.ctx, s.admin, c.ID)
	s.ErrorIs(err, domain.ErrNotFound)
}

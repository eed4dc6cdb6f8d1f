package handlers

import (
	"net/http"
	"strings"

	"github.com/diagnosis/interview-board/internal/domain"
	mw "github.com/diagnosis/interview-board/internal/http/middleware"
	"github.com/diagnosis/interview-board/internal/http/response"
	"github.com/diagnosis/interview-board/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type CompaniesHandler struct {
	svc      service.ModerationService
	verifier mw.TokenVerifier
	submit   func(http.Handler) http.Handler
}

// NewCompaniesHandler builds the handler. submitGuard wraps POST / and may be nil.
func NewCompaniesHandler(svc service.ModerationService, verifier mw.TokenVerifier, submitGuard func(http.Handler) http.Handler) *CompaniesHandler {
	if submitGuard == nil {
		submitGuard = func(next http.Handler) http.Handler { return next }
	}
	return &CompaniesHandler{svc: svc, verifier: verifier, submit: submitGuard}
}

func (h *CompaniesHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(mw.Authenticate(h.verifier))

	r.With(h.submit).Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/mine", h.listMine)
	r.With(mw.RequireRole(domain.RoleAdmin)).Get("/pending", h.listPending)
	r.Get("/{id}", h.get)

	r.Group(func(r chi.Router) {
		r.Use(mw.RequireRole(domain.RoleAdmin))
		r.Patch("/{id}/approve", h.approve)
		r.Patch("/{id}/reject", h.reject)
		r.Delete("/{id}", h.delete)
	})
	return r
}

type companyResponse struct {
	Msg     string              `json:"msg"`
	Company *domain.CompanyView `json:"company"`
}

func caller(r *http.Request) service.Caller {
	c, _ := mw.CallerFrom(r)
	return c
}

func companyID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid company id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *CompaniesHandler) create(w http.ResponseWriter, r *http.Request) {
	var in domain.CreateCompanyRequest
	if !decode(w, r, &in) {
		return
	}
	c, err := h.svc.Create(r.Context(), caller(r), &in)
	if err != nil {
		response.WriteDomainError(r.Context(), w, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, companyResponse{Msg: "Submitted for approval", Company: c})
}

func (h *CompaniesHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	// Unknown statuses do not filter.
	var status *domain.CompanyStatus
	if s, ok := domain.ParseCompanyStatus(strings.TrimSpace(q.Get("status"))); ok {
		status = &s
	}
	items, err := h.svc.List(r.Context(), caller(r), strings.TrimSpace(q.Get("search")), status)
	if err != nil {
		response.WriteDomainError(r.Context(), w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, items)
}

func (h *CompaniesHandler) listMine(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListMine(r.Context(), caller(r), strings.TrimSpace(r.URL.Query().Get("search")))
	if err != nil {
		response.WriteDomainError(r.Context(), w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, items)
}

func (h *CompaniesHandler) listPending(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListPending(r.Context(), caller(r), strings.TrimSpace(r.URL.Query().Get("search")))
	if err != nil {
		response.WriteDomainError(r.Context(), w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, items)
}

func (h *CompaniesHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := companyID(w, r)
	if !ok {
		return
	}
	c, err := h.svc.Get(r.Context(), caller(r), id)
	if err != nil {
		response.WriteDomainError(r.Context(), w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, c)
}

func (h *CompaniesHandler) approve(w http.ResponseWriter, r *http.Request) {
	id, ok := companyID(w, r)
	if !ok {
		return
	}
	c, err := h.svc.Approve(r.Context(), caller(r), id)
	if err != nil {
		response.WriteDomainError(r.Context(), w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, companyResponse{Msg: "Approved", Company: c})
}

func (h *CompaniesHandler) reject(w http.ResponseWriter, r *http.Request) {
	id, ok := companyID(w, r)
	if !ok {
		return
	}
	var in domain.RejectRequest
	if !decodeOptional(w, r, &in) {
		return
	}
	if err := in.Validate(); err != nil {
		response.WriteDomainError(r.Context(), w, err)
		return
	}
	c, err := h.svc.Reject(r.Context(), caller(r), id, in.Reason)
	if err != nil {
		response.WriteDomainError(r.Context(), w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, companyResponse{Msg: "Rejected", Company: c})
}

func (h *CompaniesHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := companyID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), caller(r), id); err != nil {
		response.WriteDomainError(r.Context(), w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, msgResponse{Msg: "Deleted"})
}

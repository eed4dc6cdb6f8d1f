package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/diagnosis/interview-board/internal/domain"
	"github.com/diagnosis/interview-board/internal/http/response"
	"github.com/diagnosis/interview-board/internal/service"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

type AuthHandler struct {
	svc service.VerificationService
}

func NewAuthHandler(svc service.VerificationService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/signup/request-otp", h.requestSignupOtp)
	r.Post("/signup/verify-otp", h.verifySignupOtp)
	r.Post("/login", h.login)
	r.Post("/forgot/request-otp", h.requestReset)
	r.Post("/forgot/reset", h.confirmReset)
	return r
}

type msgResponse struct {
	Msg string `json:"msg"`
}

// decode reads a JSON body; it writes the 400 itself and reports false on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return false
	}
	return true
}

// decodeOptional is decode for endpoints whose body may be absent.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "Invalid JSON body")
		return false
	}
	return true
}

func (h *AuthHandler) requestSignupOtp(w http.ResponseWriter, r *http.Request) {
	var in domain.SignupRequest
	if !decode(w, r, &in) {
		return
	}
	if err := h.svc.RequestSignupOtp(r.Context(), &in); err != nil {
		response.WriteDomainError(r.Context(), w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, msgResponse{Msg: "OTP sent to email"})
}

func (h *AuthHandler) verifySignupOtp(w http.ResponseWriter, r *http.Request) {
	var in domain.VerifyOtpRequest
	if !decode(w, r, &in) {
		return
	}
	if _, err := h.svc.VerifySignupOtp(r.Context(), &in); err != nil {
		response.WriteDomainError(r.Context(), w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, msgResponse{Msg: "Signup successful"})
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var in domain.LoginRequest
	if !decode(w, r, &in) {
		return
	}
	out, err := h.svc.Login(r.Context(), &in)
	if err != nil {
		response.WriteDomainError(r.Context(), w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, out)
}

func (h *AuthHandler) requestReset(w http.ResponseWriter, r *http.Request) {
	var in domain.ForgotRequest
	if !decode(w, r, &in) {
		return
	}
	if err := h.svc.RequestReset(r.Context(), &in); err != nil {
		response.WriteDomainError(r.Context(), w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, msgResponse{Msg: "OTP sent to email for password reset"})
}

func (h *AuthHandler) confirmReset(w http.ResponseWriter, r *http.Request) {
	var in domain.ResetRequest
	if !decode(w, r, &in) {
		return
	}
	if err := h.svc.ConfirmReset(r.Context(), &in); err != nil {
		response.WriteDomainError(r.Context(), w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, msgResponse{Msg: "Password reset successful. Please login."})
}

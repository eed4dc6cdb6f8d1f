package domain

import (
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

var otpCodePattern = regexp.MustCompile(`^[0-9]{6}$`)

type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *SignupRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = NormalizeEmail(r.Email)
}

func (r SignupRequest) Validate() error {
	return wrapValidation(validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	))
}

type VerifyOtpRequest struct {
	Email string `json:"email"`
	Otp   string `json:"otp"`
}

func (r *VerifyOtpRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
	r.Otp = strings.TrimSpace(r.Otp)
}

func (r VerifyOtpRequest) Validate() error {
	return wrapValidation(validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Otp, validation.Required),
	))
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
}

func (r LoginRequest) Validate() error {
	return wrapValidation(validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	))
}

type LoginResponse struct {
	Token    string    `json:"token"`
	User     *UserInfo `json:"user"`
	Redirect string    `json:"redirect"`
}

type ForgotRequest struct {
	Email string `json:"email"`
}

func (r *ForgotRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
}

func (r ForgotRequest) Validate() error {
	return wrapValidation(validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	))
}

type ResetRequest struct {
	Email       string `json:"email"`
	Otp         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

func (r *ResetRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
	r.Otp = strings.TrimSpace(r.Otp)
}

func (r ResetRequest) Validate() error {
	return wrapValidation(validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Otp, validation.Required),
		validation.Field(&r.NewPassword, validation.Required),
	))
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

func (r RejectRequest) Validate() error {
	return wrapValidation(validation.ValidateStruct(&r,
		validation.Field(&r.Reason, validation.Length(0, MaxReasonLength)),
	))
}

// IsOtpCodeShaped reports whether s could be an issued code at all.
func IsOtpCodeShaped(s string) bool {
	return otpCodePattern.MatchString(s)
}

func wrapValidation(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindValidation, Code: CodeInvalidInput, Message: err.Error(), Err: err}
}

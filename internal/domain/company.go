package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

type CompanyStatus string

const (
	StatusPending  CompanyStatus = "pending"
	StatusApproved CompanyStatus = "approved"
	StatusRejected CompanyStatus = "rejected"
)

func ParseCompanyStatus(s string) (CompanyStatus, bool) {
	switch CompanyStatus(s) {
	case StatusPending, StatusApproved, StatusRejected:
		return CompanyStatus(s), true
	default:
		return "", false
	}
}

type RoundResult string

const (
	ResultPending  RoundResult = "pending"
	ResultPass     RoundResult = "pass"
	ResultFail     RoundResult = "fail"
	ResultSelected RoundResult = "selected"
)

func ParseRoundResult(s string) (RoundResult, bool) {
	switch RoundResult(s) {
	case "":
		return ResultPending, true
	case ResultPending, ResultPass, ResultFail, ResultSelected:
		return RoundResult(s), true
	default:
		return "", false
	}
}

type Round struct {
	Title  string      `json:"title"`
	Notes  string      `json:"notes"`
	Result RoundResult `json:"result"`
}

type Company struct {
	ID              uuid.UUID     `json:"id"`
	Name            string        `json:"name"`
	Rounds          []Round       `json:"rounds"`
	Status          CompanyStatus `json:"status"`
	RejectionReason string        `json:"rejectionReason"`
	CreatedBy       uuid.UUID     `json:"createdBy"`
	Year            *int          `json:"year,omitempty"`
	College         *string       `json:"college,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// CompanyView is the wire shape of a company.
type CompanyView struct {
	Company
	RoundsCount int       `json:"roundsCount"`
	Creator     *UserInfo `json:"creator,omitempty"`
}

func (c *Company) View() CompanyView {
	cp := *c
	if cp.Rounds == nil {
		cp.Rounds = []Round{}
	}
	return CompanyView{Company: cp, RoundsCount: len(cp.Rounds)}
}

// CanView reports whether a caller may open this record: admins always,
// everyone else only approved records or their own.
func (c *Company) CanView(userID uuid.UUID, role Role) bool {
	if role == RoleAdmin {
		return true
	}
	return c.Status == StatusApproved || c.CreatedBy == userID
}

type ModerationAction string

const (
	ActionApprove ModerationAction = "approve"
	ActionReject  ModerationAction = "reject"
)

// Decide returns the status and rejection reason a record ends up with.
// Both actions are allowed from every status.
func Decide(action ModerationAction, reason string) (CompanyStatus, string, error) {
	switch action {
	case ActionApprove:
		return StatusApproved, "", nil
	case ActionReject:
		return StatusRejected, strings.TrimSpace(reason), nil
	default:
		return "", "", fmt.Errorf("unknown moderation action %q", action)
	}
}

const (
	MinCompanyYear   = 2000
	MaxCollegeLength = 120
	MaxReasonLength  = 1000
)

// CreateCompanyRequest keeps year and rounds raw so loosely typed clients
// (year as "2024", rounds as a non-array) are handled instead of failing decode.
type CreateCompanyRequest struct {
	Name    string          `json:"name"`
	Rounds  json.RawMessage `json:"rounds"`
	Year    json.RawMessage `json:"year"`
	College *string         `json:"college"`
}

// NewCompany is a validated submission ready to persist.
type NewCompany struct {
	Name    string
	Rounds  []Round
	Year    *int
	College *string
}

// Validate checks the request against the calendar year of now.
func (r *CreateCompanyRequest) Validate(now time.Time) (*NewCompany, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return nil, Validation("Name is required")
	}

	year, err := parseYear(r.Year, now.Year()+1)
	if err != nil {
		return nil, err
	}

	var college *string
	if r.College != nil {
		c := strings.TrimSpace(*r.College)
		if utf8.RuneCountInString(c) > MaxCollegeLength {
			return nil, Validation(fmt.Sprintf("College must be at most %d characters", MaxCollegeLength))
		}
		if c != "" {
			college = &c
		}
	}

	rounds, err := parseRounds(r.Rounds)
	if err != nil {
		return nil, err
	}

	return &NewCompany{Name: name, Rounds: rounds, Year: year, College: college}, nil
}

func parseYear(raw json.RawMessage, maxYear int) (*int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var text string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, invalidYear(maxYear)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, nil
		}
	} else {
		text = string(raw)
	}

	y, err := strconv.Atoi(text)
	if err != nil {
		// JSON numbers like 2024.0 still name an integer year.
		f, ferr := strconv.ParseFloat(text, 64)
		if ferr != nil || f != float64(int(f)) {
			return nil, invalidYear(maxYear)
		}
		y = int(f)
	}
	if y < MinCompanyYear || y > maxYear {
		return nil, invalidYear(maxYear)
	}
	return &y, nil
}

func invalidYear(maxYear int) error {
	return &Error{
		Kind:    KindValidation,
		Code:    CodeInvalidYear,
		Message: fmt.Sprintf("Year must be between %d and %d", MinCompanyYear, maxYear),
	}
}

func parseRounds(raw json.RawMessage) ([]Round, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return []Round{}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return []Round{}, nil
	}

	rounds := make([]Round, 0, len(items))
	for i, item := range items {
		var in struct {
			Title  string `json:"title"`
			Notes  string `json:"notes"`
			Result string `json:"result"`
		}
		if err := json.Unmarshal(item, &in); err != nil {
			return nil, Validation(fmt.Sprintf("Round %d is malformed", i+1))
		}
		result, ok := ParseRoundResult(strings.TrimSpace(in.Result))
		if !ok {
			return nil, Validation(fmt.Sprintf("Round %d has unknown result %q", i+1, in.Result))
		}
		rounds = append(rounds, Round{
			Title:  strings.TrimSpace(in.Title),
			Notes:  strings.TrimSpace(in.Notes),
			Result: result,
		})
	}
	return rounds, nil
}

// CompanyFilter narrows a listing. Nil fields do not filter.
type CompanyFilter struct {
	Search    string
	Status    *CompanyStatus
	CreatedBy *uuid.UUID
}

// Matches applies the filter in memory; stores that can push it down should.
func (f CompanyFilter) Matches(c *Company) bool {
	if f.Status != nil && c.Status != *f.Status {
		return false
	}
	if f.CreatedBy != nil && c.CreatedBy != *f.CreatedBy {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

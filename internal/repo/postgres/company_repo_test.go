package postgres

import (
	"testing"

	"github.com/diagnosis/interview-board/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `c:\\x`, escapeLike(`c:\x`))
	assert.Equal(t, "acme", escapeLike("acme"))
}

func TestBuildListQueryNoFilter(t *testing.T) {
	q, args := buildListQuery(domain.CompanyFilter{})
	assert.NotContains(t, q, "WHERE")
	assert.Contains(t, q, "ORDER BY created_at DESC")
	assert.Empty(t, args)
}

func TestBuildListQueryAllFilters(t *testing.T) {
	status := domain.StatusApproved
	owner := uuid.New()
	q, args := buildListQuery(domain.CompanyFilter{Search: "a%b", Status: &status, CreatedBy: &owner})

	assert.Contains(t, q, "status = $1")
	assert.Contains(t, q, "created_by = $2")
	assert.Contains(t, q, `name ILIKE $3 ESCAPE '\'`)
	assert.Equal(t, []any{status, owner, `%a\%b%`}, args)
}

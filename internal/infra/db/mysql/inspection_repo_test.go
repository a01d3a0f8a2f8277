package mysql

import (
	"testing"

	"github.com/stretchr/testify/assert"

	domain "github.com/bryanwahyu/safety-inspector/internal/domain/inspections"
)

func TestBuildListQuery(t *testing.T) {
	t.Run("no filter", func(t *testing.T) {
		q, args := buildListQuery(domain.ListFilter{})
		assert.NotContains(t, q, "LIMIT")
		assert.Contains(t, q, "ORDER BY created_at DESC")
		assert.Empty(t, args)
	})

	t.Run("all filters and paging", func(t *testing.T) {
		q, args := buildListQuery(domain.ListFilter{
			Page: 3, PageSize: 10, Status: domain.StatusCompleted, Location: "50%_zone",
		})
		assert.Contains(t, q, "AND status = ?")
		assert.Contains(t, q, "AND location LIKE ?")
		assert.Contains(t, q, "LIMIT ? OFFSET ?")
		assert.Equal(t, []any{domain.StatusCompleted, `%50\%\_zone%`, 10, 20}, args)
	})
}

func TestListEncoding(t *testing.T) {
	assert.Equal(t, "[]", encodeList(nil))
	assert.Equal(t, `["a","b"]`, encodeList([]string{"a", "b"}))

	assert.Equal(t, []string{"a", "b"}, decodeList(`["a","b"]`))
	assert.Equal(t, []string{}, decodeList(""))
	assert.Equal(t, []string{}, decodeList("null"))
	assert.Equal(t, []string{"plain text"}, decodeList("plain text"))
}

func TestStringOrDash(t *testing.T) {
	assert.Equal(t, "-", stringOrDash("  "))
	assert.Equal(t, "x", stringOrDash("x"))
}

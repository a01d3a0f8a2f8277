package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	domain "github.com/bryanwahyu/safety-inspector/internal/domain/inspections"
)

func TestBuildListQuery(t *testing.T) {
	tests := []struct {
		name     string
		filter   domain.ListFilter
		contains []string
		args     []any
	}{
		{
			name:     "paging only",
			filter:   domain.ListFilter{Page: 1, PageSize: 20},
			contains: []string{"LIMIT $1 OFFSET $2"},
			args:     []any{20, 0},
		},
		{
			name:     "status and location",
			filter:   domain.ListFilter{Page: 2, PageSize: 5, Status: domain.StatusInProgress, Location: "dock"},
			contains: []string{"status = $1", "location ILIKE $2", "LIMIT $3 OFFSET $4"},
			args:     []any{domain.StatusInProgress, "%dock%", 5, 5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, args := buildListQuery(tt.filter)
			for _, c := range tt.contains {
				assert.Contains(t, q, c)
			}
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestDecodeList(t *testing.T) {
	assert.Equal(t, []string{"x"}, decodeList(`["x"]`))
	assert.Equal(t, []string{"not json"}, decodeList("not json"))
}

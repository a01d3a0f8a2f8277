package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/safety-inspector/internal/domain/inspections"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, r *InspectionRepository, id string, loc string, status domain.Status, score int, age time.Duration) {
	t.Helper()
	require.NoError(t, r.CreateInspection(context.Background(), &domain.Inspection{
		ID:        domain.InspectionID(id),
		UserName:  "kim",
		Location:  loc,
		Status:    domain.StatusCreated,
		CreatedAt: now.Add(-age),
	}))
	if status != domain.StatusCreated {
		require.NoError(t, r.CompleteInspection(context.Background(), domain.InspectionID(id), status, 1, score))
	}
}

func TestInspectionRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	r := NewInspectionRepository()
	seed(t, r, "a", "Plant 1", domain.StatusCreated, 0, 0)

	require.NoError(t, r.UpdateInspectionStatus(ctx, "a", domain.StatusInProgress))
	require.NoError(t, r.CreateResult(ctx, &domain.Result{ID: "r1", InspectionID: "a", ItemName: "one", IssuesFound: []string{"x"}}))
	require.NoError(t, r.CreateResult(ctx, &domain.Result{ID: "r2", InspectionID: "a", ItemName: "two"}))
	require.NoError(t, r.CompleteInspection(ctx, "a", domain.StatusCompleted, 2, 81))

	in, err := r.GetInspection(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, in.Status)
	assert.Equal(t, 2, in.CompletedItems)
	assert.Equal(t, 81, in.OverallScore)

	results, err := r.GetResults(ctx, "a")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "one", results[0].ItemName)
	assert.Equal(t, "two", results[1].ItemName)

	// returned values are copies
	in.Status = domain.StatusFailed
	again, _ := r.GetInspection(ctx, "a")
	assert.Equal(t, domain.StatusCompleted, again.Status)

	results[0].IssuesFound[0] = "mutated"
	fresh, err := r.GetResults(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, fresh[0].IssuesFound)

	require.NoError(t, r.DeleteInspection(ctx, "a"))
	_, err = r.GetInspection(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInspectionRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	r := NewInspectionRepository()

	assert.ErrorIs(t, r.UpdateInspectionStatus(ctx, "nope", domain.StatusInProgress), domain.ErrNotFound)
	assert.ErrorIs(t, r.CompleteInspection(ctx, "nope", domain.StatusCompleted, 0, 0), domain.ErrNotFound)
	assert.ErrorIs(t, r.CreateResult(ctx, &domain.Result{InspectionID: "nope"}), domain.ErrNotFound)
	assert.ErrorIs(t, r.DeleteInspection(ctx, "nope"), domain.ErrNotFound)
	_, err := r.GetResults(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInspectionRepository_List(t *testing.T) {
	ctx := context.Background()
	r := NewInspectionRepository()
	seed(t, r, "old", "Plant 1", domain.StatusCompleted, 90, 3*time.Hour)
	seed(t, r, "mid", "Warehouse", domain.StatusInProgress, 0, 2*time.Hour)
	seed(t, r, "new", "plant 2", domain.StatusCompleted, 70, time.Hour)

	all, err := r.ListInspections(ctx, domain.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, domain.InspectionID("new"), all[0].ID)
	assert.Equal(t, domain.InspectionID("old"), all[2].ID)

	byStatus, err := r.ListInspections(ctx, domain.ListFilter{Status: domain.StatusCompleted})
	require.NoError(t, err)
	assert.Len(t, byStatus, 2)

	byLoc, err := r.ListInspections(ctx, domain.ListFilter{Location: "PLANT"})
	require.NoError(t, err)
	assert.Len(t, byLoc, 2)

	page2, err := r.ListInspections(ctx, domain.ListFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, domain.InspectionID("old"), page2[0].ID)

	empty, err := r.ListInspections(ctx, domain.ListFilter{Page: 5, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestInspectionRepository_Stats(t *testing.T) {
	r := NewInspectionRepository().WithClock(func() time.Time { return now })
	seed(t, r, "a", "x", domain.StatusCompleted, 95, time.Hour)
	seed(t, r, "b", "x", domain.StatusCompleted, 82, time.Hour)
	seed(t, r, "c", "x", domain.StatusCompleted, 40, time.Hour)
	seed(t, r, "d", "x", domain.StatusInProgress, 0, time.Hour)
	seed(t, r, "e", "x", domain.StatusCreated, 0, time.Hour)
	seed(t, r, "stale", "x", domain.StatusCompleted, 10, 40*24*time.Hour)

	st, err := r.Stats(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, 5, st.TotalInspections)
	assert.Equal(t, 3, st.CompletedInspections)
	assert.Equal(t, 1, st.InProgressInspections)
	assert.Equal(t, 72, st.AverageScore)
	assert.Equal(t, map[string]int{"excellent": 1, "good": 1, "poor": 1}, st.ScoreDistribution)
	assert.Equal(t, 30, st.Days)
}

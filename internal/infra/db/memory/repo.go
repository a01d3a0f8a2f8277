package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	domain "github.com/bryanwahyu/safety-inspector/internal/domain/inspections"
)

// InspectionRepository keeps inspections in process memory. One lock guards
// the whole store, so writes for an id are serialized and readers never see a
// half-applied status/score update.
type InspectionRepository struct {
	mu          sync.RWMutex
	inspections map[domain.InspectionID]*domain.Inspection
	results     map[domain.InspectionID][]*domain.Result
	now         func() time.Time
}

func NewInspectionRepository() *InspectionRepository {
	return &InspectionRepository{
		inspections: make(map[domain.InspectionID]*domain.Inspection),
		results:     make(map[domain.InspectionID][]*domain.Result),
		now:         time.Now,
	}
}

// WithClock sets the time source used by Stats.
func (r *InspectionRepository) WithClock(now func() time.Time) *InspectionRepository {
	r.now = now
	return r
}

func (r *InspectionRepository) CreateInspection(ctx context.Context, in *domain.Inspection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *in
	cp.Results = nil
	r.inspections[in.ID] = &cp
	return nil
}

func (r *InspectionRepository) UpdateInspectionStatus(ctx context.Context, id domain.InspectionID, status domain.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.inspections[id]
	if !ok {
		return domain.ErrNotFound
	}
	in.Status = status
	return nil
}

func (r *InspectionRepository) CompleteInspection(ctx context.Context, id domain.InspectionID, status domain.Status, completedItems, overallScore int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.inspections[id]
	if !ok {
		return domain.ErrNotFound
	}
	in.Status = status
	in.CompletedItems = completedItems
	in.OverallScore = overallScore
	return nil
}

func (r *InspectionRepository) CreateResult(ctx context.Context, res *domain.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.inspections[res.InspectionID]; !ok {
		return domain.ErrNotFound
	}
	r.results[res.InspectionID] = append(r.results[res.InspectionID], copyResult(res))
	return nil
}

func copyResult(res *domain.Result) *domain.Result {
	cp := *res
	cp.IssuesFound = append([]string(nil), res.IssuesFound...)
	cp.Recommendations = append([]string(nil), res.Recommendations...)
	return &cp
}

// GetResults returns copies in insertion order.
func (r *InspectionRepository) GetResults(ctx context.Context, id domain.InspectionID) ([]*domain.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.inspections[id]; !ok {
		return nil, domain.ErrNotFound
	}
	out := make([]*domain.Result, 0, len(r.results[id]))
	for _, res := range r.results[id] {
		out = append(out, copyResult(res))
	}
	return out, nil
}

func (r *InspectionRepository) GetInspection(ctx context.Context, id domain.InspectionID) (*domain.Inspection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	in, ok := r.inspections[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *in
	return &cp, nil
}

func (r *InspectionRepository) ListInspections(ctx context.Context, f domain.ListFilter) ([]*domain.Inspection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	matched := make([]*domain.Inspection, 0, len(r.inspections))
	for _, in := range r.inspections {
		if f.Status != "" && in.Status != f.Status {
			continue
		}
		if f.Location != "" && !strings.Contains(strings.ToLower(in.Location), strings.ToLower(f.Location)) {
			continue
		}
		cp := *in
		matched = append(matched, &cp)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if f.PageSize <= 0 {
		return matched, nil
	}
	page := f.Page
	if page < 1 {
		page = 1
	}
	start := (page - 1) * f.PageSize
	if start >= len(matched) {
		return []*domain.Inspection{}, nil
	}
	end := min(start+f.PageSize, len(matched))
	return matched[start:end], nil
}

// Stats counts inspections created in the last sinceDays days. The average
// and the distribution only consider COMPLETED inspections.
func (r *InspectionRepository) Stats(ctx context.Context, sinceDays int) (domain.Stats, error) {
	if err := ctx.Err(); err != nil {
		return domain.Stats{}, err
	}
	since := r.now().AddDate(0, 0, -sinceDays)
	st := domain.Stats{ScoreDistribution: map[string]int{}, Days: sinceDays}

	r.mu.RLock()
	defer r.mu.RUnlock()
	sum := 0
	for _, in := range r.inspections {
		if in.CreatedAt.Before(since) {
			continue
		}
		st.TotalInspections++
		switch in.Status {
		case domain.StatusCompleted:
			st.CompletedInspections++
			sum += in.OverallScore
			st.ScoreDistribution[domain.ScoreBucket(in.OverallScore)]++
		case domain.StatusInProgress:
			st.InProgressInspections++
		}
	}
	if st.CompletedInspections > 0 {
		st.AverageScore = int(math.Round(float64(sum) / float64(st.CompletedInspections)))
	}
	return st, nil
}

func (r *InspectionRepository) DeleteInspection(ctx context.Context, id domain.InspectionID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.inspections[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.inspections, id)
	delete(r.results, id)
	return nil
}

// Ping satisfies the readiness checker.
func (r *InspectionRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

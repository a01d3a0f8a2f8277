package inspections

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/safety-inspector/internal/application"
	domain "github.com/bryanwahyu/safety-inspector/internal/domain/inspections"
	"github.com/bryanwahyu/safety-inspector/internal/infra/db/memory"
)

var fixedNow = time.Date(2025, 5, 2, 9, 0, 0, 0, time.UTC)

// scriptedAnalyzer answers by item label.
type scriptedAnalyzer struct {
	mu     sync.Mutex
	calls  []string
	scores map[string]int
	fail   map[string]string
	hook   func(label string)
}

func (a *scriptedAnalyzer) Analyze(ctx context.Context, imageRef, prompt, label string) domain.AnalysisResult {
	a.mu.Lock()
	a.calls = append(a.calls, label)
	a.mu.Unlock()
	if a.hook != nil {
		a.hook(label)
	}
	msg, ok := a.fail[label]
	if err := ctx.Err(); err != nil {
		// like the live invoker: an aborted call degrades
		msg, ok = err.Error(), true
	}
	if ok {
		return domain.AnalysisResult{
			ComplianceScore: 50,
			IssuesFound:     []string{label + " 분석 중 오류 발생: " + msg},
			Recommendations: []string{"수동 점검이 필요합니다."},
			AIAnalysis:      "분석 오류: " + msg,
			AnalysisTime:    fixedNow,
			ItemAnalyzed:    label,
			Error:           true,
			ErrorMessage:    msg,
		}
	}
	return domain.AnalysisResult{
		ComplianceScore: a.scores[label],
		IssuesFound:     []string{"none"},
		Recommendations: []string{"keep"},
		AIAnalysis:      fmt.Sprintf("점수: %d", a.scores[label]),
		AnalysisTime:    fixedNow,
		ItemAnalyzed:    label,
	}
}

// flakyRepo fails CreateResult from the n-th call on.
type flakyRepo struct {
	*memory.InspectionRepository
	mu       sync.Mutex
	failFrom int
	calls    int
}

func (r *flakyRepo) CreateResult(ctx context.Context, res *domain.Result) error {
	r.mu.Lock()
	r.calls++
	n := r.calls
	r.mu.Unlock()
	if r.failFrom > 0 && n >= r.failFrom {
		return errors.New("disk full")
	}
	return r.InspectionRepository.CreateResult(ctx, res)
}

type countingObserver struct {
	mu       sync.Mutex
	started  int
	items    int
	failed   int
	finished []string
}

func (o *countingObserver) RunStarted() { o.mu.Lock(); o.started++; o.mu.Unlock() }
func (o *countingObserver) ItemAnalyzed(failed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items++
	if failed {
		o.failed++
	}
}
func (o *countingObserver) RunFinished(state string) {
	o.mu.Lock()
	o.finished = append(o.finished, state)
	o.mu.Unlock()
}

func newTestService(t *testing.T, repo domain.Repository, an Analyzer) *Service {
	t.Helper()
	return &Service{Repo: repo, Analyzer: an, Clock: application.FixedClock(fixedNow)}
}

func createInspection(t *testing.T, s *Service, items ...string) domain.InspectionID {
	t.Helper()
	in, err := s.Create(context.Background(), CreateCommand{UserName: "kim", Location: "Plant 1", Items: items})
	require.NoError(t, err)
	return in.ID
}

func worklist(names ...string) []domain.WorkItem {
	out := make([]domain.WorkItem, 0, len(names))
	for i, n := range names {
		out = append(out, domain.WorkItem{
			ItemID:    fmt.Sprint(i + 1),
			ItemName:  n,
			ImagePath: n + ".jpg",
			Prompt:    "check " + n,
		})
	}
	return out
}

func collect(run *Run) []domain.Event {
	var out []domain.Event
	for ev := range run.Events() {
		out = append(out, ev)
	}
	return out
}

func types(events []domain.Event) []domain.EventType {
	out := make([]domain.EventType, 0, len(events))
	for _, e := range events {
		out = append(out, e.EventType())
	}
	return out
}

func TestService_Run_AllSucceed(t *testing.T) {
	repo := memory.NewInspectionRepository()
	an := &scriptedAnalyzer{scores: map[string]int{"A": 90, "B": 70, "C": 80}}
	s := newTestService(t, repo, an)
	id := createInspection(t, s, "A", "B", "C")

	run, err := s.Start(context.Background(), RunRequest{InspectionID: id, Items: worklist("A", "B", "C")})
	require.NoError(t, err)
	events := collect(run)
	sum, err := run.Wait()
	require.NoError(t, err)

	assert.Equal(t, []domain.EventType{
		domain.EventStart,
		domain.EventProgress, domain.EventItemComplete,
		domain.EventProgress, domain.EventItemComplete,
		domain.EventProgress, domain.EventItemComplete,
		domain.EventComplete,
	}, types(events))
	assert.Equal(t, []string{"A", "B", "C"}, an.calls)

	start := events[0].(domain.StartEvent)
	assert.Equal(t, 3, start.TotalItems)
	assert.Equal(t, 0, start.Progress)
	assert.Equal(t, id, start.InspectionID)

	var progress []int
	for _, e := range events[1:7] {
		switch ev := e.(type) {
		case domain.ProgressEvent:
			progress = append(progress, ev.Progress)
		case domain.ItemEvent:
			progress = append(progress, ev.Progress)
			assert.Equal(t, 3, ev.TotalItems)
			require.NotNil(t, ev.Result)
		}
	}
	assert.Equal(t, []int{0, 33, 33, 67, 67, 100}, progress)

	done := events[7].(domain.CompleteEvent)
	assert.Equal(t, 80, done.Summary.OverallScore)
	assert.Equal(t, 80, done.Summary.AverageScore)
	assert.Equal(t, 3, done.Summary.CompletedItems)
	assert.Equal(t, 0, done.Summary.ErrorCount)
	assert.Equal(t, fixedNow, done.Summary.AnalysisTime)
	require.Len(t, done.Results, 3)
	assert.Equal(t, "B", done.Results[1].ItemName)

	assert.Equal(t, 80, sum.OverallScore)
	assert.Equal(t, 3, sum.CompletedCount)
	assert.Equal(t, RunCompleted, run.State())

	in, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, in.Status)
	assert.Equal(t, 3, in.CompletedItems)
	assert.Equal(t, 80, in.OverallScore)
	require.Len(t, in.Results, 3)
	assert.Equal(t, "A", in.Results[0].ItemName)
	assert.Equal(t, 90, in.Results[0].ComplianceScore)
}

func TestService_Run_ItemFailureDoesNotAbort(t *testing.T) {
	repo := memory.NewInspectionRepository()
	an := &scriptedAnalyzer{
		scores: map[string]int{"A": 90, "C": 80},
		fail:   map[string]string{"B": "timeout"},
	}
	s := newTestService(t, repo, an)
	id := createInspection(t, s, "A", "B", "C")

	var events []domain.Event
	sum, err := s.Analyze(context.Background(), RunRequest{InspectionID: id, Items: worklist("A", "B", "C")},
		func(e domain.Event) { events = append(events, e) })
	require.NoError(t, err)

	assert.Equal(t, domain.EventItemError, events[4].EventType())
	itemErr := events[4].(domain.ItemEvent)
	assert.Equal(t, "B", itemErr.ItemName)
	assert.Equal(t, "timeout", itemErr.Error)
	require.NotNil(t, itemErr.Result)
	assert.True(t, itemErr.Result.Error)

	assert.Equal(t, domain.EventComplete, events[len(events)-1].EventType())
	assert.Equal(t, 3, sum.CompletedCount)
	assert.Equal(t, 1, sum.ErrorCount)
	// failed item counts with its degraded score of 50
	assert.Equal(t, 73, sum.OverallScore)

	in, err := repo.GetInspection(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, in.Status)
	assert.Equal(t, 3, in.CompletedItems)

	results, err := repo.GetResults(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.True(t, results[1].Error)
}

func TestService_Start_Rejects(t *testing.T) {
	t.Run("empty worklist has no side effects", func(t *testing.T) {
		repo := memory.NewInspectionRepository()
		an := &scriptedAnalyzer{}
		s := newTestService(t, repo, an)
		id := createInspection(t, s, "A")

		run, err := s.Start(context.Background(), RunRequest{InspectionID: id})
		assert.Nil(t, run)
		assert.ErrorIs(t, err, domain.ErrEmptyWorklist)
		var verr *domain.ValidationError
		assert.ErrorAs(t, err, &verr)

		in, _ := repo.GetInspection(context.Background(), id)
		assert.Equal(t, domain.StatusCreated, in.Status)
		results, _ := repo.GetResults(context.Background(), id)
		assert.Empty(t, results)
		assert.Empty(t, an.calls)
	})

	t.Run("missing image path", func(t *testing.T) {
		s := newTestService(t, memory.NewInspectionRepository(), &scriptedAnalyzer{})
		items := worklist("A")
		items[0].ImagePath = ""

		_, err := s.Start(context.Background(), RunRequest{InspectionID: "x", Items: items})
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "required", verr.Fields["imageAnalyses[0].imagePath"])
	})

	t.Run("unknown inspection", func(t *testing.T) {
		s := newTestService(t, memory.NewInspectionRepository(), &scriptedAnalyzer{})
		_, err := s.Start(context.Background(), RunRequest{InspectionID: "missing", Items: worklist("A")})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestService_Run_PersistenceFailureAborts(t *testing.T) {
	repo := &flakyRepo{InspectionRepository: memory.NewInspectionRepository(), failFrom: 2}
	an := &scriptedAnalyzer{scores: map[string]int{"A": 90, "B": 70, "C": 80}}
	obs := &countingObserver{}
	s := newTestService(t, repo, an)
	s.Observer = obs
	id := createInspection(t, s, "A", "B", "C")

	run, err := s.Start(context.Background(), RunRequest{InspectionID: id, Items: worklist("A", "B", "C")})
	require.NoError(t, err)
	events := collect(run)
	sum, err := run.Wait()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, RunFailed, run.State())
	assert.Equal(t, []domain.EventType{
		domain.EventStart,
		domain.EventProgress, domain.EventItemComplete,
		domain.EventProgress,
		domain.EventError,
	}, types(events))
	last := events[len(events)-1].(domain.ErrorEvent)
	assert.Contains(t, last.Error, "disk full")
	assert.Equal(t, 1, last.CompletedItems)
	assert.Equal(t, 1, sum.CompletedCount)
	assert.Equal(t, []string{"A", "B"}, an.calls)

	in, _ := repo.GetInspection(context.Background(), id)
	assert.Equal(t, domain.StatusFailed, in.Status)

	assert.Equal(t, 1, obs.started)
	assert.Equal(t, 1, obs.items)
	assert.Equal(t, []string{"FAILED"}, obs.finished)
}

func TestService_Run_Cancellation(t *testing.T) {
	repo := memory.NewInspectionRepository()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	an := &scriptedAnalyzer{
		scores: map[string]int{"A": 90, "B": 70, "C": 80},
		hook: func(label string) {
			if label == "B" {
				cancel()
			}
		},
	}
	s := newTestService(t, repo, an)
	id := createInspection(t, s, "A", "B", "C")

	run, err := s.Start(ctx, RunRequest{InspectionID: id, Items: worklist("A", "B", "C")})
	require.NoError(t, err)
	events := collect(run)
	sum, err := run.Wait()

	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, RunCancelled, run.State())
	assert.Equal(t, []domain.EventType{
		domain.EventStart,
		domain.EventProgress, domain.EventItemComplete,
		domain.EventProgress, domain.EventItemComplete,
		domain.EventError,
	}, types(events))
	assert.Equal(t, []string{"A", "B"}, an.calls)
	assert.Equal(t, 2, sum.CompletedCount)

	// the in-flight item was still stored
	in, _ := repo.GetInspection(context.Background(), id)
	assert.Equal(t, domain.StatusCancelled, in.Status)
	assert.Equal(t, 2, in.CompletedItems)
	assert.Equal(t, 80, in.OverallScore)
	results, _ := repo.GetResults(context.Background(), id)
	require.Len(t, results, 2)
	assert.False(t, results[1].Error)
	assert.Equal(t, 70, results[1].ComplianceScore)
}

func TestService_Run_AbandonedConsumer(t *testing.T) {
	repo := memory.NewInspectionRepository()
	an := &scriptedAnalyzer{scores: map[string]int{"A": 60, "B": 100}}
	s := newTestService(t, repo, an)
	id := createInspection(t, s, "A", "B")

	run, err := s.Start(context.Background(), RunRequest{InspectionID: id, Items: worklist("A", "B")})
	require.NoError(t, err)

	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run blocked on an unread event stream")
	}
	sum, err := run.Wait()
	require.NoError(t, err)
	assert.Equal(t, 80, sum.OverallScore)
	assert.Len(t, collect(run), 6)
}

func TestService_Run_ConcurrentInspections(t *testing.T) {
	repo := memory.NewInspectionRepository()
	an := &scriptedAnalyzer{scores: map[string]int{"A": 90, "B": 70}}
	s := newTestService(t, repo, an)

	var wg sync.WaitGroup
	ids := make([]domain.InspectionID, 5)
	for i := range ids {
		ids[i] = createInspection(t, s, "A", "B")
	}
	for _, id := range ids {
		wg.Add(1)
		go func(id domain.InspectionID) {
			defer wg.Done()
			_, err := s.Analyze(context.Background(), RunRequest{InspectionID: id, Items: worklist("A", "B")}, nil)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		in, err := s.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, in.Status)
		assert.Equal(t, 80, in.OverallScore)
		require.Len(t, in.Results, 2)
		assert.Equal(t, "A", in.Results[0].ItemName)
	}
}

func TestService_Create(t *testing.T) {
	s := newTestService(t, memory.NewInspectionRepository(), &scriptedAnalyzer{})

	in, err := s.Create(context.Background(), CreateCommand{UserName: "lee", Location: "Dock", Items: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, "2025-05-02", in.InspectionDate)
	assert.Equal(t, domain.StatusCreated, in.Status)
	assert.Equal(t, 2, in.TotalItems)
	assert.NotEmpty(t, in.ID)

	_, err = s.Create(context.Background(), CreateCommand{Location: "Dock", InspectionDate: "02/05/2025"})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "required", verr.Fields["userName"])
	assert.Equal(t, "required", verr.Fields["inspectionItems"])
	assert.Equal(t, "datetime=2006-01-02", verr.Fields["inspectionDate"])
}

func TestService_ListAndStatsClamp(t *testing.T) {
	repo := memory.NewInspectionRepository().WithClock(func() time.Time { return fixedNow })
	s := newTestService(t, repo, &scriptedAnalyzer{})
	for i := 0; i < 3; i++ {
		createInspection(t, s, "A")
	}

	list, err := s.List(context.Background(), domain.ListFilter{Page: -1, PageSize: 1000})
	require.NoError(t, err)
	assert.Len(t, list, 3)

	st, err := s.Stats(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, defaultDays, st.Days)
	assert.Equal(t, 3, st.TotalInspections)

	st, err = s.Stats(context.Background(), 10000)
	require.NoError(t, err)
	assert.Equal(t, maxDays, st.Days)
}

func TestService_Delete(t *testing.T) {
	s := newTestService(t, memory.NewInspectionRepository(), &scriptedAnalyzer{})
	id := createInspection(t, s, "A")

	require.NoError(t, s.Delete(context.Background(), id))
	_, err := s.Get(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, s.Delete(context.Background(), id), domain.ErrNotFound)
}

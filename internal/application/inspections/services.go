package inspections

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/safety-inspector/internal/application"
	domain "github.com/bryanwahyu/safety-inspector/internal/domain/inspections"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	defaultDays     = 30
	maxDays         = 365
)

// Analyzer evaluates one image. It never fails: problems come back as a
// degraded result with Error set.
type Analyzer interface {
	Analyze(ctx context.Context, imageRef, prompt, itemLabel string) domain.AnalysisResult
}

// RunObserver receives run lifecycle notifications, e.g. for metrics.
type RunObserver interface {
	RunStarted()
	ItemAnalyzed(failed bool)
	RunFinished(state string)
}

// Service implements use-cases untuk Inspection and orchestrates analysis runs.
// Runs for different inspections may proceed concurrently.
type Service struct {
	Repo     domain.Repository
	Analyzer Analyzer
	Clock    application.Clock
	Logger   *slog.Logger
	Observer RunObserver // optional
}

//
// ==== USE CASES ====
//

// CreateCommand untuk bikin inspection baru
type CreateCommand struct {
	UserName       string   `json:"userName" validate:"required,max=100"`
	Location       string   `json:"location" validate:"required,max=200"`
	InspectionDate string   `json:"inspectionDate" validate:"omitempty,datetime=2006-01-02"`
	Items          []string `json:"inspectionItems" validate:"required,min=1,dive,required"`
}

// RunRequest is the worklist of one analysis run, in execution order.
type RunRequest struct {
	InspectionID domain.InspectionID `json:"inspectionId" validate:"required"`
	Items        []domain.WorkItem   `json:"imageAnalyses" validate:"dive"`
}

// Create stores a new inspection in CREATED state; the date defaults to today.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*domain.Inspection, error) {
	if err := validateStruct(cmd); err != nil {
		return nil, err
	}
	now := s.now()
	date := cmd.InspectionDate
	if date == "" {
		date = now.Format("2006-01-02")
	}
	in := &domain.Inspection{
		ID:             domain.InspectionID(uuid.NewString()),
		UserName:       cmd.UserName,
		Location:       cmd.Location,
		InspectionDate: date,
		TotalItems:     len(cmd.Items),
		Status:         domain.StatusCreated,
		CreatedAt:      now,
	}
	if err := s.Repo.CreateInspection(ctx, in); err != nil {
		return nil, fmt.Errorf("create inspection: %w", err)
	}
	return in, nil
}

// Start validates the worklist, marks the inspection IN_PROGRESS and runs the
// items in a background goroutine. An empty worklist is rejected before any
// persistence happens.
//
// Cancelling ctx stops the run between items; the item being analyzed is
// finished and persisted first.
func (s *Service) Start(ctx context.Context, req RunRequest) (*Run, error) {
	if len(req.Items) == 0 {
		return nil, &domain.ValidationError{Err: domain.ErrEmptyWorklist}
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := s.Repo.UpdateInspectionStatus(ctx, req.InspectionID, domain.StatusInProgress); err != nil {
		return nil, fmt.Errorf("start inspection %s: %w", req.InspectionID, err)
	}

	run := newRun(req.InspectionID, append([]domain.WorkItem(nil), req.Items...))
	if s.Observer != nil {
		s.Observer.RunStarted()
	}
	go s.execute(ctx, run)
	return run, nil
}

// Analyze runs req to completion, handing every event to emit in order.
func (s *Service) Analyze(ctx context.Context, req RunRequest, emit func(domain.Event)) (domain.RunSummary, error) {
	run, err := s.Start(ctx, req)
	if err != nil {
		return domain.RunSummary{}, err
	}
	for ev := range run.Events() {
		if emit != nil {
			emit(ev)
		}
	}
	return run.Wait()
}

func (s *Service) execute(ctx context.Context, run *Run) {
	// writes must land even after the caller gave up
	store := context.WithoutCancel(ctx)
	log := s.logger().With("inspection", run.id)
	total := len(run.items)

	run.setState(RunRunning)
	run.emit(domain.StartEvent{
		Type:         domain.EventStart,
		InspectionID: run.id,
		Message:      fmt.Sprintf("%d개 항목 분석을 시작합니다.", total),
		TotalItems:   total,
		Progress:     0,
	})
	log.Info("analysis run started", "items", total)

	results := make([]domain.ItemResult, 0, total)
	errorCount := 0
	summary := func() domain.RunSummary {
		return domain.RunSummary{
			InspectionID:   run.id,
			Results:        results,
			OverallScore:   domain.OverallScore(results),
			CompletedCount: len(results),
			TotalCount:     total,
			ErrorCount:     errorCount,
		}
	}

	for i, it := range run.items {
		if ctx.Err() != nil {
			s.cancel(store, run, summary(), context.Cause(ctx))
			return
		}

		run.emit(domain.ProgressEvent{
			Type:        domain.EventProgress,
			Message:     fmt.Sprintf("%s 분석 중...", it.ItemName),
			RunProgress: domain.NewRunProgress(it.ItemName, i, total),
		})

		// the in-flight item runs to its own timeout, not the caller's cancel
		res := s.Analyzer.Analyze(store, it.ImagePath, it.Prompt, it.ItemName)
		item := domain.ItemResult{
			ItemID:         it.ItemID,
			ItemName:       it.ItemName,
			ImagePath:      it.ImagePath,
			AnalysisResult: res,
		}
		if err := s.Repo.CreateResult(store, s.resultRow(run.id, item)); err != nil {
			s.fail(store, run, summary(), fmt.Errorf("save result for %s: %w", it.ItemName, err))
			return
		}
		results = append(results, item)
		if s.Observer != nil {
			s.Observer.ItemAnalyzed(res.Error)
		}

		progress := domain.NewRunProgress(it.ItemName, i+1, total)
		if res.Error {
			errorCount++
			log.Warn("item analysis degraded", "item", it.ItemName, "err", res.ErrorMessage)
			run.emit(domain.ItemEvent{
				Type:        domain.EventItemError,
				ItemID:      it.ItemID,
				ItemName:    it.ItemName,
				Result:      &item.AnalysisResult,
				Error:       res.ErrorMessage,
				RunProgress: progress,
			})
			continue
		}
		run.emit(domain.ItemEvent{
			Type:        domain.EventItemComplete,
			ItemID:      it.ItemID,
			ItemName:    it.ItemName,
			Result:      &item.AnalysisResult,
			RunProgress: progress,
		})
	}

	sum := summary()
	if err := s.Repo.CompleteInspection(store, run.id, domain.StatusCompleted, sum.CompletedCount, sum.OverallScore); err != nil {
		s.fail(store, run, sum, fmt.Errorf("complete inspection: %w", err))
		return
	}

	run.emit(domain.CompleteEvent{
		Type:         domain.EventComplete,
		InspectionID: run.id,
		Message:      "분석이 완료되었습니다.",
		Results:      sum.Results,
		Summary: domain.CompleteSummary{
			TotalItems:     sum.TotalCount,
			CompletedItems: sum.CompletedCount,
			OverallScore:   sum.OverallScore,
			AverageScore:   sum.OverallScore,
			ErrorCount:     sum.ErrorCount,
			AnalysisTime:   s.now(),
		},
	})
	log.Info("analysis run completed", "score", sum.OverallScore, "errors", sum.ErrorCount)
	s.finish(run, RunCompleted, sum, nil)
}

func (s *Service) cancel(store context.Context, run *Run, sum domain.RunSummary, cause error) {
	err := fmt.Errorf("%w: %w", ErrCancelled, cause)
	if perr := s.Repo.CompleteInspection(store, run.id, domain.StatusCancelled, sum.CompletedCount, sum.OverallScore); perr != nil {
		s.logger().Error("persist cancelled inspection", "inspection", run.id, "err", perr)
	}
	run.emit(domain.ErrorEvent{
		Type:         domain.EventError,
		InspectionID: run.id,
		Error:        err.Error(),
		RunProgress:  domain.NewRunProgress("", sum.CompletedCount, sum.TotalCount),
	})
	s.logger().Info("analysis run cancelled", "inspection", run.id, "completed", sum.CompletedCount)
	s.finish(run, RunCancelled, sum, err)
}

func (s *Service) fail(store context.Context, run *Run, sum domain.RunSummary, err error) {
	s.logger().Error("analysis run aborted", "inspection", run.id, "err", err)
	// best effort; the store may be the thing that is down
	if uerr := s.Repo.UpdateInspectionStatus(store, run.id, domain.StatusFailed); uerr != nil {
		s.logger().Error("mark inspection failed", "inspection", run.id, "err", uerr)
	}
	run.emit(domain.ErrorEvent{
		Type:         domain.EventError,
		InspectionID: run.id,
		Error:        err.Error(),
		RunProgress:  domain.NewRunProgress("", sum.CompletedCount, sum.TotalCount),
	})
	s.finish(run, RunFailed, sum, err)
}

func (s *Service) finish(run *Run, state RunState, sum domain.RunSummary, err error) {
	if s.Observer != nil {
		s.Observer.RunFinished(string(state))
	}
	run.finish(state, sum, err)
}

func (s *Service) resultRow(id domain.InspectionID, it domain.ItemResult) *domain.Result {
	return &domain.Result{
		ID:              uuid.NewString(),
		InspectionID:    id,
		ItemID:          it.ItemID,
		ItemName:        it.ItemName,
		ImagePath:       it.ImagePath,
		AIAnalysis:      it.AIAnalysis,
		ComplianceScore: it.ComplianceScore,
		IssuesFound:     it.IssuesFound,
		Recommendations: it.Recommendations,
		Error:           it.Error,
		CreatedAt:       s.now(),
	}
}

// Get ambil 1 inspection beserta hasil per item
func (s *Service) Get(ctx context.Context, id domain.InspectionID) (*domain.Inspection, error) {
	in, err := s.Repo.GetInspection(ctx, id)
	if err != nil {
		return nil, err
	}
	results, err := s.Repo.GetResults(ctx, id)
	if err != nil {
		return nil, err
	}
	in.Results = results
	return in, nil
}

// List returns one page of inspections, newest first.
func (s *Service) List(ctx context.Context, f domain.ListFilter) ([]*domain.Inspection, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = defaultPageSize
	}
	if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}
	return s.Repo.ListInspections(ctx, f)
}

// Stats rekap inspection N hari terakhir
func (s *Service) Stats(ctx context.Context, days int) (domain.Stats, error) {
	if days < 1 {
		days = defaultDays
	}
	if days > maxDays {
		days = maxDays
	}
	return s.Repo.Stats(ctx, days)
}

func (s *Service) Delete(ctx context.Context, id domain.InspectionID) error {
	return s.Repo.DeleteInspection(ctx, id)
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

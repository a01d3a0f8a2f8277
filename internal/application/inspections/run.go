package inspections

import (
	"errors"
	"sync"

	domain "github.com/bryanwahyu/safety-inspector/internal/domain/inspections"
)

// ErrCancelled is returned by Run.Wait when the run stopped before its last item.
var ErrCancelled = errors.New("analysis run cancelled")

// RunState is the lifecycle of one orchestrated run.
type RunState string

const (
	RunCreated   RunState = "CREATED"
	RunRunning   RunState = "RUNNING"
	RunCompleted RunState = "COMPLETED"
	RunCancelled RunState = "CANCELLED"
	RunFailed    RunState = "FAILED"
)

// Run is a handle on one in-flight analysis run.
//
// Events is finite and ordered: start, then progress and one item event per
// work item, then exactly one complete or error record, after which the
// channel is closed. It is buffered for the whole run, so a consumer that stops
// reading never stalls the run or its persistence.
type Run struct {
	id     domain.InspectionID
	items  []domain.WorkItem
	events chan domain.Event
	done   chan struct{}

	mu      sync.Mutex
	state   RunState
	summary domain.RunSummary
	err     error
}

func newRun(id domain.InspectionID, items []domain.WorkItem) *Run {
	return &Run{
		id:     id,
		items:  items,
		events: make(chan domain.Event, 2*len(items)+2),
		done:   make(chan struct{}),
		state:  RunCreated,
	}
}

func (r *Run) InspectionID() domain.InspectionID { return r.id }

func (r *Run) Events() <-chan domain.Event { return r.events }

func (r *Run) State() RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Done is closed once the run reached a terminal state.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run ends. On cancellation or failure the summary holds
// whatever was completed before the run stopped.
func (r *Run) Wait() (domain.RunSummary, error) {
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary, r.err
}

func (r *Run) emit(e domain.Event) {
	r.events <- e
}

func (r *Run) setState(s RunState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *Run) finish(state RunState, summary domain.RunSummary, err error) {
	r.mu.Lock()
	r.state = state
	r.summary = summary
	r.err = err
	r.mu.Unlock()
	close(r.events)
	close(r.done)
}

package inspections

import "time"

// EventType tags every record of a run's event stream.
type EventType string

const (
	EventStart        EventType = "start"
	EventProgress     EventType = "progress"
	EventItemComplete EventType = "item_complete"
	EventItemError    EventType = "item_error"
	EventComplete     EventType = "complete"
	EventError        EventType = "error"
)

// Event is one record of a run's event stream.
type Event interface {
	EventType() EventType
}

type StartEvent struct {
	Type         EventType    `json:"type"`
	InspectionID InspectionID `json:"inspectionId"`
	Message      string       `json:"message"`
	TotalItems   int          `json:"totalItems"`
	Progress     int          `json:"progress"`
}

func (e StartEvent) EventType() EventType { return e.Type }

type ProgressEvent struct {
	Type    EventType `json:"type"`
	Message string    `json:"message"`
	RunProgress
}

func (e ProgressEvent) EventType() EventType { return e.Type }

// ItemEvent is emitted once per work item, as item_complete or item_error.
type ItemEvent struct {
	Type     EventType       `json:"type"`
	ItemID   string          `json:"itemId"`
	ItemName string          `json:"itemName"`
	Result   *AnalysisResult `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
	RunProgress
}

func (e ItemEvent) EventType() EventType { return e.Type }

type CompleteEvent struct {
	Type         EventType       `json:"type"`
	InspectionID InspectionID    `json:"inspectionId"`
	Message      string          `json:"message"`
	Results      []ItemResult    `json:"results"`
	Summary      CompleteSummary `json:"summary"`
}

func (e CompleteEvent) EventType() EventType { return e.Type }

type CompleteSummary struct {
	TotalItems     int       `json:"totalItems"`
	CompletedItems int       `json:"completedItems"`
	OverallScore   int       `json:"overallScore"`
	AverageScore   int       `json:"averageScore"`
	ErrorCount     int       `json:"errorCount"`
	AnalysisTime   time.Time `json:"analysisTime"`
}

// ErrorEvent terminates a run that could not complete.
type ErrorEvent struct {
	Type         EventType    `json:"type"`
	InspectionID InspectionID `json:"inspectionId"`
	Error        string       `json:"error"`
	RunProgress
}

func (e ErrorEvent) EventType() EventType { return e.Type }

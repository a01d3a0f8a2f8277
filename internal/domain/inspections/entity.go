package inspections

import (
	"math"
	"time"
)

// InspectionID identifier type
type InspectionID string

// Status enum
type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusFailed     Status = "FAILED"
)

// Aggregate Root: Inspection
type Inspection struct {
	ID             InspectionID `json:"id"`
	UserName       string       `json:"userName"`
	Location       string       `json:"location"`
	InspectionDate string       `json:"inspectionDate"` // YYYY-MM-DD
	TotalItems     int          `json:"totalItems"`
	CompletedItems int          `json:"completedItems"`
	OverallScore   int          `json:"overallScore"`
	Status         Status       `json:"status"`
	CreatedAt      time.Time    `json:"createdAt"`
	Results        []*Result    `json:"results,omitempty"`
}

// WorkItem is one checklist entry of a run: the image to look at, the prompt
// to ask and the item it belongs to. Treat it as immutable once built.
type WorkItem struct {
	ItemID    string `json:"itemId" validate:"required"`
	ItemName  string `json:"itemName" validate:"required"`
	ImagePath string `json:"imagePath" validate:"required"`
	Prompt    string `json:"prompt"`
}

// AnalysisResult is the structured outcome of analyzing one image.
// IssuesFound and Recommendations are never empty.
type AnalysisResult struct {
	ComplianceScore int       `json:"complianceScore"`
	IssuesFound     []string  `json:"issuesFound"`
	Recommendations []string  `json:"recommendations"`
	AIAnalysis      string    `json:"aiAnalysis"`
	AnalysisTime    time.Time `json:"analysisTime"`
	ItemAnalyzed    string    `json:"itemAnalyzed,omitempty"`
	Error           bool      `json:"error,omitempty"`
	ErrorMessage    string    `json:"errorMessage,omitempty"`
	DemoMode        bool      `json:"demoMode,omitempty"`
}

// ItemResult ties an AnalysisResult to the work item it was produced for.
type ItemResult struct {
	ItemID    string `json:"itemId"`
	ItemName  string `json:"itemName"`
	ImagePath string `json:"imagePath,omitempty"`
	AnalysisResult
}

// Result is the persisted form of an ItemResult.
type Result struct {
	ID              string       `json:"id"`
	InspectionID    InspectionID `json:"inspectionId"`
	ItemID          string       `json:"itemId"`
	ItemName        string       `json:"itemName"`
	ImagePath       string       `json:"imagePath"`
	AIAnalysis      string       `json:"aiAnalysis"`
	ComplianceScore int          `json:"complianceScore"`
	IssuesFound     []string     `json:"issuesFound"`
	Recommendations []string     `json:"recommendations"`
	Error           bool         `json:"error"`
	CreatedAt       time.Time    `json:"createdAt"`
}

// RunProgress is recomputed after every item and never persisted.
type RunProgress struct {
	CurrentItem    string `json:"currentItem,omitempty"`
	CompletedItems int    `json:"completedItems"`
	TotalItems     int    `json:"totalItems"`
	Progress       int    `json:"progress"`
}

// NewRunProgress builds a RunProgress with the percentage filled in.
func NewRunProgress(current string, completed, total int) RunProgress {
	return RunProgress{
		CurrentItem:    current,
		CompletedItems: completed,
		TotalItems:     total,
		Progress:       Percent(completed, total),
	}
}

// RunSummary is produced once at the end of a run.
type RunSummary struct {
	InspectionID   InspectionID `json:"inspectionId"`
	Results        []ItemResult `json:"results"`
	OverallScore   int          `json:"overallScore"`
	CompletedCount int          `json:"completedItems"`
	TotalCount     int          `json:"totalItems"`
	ErrorCount     int          `json:"errorCount"`
}

// Percent returns round(100*completed/total), 0 when total is 0.
func Percent(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}

// OverallScore is the rounded mean compliance score, 0 for no results.
func OverallScore(results []ItemResult) int {
	if len(results) == 0 {
		return 0
	}
	sum := 0
	for _, r := range results {
		sum += r.ComplianceScore
	}
	return int(math.Round(float64(sum) / float64(len(results))))
}

// ListFilter narrows ListInspections.
type ListFilter struct {
	Page     int
	PageSize int
	Status   Status
	Location string
}

// Stats is the rollup returned by the stats endpoint.
type Stats struct {
	TotalInspections      int            `json:"totalInspections"`
	AverageScore          int            `json:"averageScore"`
	CompletedInspections  int            `json:"completedInspections"`
	InProgressInspections int            `json:"inProgressInspections"`
	ScoreDistribution     map[string]int `json:"scoreDistribution"`
	Days                  int            `json:"days"`
}

// ScoreBucket maps an overall score onto the distribution buckets used by Stats.
func ScoreBucket(score int) string {
	switch {
	case score >= 90:
		return "excellent"
	case score >= 80:
		return "good"
	case score >= 70:
		return "fair"
	default:
		return "poor"
	}
}

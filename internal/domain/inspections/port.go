package inspections

import "context"

// Repository port (interface untuk persistence).
// Implementations serialize writes per inspection id and keep status/score
// updates atomic with respect to concurrent reads of the same inspection.
type Repository interface {
	CreateInspection(ctx context.Context, in *Inspection) error
	UpdateInspectionStatus(ctx context.Context, id InspectionID, status Status) error
	CompleteInspection(ctx context.Context, id InspectionID, status Status, completedItems, overallScore int) error
	CreateResult(ctx context.Context, r *Result) error
	GetResults(ctx context.Context, id InspectionID) ([]*Result, error)

	GetInspection(ctx context.Context, id InspectionID) (*Inspection, error)
	ListInspections(ctx context.Context, f ListFilter) ([]*Inspection, error)
	Stats(ctx context.Context, sinceDays int) (Stats, error)
	DeleteInspection(ctx context.Context, id InspectionID) error
}

package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	domain "github.com/bryanwahyu/safety-inspector/internal/domain/inspections"
)

type InspectionRepository struct {
	db *sql.DB
}

func NewInspectionRepository(db *sql.DB) *InspectionRepository {
	return &InspectionRepository{db: db}
}

const inspectionColumns = `id, user_name, location, inspection_date, total_items, completed_items, overall_score, status, created_at`

func (r *InspectionRepository) CreateInspection(ctx context.Context, in *domain.Inspection) error {
	const q = `
INSERT INTO inspections
(id, user_name, location, inspection_date, total_items, completed_items, overall_score, status, created_at)
VALUES (?,?,?,?,?,?,?,?,?);`
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		in.ID, stringOrDash(in.UserName), stringOrDash(in.Location), in.InspectionDate,
		in.TotalItems, in.CompletedItems, in.OverallScore, stringOrDash(string(in.Status)), createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert inspection: %w", err)
	}
	return nil
}

// UpdateInspectionStatus hanya update kolom status
func (r *InspectionRepository) UpdateInspectionStatus(ctx context.Context, id domain.InspectionID, status domain.Status) error {
	const q = `UPDATE inspections SET status = ? WHERE id = ?;`
	res, err := r.db.ExecContext(ctx, q, status, id)
	if err != nil {
		return fmt.Errorf("update inspection status: %w", err)
	}
	return mustAffect(res)
}

// CompleteInspection writes status, count and score in one statement so a
// reader sees either the old or the new triple.
func (r *InspectionRepository) CompleteInspection(ctx context.Context, id domain.InspectionID, status domain.Status, completedItems, overallScore int) error {
	const q = `
UPDATE inspections
SET status = ?, completed_items = ?, overall_score = ?
WHERE id = ?;`
	res, err := r.db.ExecContext(ctx, q, status, completedItems, overallScore, id)
	if err != nil {
		return fmt.Errorf("complete inspection: %w", err)
	}
	return mustAffect(res)
}

func (r *InspectionRepository) CreateResult(ctx context.Context, res *domain.Result) error {
	const q = `
INSERT INTO inspection_results
(id, inspection_id, item_id, item_name, image_path, ai_analysis, compliance_score,
 issues_found, recommendations, is_error, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?);`
	createdAt := res.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		res.ID, res.InspectionID, res.ItemID, stringOrDash(res.ItemName), res.ImagePath, res.AIAnalysis,
		res.ComplianceScore, encodeList(res.IssuesFound), encodeList(res.Recommendations), res.Error, createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

func (r *InspectionRepository) GetResults(ctx context.Context, id domain.InspectionID) ([]*domain.Result, error) {
	const q = `
SELECT id, inspection_id, item_id, item_name, image_path, ai_analysis, compliance_score,
       issues_found, recommendations, is_error, created_at
FROM inspection_results
WHERE inspection_id = ?
ORDER BY created_at, id;`
	rows, err := r.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("querying results: %w", err)
	}
	defer rows.Close()

	out := []*domain.Result{}
	for rows.Next() {
		var res domain.Result
		var issues, recs string
		if err := rows.Scan(
			&res.ID, &res.InspectionID, &res.ItemID, &res.ItemName, &res.ImagePath, &res.AIAnalysis,
			&res.ComplianceScore, &issues, &recs, &res.Error, &res.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		res.IssuesFound = decodeList(issues)
		res.Recommendations = decodeList(recs)
		out = append(out, &res)
	}
	return out, rows.Err()
}

func (r *InspectionRepository) GetInspection(ctx context.Context, id domain.InspectionID) (*domain.Inspection, error) {
	q := `SELECT ` + inspectionColumns + ` FROM inspections WHERE id = ? LIMIT 1;`
	in, err := scanInspection(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get inspection: %w", err)
	}
	return in, nil
}

// ListInspections with offset + limit (classic pagination), newest first
func (r *InspectionRepository) ListInspections(ctx context.Context, f domain.ListFilter) ([]*domain.Inspection, error) {
	query, args := buildListQuery(f)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying inspections: %w", err)
	}
	defer rows.Close()

	out := []*domain.Inspection{}
	for rows.Next() {
		in, err := scanInspection(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}

func buildListQuery(f domain.ListFilter) (string, []any) {
	query := `SELECT ` + inspectionColumns + ` FROM inspections WHERE 1=1`
	var args []any
	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, f.Status)
	}
	if f.Location != "" {
		query += " AND location LIKE ?"
		args = append(args, "%"+escapeLikePattern(f.Location)+"%")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.PageSize, (page-1)*f.PageSize)
	}
	return query, args
}

// Stats rekap inspection sejak N hari; rata-rata dan distribusi hanya dari yang COMPLETED
func (r *InspectionRepository) Stats(ctx context.Context, sinceDays int) (domain.Stats, error) {
	cut := time.Now().AddDate(0, 0, -sinceDays)
	st := domain.Stats{ScoreDistribution: map[string]int{}, Days: sinceDays}

	const q = `
SELECT COUNT(*),
       COALESCE(SUM(CASE WHEN status = 'COMPLETED' THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN status = 'IN_PROGRESS' THEN 1 ELSE 0 END), 0),
       AVG(CASE WHEN status = 'COMPLETED' THEN overall_score END)
FROM inspections
WHERE created_at >= ?;`
	var avg sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, q, cut).Scan(
		&st.TotalInspections, &st.CompletedInspections, &st.InProgressInspections, &avg,
	); err != nil {
		return domain.Stats{}, fmt.Errorf("inspection stats: %w", err)
	}
	if avg.Valid {
		st.AverageScore = int(math.Round(avg.Float64))
	}

	const dq = `
SELECT CASE
         WHEN overall_score >= 90 THEN 'excellent'
         WHEN overall_score >= 80 THEN 'good'
         WHEN overall_score >= 70 THEN 'fair'
         ELSE 'poor'
       END AS score_range,
       COUNT(*)
FROM inspections
WHERE created_at >= ? AND status = 'COMPLETED'
GROUP BY score_range;`
	rows, err := r.db.QueryContext(ctx, dq, cut)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("score distribution: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var bucket string
		var n int
		if err := rows.Scan(&bucket, &n); err != nil {
			return domain.Stats{}, fmt.Errorf("scanning distribution: %w", err)
		}
		st.ScoreDistribution[bucket] = n
	}
	return st, rows.Err()
}

// DeleteInspection removes the inspection and its results in one transaction.
func (r *InspectionRepository) DeleteInspection(ctx context.Context, id domain.InspectionID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM inspection_results WHERE inspection_id = ?;`, id); err != nil {
		return fmt.Errorf("delete results: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM inspections WHERE id = ?;`, id)
	if err != nil {
		return fmt.Errorf("delete inspection: %w", err)
	}
	if err := mustAffect(res); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *InspectionRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInspection(row rowScanner) (*domain.Inspection, error) {
	var in domain.Inspection
	if err := row.Scan(
		&in.ID, &in.UserName, &in.Location, &in.InspectionDate,
		&in.TotalItems, &in.CompletedItems, &in.OverallScore, &in.Status, &in.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &in, nil
}

func mustAffect(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/photo-report/internal/database"
)

// RecordRepository reads monitoring records from the legacy schema, where
// images live in a TEXT column holding either a JSON list or a comma
// separated string.
type RecordRepository struct {
	pool *Pool
}

// NewRecordRepository creates a legacy record repository
func NewRecordRepository(pool *Pool) *RecordRepository {
	return &RecordRepository{pool: pool}
}

const recordColumns = `id, project_id, monitoring_type, area, workstation, measured_at, images, preferred_image_index`

// ListRecords returns the records of a project, optionally of one type,
// ordered by measurement time (unset last) and ID
func (r *RecordRepository) ListRecords(ctx context.Context, filter database.RecordFilter) ([]database.Record, error) {
	query := `SELECT ` + recordColumns + `
		FROM monitoring_records
		WHERE project_id = ? AND (? = '' OR monitoring_type = ?)
		ORDER BY measured_at IS NULL, measured_at, id`

	rows, err := r.pool.db.QueryContext(ctx, query, filter.ProjectID, filter.MonitoringType, filter.MonitoringType)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	records := []database.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// GetRecord returns a single record or database.ErrNotFound
func (r *RecordRepository) GetRecord(ctx context.Context, id string) (*database.Record, error) {
	row := r.pool.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM monitoring_records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %s: %w", id, database.ErrNotFound)
	}
	return rec, err
}

// GetProject returns project header data or database.ErrNotFound
func (r *RecordRepository) GetProject(ctx context.Context, id string) (*database.Project, error) {
	var (
		p                database.Project
		client, location sql.NullString
	)
	err := r.pool.db.QueryRowContext(ctx, `SELECT id, name, client, location FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &client, &location)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	p.Client = client.String
	p.Location = location.String
	return &p, nil
}

// SetPreferredImageIndex stores the image index the user last picked
func (r *RecordRepository) SetPreferredImageIndex(ctx context.Context, recordID string, index int) error {
	if index < 0 {
		return fmt.Errorf("preferred image index must not be negative, got %d", index)
	}

	// MySQL RowsAffected returns 0 when data is unchanged, so check existence first
	var exists bool
	err := r.pool.db.QueryRowContext(ctx, `SELECT 1 FROM monitoring_records WHERE id = ?`, recordID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("record %s: %w", recordID, database.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("check record: %w", err)
	}

	if _, err := r.pool.db.ExecContext(ctx,
		`UPDATE monitoring_records SET preferred_image_index = ? WHERE id = ?`, index, recordID); err != nil {
		return fmt.Errorf("set preferred image index: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*database.Record, error) {
	var (
		rec               database.Record
		area, workstation sql.NullString
		measuredAt        sql.NullTime
		images            sql.NullString
		preferred         sql.NullInt64
	)
	err := row.Scan(&rec.ID, &rec.ProjectID, &rec.MonitoringType, &area, &workstation, &measuredAt, &images, &preferred)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan record: %w", err)
	}

	rec.Area = area.String
	rec.Workstation = workstation.String
	if measuredAt.Valid {
		t := measuredAt.Time.In(time.UTC)
		rec.MeasuredAt = &t
	}
	if images.Valid {
		rec.ImageField = images.String
	}
	if preferred.Valid && preferred.Int64 >= 0 {
		idx := int(preferred.Int64)
		rec.PreferredImageIndex = &idx
	}
	return &rec, nil
}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/photo-report/internal/database"
)

// RecordRepository provides PostgreSQL-backed monitoring record storage
type RecordRepository struct {
	pool *Pool
}

// NewRecordRepository creates a new PostgreSQL record repository
func NewRecordRepository(pool *Pool) *RecordRepository {
	return &RecordRepository{pool: pool}
}

// Close closes the underlying pool
func (r *RecordRepository) Close() error {
	return r.pool.Close()
}

const recordColumns = `id, project_id, monitoring_type, area, workstation, measured_at, images, preferred_image_index`

// ListRecords returns the records of a project, optionally of one type,
// ordered by measurement time (unset last) and ID
func (r *RecordRepository) ListRecords(ctx context.Context, filter database.RecordFilter) ([]database.Record, error) {
	query := `SELECT ` + recordColumns + `
		FROM monitoring_records
		WHERE project_id = $1 AND ($2 = '' OR monitoring_type = $2)
		ORDER BY measured_at ASC NULLS LAST, id ASC`

	rows, err := r.pool.query(ctx, query, filter.ProjectID, filter.MonitoringType)
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
	row := r.pool.queryRow(ctx, `SELECT `+recordColumns+` FROM monitoring_records WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %s: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetProject returns project header data or database.ErrNotFound
func (r *RecordRepository) GetProject(ctx context.Context, id string) (*database.Project, error) {
	var p database.Project
	err := r.pool.queryRow(ctx, `SELECT id, name, client, location FROM projects WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Client, &p.Location)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

// SetPreferredImageIndex stores the image index the user last picked
func (r *RecordRepository) SetPreferredImageIndex(ctx context.Context, recordID string, index int) error {
	if index < 0 {
		return fmt.Errorf("preferred image index must not be negative, got %d", index)
	}
	result, err := r.pool.exec(ctx,
		`UPDATE monitoring_records SET preferred_image_index = $2, updated_at = NOW() WHERE id = $1`,
		recordID, index)
	if err != nil {
		return fmt.Errorf("set preferred image index: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("record %s: %w", recordID, database.ErrNotFound)
	}
	return nil
}

// SaveProject inserts or updates a project
func (r *RecordRepository) SaveProject(ctx context.Context, p database.Project) error {
	query := `
		INSERT INTO projects (id, name, client, location)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			client = EXCLUDED.client,
			location = EXCLUDED.location
	`
	if _, err := r.pool.exec(ctx, query, p.ID, p.Name, p.Client, p.Location); err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	return nil
}

// SaveRecord inserts or updates a record. ImageField is stored as JSON
// whatever its shape, so string forms survive round trips unchanged.
func (r *RecordRepository) SaveRecord(ctx context.Context, rec database.Record) error {
	var images []byte
	if rec.ImageField != nil {
		var err error
		images, err = json.Marshal(rec.ImageField)
		if err != nil {
			return fmt.Errorf("marshal images: %w", err)
		}
	}

	query := `
		INSERT INTO monitoring_records
			(id, project_id, monitoring_type, area, workstation, measured_at, images, preferred_image_index)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			project_id = EXCLUDED.project_id,
			monitoring_type = EXCLUDED.monitoring_type,
			area = EXCLUDED.area,
			workstation = EXCLUDED.workstation,
			measured_at = EXCLUDED.measured_at,
			images = EXCLUDED.images,
			preferred_image_index = EXCLUDED.preferred_image_index,
			updated_at = NOW()
	`
	_, err := r.pool.exec(ctx, query,
		rec.ID, rec.ProjectID, rec.MonitoringType, rec.Area, rec.Workstation,
		rec.MeasuredAt, nullJSON(images), rec.PreferredImageIndex)
	if err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*database.Record, error) {
	var (
		rec        database.Record
		measuredAt sql.NullTime
		images     []byte
		preferred  sql.NullInt64
	)
	err := row.Scan(
		&rec.ID,
		&rec.ProjectID,
		&rec.MonitoringType,
		&rec.Area,
		&rec.Workstation,
		&measuredAt,
		&images,
		&preferred,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan record: %w", err)
	}

	if measuredAt.Valid {
		t := measuredAt.Time.In(time.UTC)
		rec.MeasuredAt = &t
	}
	if preferred.Valid {
		idx := int(preferred.Int64)
		rec.PreferredImageIndex = &idx
	}
	rec.ImageField = decodeImages(images)
	return &rec, nil
}

// decodeImages turns the JSONB column into a list or string for the
// normalizer. Undecodable content is passed on as text.
func decodeImages(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}

func nullJSON(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vbonduro/ilmigreen/internal/domain"
)

// ErrNotFound is returned by mutating calls that matched no row.
var ErrNotFound = errors.New("not found")

const detectionColumns = `id, kind, input_text, storage_key, mime_type, category, explanation, tips, created_at`

type DetectionStore struct {
	db *sql.DB
}

func NewDetectionStore(db *sql.DB) *DetectionStore {
	return &DetectionStore{db: db}
}

func (s *DetectionStore) Create(ctx context.Context, d *domain.Detection) (*domain.Detection, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO detections (kind, input_text, storage_key, mime_type, category, explanation, tips)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, d.Kind, d.InputText, d.StorageKey, d.MimeType, d.Category, d.Explanation, d.Tips)
	if err != nil {
		return nil, fmt.Errorf("failed to create detection: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID returns nil, nil when no detection has the given id.
func (s *DetectionStore) GetByID(ctx context.Context, id int64) (*domain.Detection, error) {
	d := &domain.Detection{}
	err := s.db.QueryRowContext(ctx, `SELECT `+detectionColumns+` FROM detections WHERE id = ?`, id).
		Scan(&d.ID, &d.Kind, &d.InputText, &d.StorageKey, &d.MimeType, &d.Category, &d.Explanation, &d.Tips, &d.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get detection: %w", err)
	}

	return d, nil
}

// List returns the most recent detections first, optionally filtered by
// category.
func (s *DetectionStore) List(ctx context.Context, category domain.Category, limit int) ([]*domain.Detection, error) {
	query := `SELECT ` + detectionColumns + ` FROM detections`
	args := []any{}
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list detections: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var detections []*domain.Detection
	for rows.Next() {
		d := &domain.Detection{}
		if err := rows.Scan(&d.ID, &d.Kind, &d.InputText, &d.StorageKey, &d.MimeType, &d.Category, &d.Explanation, &d.Tips, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		detections = append(detections, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating detections: %w", err)
	}

	return detections, nil
}

func (s *DetectionStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM detections WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete detection: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("detection %d: %w", id, ErrNotFound)
	}

	return nil
}

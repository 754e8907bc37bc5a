package repository

import (
	"context"
	"fmt"
	"log"
	"time"

	"portal-rest-api/internal/model"
)

const feedbackInsert = `INSERT INTO feedback (name, email, category, message, status, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`

// CreateFeedback inserts a submission and fills in its id.
func (s *SQLStore) CreateFeedback(ctx context.Context, fb *model.Feedback) error {
	if fb.Status == "" {
		fb.Status = model.FeedbackNew
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now()
	}
	fb.CreatedAt = fb.CreatedAt.UTC()

	id, err := s.insert(ctx, s.db, feedbackInsert, fb.Name, fb.Email, fb.Category, fb.Message, fb.Status, fb.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create feedback: %w", err)
	}
	fb.ID = id
	return nil
}

// BatchCreateFeedback inserts several submissions in one transaction.
func (s *SQLStore) BatchCreateFeedback(ctx context.Context, items []model.Feedback) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(feedbackInsert))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, fb := range items {
		status := fb.Status
		if status == "" {
			status = model.FeedbackNew
		}
		createdAt := fb.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, fb.Name, fb.Email, fb.Category, fb.Message, status, createdAt.UTC()); err != nil {
			return fmt.Errorf("failed to batch insert feedback: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListFeedback returns submissions newest first, filtered by status when set.
func (s *SQLStore) ListFeedback(ctx context.Context, status string, limit, offset int) ([]model.Feedback, int64, error) {
	where := ""
	args := []any{}
	if status != "" {
		where = " WHERE status = ?"
		args = append(args, status)
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, s.rebind("SELECT COUNT(*) FROM feedback"+where), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count feedback: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id, name, email, category, message, status, created_at
		FROM feedback`+where+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`), append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	items := make([]model.Feedback, 0)
	for rows.Next() {
		var fb model.Feedback
		if err := rows.Scan(&fb.ID, &fb.Name, &fb.Email, &fb.Category, &fb.Message, &fb.Status, &fb.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan feedback: %w", err)
		}
		items = append(items, fb)
	}
	return items, total, rows.Err()
}

// UpdateFeedbackStatus changes the review status of a submission.
func (s *SQLStore) UpdateFeedbackStatus(ctx context.Context, id int64, status string) error {
	return s.execAffecting(ctx, fmt.Sprintf("feedback %d", id), `UPDATE feedback SET status = ? WHERE id = ?`, status, id)
}

// DeleteResolvedFeedback removes resolved submissions created before cutoff.
func (s *SQLStore) DeleteResolvedFeedback(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM feedback WHERE status = ? AND created_at < ?`),
		model.FeedbackResolved, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete resolved feedback: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		log.Printf("[SQLStore] Purged %d resolved feedback records older than %s", deleted, cutoff.Format(time.RFC3339))
	}
	return deleted, nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"portal-rest-api/internal/model"
)

// ListPhotos returns the newest photos first.
func (s *SQLStore) ListPhotos(ctx context.Context, limit int) ([]model.Photo, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id, title, caption, image_url, storage_medium, created_at
		FROM photos ORDER BY created_at DESC, id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query photos: %w", err)
	}
	defer rows.Close()

	photos := make([]model.Photo, 0)
	for rows.Next() {
		var p model.Photo
		if err := rows.Scan(&p.ID, &p.Title, &p.Caption, &p.ImageURL, &p.StorageMedium, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

// CreatePhoto inserts a photo and fills in its id and timestamp.
func (s *SQLStore) CreatePhoto(ctx context.Context, photo *model.Photo) error {
	if photo.StorageMedium == "" {
		photo.StorageMedium = model.StorageRemote
	}
	photo.CreatedAt = time.Now().UTC()

	id, err := s.insert(ctx, s.db, `INSERT INTO photos (title, caption, image_url, storage_medium, created_at)
		VALUES (?, ?, ?, ?, ?)`, photo.Title, photo.Caption, photo.ImageURL, photo.StorageMedium, photo.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create photo: %w", err)
	}
	photo.ID = id
	return nil
}

// DeletePhoto removes a photo record. The stored object is left in place.
func (s *SQLStore) DeletePhoto(ctx context.Context, id int64) error {
	return s.execAffecting(ctx, fmt.Sprintf("photo %d", id), `DELETE FROM photos WHERE id = ?`, id)
}

// ListUpcomingEvents returns events starting at or after from, soonest first.
func (s *SQLStore) ListUpcomingEvents(ctx context.Context, from time.Time, limit int) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id, title, description, location, image_url, starts_at, ends_at, created_at
		FROM events WHERE starts_at >= ? ORDER BY starts_at ASC, id ASC LIMIT ?`), from.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := make([]model.Event, 0)
	for rows.Next() {
		var (
			e      model.Event
			endsAt sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.Location, &e.ImageURL, &e.StartsAt, &endsAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if endsAt.Valid {
			t := endsAt.Time
			e.EndsAt = &t
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CreateEvent inserts an event and fills in its id and timestamp.
func (s *SQLStore) CreateEvent(ctx context.Context, event *model.Event) error {
	event.CreatedAt = time.Now().UTC()
	event.StartsAt = event.StartsAt.UTC()

	var endsAt sql.NullTime
	if event.EndsAt != nil {
		endsAt = sql.NullTime{Time: event.EndsAt.UTC(), Valid: true}
	}

	id, err := s.insert(ctx, s.db, `INSERT INTO events (title, description, location, image_url, starts_at, ends_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.Title, event.Description, event.Location, event.ImageURL, event.StartsAt, endsAt, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	event.ID = id
	return nil
}

// DeleteEvent removes an event.
func (s *SQLStore) DeleteEvent(ctx context.Context, id int64) error {
	return s.execAffecting(ctx, fmt.Sprintf("event %d", id), `DELETE FROM events WHERE id = ?`, id)
}

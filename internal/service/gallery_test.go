package service

import (
	"context"
	"testing"
	"time"

	"portal-rest-api/internal/failure"
	"portal-rest-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGalleryService(t *testing.T) {
	svc := NewGalleryService(newTestStore(t), nil)
	ctx := context.Background()

	inline := &model.Photo{Title: "Harbour", ImageURL: "data:image/jpeg;base64,AAAA"}
	require.NoError(t, svc.AddPhoto(ctx, inline))
	assert.Equal(t, model.StorageInline, inline.StorageMedium)

	remote := &model.Photo{Title: "Bridge", ImageURL: "https://cdn.example.com/images/b.jpg"}
	require.NoError(t, svc.AddPhoto(ctx, remote))
	assert.Equal(t, model.StorageRemote, remote.StorageMedium)

	err := svc.AddPhoto(ctx, &model.Photo{Title: "x", ImageURL: "ftp://nope"})
	assert.True(t, failure.Is(err, failure.CategoryValidation))

	photos, err := svc.ListPhotos(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, photos, 2)

	require.NoError(t, svc.DeletePhoto(ctx, inline.ID))
	assert.True(t, failure.Is(svc.DeletePhoto(ctx, inline.ID), failure.CategoryNotFound))
}

func TestEventService(t *testing.T) {
	svc := NewEventService(newTestStore(t), nil)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, svc.CreateEvent(ctx, &model.Event{Title: "Market", StartsAt: now.Add(48 * time.Hour)}))
	require.NoError(t, svc.CreateEvent(ctx, &model.Event{Title: "Past", StartsAt: now.Add(-48 * time.Hour)}))

	ends := now.Add(time.Hour)
	err := svc.CreateEvent(ctx, &model.Event{Title: "Backwards", StartsAt: now.Add(2 * time.Hour), EndsAt: &ends})
	assert.True(t, failure.Is(err, failure.CategoryValidation))

	err = svc.CreateEvent(ctx, &model.Event{Title: "No start"})
	assert.True(t, failure.Is(err, failure.CategoryValidation))

	events, err := svc.ListUpcoming(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Market", events[0].Title)
}

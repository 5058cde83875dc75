package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangahub/internal/repository"
	"mangahub/pkg/models"
)

type libraryFixture struct {
	service LibraryService
	sink    *recordingSink
}

func newLibraryFixture(t *testing.T) *libraryFixture {
	t.Helper()
	db := openTestDB(t)
	mangaRepo := repository.NewMangaRepository(db)
	seedManga(t, mangaRepo, "one-piece", "One Piece")
	seedManga(t, mangaRepo, "berserk", "Berserk")

	sink := &recordingSink{}
	return &libraryFixture{
		service: NewLibraryService(repository.NewLibraryRepository(db), mangaRepo, sink),
		sink:    sink,
	}
}

func TestAddDefaultsToReading(t *testing.T) {
	f := newLibraryFixture(t)

	entry, err := f.service.Add(context.Background(), "u1", &models.AddToLibraryRequest{MangaID: "one-piece"})
	require.NoError(t, err)
	assert.Equal(t, string(models.LibraryStatusReading), entry.Status)

	notifications := f.sink.notificationEvents()
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationLibraryAdd, notifications[0].Type)
	assert.Equal(t, "one-piece", notifications[0].MangaID)
}

func TestAddIsIdempotent(t *testing.T) {
	f := newLibraryFixture(t)
	ctx := context.Background()

	_, err := f.service.Add(ctx, "u1", &models.AddToLibraryRequest{MangaID: "one-piece", Status: "reading"})
	require.NoError(t, err)
	entry, err := f.service.Add(ctx, "u1", &models.AddToLibraryRequest{MangaID: "one-piece", Status: "completed"})
	require.NoError(t, err)
	assert.Equal(t, "completed", entry.Status, "re-add refreshes the status")

	items, err := f.service.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestAddValidation(t *testing.T) {
	f := newLibraryFixture(t)
	ctx := context.Background()

	_, err := f.service.Add(ctx, "u1", &models.AddToLibraryRequest{})
	assert.Equal(t, models.ErrCodeValidation, models.AsAppError(err).Code)

	_, err = f.service.Add(ctx, "u1", &models.AddToLibraryRequest{MangaID: "one-piece", Status: "hoarding"})
	assert.Equal(t, models.ErrCodeValidation, models.AsAppError(err).Code)

	_, err = f.service.Add(ctx, "u1", &models.AddToLibraryRequest{MangaID: "ghost"})
	assert.Equal(t, models.ErrCodeNotFound, models.AsAppError(err).Code)
}

func TestListJoinsManga(t *testing.T) {
	f := newLibraryFixture(t)
	ctx := context.Background()

	_, err := f.service.Add(ctx, "u1", &models.AddToLibraryRequest{MangaID: "berserk"})
	require.NoError(t, err)

	items, err := f.service.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Manga)
	assert.Equal(t, "Berserk", items[0].Manga.Title)
}

func TestListFiltered(t *testing.T) {
	f := newLibraryFixture(t)
	ctx := context.Background()

	_, err := f.service.Add(ctx, "u1", &models.AddToLibraryRequest{MangaID: "one-piece", Status: "reading"})
	require.NoError(t, err)
	_, err = f.service.Add(ctx, "u1", &models.AddToLibraryRequest{MangaID: "berserk", Status: "on_hold"})
	require.NoError(t, err)

	onHold, err := f.service.ListFiltered(ctx, "u1", "on_hold")
	require.NoError(t, err)
	require.Len(t, onHold, 1)
	assert.Equal(t, "berserk", onHold[0].MangaID)

	_, err = f.service.ListFiltered(ctx, "u1", "nonsense")
	assert.Equal(t, models.ErrCodeValidation, models.AsAppError(err).Code)

	all, err := f.service.ListFiltered(ctx, "u1", "")
	require.NoError(t, err)
	assert.Len(t, all, 2, "empty filter lists everything")
}

func TestRemove(t *testing.T) {
	f := newLibraryFixture(t)
	ctx := context.Background()

	_, err := f.service.Add(ctx, "u1", &models.AddToLibraryRequest{MangaID: "one-piece"})
	require.NoError(t, err)
	require.NoError(t, f.service.Remove(ctx, "u1", "one-piece"))

	items, err := f.service.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, items)

	err = f.service.Remove(ctx, "u1", "one-piece")
	assert.Equal(t, models.ErrCodeNotFound, models.AsAppError(err).Code)

	notifications := f.sink.notificationEvents()
	require.Len(t, notifications, 2, "add + successful remove; failed remove emits nothing")
	assert.Equal(t, models.NotificationLibraryRemove, notifications[1].Type)
}

func TestLibraryStats(t *testing.T) {
	f := newLibraryFixture(t)
	ctx := context.Background()

	_, err := f.service.Add(ctx, "u1", &models.AddToLibraryRequest{MangaID: "one-piece", Status: "reading"})
	require.NoError(t, err)
	_, err = f.service.Add(ctx, "u1", &models.AddToLibraryRequest{MangaID: "berserk", Status: "completed"})
	require.NoError(t, err)

	stats, err := f.service.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByStatus["reading"])
	assert.Equal(t, 1, stats.ByStatus["completed"])
}

package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangahub/internal/repository"
	"mangahub/pkg/models"
)

type progressFixture struct {
	service ProgressService
	library LibraryService
	sink    *recordingSink
}

func newProgressFixture(t *testing.T) *progressFixture {
	t.Helper()
	db := openTestDB(t)
	mangaRepo := repository.NewMangaRepository(db)
	libraryRepo := repository.NewLibraryRepository(db)
	progressRepo := repository.NewProgressRepository(db)

	seedManga(t, mangaRepo, "one-piece", "One Piece")
	seedManga(t, mangaRepo, "berserk", "Berserk")

	sink := &recordingSink{}
	return &progressFixture{
		service: NewProgressService(progressRepo, libraryRepo, mangaRepo, sink),
		library: NewLibraryService(libraryRepo, mangaRepo, sink),
		sink:    sink,
	}
}

func TestUpdateProgressEmitsEvent(t *testing.T) {
	f := newProgressFixture(t)
	ctx := context.Background()

	event, err := f.service.Update(ctx, "u1", "alice", &models.UpdateProgressRequest{
		MangaID:        "one-piece",
		CurrentChapter: 42,
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", event.Username)
	assert.Equal(t, "One Piece", event.MangaTitle)
	assert.Equal(t, 42, event.Chapter)
	assert.Equal(t, "one-piece", event.MangaID)
	assert.NotZero(t, event.Timestamp)

	require.Len(t, f.sink.progressEvents(), 1)

	record, err := f.service.Get(ctx, "u1", "one-piece")
	require.NoError(t, err)
	assert.Equal(t, 42, record.CurrentChapter)
}

func TestUpdateProgressSameChapterStillEmits(t *testing.T) {
	f := newProgressFixture(t)
	ctx := context.Background()

	req := &models.UpdateProgressRequest{MangaID: "one-piece", CurrentChapter: 10}
	_, err := f.service.Update(ctx, "u1", "alice", req)
	require.NoError(t, err)
	_, err = f.service.Update(ctx, "u1", "alice", req)
	require.NoError(t, err)

	assert.Len(t, f.sink.progressEvents(), 2, "re-reads re-announce")
}

func TestUpdateProgressUnknownManga(t *testing.T) {
	f := newProgressFixture(t)

	_, err := f.service.Update(context.Background(), "u1", "alice", &models.UpdateProgressRequest{
		MangaID:        "no-such-manga",
		CurrentChapter: 1,
	})
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeNotFound, models.AsAppError(err).Code)
	assert.Empty(t, f.sink.progressEvents(), "failed intents emit nothing")
}

func TestUpdateProgressValidation(t *testing.T) {
	f := newProgressFixture(t)
	ctx := context.Background()

	_, err := f.service.Update(ctx, "u1", "alice", &models.UpdateProgressRequest{CurrentChapter: 1})
	assert.Equal(t, models.ErrCodeValidation, models.AsAppError(err).Code)

	_, err = f.service.Update(ctx, "u1", "alice", &models.UpdateProgressRequest{
		MangaID: "one-piece", CurrentChapter: -1,
	})
	assert.Equal(t, models.ErrCodeValidation, models.AsAppError(err).Code)

	_, err = f.service.Update(ctx, "u1", "alice", &models.UpdateProgressRequest{
		MangaID: "one-piece", CurrentChapter: 1, Status: "binge",
	})
	assert.Equal(t, models.ErrCodeValidation, models.AsAppError(err).Code)
}

func TestUpdateProgressWithStatusRideAlong(t *testing.T) {
	f := newProgressFixture(t)
	ctx := context.Background()

	_, err := f.service.Update(ctx, "u1", "alice", &models.UpdateProgressRequest{
		MangaID:        "berserk",
		CurrentChapter: 374,
		Status:         "completed",
	})
	require.NoError(t, err)

	items, err := f.library.ListFiltered(ctx, "u1", "completed")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "berserk", items[0].MangaID)
}

// faultyLibrary fails every status write while leaving reads intact.
type faultyLibrary struct {
	repository.LibraryRepository
}

func (faultyLibrary) Upsert(context.Context, *models.LibraryEntry) error {
	return models.NewInternalError("library store unavailable", nil)
}

func TestUpdateProgressSurvivesLibraryFailure(t *testing.T) {
	db := openTestDB(t)
	mangaRepo := repository.NewMangaRepository(db)
	seedManga(t, mangaRepo, "one-piece", "One Piece")

	sink := &recordingSink{}
	service := NewProgressService(
		repository.NewProgressRepository(db),
		faultyLibrary{repository.NewLibraryRepository(db)},
		mangaRepo, sink)
	ctx := context.Background()

	event, err := service.Update(ctx, "u1", "alice", &models.UpdateProgressRequest{
		MangaID:        "one-piece",
		CurrentChapter: 12,
		Status:         "reading",
	})
	require.NoError(t, err, "status ride-along failure must not fail the intent")
	assert.Equal(t, 12, event.Chapter)
	assert.Len(t, sink.progressEvents(), 1)

	record, err := service.Get(ctx, "u1", "one-piece")
	require.NoError(t, err)
	assert.Equal(t, 12, record.CurrentChapter)
}

func TestBatchUpdateStopsAtFirstFailure(t *testing.T) {
	f := newProgressFixture(t)

	events, err := f.service.BatchUpdate(context.Background(), "u1", "alice", &models.BatchUpdateProgressRequest{
		Updates: []models.UpdateProgressRequest{
			{MangaID: "one-piece", CurrentChapter: 1},
			{MangaID: "missing", CurrentChapter: 2},
			{MangaID: "berserk", CurrentChapter: 3},
		},
	})
	require.Error(t, err)
	assert.Len(t, events, 1, "events before the failure are kept")
	assert.Len(t, f.sink.progressEvents(), 1)

	// The third update never ran.
	_, err = f.service.Get(context.Background(), "u1", "berserk")
	assert.Error(t, err)
}

func TestListByUser(t *testing.T) {
	f := newProgressFixture(t)
	ctx := context.Background()

	for _, id := range []string{"one-piece", "berserk"} {
		_, err := f.service.Update(ctx, "u1", "alice", &models.UpdateProgressRequest{
			MangaID: id, CurrentChapter: 5,
		})
		require.NoError(t, err)
	}

	records, err := f.service.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

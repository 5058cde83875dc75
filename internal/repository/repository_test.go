package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangahub/pkg/database"
	"mangahub/pkg/models"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedManga(t *testing.T, repo MangaRepository, id, title string, genres []string, createdAt time.Time) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &models.Manga{
		ID:        id,
		Title:     title,
		Author:    "author",
		Status:    "ongoing",
		Genres:    genres,
		CreatedAt: createdAt,
	}))
}

func TestUserCreateConflictNamesTheConstraint(t *testing.T) {
	repo := NewUserRepository(openTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, &models.User{
		ID: "u1", Username: "alice", Email: "alice@example.com",
		PasswordHash: "x", Role: models.UserRoleUser, CreatedAt: now,
	}))

	err := repo.Create(ctx, &models.User{
		ID: "u2", Username: "alice", Email: "other@example.com",
		PasswordHash: "x", Role: models.UserRoleUser, CreatedAt: now,
	})
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeConflict, models.AsAppError(err).Code)
	assert.Contains(t, models.AsAppError(err).Message, "username")

	err = repo.Create(ctx, &models.User{
		ID: "u3", Username: "bob", Email: "alice@example.com",
		PasswordHash: "x", Role: models.UserRoleUser, CreatedAt: now,
	})
	require.Error(t, err)
	assert.Contains(t, models.AsAppError(err).Message, "email")
}

func TestUserGetByLoginMatchesUsernameOrEmail(t *testing.T) {
	repo := NewUserRepository(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.User{
		ID: "u1", Username: "alice", Email: "alice@example.com",
		PasswordHash: "x", Role: models.UserRoleUser, CreatedAt: time.Now().UTC(),
	}))

	byName, err := repo.GetByLogin(ctx, "alice")
	require.NoError(t, err)
	byMail, err := repo.GetByLogin(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, byName.ID, byMail.ID)

	_, err = repo.GetByLogin(ctx, "nobody")
	assert.Equal(t, models.ErrCodeNotFound, models.AsAppError(err).Code)
}

func TestSearchGenreMatchIsExact(t *testing.T) {
	repo := NewMangaRepository(openTestDB(t))
	ctx := context.Background()
	seedManga(t, repo, "m1", "One", []string{"action"}, time.Now().UTC())

	hits, total, err := repo.Search(ctx, &models.MangaSearchRequest{Genres: []string{"action"}})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, hits, 1)

	// "act" is a substring of "action" but not a stored genre.
	_, total, err = repo.Search(ctx, &models.MangaSearchRequest{Genres: []string{"act"}})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestSearchSortNewest(t *testing.T) {
	repo := NewMangaRepository(openTestDB(t))
	ctx := context.Background()
	base := time.Now().UTC()
	seedManga(t, repo, "old", "Old", []string{"action"}, base.Add(-time.Hour))
	seedManga(t, repo, "new", "New", []string{"action"}, base)

	hits, _, err := repo.Search(ctx, &models.MangaSearchRequest{Sort: "newest"})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "new", hits[0].ID)
}

func TestChapterLanguageFilterAndOffset(t *testing.T) {
	repo := NewMangaRepository(openTestDB(t))
	ctx := context.Background()
	seedManga(t, repo, "m1", "One", []string{"action"}, time.Now().UTC())

	addChapter := func(id string, number float64, lang string) {
		require.NoError(t, repo.CreateChapter(ctx, &models.Chapter{
			ID: id, MangaID: "m1", Number: number, Language: lang,
		}))
	}
	addChapter("c1", 1, "en")
	addChapter("c2", 2, "en")
	addChapter("c3", 2, "fr")

	english, total, err := repo.ListChapters(ctx, "m1", []string{"en"}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, english, 2)

	// Offset walks the number-ordered list; total stays the full count.
	second, total, err := repo.ListChapters(ctx, "m1", []string{"en"}, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, second, 1)
	assert.Equal(t, "c2", second[0].ID)

	_, err = repo.GetChapter(ctx, "c3", "")
	require.NoError(t, err)
	_, err = repo.GetChapter(ctx, "ghost", "")
	assert.Equal(t, models.ErrCodeNotFound, models.AsAppError(err).Code)
}

func TestLibraryUpsertKeepsAddedAt(t *testing.T) {
	db := openTestDB(t)
	manga := NewMangaRepository(db)
	library := NewLibraryRepository(db)
	ctx := context.Background()
	seedManga(t, manga, "m1", "One", []string{"action"}, time.Now().UTC())

	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	later := first.Add(48 * time.Hour)

	require.NoError(t, library.Upsert(ctx, &models.LibraryEntry{
		UserID: "u1", MangaID: "m1", Status: "reading", AddedAt: first, LastUpdated: first,
	}))
	require.NoError(t, library.Upsert(ctx, &models.LibraryEntry{
		UserID: "u1", MangaID: "m1", Status: "completed", AddedAt: later, LastUpdated: later,
	}))

	entry, err := library.Get(ctx, "u1", "m1")
	require.NoError(t, err)
	assert.Equal(t, "completed", entry.Status)
	assert.True(t, entry.AddedAt.Equal(first), "added_at survives re-adds")
	assert.True(t, entry.LastUpdated.Equal(later))
}

func TestProgressListOrdersByRecency(t *testing.T) {
	db := openTestDB(t)
	manga := NewMangaRepository(db)
	progress := NewProgressRepository(db)
	ctx := context.Background()
	base := time.Now().UTC()
	seedManga(t, manga, "m1", "One", []string{"action"}, base)
	seedManga(t, manga, "m2", "Two", []string{"action"}, base)

	require.NoError(t, progress.Upsert(ctx, &models.ProgressRecord{
		UserID: "u1", MangaID: "m1", CurrentChapter: 3, LastReadAt: base.Add(-time.Hour),
	}))
	require.NoError(t, progress.Upsert(ctx, &models.ProgressRecord{
		UserID: "u1", MangaID: "m2", CurrentChapter: 1, LastReadAt: base,
	}))

	records, err := progress.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "m2", records[0].MangaID)

	// Re-reading the older manga bumps it to the front.
	require.NoError(t, progress.Upsert(ctx, &models.ProgressRecord{
		UserID: "u1", MangaID: "m1", CurrentChapter: 4, LastReadAt: base.Add(time.Minute),
	}))
	records, err = progress.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "m1", records[0].MangaID)
	assert.Equal(t, 4, records[0].CurrentChapter)
}

func TestRatingDeleteWithoutRowIsNotFound(t *testing.T) {
	db := openTestDB(t)
	ratings := NewRatingRepository(db)

	err := ratings.Delete(context.Background(), "u1", "m1")
	assert.Equal(t, models.ErrCodeNotFound, models.AsAppError(err).Code)
}

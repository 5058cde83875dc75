package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangahub/internal/cache"
	"mangahub/internal/core"
	"mangahub/internal/repository"
	"mangahub/pkg/database"
	"mangahub/pkg/models"
)

// envelope mirrors models.APIResponse with raw data for typed decoding.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type apiFixture struct {
	router *gin.Engine
	users  repository.UserRepository
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	userRepo := repository.NewUserRepository(db)
	mangaRepo := repository.NewMangaRepository(db)
	libraryRepo := repository.NewLibraryRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	ratingRepo := repository.NewRatingRepository(db)

	auth := core.NewAuthService(userRepo, "test-secret", "mangahub-test", time.Hour)
	router := NewRouter(RouterDeps{
		Auth:               auth,
		Catalog:            core.NewCatalogService(mangaRepo, nil),
		Library:            core.NewLibraryService(libraryRepo, mangaRepo, nil),
		Progress:           core.NewProgressService(progressRepo, libraryRepo, mangaRepo, nil),
		Rating:             core.NewRatingService(ratingRepo, mangaRepo, cache.NewRatingCache("", "", 0)),
		DB:                 db,
		CORSAllowOrigins:   []string{"*"},
		RateLimitPerMinute: 100000,
		MaxRequestSizeMB:   2,
	})
	return &apiFixture{router: router, users: userRepo}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, *envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var resp envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, &resp
}

func (f *apiFixture) registerAndLogin(t *testing.T, username string) (token, userID string) {
	t.Helper()
	rec, _ := f.do(t, http.MethodPost, "/api/v1/auth/register", "", models.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, resp := f.do(t, http.MethodPost, "/api/v1/auth/login", "", models.LoginRequest{
		Login:    username,
		Password: "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var login models.LoginResponse
	require.NoError(t, json.Unmarshal(resp.Data, &login))
	return login.Token, login.User.ID
}

// adminToken promotes a fresh user to admin and logs in again so the
// token carries the new role.
func (f *apiFixture) adminToken(t *testing.T) string {
	t.Helper()
	_, userID := f.registerAndLogin(t, "admin_user")
	user, err := f.users.GetByID(context.Background(), userID)
	require.NoError(t, err)
	user.Role = models.UserRoleAdmin
	require.NoError(t, f.users.Update(context.Background(), user))

	rec, resp := f.do(t, http.MethodPost, "/api/v1/auth/login", "", models.LoginRequest{
		Login:    "admin_user",
		Password: "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var login models.LoginResponse
	require.NoError(t, json.Unmarshal(resp.Data, &login))
	return login.Token
}

func (f *apiFixture) createManga(t *testing.T, adminToken, id, title string) {
	t.Helper()
	rec, _ := f.do(t, http.MethodPost, "/api/v1/manga", adminToken, models.CreateMangaRequest{
		ID:     id,
		Title:  title,
		Author: "author",
		Status: "ongoing",
		Genres: []string{"action"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestRegisterLoginProfile(t *testing.T) {
	f := newAPIFixture(t)
	token, userID := f.registerAndLogin(t, "alice")

	rec, resp := f.do(t, http.MethodGet, "/api/v1/users/profile", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var profile models.UserProfile
	require.NoError(t, json.Unmarshal(resp.Data, &profile))
	assert.Equal(t, userID, profile.ID)
	assert.Equal(t, "alice", profile.Username)
}

func TestRegisterDuplicateIs409(t *testing.T) {
	f := newAPIFixture(t)
	f.registerAndLogin(t, "alice")

	rec, resp := f.do(t, http.MethodPost, "/api/v1/auth/register", "", models.RegisterRequest{
		Username: "alice",
		Email:    "alice2@example.com",
		Password: "password123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

func TestBadLoginIs401(t *testing.T) {
	f := newAPIFixture(t)
	f.registerAndLogin(t, "alice")

	rec, _ := f.do(t, http.MethodPost, "/api/v1/auth/login", "", models.LoginRequest{
		Login:    "alice",
		Password: "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newAPIFixture(t)

	for _, path := range []string{"/api/v1/users/profile", "/api/v1/users/library", "/api/v1/users/progress"} {
		rec, _ := f.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	rec, _ := f.do(t, http.MethodGet, "/api/v1/users/profile", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminSurfaceForbiddenForUsers(t *testing.T) {
	f := newAPIFixture(t)
	token, _ := f.registerAndLogin(t, "alice")

	rec, _ := f.do(t, http.MethodPost, "/api/v1/manga", token, models.CreateMangaRequest{
		Title: "X", Author: "a", Status: "ongoing", Genres: []string{"action"},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminCreatesAndSearchFinds(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.adminToken(t)
	f.createManga(t, admin, "one-piece", "One Piece")

	rec, resp := f.do(t, http.MethodGet, "/api/v1/manga?query=piece", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var list models.MangaListResponse
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, "One Piece", list.Data[0].Title)

	rec, _ = f.do(t, http.MethodGet, "/api/v1/manga/one-piece", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/v1/manga/ghost", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRatingFlow(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.adminToken(t)
	f.createManga(t, admin, "one-piece", "One Piece")
	token, _ := f.registerAndLogin(t, "alice")

	rec, resp := f.do(t, http.MethodPost, "/api/v1/manga/one-piece/rating", token, models.RateMangaRequest{Rating: 5})
	assert.Equal(t, http.StatusOK, rec.Code)
	var stats models.RatingStats
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.Equal(t, 1, stats.TotalRatings)
	require.NotNil(t, stats.UserRating)
	assert.Equal(t, 5, *stats.UserRating)

	// Anonymous stats read: aggregates, no user rating.
	rec, resp = f.do(t, http.MethodGet, "/api/v1/manga/one-piece/ratings", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.Equal(t, 1, stats.TotalRatings)
	assert.Nil(t, stats.UserRating)

	rec, resp = f.do(t, http.MethodDelete, "/api/v1/manga/one-piece/rating", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.Equal(t, 0, stats.TotalRatings)

	rec, _ = f.do(t, http.MethodPost, "/api/v1/manga/one-piece/rating", token, models.RateMangaRequest{Rating: 9})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLibraryFlow(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.adminToken(t)
	f.createManga(t, admin, "berserk", "Berserk")
	token, _ := f.registerAndLogin(t, "alice")

	rec, _ := f.do(t, http.MethodPost, "/api/v1/users/library", token, models.AddToLibraryRequest{
		MangaID: "berserk",
		Status:  "reading",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec, resp := f.do(t, http.MethodGet, "/api/v1/users/library", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var items []models.LibraryItem
	require.NoError(t, json.Unmarshal(resp.Data, &items))
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Manga)
	assert.Equal(t, "Berserk", items[0].Manga.Title)

	rec, resp = f.do(t, http.MethodGet, "/api/v1/users/library/filtered?status=completed", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(resp.Data, &items))
	assert.Empty(t, items)

	rec, _ = f.do(t, http.MethodDelete, "/api/v1/users/library/berserk", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.do(t, http.MethodDelete, "/api/v1/users/library/berserk", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProgressFlow(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.adminToken(t)
	f.createManga(t, admin, "one-piece", "One Piece")
	token, _ := f.registerAndLogin(t, "alice")

	rec, resp := f.do(t, http.MethodPut, "/api/v1/users/progress", token, models.UpdateProgressRequest{
		MangaID:        "one-piece",
		CurrentChapter: 42,
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	var event models.ProgressEvent
	require.NoError(t, json.Unmarshal(resp.Data, &event))
	assert.Equal(t, "alice", event.Username)
	assert.Equal(t, 42, event.Chapter)

	rec, resp = f.do(t, http.MethodGet, "/api/v1/users/progress", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var records []models.ProgressRecord
	require.NoError(t, json.Unmarshal(resp.Data, &records))
	require.Len(t, records, 1)
	assert.Equal(t, 42, records[0].CurrentChapter)

	rec, _ = f.do(t, http.MethodPut, "/api/v1/users/progress", token, models.UpdateProgressRequest{
		MangaID:        "ghost",
		CurrentChapter: 1,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBatchProgress(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.adminToken(t)
	f.createManga(t, admin, "one-piece", "One Piece")
	f.createManga(t, admin, "berserk", "Berserk")
	token, _ := f.registerAndLogin(t, "alice")

	rec, resp := f.do(t, http.MethodPut, "/api/v1/users/progress/batch", token, models.BatchUpdateProgressRequest{
		Updates: []models.UpdateProgressRequest{
			{MangaID: "one-piece", CurrentChapter: 1},
			{MangaID: "berserk", CurrentChapter: 2},
		},
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Applied int                    `json:"applied"`
		Events  []models.ProgressEvent `json:"events"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, 2, result.Applied)
	assert.Len(t, result.Events, 2)
}

func TestChapterEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.adminToken(t)
	f.createManga(t, admin, "one-piece", "One Piece")

	rec, resp := f.do(t, http.MethodPost, "/api/v1/manga/one-piece/chapters", admin, models.Chapter{
		ID:     "op-1",
		Number: 1,
		Title:  "Romance Dawn",
		Pages:  []string{"https://cdn.example.com/1.png"},
	})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec, resp = f.do(t, http.MethodGet, "/api/v1/manga/one-piece/chapters", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var chapters struct {
		Chapters   []models.Chapter      `json:"chapters"`
		Pagination models.PaginationMeta `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &chapters))
	require.Len(t, chapters.Chapters, 1)
	assert.Equal(t, 1, chapters.Pagination.Total)

	rec, resp = f.do(t, http.MethodGet, "/api/v1/manga/chapters/op-1/pages", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var ch models.Chapter
	require.NoError(t, json.Unmarshal(resp.Data, &ch))
	assert.Equal(t, []string{"https://cdn.example.com/1.png"}, ch.Pages)
}

func TestCORSHeaders(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/manga", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

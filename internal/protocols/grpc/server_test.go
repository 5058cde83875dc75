package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangahub/internal/cache"
	"mangahub/internal/core"
	"mangahub/internal/repository"
	"mangahub/pkg/database"
	"mangahub/pkg/models"
)

type grpcFixture struct {
	client *Client
}

func newGRPCFixture(t *testing.T) *grpcFixture {
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
	service := NewService(
		auth,
		core.NewCatalogService(mangaRepo, nil),
		core.NewLibraryService(libraryRepo, mangaRepo, nil),
		core.NewProgressService(progressRepo, libraryRepo, mangaRepo, nil),
		core.NewRatingService(ratingRepo, mangaRepo, cache.NewRatingCache("", "", 0)),
	)

	// Seed catalog directly; the catalog admin surface is REST-only.
	seed := &models.Manga{
		ID:        "one-piece",
		Title:     "One Piece",
		Author:    "Eiichiro Oda",
		Status:    "ongoing",
		Genres:    []string{"action"},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, mangaRepo.Create(context.Background(), seed))

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	srv := NewServer(addr, service, auth)
	go srv.Start()
	t.Cleanup(srv.Stop)
	waitForListener(t, addr)

	client, err := Dial(addr)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return &grpcFixture{client: client}
}

func waitForListener(t *testing.T, addr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("grpc server never came up on %s", addr)
}

func (f *grpcFixture) login(t *testing.T, username string) {
	t.Helper()
	ctx := context.Background()

	reply, err := f.client.Register(ctx, &models.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	require.True(t, reply.Success, reply.Error)

	reply, err = f.client.Login(ctx, &models.LoginRequest{Login: username, Password: "password123"})
	require.NoError(t, err)
	require.True(t, reply.Success, reply.Error)

	var resp models.LoginResponse
	require.NoError(t, reply.Decode(&resp))
	f.client.SetToken(resp.Token)
}

func TestRegisterLoginProfileOverGRPC(t *testing.T) {
	f := newGRPCFixture(t)
	f.login(t, "alice")

	reply, err := f.client.GetProfile(context.Background())
	require.NoError(t, err)
	require.True(t, reply.Success, reply.Error)

	var profile models.UserProfile
	require.NoError(t, reply.Decode(&profile))
	assert.Equal(t, "alice", profile.Username)
}

func TestDomainFailureIsNotTransportFailure(t *testing.T) {
	f := newGRPCFixture(t)

	reply, err := f.client.GetManga(context.Background(), "ghost")
	require.NoError(t, err, "domain errors ride inside the reply")
	assert.False(t, reply.Success)
	assert.NotEmpty(t, reply.Error)

	reply, err = f.client.Login(context.Background(), &models.LoginRequest{Login: "nobody", Password: "x-x-x-x-x"})
	require.NoError(t, err)
	assert.False(t, reply.Success)
}

func TestAuthenticatedCallsRequireToken(t *testing.T) {
	f := newGRPCFixture(t)
	ctx := context.Background()

	reply, err := f.client.GetLibrary(ctx)
	require.NoError(t, err)
	assert.False(t, reply.Success)
	assert.Equal(t, "authentication required", reply.Error)

	reply, err = f.client.UpdateProgress(ctx, &models.UpdateProgressRequest{MangaID: "one-piece", CurrentChapter: 1})
	require.NoError(t, err)
	assert.False(t, reply.Success)
}

func TestSearchOverGRPC(t *testing.T) {
	f := newGRPCFixture(t)

	reply, err := f.client.SearchManga(context.Background(), &SearchMangaRequest{Query: "piece"})
	require.NoError(t, err)
	require.True(t, reply.Success, reply.Error)

	var list models.MangaListResponse
	require.NoError(t, reply.Decode(&list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, "One Piece", list.Data[0].Title)
}

func TestLibraryAndProgressOverGRPC(t *testing.T) {
	f := newGRPCFixture(t)
	f.login(t, "alice")
	ctx := context.Background()

	reply, err := f.client.AddToLibrary(ctx, "one-piece", "reading")
	require.NoError(t, err)
	require.True(t, reply.Success, reply.Error)

	reply, err = f.client.GetLibrary(ctx)
	require.NoError(t, err)
	require.True(t, reply.Success, reply.Error)
	var items []models.LibraryItem
	require.NoError(t, reply.Decode(&items))
	assert.Len(t, items, 1)

	reply, err = f.client.UpdateProgress(ctx, &models.UpdateProgressRequest{
		MangaID:        "one-piece",
		CurrentChapter: 7,
	})
	require.NoError(t, err)
	require.True(t, reply.Success, reply.Error)
	var event models.ProgressEvent
	require.NoError(t, reply.Decode(&event))
	assert.Equal(t, 7, event.Chapter)

	reply, err = f.client.RemoveFromLibrary(ctx, "one-piece")
	require.NoError(t, err)
	assert.True(t, reply.Success, reply.Error)
}

func TestRatingOverGRPC(t *testing.T) {
	f := newGRPCFixture(t)
	f.login(t, "alice")
	ctx := context.Background()

	reply, err := f.client.RateManga(ctx, "one-piece", 4)
	require.NoError(t, err)
	require.True(t, reply.Success, reply.Error)

	var stats models.RatingStats
	require.NoError(t, reply.Decode(&stats))
	assert.Equal(t, 1, stats.TotalRatings)
	require.NotNil(t, stats.UserRating)
	assert.Equal(t, 4, *stats.UserRating)

	reply, err = f.client.DeleteRating(ctx, "one-piece")
	require.NoError(t, err)
	require.True(t, reply.Success, reply.Error)
	require.NoError(t, reply.Decode(&stats))
	assert.Equal(t, 0, stats.TotalRatings)
}

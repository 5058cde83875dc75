package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mangahub/internal/repository"
	"mangahub/pkg/database"
	"mangahub/pkg/models"
)

// recordingSink captures published events for assertions.
type recordingSink struct {
	mu            sync.Mutex
	progress      []models.ProgressEvent
	notifications []models.Notification
}

func (s *recordingSink) PublishProgress(_ context.Context, event models.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = append(s.progress, event)
}

func (s *recordingSink) PublishNotification(_ context.Context, n models.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, n)
}

func (s *recordingSink) progressEvents() []models.ProgressEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ProgressEvent(nil), s.progress...)
}

func (s *recordingSink) notificationEvents() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Notification(nil), s.notifications...)
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedManga(t *testing.T, repo repository.MangaRepository, id, title string) *models.Manga {
	t.Helper()
	m := &models.Manga{
		ID:        id,
		Title:     title,
		Author:    "author",
		Status:    "ongoing",
		Genres:    []string{"action"},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Create(context.Background(), m))
	return m
}

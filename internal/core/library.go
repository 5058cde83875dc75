package core

import (
	"context"
	"fmt"
	"time"

	"mangahub/internal/repository"
	"mangahub/pkg/models"
)

// LibraryService handles per-user manga collections.
type LibraryService interface {
	Add(ctx context.Context, userID string, req *models.AddToLibraryRequest) (*models.LibraryEntry, error)
	Remove(ctx context.Context, userID, mangaID string) error
	List(ctx context.Context, userID string) ([]models.LibraryItem, error)
	ListFiltered(ctx context.Context, userID, status string) ([]models.LibraryItem, error)
	Stats(ctx context.Context, userID string) (*models.LibraryStats, error)
}

type libraryService struct {
	library repository.LibraryRepository
	manga   repository.MangaRepository
	sink    EventSink
}

// NewLibraryService creates the library service.
func NewLibraryService(library repository.LibraryRepository, manga repository.MangaRepository, sink EventSink) LibraryService {
	if sink == nil {
		sink = NopSink{}
	}
	return &libraryService{library: library, manga: manga, sink: sink}
}

// Add is idempotent: re-adding a manga refreshes the status instead of
// failing.
func (s *libraryService) Add(ctx context.Context, userID string, req *models.AddToLibraryRequest) (*models.LibraryEntry, error) {
	if req.MangaID == "" {
		return nil, models.NewValidationError("manga_id is required")
	}
	status := req.Status
	if status == "" {
		status = string(models.LibraryStatusReading)
	}
	if !models.IsValidLibraryStatus(status) {
		return nil, models.NewValidationError("invalid library status")
	}

	m, err := s.manga.GetByID(ctx, req.MangaID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	entry := &models.LibraryEntry{
		UserID:      userID,
		MangaID:     m.ID,
		Status:      status,
		AddedAt:     now,
		LastUpdated: now,
	}
	if err := s.library.Upsert(ctx, entry); err != nil {
		return nil, err
	}

	s.sink.PublishNotification(ctx, models.NewNotification(
		models.NotificationLibraryAdd, m.ID,
		fmt.Sprintf("%s added to a library", m.Title)))
	return entry, nil
}

func (s *libraryService) Remove(ctx context.Context, userID, mangaID string) error {
	if err := s.library.Remove(ctx, userID, mangaID); err != nil {
		return err
	}
	s.sink.PublishNotification(ctx, models.NewNotification(
		models.NotificationLibraryRemove, mangaID, "Manga removed from a library"))
	return nil
}

func (s *libraryService) List(ctx context.Context, userID string) ([]models.LibraryItem, error) {
	return s.library.List(ctx, userID)
}

func (s *libraryService) ListFiltered(ctx context.Context, userID, status string) ([]models.LibraryItem, error) {
	if status == "" {
		return s.library.List(ctx, userID)
	}
	if !models.IsValidLibraryStatus(status) {
		return nil, models.NewValidationError("invalid library status")
	}
	return s.library.ListFiltered(ctx, userID, models.LibraryStatus(status))
}

func (s *libraryService) Stats(ctx context.Context, userID string) (*models.LibraryStats, error) {
	return s.library.Stats(ctx, userID)
}

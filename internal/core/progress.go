package core

import (
	"context"
	"time"

	"mangahub/internal/repository"
	"mangahub/pkg/logger"
	"mangahub/pkg/models"
)

// ProgressService handles reading-progress intents. Every successful
// update emits a ProgressEvent for the TCP bus, even when the chapter
// did not change.
type ProgressService interface {
	Update(ctx context.Context, userID, username string, req *models.UpdateProgressRequest) (*models.ProgressEvent, error)
	BatchUpdate(ctx context.Context, userID, username string, req *models.BatchUpdateProgressRequest) ([]models.ProgressEvent, error)
	Get(ctx context.Context, userID, mangaID string) (*models.ProgressRecord, error)
	ListByUser(ctx context.Context, userID string) ([]models.ProgressRecord, error)
}

type progressService struct {
	progress repository.ProgressRepository
	library  repository.LibraryRepository
	manga    repository.MangaRepository
	sink     EventSink
}

// NewProgressService creates the progress service.
func NewProgressService(progress repository.ProgressRepository, library repository.LibraryRepository, manga repository.MangaRepository, sink EventSink) ProgressService {
	if sink == nil {
		sink = NopSink{}
	}
	return &progressService{progress: progress, library: library, manga: manga, sink: sink}
}

func (s *progressService) Update(ctx context.Context, userID, username string, req *models.UpdateProgressRequest) (*models.ProgressEvent, error) {
	if req.MangaID == "" {
		return nil, models.NewValidationError("manga_id is required")
	}
	if req.CurrentChapter < 0 {
		return nil, models.NewValidationError("current_chapter must not be negative")
	}
	if req.Status != "" && !models.IsValidLibraryStatus(req.Status) {
		return nil, models.NewValidationError("invalid library status")
	}

	m, err := s.manga.GetByID(ctx, req.MangaID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	record := &models.ProgressRecord{
		UserID:         userID,
		MangaID:        m.ID,
		CurrentChapter: req.CurrentChapter,
		LastReadAt:     now,
	}
	if err := s.progress.Upsert(ctx, record); err != nil {
		return nil, err
	}

	// Optional library status ride-along, best-effort: a failure here does
	// not undo the progress write or suppress the event.
	if req.Status != "" {
		entry := &models.LibraryEntry{
			UserID:      userID,
			MangaID:     m.ID,
			Status:      req.Status,
			AddedAt:     now,
			LastUpdated: now,
		}
		if err := s.library.Upsert(ctx, entry); err != nil {
			logger.Warnf("library status update failed for user %s manga %s: %v", userID, m.ID, err)
		}
	}

	event := models.ProgressEvent{
		UserID:     userID,
		Username:   username,
		MangaTitle: m.Title,
		Chapter:    req.CurrentChapter,
		Timestamp:  now.Unix(),
		MangaID:    m.ID,
	}
	s.sink.PublishProgress(ctx, event)
	return &event, nil
}

// BatchUpdate applies updates in order and stops at the first failure,
// returning the events already emitted alongside the error.
func (s *progressService) BatchUpdate(ctx context.Context, userID, username string, req *models.BatchUpdateProgressRequest) ([]models.ProgressEvent, error) {
	if len(req.Updates) == 0 {
		return nil, models.NewValidationError("updates must not be empty")
	}
	events := make([]models.ProgressEvent, 0, len(req.Updates))
	for i := range req.Updates {
		event, err := s.Update(ctx, userID, username, &req.Updates[i])
		if err != nil {
			return events, err
		}
		events = append(events, *event)
	}
	return events, nil
}

func (s *progressService) Get(ctx context.Context, userID, mangaID string) (*models.ProgressRecord, error) {
	return s.progress.Get(ctx, userID, mangaID)
}

func (s *progressService) ListByUser(ctx context.Context, userID string) ([]models.ProgressRecord, error) {
	return s.progress.ListByUser(ctx, userID)
}

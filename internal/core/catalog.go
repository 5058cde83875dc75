package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"mangahub/internal/repository"
	"mangahub/pkg/models"
)

// CatalogService handles manga discovery and the admin write surface.
type CatalogService interface {
	Search(ctx context.Context, req *models.MangaSearchRequest) (*models.MangaListResponse, error)
	GetManga(ctx context.Context, id string) (*models.Manga, error)
	CreateManga(ctx context.Context, req *models.CreateMangaRequest) (*models.Manga, error)
	UpdateManga(ctx context.Context, id string, req *models.UpdateMangaRequest) (*models.Manga, error)
	DeleteManga(ctx context.Context, id string) error
	ListGenres(ctx context.Context) ([]string, error)
	Popular(ctx context.Context, limit int) ([]models.Manga, error)
	Stats(ctx context.Context) (*models.CatalogStats, error)

	AddChapter(ctx context.Context, mangaID string, ch *models.Chapter) (*models.Chapter, error)
	ListChapters(ctx context.Context, mangaID string, languages []string, limit, offset int) ([]models.Chapter, int, error)
	GetChapterPages(ctx context.Context, chapterID, source string) (*models.Chapter, error)
}

type catalogService struct {
	manga repository.MangaRepository
	sink  EventSink
}

// NewCatalogService creates the catalog service.
func NewCatalogService(manga repository.MangaRepository, sink EventSink) CatalogService {
	if sink == nil {
		sink = NopSink{}
	}
	return &catalogService{manga: manga, sink: sink}
}

func (s *catalogService) Search(ctx context.Context, req *models.MangaSearchRequest) (*models.MangaListResponse, error) {
	if req.Status != "" && !models.IsValidMangaStatus(req.Status) {
		return nil, models.NewValidationError("invalid status filter")
	}
	req.NormalizeSearch()

	result, total, err := s.manga.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = []models.Manga{}
	}
	return &models.MangaListResponse{
		Data:    result,
		Total:   total,
		Limit:   req.Limit,
		Offset:  req.Offset,
		HasMore: req.Offset+len(result) < total,
	}, nil
}

func (s *catalogService) GetManga(ctx context.Context, id string) (*models.Manga, error) {
	return s.manga.GetByID(ctx, id)
}

func (s *catalogService) CreateManga(ctx context.Context, req *models.CreateMangaRequest) (*models.Manga, error) {
	m := &models.Manga{
		ID:              strings.TrimSpace(req.ID),
		Title:           strings.TrimSpace(req.Title),
		Author:          strings.TrimSpace(req.Author),
		Status:          req.Status,
		TotalChapters:   req.TotalChapters,
		Genres:          req.Genres,
		Description:     req.Description,
		CoverURL:        req.CoverURL,
		PublicationYear: req.PublicationYear,
		CreatedAt:       time.Now().UTC(),
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if err := models.ValidateManga(m); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := s.manga.Create(ctx, m); err != nil {
		return nil, err
	}

	s.sink.PublishNotification(ctx, models.NewNotification(
		models.NotificationMangaUpdate, m.ID,
		fmt.Sprintf("New manga added: %s", m.Title)))
	return m, nil
}

func (s *catalogService) UpdateManga(ctx context.Context, id string, req *models.UpdateMangaRequest) (*models.Manga, error) {
	m, err := s.manga.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		m.Title = strings.TrimSpace(*req.Title)
	}
	if req.Author != nil {
		m.Author = strings.TrimSpace(*req.Author)
	}
	if req.Status != nil {
		m.Status = *req.Status
	}
	if req.TotalChapters != nil {
		m.TotalChapters = *req.TotalChapters
	}
	if req.Genres != nil {
		m.Genres = req.Genres
	}
	if req.Description != nil {
		m.Description = *req.Description
	}
	if req.CoverURL != nil {
		m.CoverURL = *req.CoverURL
	}

	if err := models.ValidateManga(m); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := s.manga.Update(ctx, m); err != nil {
		return nil, err
	}

	s.sink.PublishNotification(ctx, models.NewNotification(
		models.NotificationMangaUpdate, m.ID,
		fmt.Sprintf("%s was updated", m.Title)))
	return m, nil
}

func (s *catalogService) DeleteManga(ctx context.Context, id string) error {
	return s.manga.Delete(ctx, id)
}

func (s *catalogService) ListGenres(ctx context.Context) ([]string, error) {
	genres, err := s.manga.ListGenres(ctx)
	if err != nil {
		return nil, err
	}
	if genres == nil {
		genres = []string{}
	}
	return genres, nil
}

func (s *catalogService) Popular(ctx context.Context, limit int) ([]models.Manga, error) {
	result, err := s.manga.Popular(ctx, limit)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = []models.Manga{}
	}
	return result, nil
}

func (s *catalogService) Stats(ctx context.Context) (*models.CatalogStats, error) {
	return s.manga.Stats(ctx)
}

func (s *catalogService) AddChapter(ctx context.Context, mangaID string, ch *models.Chapter) (*models.Chapter, error) {
	m, err := s.manga.GetByID(ctx, mangaID)
	if err != nil {
		return nil, err
	}
	if ch.Number < 0 {
		return nil, models.NewValidationError("chapter number must not be negative")
	}
	if ch.IsExternal && ch.ExternalURL == "" {
		return nil, models.NewValidationError("external chapters require external_url")
	}

	ch.MangaID = m.ID
	if ch.ID == "" {
		ch.ID = uuid.New().String()
	}
	if ch.Language == "" {
		ch.Language = "en"
	}
	if ch.PublishedAt.IsZero() {
		ch.PublishedAt = time.Now().UTC()
	}
	if err := s.manga.CreateChapter(ctx, ch); err != nil {
		return nil, err
	}

	s.sink.PublishNotification(ctx, models.NewNotification(
		models.NotificationChapterRelease, m.ID,
		fmt.Sprintf("%s: chapter %g released", m.Title, ch.Number)))
	return ch, nil
}

func (s *catalogService) ListChapters(ctx context.Context, mangaID string, languages []string, limit, offset int) ([]models.Chapter, int, error) {
	if _, err := s.manga.GetByID(ctx, mangaID); err != nil {
		return nil, 0, err
	}
	chapters, total, err := s.manga.ListChapters(ctx, mangaID, languages, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if chapters == nil {
		chapters = []models.Chapter{}
	}
	return chapters, total, nil
}

func (s *catalogService) GetChapterPages(ctx context.Context, chapterID, source string) (*models.Chapter, error) {
	return s.manga.GetChapter(ctx, chapterID, source)
}

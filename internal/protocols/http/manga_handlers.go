package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"mangahub/internal/core"
	"mangahub/pkg/models"
)

// MangaHandlers serves the catalog read surface and the admin write
// surface.
type MangaHandlers struct {
	catalog core.CatalogService
	rating  core.RatingService
}

// NewMangaHandlers creates the catalog handlers.
func NewMangaHandlers(catalog core.CatalogService, rating core.RatingService) *MangaHandlers {
	return &MangaHandlers{catalog: catalog, rating: rating}
}

func (h *MangaHandlers) Search(c *gin.Context) {
	req := models.MangaSearchRequest{
		Query:  c.Query("query"),
		Status: c.Query("status"),
		Sort:   c.DefaultQuery("sort", "title"),
	}
	if genres := c.Query("genres"); genres != "" {
		req.Genres = strings.Split(genres, ",")
	}
	req.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	req.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	resp, err := h.catalog.Search(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.OK("search results", resp))
}

func (h *MangaHandlers) GetByID(c *gin.Context) {
	m, err := h.catalog.GetManga(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.OK("manga", m))
}

func (h *MangaHandlers) ListGenres(c *gin.Context) {
	genres, err := h.catalog.ListGenres(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.OK("genres", genres))
}

func (h *MangaHandlers) Popular(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	result, err := h.catalog.Popular(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.OK("popular manga", result))
}

func (h *MangaHandlers) Stats(c *gin.Context) {
	stats, err := h.catalog.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.OK("catalog stats", stats))
}

func (h *MangaHandlers) ListChapters(c *gin.Context) {
	var languages []string
	if langs := c.Query("languages"); langs != "" {
		languages = strings.Split(langs, ",")
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	chapters, total, err := h.catalog.ListChapters(c.Request.Context(), c.Param("id"), languages, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.OK("chapters", gin.H{
		"chapters":   chapters,
		"pagination": models.NewPaginationMeta(total, limit, offset),
	}))
}

func (h *MangaHandlers) GetChapterPages(c *gin.Context) {
	ch, err := h.catalog.GetChapterPages(c.Request.Context(), c.Param("chapter_id"), c.Query("source"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.OK("chapter pages", ch))
}

// GetRatingStats includes the caller's own rating when authenticated
// (optional auth).
func (h *MangaHandlers) GetRatingStats(c *gin.Context) {
	stats, err := h.rating.Stats(c.Request.Context(), c.Param("id"), c.GetString(ctxUserID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.OK("rating stats", stats))
}

func (h *MangaHandlers) Rate(c *gin.Context) {
	var req models.RateMangaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Fail("invalid request body"))
		return
	}
	stats, err := h.rating.Rate(c.Request.Context(), c.GetString(ctxUserID), c.Param("id"), req.Rating)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.OK("rating recorded", stats))
}

func (h *MangaHandlers) Unrate(c *gin.Context) {
	stats, err := h.rating.Unrate(c.Request.Context(), c.GetString(ctxUserID), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.OK("rating removed", stats))
}

// Admin write surface.

func (h *MangaHandlers) Create(c *gin.Context) {
	var req models.CreateMangaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Fail("invalid request body"))
		return
	}
	m, err := h.catalog.CreateManga(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.OK("manga created", m))
}

func (h *MangaHandlers) Update(c *gin.Context) {
	var req models.UpdateMangaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Fail("invalid request body"))
		return
	}
	m, err := h.catalog.UpdateManga(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.OK("manga updated", m))
}

func (h *MangaHandlers) Delete(c *gin.Context) {
	if err := h.catalog.DeleteManga(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.OK("manga deleted", nil))
}

func (h *MangaHandlers) AddChapter(c *gin.Context) {
	var ch models.Chapter
	if err := c.ShouldBindJSON(&ch); err != nil {
		c.JSON(http.StatusBadRequest, models.Fail("invalid request body"))
		return
	}
	created, err := h.catalog.AddChapter(c.Request.Context(), c.Param("id"), &ch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.OK("chapter added", created))
}

package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mangahub/internal/core"
	"mangahub/pkg/models"
)

// UserHandlers serves the library and progress surface.
type UserHandlers struct {
	library  core.LibraryService
	progress core.ProgressService
}

// NewUserHandlers creates the library/progress handlers.
func NewUserHandlers(library core.LibraryService, progress core.ProgressService) *UserHandlers {
	return &UserHandlers{library: library, progress: progress}
}

func (h *UserHandlers) GetLibrary(c *gin.Context) {
	items, err := h.library.List(c.Request.Context(), c.GetString(ctxUserID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.OK("library", items))
}

func (h *UserHandlers) GetLibraryFiltered(c *gin.Context) {
	items, err := h.library.ListFiltered(c.Request.Context(), c.GetString(ctxUserID), c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.OK("library", items))
}

func (h *UserHandlers) GetLibraryStats(c *gin.Context) {
	stats, err := h.library.Stats(c.Request.Context(), c.GetString(ctxUserID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.OK("library stats", stats))
}

func (h *UserHandlers) AddToLibrary(c *gin.Context) {
	var req models.AddToLibraryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Fail("invalid request body"))
		return
	}
	entry, err := h.library.Add(c.Request.Context(), c.GetString(ctxUserID), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.OK("added to library", entry))
}

func (h *UserHandlers) RemoveFromLibrary(c *gin.Context) {
	if err := h.library.Remove(c.Request.Context(), c.GetString(ctxUserID), c.Param("manga_id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.OK("removed from library", nil))
}

func (h *UserHandlers) UpdateProgress(c *gin.Context) {
	var req models.UpdateProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Fail("invalid request body"))
		return
	}
	event, err := h.progress.Update(c.Request.Context(),
		c.GetString(ctxUserID), c.GetString(ctxUsername), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.OK("progress updated", event))
}

func (h *UserHandlers) BatchUpdateProgress(c *gin.Context) {
	var req models.BatchUpdateProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Fail("invalid request body"))
		return
	}
	events, err := h.progress.BatchUpdate(c.Request.Context(),
		c.GetString(ctxUserID), c.GetString(ctxUsername), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.OK("progress updated", gin.H{
		"applied": len(events),
		"events":  events,
	}))
}

func (h *UserHandlers) GetProgress(c *gin.Context) {
	records, err := h.progress.ListByUser(c.Request.Context(), c.GetString(ctxUserID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.OK("progress", records))
}

// Package media serves the caller's tracked media items. Every query is
// scoped by the authenticated user's id; a bare item id never grants access.
package media

import (
	"fmt"
	"net/http"
	"strconv"

	"sceneit-backend/internal/apperror"
	"sceneit-backend/internal/middleware"
	"sceneit-backend/internal/models"
	"sceneit-backend/internal/store"

	"github.com/gin-gonic/gin"
)

// Handler exposes the /media routes.
type Handler struct {
	mediaStore store.MediaStore
}

func NewHandler(mediaStore store.MediaStore) *Handler {
	return &Handler{mediaStore: mediaStore}
}

func fail(c *gin.Context, err error) {
	apperror.Abort(c, apperror.FromStore(err))
}

// principal aborts with the entry-point 401 when the route was mounted
// without RequireAuth.
func principal(c *gin.Context) (*models.Principal, bool) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		fail(c, apperror.Unauthenticated())
	}
	return p, ok
}

func (h *Handler) List(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	medias, err := h.mediaStore.GetMediaByUser(c.Request.Context(), p.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.MediaListResponse{Medias: medias})
}

func (h *Handler) Get(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, apperror.InvalidMediaID())
		return
	}

	media, err := h.mediaStore.GetMediaByUserAndID(c.Request.Context(), p.ID, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, media)
}

func (h *Handler) Add(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req models.MediaAddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Abort(c, apperror.FromBinding(err))
		return
	}
	completedAt, err := models.ParseInstant(req.CompletionTimestamp)
	if err != nil {
		fail(c, apperror.InvalidTimestamp())
		return
	}

	media := &models.Media{
		UserID:               p.ID,
		Title:                req.Title,
		Type:                 req.Type,
		CompletionTimestamps: models.NewCompletionSet(completedAt),
		ImageURL:             req.ImageURL,
		SourceType:           req.SourceType,
		SourceID:             req.SourceID,
	}
	if err := h.mediaStore.CreateMedia(c.Request.Context(), media); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{
		Message: fmt.Sprintf("Media titled, `%s`, created successfully.", req.Title),
	})
}

// AddRewatch records one more completion. Repeating an instant is a no-op.
func (h *Handler) AddRewatch(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req models.MediaAddRewatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Abort(c, apperror.FromBinding(err))
		return
	}
	completedAt, err := models.ParseInstant(req.CompletionTimestamp)
	if err != nil {
		fail(c, apperror.InvalidTimestamp())
		return
	}

	if err := h.mediaStore.AddCompletion(c.Request.Context(), p.ID, req.ID, completedAt); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{Message: "Completion timestamp added!"})
}

// Update replaces every mutable field, the completion set included.
func (h *Handler) Update(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req models.MediaUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Abort(c, apperror.FromBinding(err))
		return
	}
	completions, err := models.ParseInstants(req.CompletionTimestamps)
	if err != nil {
		fail(c, apperror.InvalidTimestamp())
		return
	}
	ctx := c.Request.Context()

	err = h.mediaStore.WithTx(ctx, func(medias store.MediaStore) error {
		media, err := medias.GetMediaByUserAndID(ctx, p.ID, req.ID)
		if err != nil {
			return err
		}
		media.Title = req.Title
		media.Type = req.Type
		media.CompletionTimestamps = models.NewCompletionSet(completions...)
		media.ImageURL = req.ImageURL
		media.SourceType = req.SourceType
		media.SourceID = req.SourceID
		return medias.UpdateMedia(ctx, media)
	})
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{Message: "Media updated successfully!"})
}

func (h *Handler) Delete(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req models.MediaDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Abort(c, apperror.FromBinding(err))
		return
	}

	if err := h.mediaStore.DeleteMedia(c.Request.Context(), p.ID, req.ID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: "Media deleted successfully!"})
}

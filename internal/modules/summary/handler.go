package summary

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medvault/portal/internal/middleware"
	"github.com/medvault/portal/internal/modules/processing/markdown"
	"github.com/medvault/portal/internal/pkg/response"
)

// FolderAccess checks folder ownership.
type FolderAccess interface {
	OwnsFolder(ctx context.Context, userID, folderID string) (bool, error)
}

type Handler struct {
	svc     *Service
	folders FolderAccess
}

func NewHandler(svc *Service, folders FolderAccess) *Handler {
	return &Handler{svc: svc, folders: folders}
}

type summaryResponse struct {
	FolderID    string     `json:"folder_id"`
	Summary     string     `json:"summary"`
	SummaryHTML string     `json:"summary_html"`
	LastUpdated *time.Time `json:"last_updated"`
	Cached      bool       `json:"cached"`
	Warning     string     `json:"warning,omitempty"`
}

type statusResponse struct {
	FolderID string `json:"folder_id"`
	Stale    bool   `json:"stale"`
	Reason   Reason `json:"reason"`
}

// RegisterRoutes mounts the summary endpoints. limitMW guards requests that
// can reach the model.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, limitMW gin.HandlerFunc) {
	if limitMW == nil {
		limitMW = func(c *gin.Context) { c.Next() }
	}
	folders := rg.Group("/folders", authMW)
	folders.GET("/:id/summary", onlyWhenForced(limitMW), h.get)
	folders.POST("/:id/summary/generate", limitMW, h.generate)
	folders.GET("/:id/summary/status", h.status)
	folders.DELETE("/:id/summary", h.forget)
}

func (h *Handler) get(c *gin.Context) {
	folderID, ok := h.authorize(c)
	if !ok {
		return
	}
	res, err := h.svc.GetOrGenerateSummary(c.Request.Context(), folderID, forceRequested(c))
	h.respond(c, folderID, res, err)
}

func (h *Handler) generate(c *gin.Context) {
	folderID, ok := h.authorize(c)
	if !ok {
		return
	}
	res, err := h.svc.GetOrGenerateSummary(c.Request.Context(), folderID, true)
	h.respond(c, folderID, res, err)
}

// status reports whether the next read would regenerate, without calling the model.
func (h *Handler) status(c *gin.Context) {
	folderID, ok := h.authorize(c)
	if !ok {
		return
	}
	d := h.svc.NeedsRegeneration(c.Request.Context(), folderID, false)
	response.OK(c, statusResponse{FolderID: folderID, Stale: d.Regenerate, Reason: d.Reason})
}

func (h *Handler) forget(c *gin.Context) {
	folderID, ok := h.authorize(c)
	if !ok {
		return
	}
	if err := h.svc.Forget(c.Request.Context(), folderID); err != nil {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) authorize(c *gin.Context) (string, bool) {
	folderID := c.Param("id")
	owns, err := h.folders.OwnsFolder(c.Request.Context(), middleware.CurrentUserID(c), folderID)
	if err != nil {
		response.InternalError(c, err)
		return "", false
	}
	if !owns {
		response.NotFoundMsg(c, "folder not found")
		return "", false
	}
	return folderID, true
}

func (h *Handler) respond(c *gin.Context, folderID string, res Result, err error) {
	out := summaryResponse{
		FolderID:    folderID,
		Summary:     res.Text,
		SummaryHTML: markdown.Render(res.Text),
		LastUpdated: res.LastUpdated,
		Cached:      res.Cached,
	}
	if err != nil {
		_ = c.Error(err)
		out.Warning = "summary was generated but could not be saved"
	}
	response.OK(c, out)
}

func forceRequested(c *gin.Context) bool {
	return parseBool(c.Query("force")) || parseBool(c.Query("generate_summary"))
}

func onlyWhenForced(mw gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if forceRequested(c) {
			mw(c)
			return
		}
		c.Next()
	}
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

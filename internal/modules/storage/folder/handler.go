package folder

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/medvault/portal/internal/middleware"
	"github.com/medvault/portal/internal/pkg/pagination"
	"github.com/medvault/portal/internal/pkg/response"
)

// Handler serves folder and document endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	folders := rg.Group("/folders", authMW)
	folders.GET("", h.listFolders)
	folders.POST("", h.createFolder)
	folders.GET("/:id", h.getFolder)
	folders.DELETE("/:id", h.deleteFolder)
	folders.GET("/:id/documents", h.listDocuments)
	folders.POST("/:id/documents", h.upload)

	docs := rg.Group("/documents", authMW)
	docs.GET("/:id/content", h.download)
	docs.PATCH("/:id", h.moveDocument)
	docs.DELETE("/:id", h.deleteDocument)
}

func (h *Handler) listFolders(c *gin.Context) {
	var parentID *string
	if raw := strings.TrimSpace(c.Query("parent_id")); raw != "" {
		parentID = &raw
	}
	folders, err := h.svc.ListFolders(c.Request.Context(), middleware.CurrentUserID(c), parentID)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, folders)
}

func (h *Handler) createFolder(c *gin.Context) {
	var dto createFolderDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	f, err := h.svc.CreateFolder(c.Request.Context(), middleware.CurrentUserID(c), dto.Name, dto.ParentID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, f)
}

func (h *Handler) getFolder(c *gin.Context) {
	f, err := h.svc.GetFolder(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, f)
}

func (h *Handler) deleteFolder(c *gin.Context) {
	if err := h.svc.DeleteFolder(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) listDocuments(c *gin.Context) {
	docs, pag, err := h.svc.PageDocuments(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), pagination.FromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Paged(c, docs, pag)
}

func (h *Handler) upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}
	if max := h.svc.MaxUploadBytes(); max > 0 && fileHeader.Size > max {
		response.RequestEntityTooLarge(c, ErrFileTooLarge.Error())
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	defer file.Close()

	var r io.Reader = file
	if max := h.svc.MaxUploadBytes(); max > 0 {
		r = io.LimitReader(file, max+1)
	}
	payload, err := io.ReadAll(r)
	if err != nil {
		response.InternalError(c, err)
		return
	}

	doc, err := h.svc.Upload(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), UploadInput{
		Filename:    fileHeader.Filename,
		Description: c.PostForm("description"),
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        payload,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, doc)
}

func (h *Handler) download(c *gin.Context) {
	doc, data, err := h.svc.ReadDocument(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	contentType := doc.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", `attachment; filename="`+strings.ReplaceAll(doc.Filename, `"`, "")+`"`)
	c.Header("Cache-Control", "private, no-store")
	c.Data(http.StatusOK, contentType, data)
}

func (h *Handler) moveDocument(c *gin.Context) {
	var dto moveDocumentDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	doc, err := h.svc.MoveDocument(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), strings.TrimSpace(dto.FolderID))
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, doc)
}

func (h *Handler) deleteDocument(c *gin.Context) {
	if err := h.svc.DeleteDocument(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	response.NoContent(c)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrFolderNotFound), errors.Is(err, ErrDocumentNotFound):
		response.NotFoundMsg(c, err.Error())
	case errors.Is(err, ErrDuplicateContent):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrFileTooLarge):
		response.RequestEntityTooLarge(c, err.Error())
	case errors.Is(err, ErrUnsupportedType), errors.Is(err, ErrInvalidName):
		response.UnprocessableEntity(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}

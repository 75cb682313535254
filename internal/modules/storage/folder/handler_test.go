package folder

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/medvault/portal/internal/middleware"
	"github.com/medvault/portal/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(f *fixture, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	auth := func(c *gin.Context) {
		c.Set(middleware.ContextKeyUserID, userID)
		c.Next()
	}
	NewHandler(f.svc).RegisterRoutes(r.Group("/api/v1"), auth)
	return r
}

func multipartBody(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.WriteField("description", "uploaded in test"))
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestHandlerFolderLifecycle(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f, f.user.ID)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/folders", bytes.NewBufferString(`{"name":"Imaging"}`)))
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.FolderModel
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "Imaging", created.Name)

	body, contentType := multipartBody(t, "note.txt", []byte("MRI scheduled"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/folders/"+created.ID+"/documents", body)
	req.Header.Set("Content-Type", contentType)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)
	var doc models.DocumentModel
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "note.txt", doc.Filename)
	assert.Equal(t, "uploaded in test", doc.Description)

	body, contentType = multipartBody(t, "again.txt", []byte("MRI scheduled"))
	req = httptest.NewRequest(http.MethodPost, "/api/v1/folders/"+created.ID+"/documents", body)
	req.Header.Set("Content-Type", contentType)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/folders/"+created.ID+"/documents", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Data []models.DocumentModel `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Data, 1)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+doc.ID+"/content", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MRI scheduled", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "note.txt")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/folders/"+created.ID, nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/folders/"+created.ID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerRejectsUnsupportedUpload(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f, f.user.ID)
	folder, err := f.svc.CreateFolder(t.Context(), f.user.ID, "Labs", nil)
	require.NoError(t, err)

	body, contentType := multipartBody(t, "tool.exe", []byte("MZ"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/folders/"+folder.ID+"/documents", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	body, contentType = multipartBody(t, "big.txt", bytes.Repeat([]byte("a"), 2048))
	req = httptest.NewRequest(http.MethodPost, "/api/v1/folders/"+folder.ID+"/documents", body)
	req.Header.Set("Content-Type", contentType)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestHandlerHidesOtherUsersFolders(t *testing.T) {
	f := newFixture(t)
	folder, err := f.svc.CreateFolder(t.Context(), f.user.ID, "Labs", nil)
	require.NoError(t, err)
	r := newTestRouter(f, "intruder")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/folders/"+folder.ID+"/documents", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerMoveDocument(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f, f.user.ID)
	ctx := t.Context()

	labs, err := f.svc.CreateFolder(ctx, f.user.ID, "Labs", nil)
	require.NoError(t, err)
	archive, err := f.svc.CreateFolder(ctx, f.user.ID, "Archive", nil)
	require.NoError(t, err)
	doc, err := f.svc.Upload(ctx, f.user.ID, labs.ID, UploadInput{Filename: "panel.txt", Data: []byte("LDL 96")})
	require.NoError(t, err)
	other, err := f.svc.Upload(ctx, f.user.ID, labs.ID, UploadInput{Filename: "other.txt", Data: []byte("HDL 52")})
	require.NoError(t, err)
	_, err = f.svc.Upload(ctx, f.user.ID, archive.ID, UploadInput{Filename: "copy.txt", Data: []byte("HDL 52")})
	require.NoError(t, err)

	patch := func(id, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/api/v1/documents/"+id, bytes.NewBufferString(body)))
		return w
	}

	w := patch(doc.ID, `{"folder_id":"`+archive.ID+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var moved models.DocumentModel
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &moved))
	assert.Equal(t, archive.ID, moved.FolderID)

	assert.Equal(t, http.StatusConflict, patch(other.ID, `{"folder_id":"`+archive.ID+`"}`).Code)
	assert.Equal(t, http.StatusBadRequest, patch(other.ID, `{}`).Code)
	assert.Equal(t, http.StatusNotFound, patch(other.ID, `{"folder_id":"missing"}`).Code)
	assert.Equal(t, http.StatusNotFound, patch("missing", `{"folder_id":"`+archive.ID+`"}`).Code)
}

package response

import (
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
)

// ErrorBody is the envelope of every non-2xx API response.
type ErrorBody struct {
	OK      int    `json:"ok"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Pagination metadata returned with paged lists.
type Pagination struct {
	Total       int64 `json:"total"`
	CurrentPage int   `json:"current_page"`
	TotalPage   int   `json:"total_page"`
	Size        int   `json:"size"`
	HasNextPage bool  `json:"has_next_page"`
}

type pagedResponse struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// OK sends a 200 response. Slices are wrapped in {data: [...]}.
func OK(c *gin.Context, data interface{}) {
	if data != nil && reflect.ValueOf(data).Kind() == reflect.Slice {
		c.JSON(http.StatusOK, gin.H{"data": data})
		return
	}
	c.JSON(http.StatusOK, data)
}

func Paged(c *gin.Context, data interface{}, pagination Pagination) {
	c.JSON(http.StatusOK, pagedResponse{Data: data, Pagination: pagination})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error aborts the request with the error envelope.
func Error(c *gin.Context, status int, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, ErrorBody{OK: 0, Code: status, Message: message})
}

func BadRequest(c *gin.Context, message string) { Error(c, http.StatusBadRequest, message) }

func Unauthorized(c *gin.Context) { Error(c, http.StatusUnauthorized, "authentication required") }

func ForbiddenMsg(c *gin.Context, message string) { Error(c, http.StatusForbidden, message) }

func NotFound(c *gin.Context) { Error(c, http.StatusNotFound, "not found") }

func NotFoundMsg(c *gin.Context, message string) { Error(c, http.StatusNotFound, message) }

func MethodNotAllowed(c *gin.Context) { Error(c, http.StatusMethodNotAllowed, "method not allowed") }

func Conflict(c *gin.Context, message string) { Error(c, http.StatusConflict, message) }

func RequestEntityTooLarge(c *gin.Context, message string) {
	Error(c, http.StatusRequestEntityTooLarge, message)
}

func UnprocessableEntity(c *gin.Context, message string) {
	Error(c, http.StatusUnprocessableEntity, message)
}

// TooManyRequests sets Retry-After (seconds) when known.
func TooManyRequests(c *gin.Context, retryAfter string) {
	if retryAfter != "" {
		c.Header("Retry-After", retryAfter)
	}
	Error(c, http.StatusTooManyRequests, "too many requests, slow down")
}

// InternalError hides err from the client; callers log it.
func InternalError(c *gin.Context, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	Error(c, http.StatusInternalServerError, "internal server error")
}

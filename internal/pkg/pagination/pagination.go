package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/medvault/portal/internal/pkg/response"
	"gorm.io/gorm"
)

const (
	DefaultPage = 1
	DefaultSize = 20
	MaxSize     = 100
)

// Query is a parsed page request.
type Query struct {
	Page int
	Size int
}

// Offset is the number of rows skipped before this page.
func (q Query) Offset() int { return (q.Page - 1) * q.Size }

// FromContext reads ?page and ?size, clamping them to sane bounds.
func FromContext(c *gin.Context) Query {
	return Normalize(parseIntOr(c.Query("page"), DefaultPage), parseIntOr(c.Query("size"), DefaultSize))
}

// Normalize clamps page and size.
func Normalize(page, size int) Query {
	if page < 1 {
		page = DefaultPage
	}
	if size < 1 {
		size = DefaultSize
	}
	if size > MaxSize {
		size = MaxSize
	}
	return Query{Page: page, Size: size}
}

// Paginate counts the rows matched by db, then loads one page into dest.
func Paginate[T any](db *gorm.DB, q Query, dest *[]T) (response.Pagination, error) {
	var total int64
	if err := db.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return response.Pagination{}, err
	}
	if err := db.Offset(q.Offset()).Limit(q.Size).Find(dest).Error; err != nil {
		return response.Pagination{}, err
	}

	totalPage := int((total + int64(q.Size) - 1) / int64(q.Size))
	return response.Pagination{
		Total:       total,
		CurrentPage: q.Page,
		TotalPage:   totalPage,
		Size:        q.Size,
		HasNextPage: q.Page < totalPage,
	}, nil
}

func parseIntOr(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

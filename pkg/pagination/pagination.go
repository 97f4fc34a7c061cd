package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params is a clamped page request.
type Params struct {
	Page  int
	Limit int
}

// Parse reads page and limit from the query string. Missing or malformed
// values fall back to the defaults and limit is capped at MaxLimit.
func Parse(c *gin.Context) Params {
	return New(atoiOr(c.Query("page"), DefaultPage), atoiOr(c.Query("limit"), DefaultLimit))
}

// New clamps page and limit to their valid ranges.
func New(page, limit int) Params {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Params{Page: page, Limit: limit}
}

// Offset is the number of rows to skip for this page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

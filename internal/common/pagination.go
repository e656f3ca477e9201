package common

import (
	"net/http"
	"strconv"
)

// Pagination is the metadata attached to list responses.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
}

// ParsePagination reads ?page and ?limit. Non-positive or malformed values
// fall back to page 1 and defaultPerPage. The limit is capped at
// maxPerPage when that is positive.
func ParsePagination(r *http.Request, defaultPerPage, maxPerPage int) (page, perPage int) {
	q := r.URL.Query()
	page = positiveOr(AtoiDefault(q.Get("page"), 1), 1)
	perPage = positiveOr(AtoiDefault(q.Get("limit"), defaultPerPage), defaultPerPage)
	if maxPerPage > 0 {
		perPage = min(perPage, maxPerPage)
	}
	return page, perPage
}

func positiveOr(v, fallback int) int {
	if v < 1 {
		return fallback
	}
	return v
}

// Offset is the zero based row offset of page.
func Offset(page, perPage int) int {
	return max(page-1, 0) * perPage
}

// AtoiDefault parses value, returning def when it is not an integer.
func AtoiDefault(value string, def int) int {
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	return def
}

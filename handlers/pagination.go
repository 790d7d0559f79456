package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// PaginationParams is a keyset page request: rows strictly older than
// Before, newest first.
type PaginationParams struct {
	Limit  int
	Before *time.Time
}

type CursorResponse[T any] struct {
	Data       []T    `json:"data"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

func ParsePagination(c *gin.Context) PaginationParams {
	p := PaginationParams{Limit: DefaultLimit}

	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 {
		p.Limit = min(l, MaxLimit)
	}
	if t, err := time.Parse(time.RFC3339Nano, c.Query("before")); err == nil {
		p.Before = &t
	}
	return p
}

// cursorKey renders Before for use in cache keys.
func (p PaginationParams) cursorKey() string {
	if p.Before == nil {
		return ""
	}
	return p.Before.UTC().Format(time.RFC3339Nano)
}

// Page trims rows fetched with Limit+1 to one page and derives the next
// cursor from the last kept row.
func Page[T any](rows []T, limit int, ts func(T) time.Time) CursorResponse[T] {
	resp := CursorResponse[T]{Data: rows}
	if len(rows) > limit {
		resp.Data = rows[:limit]
		resp.HasMore = true
	}
	if resp.Data == nil {
		resp.Data = []T{}
	}
	if resp.HasMore && len(resp.Data) > 0 {
		resp.NextCursor = ts(resp.Data[len(resp.Data)-1]).UTC().Format(time.RFC3339Nano)
	}
	return resp
}

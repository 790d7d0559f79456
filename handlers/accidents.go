package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cityflow/models"
	"cityflow/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const accidentCacheTTL = 15 * time.Second

// AccidentHandler serves the records written by the ingestor.
type AccidentHandler struct {
	db    *gorm.DB
	cache *services.CacheService
	table string
}

// NewAccidentHandler reads from table, the ingestor's insert collection.
func NewAccidentHandler(db *gorm.DB, cache *services.CacheService, table string) *AccidentHandler {
	return &AccidentHandler{db: db, cache: cache, table: table}
}

func (h *AccidentHandler) List(c *gin.Context) {
	p := ParsePagination(c)
	division := strings.TrimSpace(c.Query("division"))
	cacheKey := fmt.Sprintf("accidents:%s:%s:%d:%s", h.table, division, p.Limit, p.cursorKey())

	var cached CursorResponse[models.Accident]
	if err := h.cache.Get(c.Request.Context(), cacheKey, &cached); err == nil {
		c.JSON(http.StatusOK, cached)
		return
	}

	query := h.db.WithContext(c.Request.Context()).Table(h.table).
		Order("datetime_add DESC").Limit(p.Limit + 1)
	if p.Before != nil {
		query = query.Where("datetime_add < ?", *p.Before)
	}
	if division != "" {
		query = query.Where("division = ?", division)
	}

	var rows []models.Accident
	if err := query.Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database query failed"})
		return
	}

	resp := Page(rows, p.Limit, func(a models.Accident) time.Time { return a.DateTimeAdd })
	go h.cache.Set(context.Background(), cacheKey, resp, accidentCacheTTL)

	c.JSON(http.StatusOK, resp)
}

func (h *AccidentHandler) Get(c *gin.Context) {
	var a models.Accident
	err := h.db.WithContext(c.Request.Context()).Table(h.table).
		Where("event_no = ?", c.Param("eventNo")).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "accident not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database query failed"})
		return
	}
	c.JSON(http.StatusOK, a)
}

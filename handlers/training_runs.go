package handlers

import (
	"errors"
	"net/http"
	"time"

	"cityflow/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TrainingRunHandler lists the runs recorded by the trainer.
type TrainingRunHandler struct {
	db *gorm.DB
}

func NewTrainingRunHandler(db *gorm.DB) *TrainingRunHandler {
	return &TrainingRunHandler{db: db}
}

func (h *TrainingRunHandler) List(c *gin.Context) {
	p := ParsePagination(c)

	query := h.db.WithContext(c.Request.Context()).Model(&models.TrainingRun{}).
		Order("created_at DESC").Limit(p.Limit + 1)
	if p.Before != nil {
		query = query.Where("created_at < ?", *p.Before)
	}

	var rows []models.TrainingRun
	if err := query.Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database query failed"})
		return
	}
	c.JSON(http.StatusOK, Page(rows, p.Limit, func(r models.TrainingRun) time.Time { return r.CreatedAt }))
}

func (h *TrainingRunHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}

	var run models.TrainingRun
	err = h.db.WithContext(c.Request.Context()).First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "training run not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database query failed"})
		return
	}
	c.JSON(http.StatusOK, run)
}

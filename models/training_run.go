package models

import (
	"time"

	"github.com/google/uuid"
)

type TrainingRun struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"created_at"`
	Positives      int       `gorm:"column:positives" json:"positives"`
	Negatives      int       `gorm:"column:negatives" json:"negatives"`
	TrainRows      int       `gorm:"column:train_rows" json:"train_rows"`
	TestRows       int       `gorm:"column:test_rows" json:"test_rows"`
	TestFraction   float64   `gorm:"column:test_fraction" json:"test_fraction"`
	Seed           int64     `gorm:"column:seed" json:"seed"`
	MissingColumns string    `gorm:"column:missing_columns" json:"missing_columns"`
	OutputDir      string    `gorm:"column:output_dir" json:"output_dir"`
}

func (TrainingRun) TableName() string { return "training_runs" }

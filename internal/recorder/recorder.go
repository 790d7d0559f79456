// Package recorder persists assembled training sets for the external model
// trainer: one CSV file per partition and a row-per-sample Postgres table.
package recorder

import (
	"context"
	"time"

	"github.com/google/uuid"

	"cityflow/internal/trainset"
)

// Run describes one training-set build.
type Run struct {
	ID             uuid.UUID `db:"id" json:"id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	Positives      int       `db:"positives" json:"positives"`
	Negatives      int       `db:"negatives" json:"negatives"`
	TrainRows      int       `db:"train_rows" json:"train_rows"`
	TestRows       int       `db:"test_rows" json:"test_rows"`
	TestFraction   float64   `db:"test_fraction" json:"test_fraction"`
	Seed           int64     `db:"seed" json:"seed"`
	MissingColumns string    `db:"missing_columns" json:"missing_columns"`
	OutputDir      string    `db:"output_dir" json:"output_dir"`
}

// NewRun stamps a fresh run id and creation time.
func NewRun(positives, negatives int, set trainset.TrainingSet) Run {
	return Run{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Positives: positives,
		Negatives: negatives,
		TrainRows: len(set.XTrain),
		TestRows:  len(set.XTest),
	}
}

type Recorder interface {
	Record(ctx context.Context, run Run, set trainset.TrainingSet) error
}

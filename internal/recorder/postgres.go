package recorder

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"cityflow/internal/trainset"
)

// sampleBatch keeps each multi-row insert well under the Postgres bind limit.
const sampleBatch = 1000

type sample struct {
	RunID     uuid.UUID `db:"run_id"`
	Partition string    `db:"partition"`
	RowIndex  int       `db:"row_index"`
	Features  []byte    `db:"features"`
	Label     int       `db:"label"`
}

// Postgres stores runs in training_runs and their rows in training_samples.
type Postgres struct {
	db *sqlx.DB
}

func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

// Connect opens dsn with the lib/pq driver.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect training db: %w", err)
	}
	return db, nil
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS training_runs (
			id              UUID PRIMARY KEY,
			created_at      TIMESTAMPTZ NOT NULL,
			positives       INTEGER NOT NULL,
			negatives       INTEGER NOT NULL,
			train_rows      INTEGER NOT NULL,
			test_rows       INTEGER NOT NULL,
			test_fraction   DOUBLE PRECISION NOT NULL,
			seed            BIGINT NOT NULL,
			missing_columns TEXT NOT NULL DEFAULT '',
			output_dir      TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS training_samples (
			run_id    UUID NOT NULL REFERENCES training_runs (id) ON DELETE CASCADE,
			partition TEXT NOT NULL,
			row_index INTEGER NOT NULL,
			features  JSONB NOT NULL,
			label     SMALLINT NOT NULL,
			PRIMARY KEY (run_id, partition, row_index)
		);`
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create training tables: %w", err)
	}
	return nil
}

func (p *Postgres) Record(ctx context.Context, run Run, set trainset.TrainingSet) error {
	samples, err := buildSamples(run.ID, set)
	if err != nil {
		return err
	}

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	const insertRun = `
		INSERT INTO training_runs (
			id, created_at, positives, negatives, train_rows, test_rows,
			test_fraction, seed, missing_columns, output_dir
		) VALUES (
			:id, :created_at, :positives, :negatives, :train_rows, :test_rows,
			:test_fraction, :seed, :missing_columns, :output_dir
		)`
	if _, err := tx.NamedExecContext(ctx, insertRun, run); err != nil {
		return fmt.Errorf("insert training run: %w", err)
	}

	const insertSample = `
		INSERT INTO training_samples (run_id, partition, row_index, features, label)
		VALUES (:run_id, :partition, :row_index, :features, :label)`
	for start := 0; start < len(samples); start += sampleBatch {
		end := min(start+sampleBatch, len(samples))
		if _, err := tx.NamedExecContext(ctx, insertSample, samples[start:end]); err != nil {
			return fmt.Errorf("insert training samples: %w", err)
		}
	}
	return tx.Commit()
}

// buildSamples flattens both partitions into rows keyed by feature name.
func buildSamples(runID uuid.UUID, set trainset.TrainingSet) ([]sample, error) {
	out := make([]sample, 0, len(set.XTrain)+len(set.XTest))
	add := func(partition string, x [][]any, y []int) error {
		for i, row := range x {
			m := make(map[string]any, len(row))
			for j, v := range row {
				m[set.FeatureNames[j]] = v
			}
			b, err := json.Marshal(m)
			if err != nil {
				return fmt.Errorf("encode %s row %d: %w", partition, i, err)
			}
			out = append(out, sample{RunID: runID, Partition: partition, RowIndex: i, Features: b, Label: y[i]})
		}
		return nil
	}
	if err := add("train", set.XTrain, set.YTrain); err != nil {
		return nil, err
	}
	if err := add("test", set.XTest, set.YTest); err != nil {
		return nil, err
	}
	return out, nil
}

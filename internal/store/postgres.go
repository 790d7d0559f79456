package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cityflow/internal/accident"
)

var recordColumns = []string{
	"event_no", "datetime_add", "division", "address", "event_type", "event_desc",
	"latitude", "longitude", "x_coord", "y_coord", "weather", "raw",
}

type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("db pool init failed: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping failed: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func tableName(collection string) string {
	return pgx.Identifier{collection}.Sanitize()
}

// EnsureSchema creates the collection table if it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context, collection string) error {
	t := tableName(collection)
	_, err := p.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			event_no     TEXT PRIMARY KEY,
			datetime_add TIMESTAMPTZ NOT NULL,
			division     TEXT NOT NULL DEFAULT '',
			address      TEXT NOT NULL DEFAULT '',
			event_type   TEXT NOT NULL DEFAULT '',
			event_desc   TEXT NOT NULL DEFAULT '',
			latitude     DOUBLE PRECISION NOT NULL,
			longitude    DOUBLE PRECISION NOT NULL,
			x_coord      DOUBLE PRECISION NOT NULL DEFAULT 0,
			y_coord      DOUBLE PRECISION NOT NULL DEFAULT 0,
			weather      JSONB,
			raw          JSONB,
			ingested_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, t))
	if err != nil {
		return fmt.Errorf("create table %s: %w", t, err)
	}
	return nil
}

func (p *Postgres) FindIDs(ctx context.Context, collection string, ids []string, limit int) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := p.pool.Query(ctx,
		fmt.Sprintf(`SELECT event_no FROM %s WHERE event_no = ANY($1) LIMIT $2`, tableName(collection)),
		ids, limit)
	if err != nil {
		return nil, fmt.Errorf("query %s ids: %w", collection, err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan %s ids: %w", collection, err)
	}
	return found, nil
}

// InsertBulk copies records inside one transaction, so either every record
// lands or none do.
func (p *Postgres) InsertBulk(ctx context.Context, collection string, records []accident.Record) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		row, err := recordRow(r)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	n, err := tx.CopyFrom(ctx, pgx.Identifier{collection}, recordColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy into %s: %w", collection, err)
	}
	if int(n) != len(records) {
		return fmt.Errorf("copy into %s: wrote %d of %d rows", collection, n, len(records))
	}
	return tx.Commit(ctx)
}

func (p *Postgres) ReadAll(ctx context.Context, collection string, limit int, order accident.SortOrder) ([]accident.Record, error) {
	q := fmt.Sprintf(`
		SELECT event_no, datetime_add, division, address, event_type, event_desc,
		       latitude, longitude, x_coord, y_coord, weather, raw
		FROM %s
		ORDER BY datetime_add %s
		LIMIT $1`, tableName(collection), order)
	rows, err := p.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	var out []accident.Record
	for rows.Next() {
		var r accident.Record
		var weather, raw []byte
		if err := rows.Scan(&r.EventNo, &r.DateTimeAdd, &r.Division, &r.Address, &r.EventType, &r.EventDesc,
			&r.Latitude, &r.Longitude, &r.XCoord, &r.YCoord, &weather, &raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		if len(weather) > 0 {
			r.Weather = &accident.Weather{}
			if err := json.Unmarshal(weather, r.Weather); err != nil {
				return nil, fmt.Errorf("decode weather for %s: %w", r.EventNo, err)
			}
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &r.Raw); err != nil {
				return nil, fmt.Errorf("decode raw for %s: %w", r.EventNo, err)
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}

func (p *Postgres) Close(context.Context) error {
	p.pool.Close()
	return nil
}

// recordRow lays r out in recordColumns order.
func recordRow(r accident.Record) ([]any, error) {
	var weather, raw []byte
	var err error
	if r.Weather != nil {
		if weather, err = json.Marshal(r.Weather); err != nil {
			return nil, fmt.Errorf("encode weather for %s: %w", r.EventNo, err)
		}
	}
	if r.Raw != nil {
		if raw, err = json.Marshal(r.Raw); err != nil {
			return nil, fmt.Errorf("encode raw for %s: %w", r.EventNo, err)
		}
	}
	return []any{
		r.EventNo, r.DateTimeAdd.UTC().Truncate(time.Microsecond), r.Division, r.Address, r.EventType, r.EventDesc,
		r.Latitude, r.Longitude, r.XCoord, r.YCoord, weather, raw,
	}, nil
}

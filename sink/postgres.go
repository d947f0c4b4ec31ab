package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/use-agent/pricecrawl/models"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS competitor_prices (
	id                   BIGSERIAL PRIMARY KEY,
	run_id               TEXT NOT NULL,
	date                 DATE NOT NULL,
	industry             TEXT NOT NULL,
	subindustry          TEXT NOT NULL,
	type_of_product      TEXT NOT NULL,
	generic_product_type TEXT NOT NULL,
	product              TEXT NOT NULL,
	price_sar            DOUBLE PRECISION NOT NULL,
	company              TEXT NOT NULL,
	source               TEXT NOT NULL,
	url                  TEXT NOT NULL,
	unit_of_measurement  TEXT NOT NULL,
	total_quantity       DOUBLE PRECISION NOT NULL,
	channel              TEXT NOT NULL,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS competitor_prices_run_idx ON competitor_prices (run_id);
CREATE INDEX IF NOT EXISTS competitor_prices_type_idx ON competitor_prices (subindustry, type_of_product)`

const pgInsert = `
INSERT INTO competitor_prices (
	run_id, date, industry, subindustry, type_of_product, generic_product_type,
	product, price_sar, company, source, url, unit_of_measurement, total_quantity, channel
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

// Postgres stores rows in the competitor_prices table.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and creates the table when missing.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeConfig, "bad postgres dsn", err)
	}
	poolConfig.MaxConns = 4
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, sinkError("create postgres pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, sinkError("ping postgres", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, sinkError("create postgres schema", err)
	}
	return &Postgres{pool: pool}, nil
}

// Write inserts rows in one transaction, sent as a single batch.
func (p *Postgres) Write(ctx context.Context, runID string, rows []models.OutputRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return sinkError("begin postgres transaction", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, r := range rows {
		date, err := time.Parse(time.DateOnly, r.Date)
		if err != nil {
			return sinkError(fmt.Sprintf("bad row date %q", r.Date), err)
		}
		batch.Queue(pgInsert,
			runID, date, r.Industry, r.SubIndustry, r.TypeOfProduct, r.GenericProductType,
			r.Product, r.PriceSAR, r.Company, string(r.Source), r.URL,
			string(r.UnitOfMeasurement), r.TotalQuantity, r.Channel,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return sinkError("insert rows", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return sinkError("commit postgres transaction", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

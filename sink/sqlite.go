package sink

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"github.com/use-agent/pricecrawl/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS competitor_prices (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id               TEXT NOT NULL,
	date                 TEXT NOT NULL,
	industry             TEXT NOT NULL,
	subindustry          TEXT NOT NULL,
	type_of_product      TEXT NOT NULL,
	generic_product_type TEXT NOT NULL,
	product              TEXT NOT NULL,
	price_sar            REAL NOT NULL,
	company              TEXT NOT NULL,
	source               TEXT NOT NULL,
	url                  TEXT NOT NULL,
	unit_of_measurement  TEXT NOT NULL,
	total_quantity       REAL NOT NULL,
	channel              TEXT NOT NULL,
	created_at           TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS competitor_prices_run_idx ON competitor_prices (run_id);`

const sqliteInsert = `
INSERT INTO competitor_prices (
	run_id, date, industry, subindustry, type_of_product, generic_product_type,
	product, price_sar, company, source, url, unit_of_measurement, total_quantity, channel
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SQLite stores rows in a local database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, sinkError("open sqlite "+path, err)
	}
	// One writer; sqlite serializes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, sinkError("create sqlite schema", err)
	}
	return &SQLite{db: db}, nil
}

// Write inserts rows in one transaction.
func (s *SQLite) Write(ctx context.Context, runID string, rows []models.OutputRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sinkError("begin sqlite transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, sqliteInsert)
	if err != nil {
		return sinkError("prepare insert", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx,
			runID, r.Date, r.Industry, r.SubIndustry, r.TypeOfProduct, r.GenericProductType,
			r.Product, r.PriceSAR, r.Company, string(r.Source), r.URL,
			string(r.UnitOfMeasurement), r.TotalQuantity, r.Channel,
		); err != nil {
			return sinkError("insert row", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return sinkError("commit sqlite transaction", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

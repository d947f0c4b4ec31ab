package sink

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/pricecrawl/config"
	"github.com/use-agent/pricecrawl/models"
)

func sampleRows() []models.OutputRow {
	return []models.OutputRow{
		{
			Date: "2026-03-14", Industry: "Cleaning", SubIndustry: "Pets",
			TypeOfProduct: "P3-Glass cleaner", GenericProductType: "Glass cleaner",
			Product: "Windex Original 500ml", PriceSAR: 18.5, Company: "Windex",
			Source: models.SiteAmazon, URL: "https://www.amazon.sa/dp/B01",
			UnitOfMeasurement: models.UnitML, TotalQuantity: 500, Channel: models.ChannelB2C,
		},
		{
			Date: "2026-03-14", Industry: "Cleaning", SubIndustry: "Pets",
			TypeOfProduct: "P3-Glass cleaner", GenericProductType: "Glass cleaner",
			Product: "Clin, Window & Glass 1L", PriceSAR: 22, Company: "Clin",
			Source: models.SiteMumzworld, URL: "https://www.mumzworld.com/sa-en/clin",
			UnitOfMeasurement: models.UnitL, TotalQuantity: 1, Channel: models.ChannelB2C,
		},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return recs
}

func TestCSV_Overwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "competitors.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("stale,data\n"), 0o644))

	c, err := OpenCSV(path, ModeOverwrite)
	require.NoError(t, err)
	require.NoError(t, c.Write(context.Background(), "run-1", sampleRows()))
	require.NoError(t, c.Close())

	recs := readCSV(t, path)
	require.Len(t, recs, 3)
	assert.Equal(t, models.OutputColumns, recs[0])
	assert.Equal(t, []string{
		"2026-03-14", "Cleaning", "Pets", "P3-Glass cleaner", "Glass cleaner",
		"Windex Original 500ml", "18.50", "Windex", "amazon", "https://www.amazon.sa/dp/B01",
		"ml", "500", "B2C",
	}, recs[1])
	assert.Equal(t, "Clin, Window & Glass 1L", recs[2][5])
}

func TestCSV_AppendWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "competitors.csv")

	for range 2 {
		c, err := OpenCSV(path, ModeAppend)
		require.NoError(t, err)
		require.NoError(t, c.Write(context.Background(), "run", sampleRows()[:1]))
		require.NoError(t, c.Close())
	}

	recs := readCSV(t, path)
	require.Len(t, recs, 3)
	assert.Equal(t, models.OutputColumns, recs[0])
	assert.Equal(t, recs[1], recs[2])
}

func TestCSV_UnknownMode(t *testing.T) {
	_, err := OpenCSV(filepath.Join(t.TempDir(), "x.csv"), "replace")
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeConfig, models.CodeOf(err))
}

func TestSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "prices.db")

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Write(ctx, "run-1", sampleRows()))
	require.NoError(t, s.Write(ctx, "run-2", sampleRows()[:1]))
	require.NoError(t, s.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM competitor_prices WHERE run_id = ?`, "run-1").Scan(&n))
	assert.Equal(t, 2, n)

	var product, unit string
	var price, qty float64
	require.NoError(t, db.QueryRow(
		`SELECT product, price_sar, unit_of_measurement, total_quantity FROM competitor_prices WHERE run_id = ?`, "run-2",
	).Scan(&product, &price, &unit, &qty))
	assert.Equal(t, "Windex Original 500ml", product)
	assert.InDelta(t, 18.5, price, 1e-9)
	assert.Equal(t, "ml", unit)
	assert.InDelta(t, 500, qty, 1e-9)
}

type failingSink struct {
	err    error
	writes int
	closed bool
}

func (f *failingSink) Write(context.Context, string, []models.OutputRow) error {
	f.writes++
	return f.err
}

func (f *failingSink) Close() error {
	f.closed = true
	return f.err
}

func TestMulti(t *testing.T) {
	errA := errors.New("a down")
	a := &failingSink{err: errA}
	b := &failingSink{}
	m := Multi{a, b}

	err := m.Write(context.Background(), "run", sampleRows())
	require.ErrorIs(t, err, errA)
	assert.Equal(t, 1, b.writes, "a failing sink does not stop the next")

	require.ErrorIs(t, m.Close(), errA)
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestOpen_CSVAndSQLite(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(context.Background(), config.OutputConfig{
		File:       filepath.Join(dir, "out.csv"),
		Mode:       ModeOverwrite,
		SQLitePath: filepath.Join(dir, "out.db"),
	}, nil)
	require.NoError(t, err)
	require.Len(t, m, 2)
	require.NoError(t, m.Write(context.Background(), "run", sampleRows()))
	require.NoError(t, m.Close())

	assert.Len(t, readCSV(t, filepath.Join(dir, "out.csv")), 3)
}

func TestOpen_BadMode(t *testing.T) {
	_, err := Open(context.Background(), config.OutputConfig{
		File: filepath.Join(t.TempDir(), "out.csv"),
		Mode: "sideways",
	}, nil)
	require.Error(t, err)
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("PRICECRAWL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PRICECRAWL_TEST_POSTGRES_DSN not set, skipping test")
	}
	ctx := context.Background()
	p, err := OpenPostgres(ctx, dsn)
	if err != nil {
		t.Skipf("PostgreSQL is not available, skipping test: %v", err)
	}
	defer p.Close()

	runID := "test-" + t.Name()
	_, err = p.pool.Exec(ctx, `DELETE FROM competitor_prices WHERE run_id = $1`, runID)
	require.NoError(t, err)

	require.NoError(t, p.Write(ctx, runID, sampleRows()))

	var n int
	require.NoError(t, p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM competitor_prices WHERE run_id = $1`, runID).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestRedisStream(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis is not available, skipping test")
	}

	stream := "pricecrawl_test:" + t.Name()
	require.NoError(t, client.Del(ctx, stream).Err())

	r := newRedisStream(client, stream, 1000)
	require.NoError(t, r.Write(ctx, "run-1", sampleRows()))

	entries, err := client.XRange(ctx, stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "run-1", entries[0].Values["run_id"])
	assert.Equal(t, "amazon", entries[0].Values["source"])

	var row models.OutputRow
	require.NoError(t, json.Unmarshal([]byte(entries[1].Values["row"].(string)), &row))
	assert.Equal(t, "Clin, Window & Glass 1L", row.Product)
}

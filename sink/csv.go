package sink

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"

	"github.com/use-agent/pricecrawl/models"
)

// Output modes of the CSV sink.
const (
	ModeOverwrite = "overwrite"
	ModeAppend    = "append"
)

// CSV writes rows to a file with the models.OutputColumns header.
type CSV struct {
	mu   sync.Mutex
	f    *os.File
	w    *csv.Writer
	path string
}

// OpenCSV opens path. ModeOverwrite truncates the file and writes the
// header; ModeAppend keeps existing rows and writes the header only when
// the file is new or empty.
func OpenCSV(path, mode string) (*CSV, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, sinkError("create output directory", err)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	switch mode {
	case ModeOverwrite, "":
		flags |= os.O_TRUNC
	case ModeAppend:
		flags |= os.O_APPEND
	default:
		return nil, models.NewScrapeError(models.ErrCodeConfig, "unknown output mode "+mode, nil)
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, sinkError("open "+path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, sinkError("stat "+path, err)
	}

	c := &CSV{f: f, w: csv.NewWriter(f), path: path}
	if info.Size() == 0 {
		if err := c.w.Write(models.OutputColumns); err != nil {
			f.Close()
			return nil, sinkError("write header", err)
		}
		c.w.Flush()
		if err := c.w.Error(); err != nil {
			f.Close()
			return nil, sinkError("write header", err)
		}
	}
	return c, nil
}

// Write appends rows and flushes them to the file.
func (c *CSV) Write(_ context.Context, _ string, rows []models.OutputRow) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range rows {
		if err := c.w.Write(r.Values()); err != nil {
			return sinkError("write "+c.path, err)
		}
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return sinkError("flush "+c.path, err)
	}
	return nil
}

func (c *CSV) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		c.f.Close()
		return sinkError("flush "+c.path, err)
	}
	return c.f.Close()
}

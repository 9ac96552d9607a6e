package api

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultExportFile is the file name the crawler suggests for downloads
const DefaultExportFile = "crawler_data.csv"

// TimestampedExportFile names an export taken at t, e.g. for scheduled jobs
func TimestampedExportFile(t time.Time) string {
	return fmt.Sprintf("crawler_data_%s.csv", t.Format("20060102_150405"))
}

// SaveExport writes CSV bytes to path, creating parent directories
func SaveExport(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

// ExportToFile downloads the CSV export and writes it to path. It returns
// the number of bytes written.
func (c *Client) ExportToFile(ctx context.Context, opts ExportOptions, path string) (int, error) {
	data, err := c.Export(ctx, opts)
	if err != nil {
		return 0, err
	}
	if err := SaveExport(path, data); err != nil {
		return 0, err
	}
	return len(data), nil
}

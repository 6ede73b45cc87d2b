// Package report delivers finished reports to their sinks: the JSON batch
// file the dashboard reads, an optional Postgres snapshot store, and an
// optional Kafka topic for downstream consumers.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Mharish0341/Trustguard/internal/listing"
)

// WriteFile writes the batch as a pretty-printed JSON array. The write goes
// through a temp file and rename so a crash mid-write never leaves the
// dashboard a truncated report.
func WriteFile(path string, reports []listing.Report) error {
	if reports == nil {
		reports = []listing.Report{}
	}
	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %d reports: %w", len(reports), err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".reports-*.json")
	if err != nil {
		return fmt.Errorf("creating temp report file in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing report file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing report file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming report file into place: %w", err)
	}
	return nil
}

// ReadFile loads a previously written report batch.
func ReadFile(path string) ([]listing.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report file %s: %w", path, err)
	}
	var reports []listing.Report
	if err := json.Unmarshal(data, &reports); err != nil {
		return nil, fmt.Errorf("parsing report file %s: %w", path, err)
	}
	return reports, nil
}

// Package csv writes octant series as comma-separated tables.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"go.ngs.io/geothermophone/internal/usecase"
)

// Write emits one header row (time followed by the octant keys) and one row
// per admitted timestep.
func Write(w io.Writer, resp *usecase.OctantResponse) error {
	for _, o := range resp.Octants {
		if len(o.Values) != len(resp.Times) {
			return fmt.Errorf("octant %s has %d values for %d timesteps", o.Key, len(o.Values), len(resp.Times))
		}
	}

	cw := csv.NewWriter(w)
	header := make([]string, 0, len(resp.Octants)+1)
	header = append(header, "time")
	for _, o := range resp.Octants {
		header = append(header, o.Key)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	row := make([]string, len(header))
	for t, ts := range resp.Times {
		row[0] = ts
		for i, o := range resp.Octants {
			row[i+1] = strconv.FormatFloat(o.Values[t], 'f', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", t, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes resp to path, replacing any existing file.
func WriteFile(path string, resp *usecase.OctantResponse) error {
	//nolint:gosec // G304: Output path comes from the command line.
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	if err := Write(f, resp); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

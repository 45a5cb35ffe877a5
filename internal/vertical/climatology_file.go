package vertical

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

// climatologySnapshot is the on-disk form of a fitted table
type climatologySnapshot struct {
	TempMin  float64   `msgpack:"temp_min"`
	TempStep float64   `msgpack:"temp_step"`
	Bins     int       `msgpack:"bins"`
	Cells    []float64 `msgpack:"cells"`
}

// WriteFile stores the table as a MessagePack snapshot, writing through a
// temp file and renaming so readers never see a partial table.
func (c *Climatology) WriteFile(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".climatology-*")
	if err != nil {
		return fmt.Errorf("failed to create climatology temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	snap := climatologySnapshot{
		TempMin:  c.tempMin,
		TempStep: c.tempStep,
		Bins:     c.bins,
		Cells:    c.Cells(),
	}
	if err := msgpack.NewEncoder(tmp).Encode(&snap); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode climatology: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write climatology: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// LoadClimatology reads a table written by WriteFile
func LoadClimatology(path string) (*Climatology, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open climatology: %w", err)
	}
	defer f.Close()

	var snap climatologySnapshot
	if err := msgpack.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode climatology: %w", err)
	}
	return ClimatologyFromCells(snap.TempMin, snap.TempStep, snap.Bins, snap.Cells)
}

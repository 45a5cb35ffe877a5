package ingest

import (
	"context"

	"github.com/oceanobs/moorproc/internal/log"
	"github.com/oceanobs/moorproc/internal/storage/archive"
	"github.com/oceanobs/moorproc/internal/types"
	"github.com/oceanobs/moorproc/pkg/config"
)

// ArchiveReader loads instrument sets from MessagePack archive snapshots.
// Snapshots carry their own metadata, so the configured mooring only selects
// which snapshot to load.
type ArchiveReader struct {
	archive *archive.Archive
}

// NewArchiveReader creates a reader over a snapshot directory
func NewArchiveReader(dir string) (*ArchiveReader, error) {
	a, err := archive.New(dir)
	if err != nil {
		return nil, err
	}
	return &ArchiveReader{archive: a}, nil
}

// ReadMooring loads the most recently archived instrument set for a mooring
func (r *ArchiveReader) ReadMooring(_ context.Context, mooring *config.MooringData) (*types.MooringInstrumentSet, error) {
	set, path, err := r.archive.LatestSet(mooring.Name)
	if err != nil {
		return nil, err
	}
	log.Infof("loaded instrument set for %v from %v", mooring.Name, path)
	return set, nil
}

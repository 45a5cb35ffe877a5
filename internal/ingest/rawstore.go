package ingest

import (
	"context"

	"github.com/oceanobs/moorproc/internal/storage/rawstore"
	"github.com/oceanobs/moorproc/internal/types"
	"github.com/oceanobs/moorproc/pkg/config"
)

// RawStoreReader assembles instrument sets from the local raw sample store
type RawStoreReader struct {
	store *rawstore.Store
}

// NewRawStoreReader opens the raw sample store at the given path
func NewRawStoreReader(path string) (*RawStoreReader, error) {
	store, err := rawstore.New(path)
	if err != nil {
		return nil, err
	}
	return &RawStoreReader{store: store}, nil
}

// ReadMooring assembles the instrument set for one configured mooring from
// the store's captured samples
func (r *RawStoreReader) ReadMooring(_ context.Context, mooring *config.MooringData) (*types.MooringInstrumentSet, error) {
	return readConfigured(mooring, func(inst *config.InstrumentData) (*types.InstrumentSeries, error) {
		samples, err := r.store.All(mooring.Name, inst.Serial)
		if err != nil {
			return nil, err
		}
		return samplesToSeries(mooring, inst, samples)
	})
}

// Close closes the underlying store
func (r *RawStoreReader) Close() error {
	return r.store.Close()
}

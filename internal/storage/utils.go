package storage

import (
	"context"
	"sync"

	"github.com/oceanobs/moorproc/internal/log"
	"github.com/oceanobs/moorproc/internal/types"
)

// ProcessSamples provides a standard pattern for processing captured samples
// from a channel
func ProcessSamples(ctx context.Context, wg *sync.WaitGroup, sampleChan <-chan types.RawSample, processor func(types.RawSample) error, name string) {
	wg.Add(1)
	defer wg.Done()

	for {
		select {
		case s := <-sampleChan:
			if err := processor(s); err != nil {
				log.Errorf("%s sample processor error: %v", name, err)
			}
		case <-ctx.Done():
			log.Infof("cancellation request received. Cancelling %s sample processor", name)
			return
		}
	}
}

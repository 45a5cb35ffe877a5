// Package capture records live instrument streams into the raw sample
// distributor. Two source kinds are supported: a direct serial line to an
// instrument or deck box, and a TCP listener for inductive-modem or
// shipboard-logger gateways that push line-framed records.
package capture

import (
	"fmt"
	"math"
	"time"

	"github.com/oceanobs/moorproc/internal/types"
)

// Source is a capture backend feeding the sample distributor
type Source interface {
	StartCapture() error
	StopCapture() error
	SourceName() string
}

// Packet describes one line-framed record emitted by an instrument gateway.
// Variables are pointers so an absent field stays distinguishable from a
// measured zero.
type Packet struct {
	Serial       string   `json:"serial,omitempty"`
	Epoch        float64  `json:"t,omitempty"` // seconds since Unix epoch; 0 means stamp on receipt
	Temperature  *float64 `json:"temp,omitempty"`
	Conductivity *float64 `json:"cond,omitempty"`
	Pressure     *float64 `json:"pres,omitempty"`
	Salinity     *float64 `json:"sal,omitempty"`
}

// packetToSample converts a gateway packet into a raw sample, filling the
// source's configured mooring and default serial
func packetToSample(p Packet, mooring, defaultSerial string, received time.Time) (types.RawSample, error) {
	serial := p.Serial
	if serial == "" {
		serial = defaultSerial
	}
	if serial == "" {
		return types.RawSample{}, fmt.Errorf("packet carries no serial and the source has no default")
	}

	timestamp := received
	if p.Epoch > 0 {
		sec := math.Floor(p.Epoch)
		nsec := math.Round((p.Epoch - sec) * 1e9)
		timestamp = time.Unix(int64(sec), int64(nsec))
	}

	return types.RawSample{
		Timestamp:    timestamp.UTC(),
		Mooring:      mooring,
		Serial:       serial,
		Temperature:  deref(p.Temperature),
		Conductivity: deref(p.Conductivity),
		Pressure:     deref(p.Pressure),
		Salinity:     deref(p.Salinity),
	}, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

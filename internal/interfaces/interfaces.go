// Package interfaces defines common interface types used across the application.
package interfaces

import "github.com/oceanobs/moorproc/internal/capture"

// CaptureManager defines the interface for managing capture sources
type CaptureManager interface {
	StartCaptureSources() error
	AddCaptureSource(name string) error
	RemoveCaptureSource(name string) error
	ReloadCaptureConfig() error
	GetSource(name string) capture.Source
}

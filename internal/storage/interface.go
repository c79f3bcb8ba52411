// Package storage defines interfaces and implementations for correlation
// result storage backends.
package storage

import (
	"context"

	"github.com/seismonet/noisecc/internal/types"
)

// CorrelationStore is the interface implemented by all result backends.
// StoreWindowCorrelation is only called when keep_all is configured.
type CorrelationStore interface {
	StoreDailyStack(ctx context.Context, s *types.DailyStack) error
	StoreWindowCorrelation(ctx context.Context, w *types.WindowCorrelation) error
	Close() error
}

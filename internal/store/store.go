package store

import (
	"context"

	"bridgewatch/internal/model"
)

// Sink consumes the window updates published by a scan.
type Sink interface {
	ApplyWindow(ctx context.Context, update model.WindowUpdate) error
}

// Fanout publishes each update to every wrapped sink.
type Fanout []Sink

// ApplyWindow forwards the update to all sinks, stopping at the first error.
func (f Fanout) ApplyWindow(ctx context.Context, update model.WindowUpdate) error {
	for _, sink := range f {
		if err := sink.ApplyWindow(ctx, update); err != nil {
			return err
		}
	}
	return nil
}

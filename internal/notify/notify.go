// Package notify delivers vehicle snapshots to whoever is listening after a
// status change has been committed.
package notify

import (
	"context"
	"errors"

	"github.com/jengzang/vehicle-status-backend/internal/models"
)

// Publisher receives the committed snapshot of a vehicle.
// Implementations must not block the caller for long.
type Publisher interface {
	Publish(ctx context.Context, vehicle *models.Vehicle) error
}

// Nop discards every snapshot
type Nop struct{}

func (Nop) Publish(context.Context, *models.Vehicle) error { return nil }

// Multi fans a snapshot out to several publishers. Every publisher is tried,
// errors are joined.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, vehicle *models.Vehicle) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, vehicle); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Package artifact stores the annotated images produced by the detection
// pipeline. A store knows nothing about expiry; it only writes fresh,
// collision-free locations and deletes them on request.
package artifact

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"
)

// Store is the artifact storage contract.
type Store interface {
	// Save encodes img and writes it to a fresh location, which is returned.
	Save(ctx context.Context, img image.Image) (string, error)

	// Delete removes the artifact at location. Deleting a location that does
	// not exist succeeds.
	Delete(ctx context.Context, location string) error

	// URL returns the public-facing URL for location.
	URL(location string) string

	// List returns every artifact currently held by the store.
	List(ctx context.Context) ([]Object, error)

	// Ping verifies the backing storage is usable.
	Ping(ctx context.Context) error
}

// Object describes one stored artifact.
type Object struct {
	Location string
	ModTime  time.Time
}

// objectName builds a collision-free artifact name. The timestamp prefix
// keeps names sortable by creation time.
func objectName(now time.Time) string {
	return fmt.Sprintf("%s-%s.png", now.UTC().Format("20060102-150405"), uuid.NewString())
}

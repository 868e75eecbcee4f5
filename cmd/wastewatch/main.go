// Wastewatch is an image-detection service for waste sorting.
//
// It accepts uploaded photos, runs them through an object-detection model,
// stores the annotated image for a limited retention period and returns the
// detections together with a URL to the annotated image. A background sweep
// deletes expired artifacts.
//
// Usage:
//
//	# Start the server
//	wastewatch run --config config.yaml
//
//	# Run one expiry sweep now
//	wastewatch sweep
//
//	# List registered artifacts
//	wastewatch artifacts list --output json
//
//	# Repair drift between the artifact store and the index
//	wastewatch reconcile
package main

import "os"

func main() {
	os.Exit(Execute())
}

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"mercator-hq/wastewatch/pkg/telemetry/health"
)

// detectorProbe checks the model's health endpoint for readiness.
func detectorProbe(url string, timeout time.Duration) health.CheckFunc {
	client := &http.Client{Timeout: timeout}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("detector returned status %d", resp.StatusCode)
		}
		return nil
	}
}

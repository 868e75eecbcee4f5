// Package handlers implements the wastewatch HTTP endpoints.
package handlers

// Package detect runs the per-request detection pipeline.
//
// A call to Service.Detect runs the model, writes the annotated image to the
// artifact store, and registers it in the retention index with an expiry of
// now plus the retention period. The file write always precedes the index
// insert, so the index never points at a file that was never written.
//
// Every error returned by the service is an *apperr.Error whose Kind selects
// the HTTP status. If the insert fails after a successful write the file is
// left behind as an orphan; the retention reconciler removes it later when
// enabled.
package detect

// Package docviewer implements the document opener: it resolves a request
// to a file in the scratch directory, reuses an existing file when the
// request allows it, materializes the file otherwise (base64 decode or
// download) and hands it to an external viewer.
//
// Every open returns a Future that resolves exactly once. There are no
// retries, no locks and no cancellation: two concurrent requests for the same
// uncached path both materialize it, and the later write wins.
package docviewer

// Package download is the download manager documents are fetched through.
// Manager.Start creates the target file exclusively, then streams the remote
// body into it on a background goroutine and reports the outcome on a Task
// that completes or fails exactly once. Starting a download whose target
// already exists fails synchronously with ErrFileExists. Downloads are not
// cancellable: the request context only contributes values, and the only
// deadline is the HTTP client's own timeout.
//
// Sources are chosen by URL scheme. http and https use a shared, tuned
// http.Client and can negotiate gzip or zstd transfer encodings; gs:// URLs
// are read from Google Cloud Storage with a lazily created client.
package download

// Package server hosts the Fiber HTTP transport for the bridge. It attaches
// recover and request-id middleware and maps POST /bridge/:method onto the
// bridge method table, answering with the same (error, uri) pair the
// in-process callback would receive. Diagnostics routes live in the routes
// subpackage so the transport stays free of store and MIME table details.
package server

// File: api/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package api defines the public contracts of hioload-aio: the dispatcher
// surface consumed by user code and I/O objects, the polling task interface
// implemented by platform shims, and the canonical error taxonomy surfaced
// at the operation boundary.
package api

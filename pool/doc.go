// File: pool/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package pool provides small-object allocation helpers for the engine:
// a generic sync.Pool wrapper and a size-classed cache for operation
// buffers. The caches let the per-operation fast path reuse storage instead
// of allocating afresh; buffer requests above the largest size class are
// still served by the general-purpose allocator.
package pool

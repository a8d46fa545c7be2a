// Package retry provides backoff and polling helpers for operations that may
// fail transiently, such as readiness probes against freshly started nodes.
//
// [WithExponentialBackoff] retries a bounded number of times with growing
// delays. [Poll] retries at a fixed interval until the context expires.
// Errors wrapped with [Fatal] stop both immediately.
package retry

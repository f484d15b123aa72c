// Package retryhttp wraps an http.Client with bounded, fixed-delay retries.
//
// A response below 500 (success or client error) is returned immediately;
// retrying a 4xx cannot succeed. Server errors and transport failures are
// retried after a fixed delay until MaxAttempts is reached. After the last
// attempt the final 5xx response (or transport error) is returned, and callers
// inspect the status themselves.
//
// Request bodies are replayed for each attempt through Request.GetBody, which
// http.NewRequest populates for bytes, strings, and bytes.Reader bodies.
// Context cancellation stops retries immediately.
package retryhttp

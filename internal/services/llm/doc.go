// Package llm provides an OpenRouter-compatible chat completion client and the
// helpers that pull a JSON object out of loosely formatted model output.
//
// # Requests
//
// Client.Complete sends a prompt as the sole user message
// ({model, messages:[{role:"user", content}]}) with bearer authentication and
// returns the raw completion text. The client refuses to send anything when the
// API key or model is missing and reports services.ErrConfiguration instead.
//
// Requests go through retryhttp: server errors and transport failures are
// retried with a fixed delay (3 attempts, 1s by default); client errors are
// returned at once. A final non-2xx reply becomes services.ErrUpstream carrying
// a *StatusError with the status and a trimmed body snippet. The API key is
// scrubbed from every error string.
//
// # Completion envelope
//
// The completion text is read from choices[].message.content, falling back to
// delta.content, the legacy text field, and function/tool-call arguments.
// An empty completion is services.ErrParse.
//
// # JSON extraction
//
// Extractor isolates the JSON object inside the completion:
//
//   - LenientExtractor (default): strip code fences, take the first
//     brace-balanced candidate that is valid JSON, else fall back to the span.
//   - SpanExtractor: first '{' to last '}' inclusive.
//   - BalancedExtractor: string-aware balanced scan from the first '{'.
//
// DecodeObject combines extraction with decoding into a generic value;
// parse failures are never retried.
package llm

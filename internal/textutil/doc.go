// Package textutil provides small text helpers shared by the lookup client,
// the LLM client, and the presentation layers.
//
// The primary use cases are:
//   - Normalizing user-entered verse queries (Unicode NFC, whitespace)
//   - Title-casing queries for status lines
//   - Producing bounded single-line snippets of untrusted payloads for errors
package textutil

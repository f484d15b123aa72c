// Package bibleapi resolves free-text scripture references against
// bible-api.com (or any endpoint that speaks the same JSON shape).
//
// A lookup is a single GET of {base_url}/{reference}; the service replies
// with the canonical reference, the verse text, and the translation name.
// Any non-2xx reply, or a 2xx reply without a reference or text, is reported
// as services.ErrNotFound so the presentation layer can ask the user to fix
// the reference. Transport failures are services.ErrTransient.
//
// Lookups are not retried: they are cheap to resubmit and a wrong reference
// will not become right on a second attempt.
package bibleapi

// Package services defines shared utilities consumed by the analysis pipeline
// and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp orchestrator generations, pipeline phases,
//     and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that let the orchestrator
//     classify failures (configuration, not found, upstream, parse) without
//     string matching.
//   - Kind and UserMessage, which turn a classified error into a telemetry
//     label and the single message shown to the user.
//
// Use these helpers when wiring new clients so operational behaviour (error
// handling, observability) stays uniform across the pipeline.
package services

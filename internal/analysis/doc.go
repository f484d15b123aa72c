// Package analysis turns a resolved verse into a structured theological
// analysis.
//
// BuildPrompt renders the single prompt template for a DetailLevel. Analyzer
// sends it through an llm.Completer, extracts the JSON object from the
// completion with an llm.Extractor, and Normalize folds the model's field
// naming variations into a Record.
//
// Normalization is deliberately forgiving for cross references: a string, a
// single object, or an array of strings still yields entries instead of an
// error. Only a completion that is not a JSON object at all fails, with
// services.ErrParse. Parse failures are not retried.
package analysis

// Package main hosts the versescope CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once, builds the verse
// lookup, LLM, and analysis components from it, and surfaces them as
// one-shot commands (lookup, prompt, analyze) or as the long-running web
// server (serve). Keep the heavy lifting in internal packages; commands here
// only wire components together and render their results.
package main

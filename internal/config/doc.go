// Package config loads, normalizes, and validates versescope configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads a `.env` file from the working
// directory, and honours environment fallbacks such as OPENROUTER_API_KEY.
// The Config type centralizes every knob the CLI and web server need, so
// service endpoints, retry tuning, and credentials are discovered in one pass.
//
// Missing LLM credentials are deliberately not a load error: the analysis
// client reports them as a configuration error when an analysis is requested,
// which keeps verse lookup and `config validate` usable without a key.
package config

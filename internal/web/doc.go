// Package web serves the browser front end and JSON API for the pipeline.
//
// Routes:
//
//	GET  /             HTML page rendered from the current snapshot
//	POST /analyze      form submit; runs the pipeline and redirects to /
//	POST /api/analyze  JSON {query, detail}; responds with the final snapshot
//	GET  /api/state    current snapshot
//	GET  /api/events   websocket stream of snapshots
//	GET  /healthz      liveness check
//
// All verse and model text reaches the page through html/template, so it is
// escaped at the render boundary. When an API token is configured every
// /api/* route requires "Authorization: Bearer <token>"; the websocket route
// also accepts ?token= because browsers cannot set headers on upgrades.
package web

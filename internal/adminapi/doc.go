// Package adminapi exposes the daemon's operator-facing status and
// control surface over plain net/http + encoding/json (SPEC_FULL.md
// §3.5): GET /v1/sessions, GET /v1/sessions/{peer}, POST
// /v1/sessions/{peer}/enable, POST /v1/sessions/{peer}/disable, and a
// chunked GET /v1/events stream of SessionEvents for bgpfsmctl's
// "monitor" command.
package adminapi

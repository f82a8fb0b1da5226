// Package api provides the HTTP handlers that expose review scheduling to
// learners. Handlers decode and validate requests, call the repetition
// services, and map their errors to status codes without leaking internals.
package api

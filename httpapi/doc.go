// Package httpapi serves the ledgerAuth engine over JSON/HTTP on a chi
// router. Handlers decode one request struct per route, call the engine and
// translate engine errors to status codes in errors.go.
package httpapi

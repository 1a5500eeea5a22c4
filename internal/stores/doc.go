// Package stores provides the short-lived Redis records behind the optional
// login hardening: login challenges and the session token deny-list.
//
// # Design
//
// A login challenge is a versioned binary record stored with a TTL. Attempt
// accounting uses WATCH/MULTI with bounded retry, and a challenge is deleted
// on success or once its attempt budget is spent. The deny-list stores one
// key per revoked token ID that expires together with the token.
//
// This package does not generate codes or decide outcomes; that belongs to
// internal/flows. It must not import ledgerAuth or sibling internal packages.
package stores

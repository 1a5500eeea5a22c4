// Package permission provides the permission registry, the [Mask64] bitmask
// and the role table used by the authorization gate.
//
// # Role table
//
// Roles carry a rank (admin 4, manager 3, cashier 2, staff 1) and an
// allow-list of resource:action permissions compiled into a [Mask64]. The
// admin role holds the reserved root bit. [BuildTable] registers everything
// and freezes it, so the table cannot change after startup.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O. Looking up an
// account's current role is the engine's job.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import ledgerAuth, jwt, or store.
//   - Change the role table after Freeze.
package permission

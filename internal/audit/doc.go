// Package audit implements async event dispatching for security-relevant operations.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, zap, no-op).
//   - [Dispatcher]: buffered async relay. When full it drops routine events and
//     waits for room on the event types listed in [Config].Retain.
//   - [Event]: structured audit record with timestamp, type, account, organization, IP, metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit. That belongs to the engine and the flow functions.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import ledgerAuth or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit

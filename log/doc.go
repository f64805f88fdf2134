// Package log defines the structured logging interface used by the
// lib-mongopool packages and the typed fields attached to log events.
//
// Adapters (such as the zap package) implement Logger so the connection
// manager stays backend-agnostic.
package log

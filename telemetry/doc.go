// Package telemetry provides the OpenTelemetry span and metric helpers
// shared by the lib-mongopool connector code: span error recording,
// database attribute conventions, and a counters-only metrics factory.
package telemetry

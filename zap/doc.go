// Package zap implements the log.Logger interface on go.uber.org/zap,
// bridging log records into OpenTelemetry via otelzap.
package zap

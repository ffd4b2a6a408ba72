package observability

import "time"

// NoopLogger is a logger that does nothing
type NoopLogger struct{}

// NewNoopLogger creates a new NoopLogger
func NewNoopLogger() Logger {
	return &NoopLogger{}
}

func (l *NoopLogger) Debug(msg string, fields map[string]interface{}) {}
func (l *NoopLogger) Info(msg string, fields map[string]interface{})  {}
func (l *NoopLogger) Warn(msg string, fields map[string]interface{})  {}
func (l *NoopLogger) Error(msg string, fields map[string]interface{}) {}
func (l *NoopLogger) Fatal(msg string, fields map[string]interface{}) {}

func (l *NoopLogger) Debugf(format string, args ...interface{}) {}
func (l *NoopLogger) Infof(format string, args ...interface{})  {}
func (l *NoopLogger) Warnf(format string, args ...interface{})  {}
func (l *NoopLogger) Errorf(format string, args ...interface{}) {}
func (l *NoopLogger) Fatalf(format string, args ...interface{}) {}

// WithPrefix implements Logger.WithPrefix
func (l *NoopLogger) WithPrefix(prefix string) Logger { return l }

// With implements Logger.With
func (l *NoopLogger) With(fields map[string]interface{}) Logger { return l }

// NoopMetricsClient discards every measurement
type NoopMetricsClient struct{}

// NewNoopMetricsClient creates a metrics client that records nothing
func NewNoopMetricsClient() MetricsClient {
	return &NoopMetricsClient{}
}

func (c *NoopMetricsClient) RecordCounter(name string, value float64, labels map[string]string)   {}
func (c *NoopMetricsClient) RecordHistogram(name string, value float64, labels map[string]string) {}
func (c *NoopMetricsClient) IncrementCounter(name string, value float64)                          {}
func (c *NoopMetricsClient) RecordDuration(name string, duration time.Duration, labels map[string]string) {
}

// StartTimer returns a no-op stop function
func (c *NoopMetricsClient) StartTimer(name string, labels map[string]string) func() {
	return func() {}
}

package types

type RunMode string

const (
	// ModeLocal is the local development mode
	ModeLocal RunMode = "local"
	// ModeProduction rejects configuration that would accept unsigned webhooks
	ModeProduction RunMode = "production"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

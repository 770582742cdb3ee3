// Package exitcode defines the process exit statuses.
package exitcode

const (
	// Success also covers the first run, when the settings template is created.
	Success = 0
	// ConfigError means the settings file could not be loaded or is incomplete.
	ConfigError = 1
	// SendError means the provider failed the send call.
	SendError = 2
	// IOError means reading standard input failed.
	IOError = 3
	// ParseError means the input is not a usable message.
	ParseError = 4
	// IdentityError means the sending account could not be resolved.
	IdentityError = 5
)

package walstream

// LogConfig controls logging behavior for a Sender.
type LogConfig struct {
	// Logger allows injecting a custom logger. If nil, a default logger
	// is built from Level.
	Logger Logger `json:"-"`

	// Level controls the default logger's threshold: "debug", "info",
	// "warn", "error", or "none"/"off" to discard everything.
	Level string `json:"level"`

	// Backend selects which concrete Logger createLogger builds when
	// Logger is nil: "std" (default) or "zap" for a production zap
	// deployment under a process supervisor that scrapes structured
	// fields.
	Backend string `json:"backend"`
}

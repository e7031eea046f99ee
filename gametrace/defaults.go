package gametrace

// Application-level defaults shared across packages.
const (
	DefaultAppName      = "gametrace"
	DefaultConfigPath   = "/etc/gametrace"
	DefaultDatabaseDir  = "data"
	DefaultDatabaseDSN  = "file:data/gametrace.db"
	DefaultDatabaseType = "libsql"
)

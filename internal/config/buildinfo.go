package config

// Build metadata stamped via -ldflags at release time. The zero values
// mark a from-source build.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Package constant defines immutable application-level identifiers and build metadata.
package constant

const (
	// Reel is the canonical application identifier used for filesystem paths, env prefixes and CLI branding.
	Reel = "reel"

	// Version is the current application semantic version string.
	Version = "0.3.0"

	// ClientName is the client identifier announced to the media server in the authorization header.
	ClientName = "Reel CLI"

	// UserAgent is the default HTTP User-Agent string used for requests to the media server.
	UserAgent = "reel/" + Version

	// Repository is the GitHub owner/name pair releases are published under.
	Repository = "reel-cli/reel"
)

// Build metadata, overridden at link time via -ldflags "-X".
var (
	BuiltAt  = "unknown"
	BuiltBy  = "unknown"
	Revision = "unknown"
)

//nolint:gochecknoglobals // allow global variables
package config

var (
	// Version is the stellar-walletd version number, which is injected during build time.
	Version = "0.0.0"

	// CommitHash is the stellar-walletd git commit hash, which is injected during build time.
	CommitHash = ""

	// BuildTimestamp is the timestamp at which stellar-walletd was built, injected during build time.
	BuildTimestamp = ""
)

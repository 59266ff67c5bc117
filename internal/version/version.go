// Package version reports the readycheck build. Release builds set the
// values with -ldflags "-X github.com/hazz-dev/readycheck/internal/version.Version=...".
package version

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

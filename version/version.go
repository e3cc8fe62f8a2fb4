package version

import "fmt"

// these are set during build via -ldflags
var (
	Version   = "v0.0.0-dev"
	GitCommit = "none"
	BuildDate = "unknown"
)

var FullVersion = fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate)

// Package version exposes build information for JellyGuard.
package version

import "fmt"

const (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Info describes the running build.
type Info struct {
	Version   string
	GitCommit string
	BuildTime string
}

// Get returns the build information compiled into this binary.
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
	}
}

func (i Info) String() string {
	return fmt.Sprintf("version %s (commit %s, built %s)", i.Version, i.GitCommit, i.BuildTime)
}

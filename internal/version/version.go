// Package version holds build information injected with -ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Set at build time, e.g.
//
//	go build -ldflags "-X github.com/longkey1/llmnote/internal/version.Version=v0.1.0"
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildTime = "unknown"
)

// BuildInfo is the build metadata of the running binary.
type BuildInfo struct {
	Version   string `json:"version"`
	CommitSHA string `json:"commit"`
	BuildTime string `json:"builtAt"`
	GoVersion string `json:"go"`
	Platform  string `json:"platform"`
}

// Get returns the build metadata of the running binary.
func Get() BuildInfo {
	return BuildInfo{
		Version:   Version,
		CommitSHA: CommitSHA,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Short returns only the version number.
func Short() string {
	return Version
}

// Info returns the version with commit, build time and Go version.
func Info() string {
	b := Get()
	return fmt.Sprintf("llmnote %s\n  commit: %s\n  built:  %s\n  go:     %s %s",
		b.Version, b.CommitSHA, b.BuildTime, b.GoVersion, b.Platform)
}

package global

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

const (
	ProgramName = "tangle"
	Version     = "v0.1.0"
)

// filled from VCS build settings when available
var (
	CommitHash = "N/A"
	CommitTime = "N/A"
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			CommitHash = s.Value
		case "vcs.time":
			CommitTime = s.Value
		}
	}
}

func BannerString() string {
	return fmt.Sprintf("starting %s node version %s (%s), commit hash: %s, commit time: %s",
		ProgramName, Version, runtime.Version(), CommitHash, CommitTime)
}

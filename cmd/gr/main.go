package main

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set at release time through -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	Execute()
}

// versionString reports the release version, falling back to the module
// build info for `go install` builds.
func versionString() string {
	v, rev := version, commit
	if info, ok := debug.ReadBuildInfo(); ok && v == "dev" {
		if mv := info.Main.Version; mv != "" && mv != "(devel)" {
			v = mv
		}
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && rev == "none" {
				rev = s.Value
			}
		}
	}
	return fmt.Sprintf("gr %s (%s, %s, %s)", v, rev[:min(7, len(rev))], date, runtime.Version())
}

// Package version reports the roost build version.
package version

import (
	"runtime/debug"
	"strings"
)

// Version and Commit can be set at build time:
//
//	go build -ldflags="-X github.com/five82/roost/internal/version.Version=v0.3.0"
var (
	Version = ""
	Commit  = ""
)

func init() {
	if Version == "" || Commit == "" {
		fromBuildInfo(debug.ReadBuildInfo())
	}
	if Version == "" {
		Version = "dev"
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

func fromBuildInfo(info *debug.BuildInfo, ok bool) {
	if !ok || info == nil {
		return
	}
	if Version == "" {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			Version = v
		}
	}
	if Commit != "" {
		return
	}
	var revision, modified string
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			modified = s.Value
		}
	}
	if len(revision) > 7 {
		revision = revision[:7]
	}
	if revision != "" && modified == "true" {
		revision += "-dirty"
	}
	Commit = revision
}

// UserAgent returns the User-Agent roost sends to the controller.
func UserAgent() string {
	return "roost/" + strings.TrimPrefix(Version, "v")
}

// Full returns the version with its commit.
func Full() string {
	return Version + " (commit: " + Commit + ")"
}

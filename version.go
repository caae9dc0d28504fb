package main

import (
	"runtime/debug"
	"strings"
)

// Set via -ldflags "-X main.buildVersion=... -X main.buildCommit=...".
var (
	buildVersion = "dev"
	buildCommit  = "unknown"
)

func versionString() string {
	commit := buildCommit
	dirty := false
	if info, ok := debug.ReadBuildInfo(); ok {
		c, d := vcsRevision(info.Settings)
		if shortCommit(commit) == "" {
			commit = c
		}
		dirty = d
	}
	return formatVersion(buildVersion, commit, dirty)
}

// vcsRevision reads the commit and modified flag stamped by the go tool.
func vcsRevision(settings []debug.BuildSetting) (commit string, dirty bool) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			commit = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	return commit, dirty
}

// formatVersion returns a release tag unchanged. Development builds become
// "dev-<sha7>", with "+dirty" when the tree had local changes.
func formatVersion(version, commit string, dirty bool) string {
	v := strings.TrimSpace(version)
	if v != "" && v != "dev" {
		return v
	}
	c := shortCommit(commit)
	if c == "" {
		return "dev"
	}
	if dirty {
		return "dev-" + c + "+dirty"
	}
	return "dev-" + c
}

func shortCommit(commit string) string {
	c := strings.TrimSpace(commit)
	if c == "unknown" {
		return ""
	}
	return c[:min(len(c), 7)]
}

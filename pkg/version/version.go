// Package version derives the build identity reported by the server's
// health endpoint and the CLI. An -ldflags override wins over VCS stamping
// from debug.ReadBuildInfo; both fall back to "dev" for plain go test runs
// and non-git builds.
package version

import "runtime/debug"

// appName prefixes Full() output in startup logs.
const appName = "novelforge"

// gitCommitOverride is injected at build time when the build tree has no
// .git directory, for example inside a container:
//
//	go build -ldflags "-X github.com/novelforge/novelforge/pkg/version.gitCommitOverride=$SHA"
var gitCommitOverride string

// GitCommit is the short (8 char) revision the binary was built from, or
// "dev" when no revision is known.
var GitCommit = resolveCommit()

func resolveCommit() string {
	if gitCommitOverride != "" {
		return short(gitCommitOverride)
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return short(s.Value)
			}
		}
	}
	return "dev"
}

func short(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}

// Full returns the "novelforge/<commit>" form shown by --version.
func Full() string {
	return appName + "/" + GitCommit
}

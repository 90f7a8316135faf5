// Package misc keeps build time information.
package misc

import (
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
)

// Set by linker: -X djc/misc.version=... -X djc/misc.gitHash=...
var (
	version = "dev"
	gitHash = ""
	appName = "djc"
)

// GetAppName returns name of the program used for logs and temporary files.
func GetAppName() string {
	if len(appName) > 0 {
		return appName
	}
	return strings.TrimSuffix(filepath.Base(os.Args[0]), filepath.Ext(os.Args[0]))
}

func GetVersion() string {
	return version
}

// GetGitHash returns commit hash program was built from. When linker did not
// provide it VCS information embedded by go build is used.
func GetGitHash() string {
	if len(gitHash) > 0 {
		return gitHash
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return "unknown"
}

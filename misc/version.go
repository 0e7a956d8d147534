// Package misc keeps build time information about the program.
package misc

import (
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
)

// Set by linker: -X dtbm/misc.version=... -X dtbm/misc.gitHash=...
var (
	version = "dev"
	gitHash = ""
)

// GetAppName returns name of the running executable without extension.
func GetAppName() string {
	name := filepath.Base(os.Args[0])
	ext := filepath.Ext(name)
	name = strings.TrimSuffix(name, ext)
	if len(name) == 0 || ext == ".test" || name == "main" {
		return "dtbm"
	}
	return name
}

// GetVersion returns program version.
func GetVersion() string {
	return version
}

// GetGitHash returns source revision program was built from, if known.
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

// GetGenerator returns generator identity as written into produced documents.
func GetGenerator() string {
	return "dtbm v" + GetVersion()
}

// SPDX-License-Identifier: MIT
//
// Package build provides functionality to manage and retrieve build information
// for a Go application. It allows embedding metadata such as the application
// name, build timestamp, Git commit hash, and semantic version into the binary
// at compile time using linker flags. Binaries built without the flags fall
// back to the VCS stamp the Go toolchain records.
package build

import (
	"fmt"
	"runtime/debug"
)

const (
	defaultName        = "olafx"
	defaultDescription = "Windowed overlap-add real-time audio effect engine"
	unknown            = "unknown"
)

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// Package-level variables for build information. These are populated by -ldflags
// during compilation, for example:
//
//	go build -ldflags "-X olafx/pkg/build.buildName=olafx -X olafx/pkg/build.buildVersion=0.1.0 ..."
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &ldFlags{
		Name:        defaultName,
		Description: defaultDescription,
		Time:        unknown,
		Commit:      unknown,
		Version:     unknown,
	}

	readBuildInfo = debug.ReadBuildInfo
)

// Initialize copies build information from the ldflags variables into the
// buildFlags struct. When no flag was set it uses the module version and
// VCS settings embedded by the toolchain. Returns an error if only some of
// the flags were set, which indicates a broken release build.
func Initialize() error {
	required := []struct {
		name  string
		value string
	}{
		{"BuildName", buildName},
		{"BuildTime", buildTime},
		{"BuildCommit", buildCommit},
		{"BuildVersion", buildVersion},
	}
	set := 0
	for _, r := range required {
		if r.value != "" {
			set++
		}
	}

	flags := ldFlags{
		Name:        defaultName,
		Description: defaultDescription,
		Time:        unknown,
		Commit:      unknown,
		Version:     unknown,
	}

	switch {
	case set == len(required):
		flags.Name = buildName
		flags.Time = buildTime
		flags.Commit = buildCommit
		flags.Version = buildVersion
	case set > 0:
		for _, r := range required {
			if r.value == "" {
				return fmt.Errorf("%s is required", r.name)
			}
		}
	default:
		fromBuildInfo(&flags)
	}

	*buildFlags = flags
	return nil
}

func fromBuildInfo(f *ldFlags) {
	info, ok := readBuildInfo()
	if !ok {
		return
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		f.Version = v
	} else {
		f.Version = "dev"
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			f.Commit = s.Value
			if len(f.Commit) > 12 {
				f.Commit = f.Commit[:12]
			}
		case "vcs.time":
			f.Time = s.Value
		}
	}
}

// GetBuildFlags returns the current build information. Call Initialize()
// first; before that the fields hold defaults.
func GetBuildFlags() *ldFlags {
	return buildFlags
}

// String formats the build information for the version command.
func (f *ldFlags) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", f.Name, f.Version, f.Commit, f.Time)
}

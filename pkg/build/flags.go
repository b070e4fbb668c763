// SPDX-License-Identifier: MIT
//
// Package build exposes the metadata embedded into the binary at link time:
//
//	go build -ldflags "-X beats/pkg/build.buildName=beats \
//	    -X beats/pkg/build.buildTime=$(date -u +%FT%TZ) \
//	    -X beats/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	    -X beats/pkg/build.buildVersion=v0.3.0"
package build

import "fmt"

// Info describes one build.
type Info struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

// String formats the build for --version output.
func (i *Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

// Populated by -ldflags. Development builds keep the defaults in buildInfo.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildInfo    = defaultInfo()
)

func defaultInfo() *Info {
	return &Info{
		Name:    "beats",
		Time:    "unknown",
		Commit:  "unknown",
		Version: "dev",
	}
}

// Initialize copies the ldflags values into the build info. It returns an
// error naming the first missing value and leaves the defaults in place.
func Initialize() error {
	if buildName == "" {
		return fmt.Errorf("BuildName is required")
	}
	if buildTime == "" {
		return fmt.Errorf("BuildTime is required")
	}
	if buildCommit == "" {
		return fmt.Errorf("BuildCommit is required")
	}
	if buildVersion == "" {
		return fmt.Errorf("BuildVersion is required")
	}

	buildInfo = &Info{
		Name:    buildName,
		Time:    buildTime,
		Commit:  buildCommit,
		Version: buildVersion,
	}
	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *Info {
	return buildInfo
}

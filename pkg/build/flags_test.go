// SPDX-License-Identifier: MIT
package build

import (
	"testing"
)

// setFlags replaces the ldflags values for one test.
func setFlags(t *testing.T, name, built, commit, version string) {
	t.Helper()
	orig := [4]string{buildName, buildTime, buildCommit, buildVersion}
	origInfo := buildInfo
	t.Cleanup(func() {
		buildName, buildTime, buildCommit, buildVersion = orig[0], orig[1], orig[2], orig[3]
		buildInfo = origInfo
	})
	buildName, buildTime, buildCommit, buildVersion = name, built, commit, version
	buildInfo = defaultInfo()
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name        string
		buildName   string
		buildTime   string
		buildCommit string
		buildVer    string
		wantErrMsg  string
	}{
		{"Missing BuildName", "", "2025-04-13", "abcdef123", "v1.0.0", "BuildName is required"},
		{"Missing BuildTime", "beats", "", "abcdef123", "v1.0.0", "BuildTime is required"},
		{"Missing BuildCommit", "beats", "2025-04-13", "", "v1.0.0", "BuildCommit is required"},
		{"Missing BuildVersion", "beats", "2025-04-13", "abcdef123", "", "BuildVersion is required"},
		{"Success Case", "beats", "2025-04-13", "abcdef123", "v1.0.0", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setFlags(t, tt.buildName, tt.buildTime, tt.buildCommit, tt.buildVer)

			err := Initialize()
			if tt.wantErrMsg != "" {
				if err == nil || err.Error() != tt.wantErrMsg {
					t.Errorf("Initialize() error = %v, want %v", err, tt.wantErrMsg)
				}
				if *GetBuildFlags() != *defaultInfo() {
					t.Errorf("failed Initialize() changed the build info to %+v", GetBuildFlags())
				}
				return
			}
			if err != nil {
				t.Fatalf("Initialize() unexpected error: %v", err)
			}

			want := Info{Name: tt.buildName, Time: tt.buildTime, Commit: tt.buildCommit, Version: tt.buildVer}
			if got := *GetBuildFlags(); got != want {
				t.Errorf("GetBuildFlags() = %+v, want %+v", got, want)
			}
		})
	}
}

func TestDefaults(t *testing.T) {
	setFlags(t, "", "", "", "")
	info := GetBuildFlags()
	if info.Name != "beats" || info.Version != "dev" {
		t.Errorf("defaults = %+v", info)
	}
}

func TestInfoString(t *testing.T) {
	info := &Info{Name: "beats", Time: "2025-04-13", Commit: "abcdef1", Version: "v0.3.0"}
	want := "beats v0.3.0 (commit abcdef1, built 2025-04-13)"
	if got := info.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

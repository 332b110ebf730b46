/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version provides build version information.
package version

import (
	"fmt"
	"runtime"
)

// Version is the current version of obsrec.
// This is set at build time via ldflags:
//
//	-X github.com/friendsincode/obsrec/internal/version.Version=X.Y.Z
var Version = "0.4.0"

// Commit is the VCS revision, set at build time.
var Commit = "unknown"

// Info describes the running build.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	GoVersion string `json:"go_version"`
}

// Current returns the running build info.
func Current() Info {
	return Info{Version: Version, Commit: Commit, GoVersion: runtime.Version()}
}

// UserAgent is sent on outgoing HTTP requests.
func UserAgent() string {
	return "obsrec/" + Version
}

// String formats the build info for the version command.
func (i Info) String() string {
	return fmt.Sprintf("obsrec %s (%s, %s)", i.Version, i.Commit, i.GoVersion)
}

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package vc provides buildtime information.
package vc // import "github.com/researchops/opsmon/vc"

import (
	"runtime/debug"
	"sync"
)

var (
	// The following variables are going to be set at link time using ldflags
	// and can be referenced later in the program.

	// revision of the service
	revision = ""
	// buildTimestamp, timestamp of the build
	buildTimestamp = ""
	// version in vX.Y.Z{-N-abbrev} format (via git-describe --tags)
	version = ""
)

type buildInfo struct {
	version, revision, timestamp string
}

// fromBuildInfo fills in what ldflags left empty from the module build info.
var fromBuildInfo = sync.OnceValue(func() buildInfo {
	bi := buildInfo{version: version, revision: revision, timestamp: buildTimestamp}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return bi
	}
	if bi.version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		bi.version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if bi.revision == "" {
				bi.revision = s.Value
			}
		case "vcs.time":
			if bi.timestamp == "" {
				bi.timestamp = s.Value
			}
		}
	}
	return bi
})

// Revision of the service.
func Revision() string {
	return fromBuildInfo().revision
}

// BuildTimestamp returns the timestamp of the build.
func BuildTimestamp() string {
	return fromBuildInfo().timestamp
}

// Version in vX.Y.Z{-N-abbrev} format.
func Version() string {
	if v := fromBuildInfo().version; v != "" {
		return v
	}
	return "dev"
}

// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package version stamps the build information reported by
// storj.io/common/version. Release builds regenerate this file.
package version

import _ "unsafe" // needed for go:linkname

//go:linkname buildTimestamp storj.io/common/version.buildTimestamp
var buildTimestamp string

//go:linkname buildCommitHash storj.io/common/version.buildCommitHash
var buildCommitHash string

//go:linkname buildVersion storj.io/common/version.buildVersion
var buildVersion string = "v0.1.0"

//go:linkname buildRelease storj.io/common/version.buildRelease
var buildRelease string = "false"

// ensure that linter understands that the variables are being used.
func init() { use(buildTimestamp, buildCommitHash, buildVersion, buildRelease) }

func use(...interface{}) {}

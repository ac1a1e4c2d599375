// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

// Package main is the entry point for the placy credential service.
package main

import (
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd := NewRootCmd()
	cmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", serviceVersion(version), commit, date)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// serviceVersion is the version reported by the health endpoint. Release
// tags such as v1.4.0 are normalized to 1.4.0; anything that is not
// semver, like "dev", is returned as is.
func serviceVersion(raw string) string {
	v, err := semver.NewVersion(raw)
	if err != nil {
		return raw
	}
	return v.String()
}

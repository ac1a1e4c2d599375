// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

package store

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsFS_EmbeddedFiles(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)

	names := make(map[string]bool, len(entries))
	for _, entry := range entries {
		names[entry.Name()] = true
	}

	for _, want := range []string{
		"000001_create_credentials.up.sql",
		"000001_create_credentials.down.sql",
		"000002_create_one_time_codes.up.sql",
		"000002_create_one_time_codes.down.sql",
		"000003_unique_live_one_time_code.up.sql",
		"000003_unique_live_one_time_code.down.sql",
	} {
		assert.True(t, names[want], "should embed %s", want)
	}

	pattern := regexp.MustCompile(`^\d{6}_\w+\.(up|down)\.sql$`)
	for name := range names {
		assert.True(t, pattern.MatchString(name), "%s should match NNNNNN_name.(up|down).sql", name)
	}
}

func TestMigrationsFS_EveryUpHasDown(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)

	names := make(map[string]bool, len(entries))
	for _, entry := range entries {
		names[entry.Name()] = true
	}
	for name := range names {
		if stem, ok := strings.CutSuffix(name, ".up.sql"); ok {
			assert.True(t, names[stem+".down.sql"], "%s has no down migration", name)
		}
	}
}

func TestMigrationsFS_CredentialEmailIsLowercased(t *testing.T) {
	sql, err := migrationsFS.ReadFile("migrations/000001_create_credentials.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(sql), "UNIQUE CHECK (email = LOWER(email))")
}

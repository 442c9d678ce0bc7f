package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrationVersion(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		version int
		ok      bool
	}{
		{"initial schema", "001_initial_schema.sql", 1, true},
		{"double digits", "012_add_index.sql", 12, true},
		{"no prefix", "schema.sql", 0, false},
		{"zero", "000_base.sql", 0, false},
		{"not sql", "002_notes.md", 0, false},
		{"letters", "abc_thing.sql", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, ok := migrationVersion(tt.file)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.version, version)
		})
	}
}

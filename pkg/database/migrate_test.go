package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationNamesAreOrderedAndEmbedded(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_schema.sql", names[0])
}

func TestSchemaEnforcesRegistrationConstraints(t *testing.T) {
	raw, err := migrationsFS.ReadFile("migrations/001_schema.sql")
	require.NoError(t, err)
	schema := string(raw)

	for _, want := range []string{
		"UNIQUE (tutorial_id, attendee_id)",
		"cpf        CHAR(11) NOT NULL UNIQUE",
		"CHECK (vacancies >= 1)",
		"REFERENCES tutorials(id) ON DELETE CASCADE",
		"REFERENCES attendees(id) ON DELETE CASCADE",
		"REFERENCES events(id) ON DELETE CASCADE",
	} {
		assert.True(t, strings.Contains(schema, want), "schema missing %q", want)
	}
}

func TestEmailLogsClaimTimeMigration(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	assert.Contains(t, names, "002_email_logs_queued_at.sql")

	raw, err := migrationsFS.ReadFile("migrations/002_email_logs_queued_at.sql")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "ADD COLUMN IF NOT EXISTS queued_at TIMESTAMPTZ")
}

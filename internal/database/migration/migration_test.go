package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := fs.ReadDir(migrations, dir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	for _, e := range entries {
		b, err := fs.ReadFile(migrations, dir+"/"+e.Name())
		require.NoError(t, err)
		body := string(b)
		assert.True(t, strings.Contains(body, "-- +goose Up"), "%s lacks an Up section", e.Name())
		assert.True(t, strings.Contains(body, "-- +goose Down"), "%s lacks a Down section", e.Name())
	}
}

func TestDocumentsSchemaColumns(t *testing.T) {
	b, err := fs.ReadFile(migrations, dir+"/00001_create_documents.sql")
	require.NoError(t, err)

	for _, col := range []string{
		"client_id", "storage_key", "checksum", "category", "tags", "related_documents",
		"access_count", "last_accessed", "is_archived", "retention_date", "approved_by",
		"approval_date", "version", "created_by", "updated_by",
	} {
		assert.Contains(t, string(b), col)
	}
}

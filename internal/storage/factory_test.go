package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casedocs/internal/config"
)

func TestNew_UnknownDriver(t *testing.T) {
	s, err := New(context.Background(), config.StorageConfig{Driver: "ftp"})

	require.Error(t, err)
	assert.Nil(t, s)
	assert.Contains(t, err.Error(), `"ftp"`)
}

func TestNew_DefaultsToMinIO(t *testing.T) {
	_, err := New(context.Background(), config.StorageConfig{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "minio endpoint is required")
}

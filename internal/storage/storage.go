package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"casedocs/internal/model"
)

// Package storage contains blob storage abstractions for object stores (S3-compatible).
// Implementations rely on streaming I/O only and never stage content on local disk.

// MaxPresignTTL is the longest lifetime S3-style signatures accept.
const MaxPresignTTL = 7 * 24 * time.Hour

var (
	// ErrObjectNotFound is returned by Get and Stat when no blob exists under the key.
	ErrObjectNotFound = errors.New("object not found")
	// ErrInvalidTTL is returned by PresignGet for non-positive or overlong lifetimes.
	ErrInvalidTTL = fmt.Errorf("presign ttl must be within (0, %s]", MaxPresignTTL)
)

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known; if unknown, set to -1 and the implementation
// will buffer/chunk as supported by the backend.
// ContentType and Metadata are optional.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about an object in storage.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is a reusable, S3-compatible object storage client interface.
// Methods use context and streaming readers/writers; no local disk is used.
type Storage interface {
	// Put uploads an object under the given key, overwriting any existing object.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get retrieves an object's content as a streaming reader alongside its info.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Stat returns object properties without reading content.
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	// Exists reports whether a blob is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
	// Delete removes an object by key. Deleting a missing key is not an error;
	// the returned bool reports whether something was removed.
	Delete(ctx context.Context, key string) (bool, error)
	// PresignGet returns a time-limited URL that can be used to download the object without credentials.
	PresignGet(ctx context.Context, key string, ttl time.Duration) (model.SignedURL, error)
}

func validateTTL(ttl time.Duration) error {
	if ttl <= 0 || ttl > MaxPresignTTL {
		return ErrInvalidTTL
	}
	return nil
}

// existsViaStat implements Exists on top of Stat for the concrete backends.
func existsViaStat(ctx context.Context, s interface {
	Stat(context.Context, string) (ObjectInfo, error)
}, key string) (bool, error) {
	_, err := s.Stat(ctx, key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrObjectNotFound) {
		return false, nil
	}
	return false, err
}

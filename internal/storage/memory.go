package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"sync"
	"time"

	"casedocs/internal/model"
)

// Memory is an in-process Storage used by tests. Objects live only as long
// as the value; it must never back a running server.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	now     func() time.Time

	// FailPut and FailDelete inject backend failures for the given keys.
	FailPut    func(key string) error
	FailDelete func(key string) error
}

type memoryObject struct {
	data []byte
	info ObjectInfo
}

// NewMemory returns an empty in-memory store using clock for timestamps.
func NewMemory(clock func() time.Time) *Memory {
	if clock == nil {
		clock = time.Now
	}
	return &Memory{objects: make(map[string]memoryObject), now: clock}
}

func (m *Memory) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	if m.FailPut != nil {
		if err := m.FailPut(key); err != nil {
			return ObjectInfo{}, err
		}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("put object: %w", err)
	}
	if opt.Size >= 0 && int64(len(data)) != opt.Size {
		return ObjectInfo{}, fmt.Errorf("put object: size mismatch: declared %d, read %d", opt.Size, len(data))
	}
	sum := md5.Sum(data)
	info := ObjectInfo{
		Key:          key,
		Size:         int64(len(data)),
		ETag:         hex.EncodeToString(sum[:]),
		ContentType:  opt.ContentType,
		LastModified: m.now(),
		Metadata:     opt.Metadata,
	}
	m.mu.Lock()
	m.objects[key] = memoryObject{data: data, info: info}
	m.mu.Unlock()
	return info, nil
}

func (m *Memory) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, ObjectInfo{}, err
	}
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ObjectInfo{}, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.info, nil
}

func (m *Memory) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return ObjectInfo{}, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return obj.info, nil
}

func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	return existsViaStat(ctx, m, key)
}

func (m *Memory) Delete(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if m.FailDelete != nil {
		if err := m.FailDelete(key); err != nil {
			return false, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	delete(m.objects, key)
	return ok, nil
}

// PresignGet returns a memory:// URL carrying its expiry; Resolve honours it.
func (m *Memory) PresignGet(ctx context.Context, key string, ttl time.Duration) (model.SignedURL, error) {
	if err := validateTTL(ttl); err != nil {
		return model.SignedURL{}, err
	}
	expiresAt := m.now().Add(ttl)
	u := url.URL{
		Scheme:   "memory",
		Path:     "/" + key,
		RawQuery: url.Values{"expires": {strconv.FormatInt(expiresAt.UnixNano(), 10)}}.Encode(),
	}
	return model.SignedURL{URL: u.String(), ExpiresAt: expiresAt}, nil
}

// Resolve fetches the content behind a URL produced by PresignGet, failing
// once the URL has expired.
func (m *Memory) Resolve(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	exp, err := strconv.ParseInt(u.Query().Get("expires"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed signed url: %w", err)
	}
	if !m.now().Before(time.Unix(0, exp)) {
		return nil, fmt.Errorf("signed url expired")
	}
	rc, _, err := m.Get(ctx, u.Path[1:])
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Len returns the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

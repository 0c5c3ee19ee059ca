// Package checksum computes content-addressed digests of uploaded bytes.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
)

// Hasher accumulates a SHA-256 digest over every byte read through Reader.
// It is not safe for concurrent use.
type Hasher struct {
	h    hash.Hash
	size int64
}

// NewHasher returns an empty Hasher.
func NewHasher() *Hasher {
	return &Hasher{h: sha256.New()}
}

// Reader wraps r so that bytes are hashed as they are consumed.
func (h *Hasher) Reader(r io.Reader) io.Reader {
	return &hashingReader{r: r, h: h}
}

// Sum returns the lowercase hex digest of the bytes seen so far.
func (h *Hasher) Sum() string {
	return hex.EncodeToString(h.h.Sum(nil))
}

// Size returns the number of bytes seen so far.
func (h *Hasher) Size() int64 {
	return h.size
}

type hashingReader struct {
	r io.Reader
	h *Hasher
}

func (hr *hashingReader) Read(p []byte) (int, error) {
	n, err := hr.r.Read(p)
	if n > 0 {
		hr.h.h.Write(p[:n])
		hr.h.size += int64(n)
	}
	return n, err
}

// Compute drains r and returns its hex digest and length.
func Compute(r io.Reader) (string, int64, error) {
	h := NewHasher()
	if _, err := io.Copy(io.Discard, h.Reader(r)); err != nil {
		return "", 0, err
	}
	return h.Sum(), h.Size(), nil
}

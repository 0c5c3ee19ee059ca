package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// sniffLen is how many leading bytes are inspected to detect the real content type.
const sniffLen = 512

var allowedExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".bmp": {}, ".webp": {},
	".tif": {}, ".tiff": {}, ".heic": {},
	".pdf": {},
	".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {}, ".pptx": {},
	".odt": {}, ".ods": {}, ".odp": {}, ".rtf": {},
	".txt": {}, ".csv": {},
}

var allowedMimeTypes = map[string]struct{}{
	"application/pdf":               {},
	"application/msword":            {},
	"application/vnd.ms-excel":      {},
	"application/vnd.ms-powerpoint": {},
	"application/rtf":               {},
	"text/rtf":                      {},
	"text/plain":                    {},
	"text/csv":                      {},
}

var allowedMimePrefixes = []string{
	"image/",
	"application/vnd.openxmlformats-officedocument.",
	"application/vnd.oasis.opendocument.",
}

// executableTypes are rejected whatever name or declared type they arrive with.
var executableTypes = []string{
	"application/vnd.microsoft.portable-executable",
	"application/x-msdownload",
	"application/x-executable",
	"application/x-elf",
	"application/x-mach-binary",
	"application/x-sharedlib",
}

// allowedType checks the extension and, when the client declared something
// more specific than a generic binary type, the declared MIME type as well.
func allowedType(fileName, declared string) bool {
	ext := strings.ToLower(path.Ext(baseName(fileName)))
	if _, ok := allowedExtensions[ext]; !ok {
		return false
	}
	mt := mediaType(declared)
	if mt == "" || mt == "application/octet-stream" {
		return true
	}
	return allowedMime(mt)
}

func allowedMime(mt string) bool {
	if mt == "image/svg+xml" {
		return false
	}
	if _, ok := allowedMimeTypes[mt]; ok {
		return true
	}
	for _, p := range allowedMimePrefixes {
		if strings.HasPrefix(mt, p) {
			return true
		}
	}
	return false
}

func mediaType(s string) string {
	mt, _, _ := strings.Cut(s, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

// recordedMime picks the type stored with the document. The sniffed type wins
// unless detection fell back to a generic binary or text type.
func recordedMime(sniffed *mimetype.MIME, declared string) string {
	detected := mediaType(sniffed.String())
	d := mediaType(declared)
	switch {
	case detected == "application/octet-stream" && d != "":
		return d
	case detected == "text/plain" && strings.HasPrefix(d, "text/"):
		return d
	case detected == "application/zip" && strings.HasPrefix(d, "application/vnd."):
		return d
	}
	return detected
}

func isExecutable(m *mimetype.MIME) bool {
	for _, t := range executableTypes {
		if m.Is(t) {
			return true
		}
	}
	return false
}

// peek reads up to sniffLen bytes and returns them with a reader that still
// yields the full stream.
func peek(r io.Reader) ([]byte, io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, nil, err
	}
	head = head[:n]
	return head, io.MultiReader(bytes.NewReader(head), r), nil
}

func baseName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// sanitize keeps letters, digits, dot, dash and underscore.
func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), ".")
}

// storedFileName is the unique last key segment: <unixnano>-<random>-<sanitized name>.
func storedFileName(now time.Time, original string) string {
	name := sanitize(baseName(original))
	if name == "" {
		name = "file"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d-%s-%s", now.UnixNano(), suffix, name)
}

// storageKey returns clientId/category/storedFileName with every segment sanitized.
func storageKey(clientID, category, stored string) string {
	client := sanitize(clientID)
	if client == "" {
		client = "client"
	}
	return client + "/" + category + "/" + stored
}

// ceilingReader fails once more than max bytes have been read.
type ceilingReader struct {
	r   io.Reader
	max int64
	n   int64
}

func (c *ceilingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if c.n > c.max {
		return n, fmt.Errorf("%w: more than %d bytes", ErrPayloadTooLarge, c.max)
	}
	return n, err
}

func (c *ceilingReader) exceeded() bool {
	return c.n > c.max
}

// ParseTags accepts a JSON array or a comma-separated list.
func ParseTags(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "[") {
		var out []string
		if err := json.Unmarshal([]byte(raw), &out); err == nil {
			return compact(out)
		}
	}
	return compact(strings.Split(raw, ","))
}

func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if t := strings.TrimSpace(it); t != "" {
			out = append(out, t)
		}
	}
	return out
}

package checksum

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "empty",
			input: "",
			want:  "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name:  "hello world",
			input: "hello world",
			want:  "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum, n, err := Compute(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, sum)
			assert.Equal(t, int64(len(tt.input)), n)
		})
	}
}

func TestHasher_StreamsThroughReader(t *testing.T) {
	payload := bytes.Repeat([]byte("abc123"), 10_000)

	h := NewHasher()
	var sink bytes.Buffer
	_, err := io.Copy(&sink, iotest.OneByteReader(h.Reader(bytes.NewReader(payload))))
	require.NoError(t, err)

	want, _, err := Compute(bytes.NewReader(payload))
	require.NoError(t, err)

	assert.Equal(t, payload, sink.Bytes())
	assert.Equal(t, want, h.Sum())
	assert.Equal(t, int64(len(payload)), h.Size())
}

func TestCompute_PropagatesReadError(t *testing.T) {
	boom := errors.New("disk gone")
	_, _, err := Compute(iotest.ErrReader(boom))
	assert.ErrorIs(t, err, boom)
}

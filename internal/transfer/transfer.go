// Package transfer prepares files for sending: it builds the metadata typed
// in the header and compresses the payload.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/keycast/keycast/internal/core/lz"
)

const (
	// MaxNameLength is the longest file name the receiver accepts.
	MaxNameLength = 14
	// DefaultType tags a payload of raw bytes.
	DefaultType = "dat"
)

// ErrEmpty is returned when there is nothing to send.
var ErrEmpty = errors.New("transfer: nothing to send")

// Transfer is a compressed payload together with the metadata typed in the
// header. It is not modified once Prepare returns it.
type Transfer struct {
	// Name is the sanitized file name, before case inversion.
	Name string
	Type string
	// ActualSize is the size of the uncompressed data.
	ActualSize int
	// Checksum is the xxhash of the uncompressed data.
	Checksum uint64
	// Payload is the compressed data.
	Payload []byte
}

// CompressedSize is the number of payload bytes that will be sent.
func (t *Transfer) CompressedSize() int { return len(t.Payload) }

// ChecksumString formats Checksum for logs and history.
func (t *Transfer) ChecksumString() string {
	return fmt.Sprintf("%016x", t.Checksum)
}

// HeaderLines returns the lines typed before the payload: the case-inverted
// name, the type tag, the compressed size and the actual size.
func (t *Transfer) HeaderLines() []string {
	return []string{
		InvertCase(t.Name),
		t.Type,
		strconv.Itoa(t.CompressedSize()),
		strconv.Itoa(t.ActualSize),
	}
}

// SanitizeName keeps the printable ASCII characters of name, up to
// MaxNameLength of them.
func SanitizeName(name string) string {
	var sb strings.Builder
	n := 0
	for _, r := range name {
		if r < 0x20 || r >= 0x7F {
			continue
		}
		sb.WriteRune(r)
		n++
		if n == MaxNameLength {
			break
		}
	}
	return sb.String()
}

// InvertCase swaps upper and lower case ASCII letters.
func InvertCase(s string) string {
	b := []byte(s)
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z':
			b[i] = c - 'a' + 'A'
		case c >= 'A' && c <= 'Z':
			b[i] = c - 'A' + 'a'
		}
	}
	return string(b)
}

// Options configures Prepare.
type Options struct {
	// Type is the type tag; DefaultType when empty.
	Type string
	// Progress is called while the payload is compressed.
	Progress func(done, total int)
	// Cache, if set, is consulted before compressing and filled afterwards.
	Cache *Cache
}

// Prepare compresses data and returns the finished Transfer. Compression runs
// on the calling goroutine; if ctx is cancelled first the partial output is
// discarded and ctx.Err() is returned.
func Prepare(ctx context.Context, name string, data []byte, opts *Options) (*Transfer, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if opts == nil {
		opts = &Options{}
	}

	t := &Transfer{
		Name:       SanitizeName(name),
		Type:       opts.Type,
		ActualSize: len(data),
		Checksum:   xxhash.Sum64(data),
	}
	if t.Type == "" {
		t.Type = DefaultType
	}

	if opts.Cache != nil {
		if payload, ok := opts.Cache.Get(t.Checksum, len(data)); ok {
			t.Payload = payload
			if opts.Progress != nil {
				opts.Progress(len(data), len(data))
			}
			return t, nil
		}
	}

	payload, err := lz.Compress(ctx, data, &lz.Options{Progress: opts.Progress})
	if err != nil {
		if errors.Is(err, lz.ErrNoData) {
			return nil, ErrEmpty
		}
		return nil, err
	}

	t.Payload = payload
	if opts.Cache != nil {
		opts.Cache.Put(t.Checksum, len(data), t.Payload)
	}
	return t, nil
}

// PrepareFile reads the file at path and prepares it under its base name.
func PrepareFile(ctx context.Context, path string, opts *Options) (*Transfer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	return Prepare(ctx, filepath.Base(path), data, opts)
}

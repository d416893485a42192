// Package imagedata converts product images between raw bytes and inline data URLs.
package imagedata

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxBytes is the per-image upload limit
const DefaultMaxBytes int64 = 10 << 20

const maxParallelReads = 4

var (
	ErrEmptyImage      = errors.New("image is empty")
	ErrImageTooLarge   = errors.New("image exceeds size limit")
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrInvalidDataURL  = errors.New("invalid image data url")
)

var allowedTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
}

// AllowedTypes returns the MIME types accepted for product images
func AllowedTypes() []string {
	return append([]string(nil), allowedTypes...)
}

func allowed(mime string) bool {
	for _, t := range allowedTypes {
		if t == mime {
			return true
		}
	}
	return false
}

// Encode sniffs the content type of data and returns it as a base64 data URL.
// maxBytes <= 0 disables the size check.
func Encode(data []byte, maxBytes int64) (string, error) {
	mime, err := sniff(data, maxBytes)
	if err != nil {
		return "", err
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func sniff(data []byte, maxBytes int64) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyImage
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrImageTooLarge, len(data), maxBytes)
	}

	mime := mimetype.Detect(data).String()
	if !allowed(mime) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mime)
	}
	return mime, nil
}

// Validate checks that url carries an allowed image of at most maxBytes whose
// content matches the declared type. It applies the same rules as Encode.
func Validate(url string, maxBytes int64) error {
	declared, data, err := Decode(url)
	if err != nil {
		return err
	}
	mime, err := sniff(data, maxBytes)
	if err != nil {
		return err
	}
	if declared != mime {
		return fmt.Errorf("%w: declared %s, content is %s", ErrUnsupportedType, declared, mime)
	}
	return nil
}

// MaxURLLength is the longest data URL Encode can return for maxBytes of image data
func MaxURLLength(maxBytes int64) int64 {
	longestPrefix := 0
	for _, t := range allowedTypes {
		longestPrefix = max(longestPrefix, len("data:"+t+";base64,"))
	}
	return int64(longestPrefix) + (maxBytes+2)/3*4
}

// EncodeReader reads at most maxBytes from r and encodes it
func EncodeReader(r io.Reader, maxBytes int64) (string, error) {
	if maxBytes > 0 {
		r = io.LimitReader(r, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	return Encode(data, maxBytes)
}

// Decode splits a base64 data URL into its MIME type and raw bytes
func Decode(url string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURL)
	}
	if mime == "" {
		mime = "text/plain"
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return mime, data, nil
}

// EncodeFiles reads and encodes the files at paths concurrently.
// Results keep the order of paths; the first failure cancels the rest.
func EncodeFiles(ctx context.Context, paths []string, maxBytes int64) ([]string, error) {
	urls := make([]string, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelReads)

	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			url, err := encodeFile(path, maxBytes)
			if err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(path), err)
			}
			urls[i] = url
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}

func encodeFile(path string, maxBytes int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	if maxBytes > 0 {
		if info, err := f.Stat(); err == nil && info.Size() > maxBytes {
			return "", fmt.Errorf("%w: %d bytes, limit %d", ErrImageTooLarge, info.Size(), maxBytes)
		}
	}
	return EncodeReader(f, maxBytes)
}

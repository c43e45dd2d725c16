// Package source opens dataset inputs from local disk or S3-compatible
// object storage and undoes gzip, zstd or lz4 compression based on suffix.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pierrec/lz4/v4"
)

// S3Options configures access to s3:// URIs.
type S3Options struct {
	Endpoint string
	Region   string
	Secure   bool
}

// ErrInvalidURI reports a malformed s3:// URI.
var ErrInvalidURI = errors.New("source: invalid s3 uri")

// ParseS3URI splits s3://bucket/key into its parts.
func ParseS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("%w: %q lacks s3:// prefix", ErrInvalidURI, uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q needs bucket and key", ErrInvalidURI, uri)
	}
	return bucket, key, nil
}

// IsS3 reports whether uri names an object in S3-compatible storage.
func IsS3(uri string) bool { return strings.HasPrefix(uri, "s3://") }

// Open returns a reader over the decompressed contents of uri.
func Open(ctx context.Context, uri string, opts S3Options) (io.ReadCloser, error) {
	var raw io.ReadCloser
	if IsS3(uri) {
		obj, err := openS3(ctx, uri, opts)
		if err != nil {
			return nil, err
		}
		raw = obj
	} else {
		f, err := os.Open(uri)
		if err != nil {
			return nil, fmt.Errorf("source: open: %w", err)
		}
		raw = f
	}
	rc, err := Decompress(uri, raw)
	if err != nil {
		raw.Close()
		return nil, err
	}
	return rc, nil
}

// Decompress wraps r with the decoder implied by name's suffix. Closing the
// result closes r.
func Decompress(name string, r io.ReadCloser) (io.ReadCloser, error) {
	switch {
	case strings.HasSuffix(name, ".gz"):
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("source: gzip: %w", err)
		}
		return &stacked{Reader: zr, closers: []io.Closer{zr, r}}, nil
	case strings.HasSuffix(name, ".zst"):
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("source: zstd: %w", err)
		}
		return &stacked{Reader: zr, closers: []io.Closer{zstdCloser{zr}, r}}, nil
	case strings.HasSuffix(name, ".lz4"):
		return &stacked{Reader: lz4.NewReader(r), closers: []io.Closer{r}}, nil
	}
	return r, nil
}

func openS3(ctx context.Context, uri string, opts S3Options) (io.ReadCloser, error) {
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = "s3.amazonaws.com"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewEnvAWS(),
		Secure: opts.Secure,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("source: s3 client: %w", err)
	}
	obj, err := client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("source: get %s: %w", uri, err)
	}
	// GetObject is lazy; Stat surfaces missing objects before decoding starts.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NotFound" {
			return nil, fmt.Errorf("source: %s: %w", uri, os.ErrNotExist)
		}
		return nil, fmt.Errorf("source: stat %s: %w", uri, err)
	}
	return obj, nil
}

type stacked struct {
	io.Reader
	closers []io.Closer
}

func (s *stacked) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

type zstdCloser struct{ d *zstd.Decoder }

func (z zstdCloser) Close() error {
	z.d.Close()
	return nil
}

package dataset

import (
	"archive/tar"
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Record is an encoded image paired with its class label.
type Record struct {
	Key   string
	Image []byte
	Label int
}

// ErrPendingOverflow indicates the pairing buffer exceeded its bound.
var ErrPendingOverflow = errors.New("shard: pending pair buffer exceeded")

const defaultPendingCap = 1024

// ReadShard pairs <key>.{png,jpg,jpeg} entries with <key>.cls labels from a
// WebDataset tar stream. Records are returned in the order their pairs complete.
func ReadShard(ctx context.Context, r io.Reader, pendingCap int) ([]Record, error) {
	if pendingCap <= 0 {
		pendingCap = defaultPendingCap
	}
	tr := tar.NewReader(bufio.NewReader(r))
	pending := make(map[string]*partial)
	var out []Record

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "shard: read tar")
		}
		if hdr.FileInfo().IsDir() {
			continue
		}
		name := filepath.Base(hdr.Name)
		ext := strings.ToLower(filepath.Ext(name))
		key := strings.TrimSuffix(name, filepath.Ext(name))

		var part *partial
		switch ext {
		case ".jpg", ".jpeg", ".png":
			data, err := io.ReadAll(tr)
			if err != nil {
				return nil, errors.Wrapf(err, "shard: read image %s", name)
			}
			part = pendingPart(pending, key)
			part.image = data
		case ".cls":
			payload, err := io.ReadAll(tr)
			if err != nil {
				return nil, errors.Wrapf(err, "shard: read label %s", name)
			}
			label, err := strconv.Atoi(strings.TrimSpace(string(payload)))
			if err != nil {
				return nil, errors.Wrapf(err, "shard: parse label %s", name)
			}
			part = pendingPart(pending, key)
			part.label = &label
		default:
			continue
		}

		if len(pending) > pendingCap {
			return nil, ErrPendingOverflow
		}
		if part.ready() {
			out = append(out, Record{Key: key, Image: part.image, Label: *part.label})
			delete(pending, key)
		}
	}

	if len(pending) > 0 {
		return nil, errors.Errorf("shard: %d samples incomplete", len(pending))
	}
	return out, nil
}

// ReadShardFile reads the shard at path.
func ReadShardFile(ctx context.Context, path string, pendingCap int) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "shard: open")
	}
	defer f.Close()
	recs, err := ReadShard(ctx, f, pendingCap)
	return recs, errors.Wrapf(err, "shard %s", path)
}

// LoadShards reads every shard with at most workers files open at once and
// concatenates their records in path order.
func LoadShards(ctx context.Context, paths []string, workers int) ([]Record, error) {
	if workers <= 0 {
		workers = 1
	}
	perShard := make([][]Record, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		g.Go(func() error {
			recs, err := ReadShardFile(ctx, path, 0)
			if err != nil {
				return err
			}
			perShard[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []Record
	for _, recs := range perShard {
		out = append(out, recs...)
	}
	return out, nil
}

type partial struct {
	image []byte
	label *int
}

func (p *partial) ready() bool {
	return len(p.image) > 0 && p.label != nil
}

func pendingPart(pending map[string]*partial, key string) *partial {
	part := pending[key]
	if part == nil {
		part = &partial{}
		pending[key] = part
	}
	return part
}

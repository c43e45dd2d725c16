package dataset

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"

	"github.com/pkg/errors"
)

// ErrNoShards is returned when a root holds no shard files.
var ErrNoShards = errors.New("dataset: no shards")

var shardRegexp = regexp.MustCompile(`^shard-[0-9]{6,}\.tar$`)

// DiscoverShards returns the shard files beneath root in lexical order.
// A root without shards yields an empty slice, not an error.
func DiscoverShards(root string) ([]string, error) {
	var found []string
	err := fs.WalkDir(os.DirFS(root), ".", func(rel string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && shardRegexp.MatchString(d.Name()) {
			found = append(found, filepath.Join(root, filepath.FromSlash(rel)))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "dataset: discover shards under %s", root)
	}
	slices.Sort(found)
	return found, nil
}

// DiscoverByRoot scans each root independently. Every root must contribute
// at least one shard; the error for an empty root names it.
func DiscoverByRoot(roots []string) (map[string][]string, error) {
	result := make(map[string][]string, len(roots))
	for _, root := range roots {
		shards, err := DiscoverShards(root)
		if err != nil {
			return nil, err
		}
		if len(shards) == 0 {
			return nil, errors.Wrapf(ErrNoShards, "root %s", root)
		}
		result[root] = shards
	}
	return result, nil
}

// Discover scans roots and returns their shards in Interleave order.
func Discover(roots []string) ([]string, error) {
	if len(roots) == 0 {
		return nil, errors.Wrap(ErrNoShards, "no roots given")
	}
	byRoot, err := DiscoverByRoot(roots)
	if err != nil {
		return nil, err
	}
	return Interleave(byRoot), nil
}

// Interleave orders shards round-robin across roots, taking roots in name
// order, so that the identity order of the loaded store alternates sources.
func Interleave(byRoot map[string][]string) []string {
	rootNames := make([]string, 0, len(byRoot))
	remaining := make(map[string][]string, len(byRoot))
	for root, shards := range byRoot {
		if len(shards) == 0 {
			continue
		}
		rootNames = append(rootNames, root)
		remaining[root] = shards
	}
	sort.Strings(rootNames)
	var order []string
	for {
		advanced := false
		for _, root := range rootNames {
			shards := remaining[root]
			if len(shards) == 0 {
				continue
			}
			order = append(order, shards[0])
			remaining[root] = shards[1:]
			advanced = true
		}
		if !advanced {
			break
		}
	}
	return order
}

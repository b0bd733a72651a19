package store

import (
	"context"

	"github.com/unkn0wn-root/normcache/record"
)

// LoadFunc returns the current view of key, or nil when absent.
type LoadFunc func(ctx context.Context, key string) (*record.Record, error)

// RemoveFunc removes exactly one key and reports whether it was present.
type RemoveFunc func(ctx context.Context, key string) (bool, error)

// CascadeRemove removes key and, when cascade is set, every record reachable
// from it through References. References are taken from the view returned by
// load before each removal. Every key is visited at most once, so reference
// cycles terminate. It reports whether key was present.
func CascadeRemove(ctx context.Context, key string, cascade bool, load LoadFunc, remove RemoveFunc) (bool, error) {
	visited := make(map[string]struct{})
	return cascadeRemove(ctx, key, cascade, load, remove, visited)
}

func cascadeRemove(ctx context.Context, key string, cascade bool, load LoadFunc, remove RemoveFunc, visited map[string]struct{}) (bool, error) {
	if _, seen := visited[key]; seen {
		return false, nil
	}
	visited[key] = struct{}{}

	var refs []string
	if cascade {
		rec, err := load(ctx, key)
		if err != nil {
			return false, err
		}
		if rec != nil {
			refs = rec.References()
		}
	}

	removed, err := remove(ctx, key)
	if err != nil {
		return removed, err
	}
	for _, ref := range refs {
		if _, err := cascadeRemove(ctx, ref, cascade, load, remove, visited); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

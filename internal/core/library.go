package core

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/austinkregel/local-media/mpdd/internal/backend"
	"github.com/austinkregel/local-media/mpdd/internal/types"
)

// Library fans catalog requests out to the backends owning each URI. Backend
// libraries are expected to be safe for concurrent use, so Library can be
// called from any goroutine.
type Library struct {
	backends *backend.Registry
	bus      Publisher
	logger   *log.Logger
}

// NewLibrary creates the library controller
func NewLibrary(backends *backend.Registry, bus Publisher, logger *log.Logger) *Library {
	return &Library{backends: backends, bus: bus, logger: logger}
}

func (l *Library) libraryFor(uri string) backend.Library {
	b := l.backends.ForURI(uri)
	if b == nil {
		return nil
	}
	return b.Library()
}

// Browse lists the children of a directory URI. The empty URI lists the
// root directory of every backend.
func (l *Library) Browse(ctx context.Context, uri string) ([]types.Ref, error) {
	if uri == "" {
		var roots []types.Ref
		for _, b := range l.backends.Backends() {
			lib := b.Library()
			if lib == nil {
				continue
			}
			if root := lib.RootDirectory(); root != nil {
				roots = append(roots, *root)
			}
		}
		return roots, nil
	}

	lib := l.libraryFor(uri)
	if lib == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoBackend, uri)
	}
	refs, err := lib.Browse(ctx, uri)
	if errors.Is(err, backend.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	return refs, err
}

// Lookup resolves each URI into its tracks. URIs without a backend map to
// an empty result.
func (l *Library) Lookup(ctx context.Context, uris ...string) (map[string][]types.Track, error) {
	out := make(map[string][]types.Track, len(uris))
	for _, uri := range uris {
		lib := l.libraryFor(uri)
		if lib == nil {
			out[uri] = nil
			continue
		}
		tracks, err := lib.Lookup(ctx, uri)
		if err != nil && !errors.Is(err, backend.ErrNotFound) {
			return nil, fmt.Errorf("failed to look up %s: %w", uri, err)
		}
		out[uri] = tracks
	}
	return out, nil
}

// Search queries every backend, or only those owning the given URIs
func (l *Library) Search(ctx context.Context, query types.Query, uris []string, exact bool) ([]types.SearchResult, error) {
	var results []types.SearchResult
	for _, b := range l.selectBackends(uris) {
		lib := b.Library()
		if lib == nil {
			continue
		}
		res, err := lib.Search(ctx, query, uris, exact)
		if errors.Is(err, backend.ErrNotSupported) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s search failed: %w", b.Name(), err)
		}
		if res != nil {
			results = append(results, *res)
		}
	}
	return results, nil
}

// Distinct returns the sorted set of values a field takes across all
// backends, restricted by query
func (l *Library) Distinct(ctx context.Context, field string, query types.Query) ([]string, error) {
	seen := make(map[string]struct{})
	for _, b := range l.backends.Backends() {
		lib := b.Library()
		if lib == nil {
			continue
		}
		values, err := lib.Distinct(ctx, field, query)
		if errors.Is(err, backend.ErrNotSupported) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s distinct failed: %w", b.Name(), err)
		}
		for _, v := range values {
			seen[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

// Refresh rescans the backend owning uri, or every backend when uri is empty
func (l *Library) Refresh(ctx context.Context, uri string) error {
	var targets []backend.Backend
	if uri == "" {
		targets = l.backends.Backends()
	} else if b := l.backends.ForURI(uri); b != nil {
		targets = []backend.Backend{b}
	}
	for _, b := range targets {
		lib := b.Library()
		if lib == nil {
			continue
		}
		if err := lib.Refresh(ctx, uri); err != nil && !errors.Is(err, backend.ErrNotSupported) {
			return fmt.Errorf("%s refresh failed: %w", b.Name(), err)
		}
	}
	l.logger.Info("library refreshed", "uri", uri)
	l.bus.Publish(Event{Type: EventLibraryRefreshed, URI: uri})
	return nil
}

// URISchemes lists every scheme a backend handles
func (l *Library) URISchemes() []string {
	return l.backends.URISchemes()
}

func (l *Library) selectBackends(uris []string) []backend.Backend {
	if len(uris) == 0 {
		return l.backends.Backends()
	}
	seen := make(map[backend.Backend]bool)
	var out []backend.Backend
	for _, uri := range uris {
		if b := l.backends.ForURI(uri); b != nil && !seen[b] {
			seen[b] = true
			out = append(out, b)
		}
	}
	return out
}

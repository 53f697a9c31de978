// Package format keeps the known extractors by name and probes sources
// against them.
package format

import (
	"fmt"
	"io"
	"sort"

	"github.com/colinkho/media-sub001/av"
	"github.com/colinkho/media-sub001/container/jpeg"
	"github.com/colinkho/media-sub001/container/mp4"
	cmap "github.com/orcaman/concurrent-map"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Format names
const (
	JPEG = "jpeg"
	MP4  = "mp4"
)

var (
	// ErrUnknownFormat means no registered extractor recognized the source
	ErrUnknownFormat = fmt.Errorf("unknown format")
	// ErrNotRegistered means no extractor is registered under the name
	ErrNotRegistered = fmt.Errorf("format not registered")
)

type entry struct {
	name     string
	priority int
	factory  av.ExtractorFactory
}

// Registry maps format names to extractor factories. Detect tries them by
// ascending priority.
type Registry struct {
	entries cmap.ConcurrentMap
}

// NewRegistry returns an empty Registry
func NewRegistry() *Registry {
	return &Registry{
		entries: cmap.New(),
	}
}

// NewDefault returns a Registry with the jpeg motion photo and mp4 extractors.
// embedded names the extractor reading the video of motion photos.
func NewDefault(embedded string) (*Registry, error) {
	r := NewRegistry()
	r.Register(MP4, 10, func() av.Extractor { return mp4.New() })
	sub, err := r.Factory(embedded)
	if err != nil {
		return nil, errors.Wrapf(err, "embedded extractor %q", embedded)
	}
	r.Register(JPEG, 0, jpeg.Factory(jpeg.WithEmbedded(sub)))
	return r, nil
}

// Register adds or replaces the factory of name
func (r *Registry) Register(name string, priority int, factory av.ExtractorFactory) {
	r.entries.Set(name, &entry{
		name:     name,
		priority: priority,
		factory:  factory,
	})
	log.Debugf("format %s registered with priority %d", name, priority)
}

// Factory returns the factory registered under name
func (r *Registry) Factory(name string) (av.ExtractorFactory, error) {
	v, ok := r.entries.Get(name)
	if !ok {
		return nil, errors.Wrap(ErrNotRegistered, name)
	}
	return v.(*entry).factory, nil
}

// Names returns the registered names by ascending priority
func (r *Registry) Names() []string {
	sorted := r.sorted()
	names := make([]string, 0, len(sorted))
	for _, e := range sorted {
		names = append(names, e.name)
	}
	return names
}

func (r *Registry) sorted() []*entry {
	var entries []*entry
	for item := range r.entries.IterBuffered() {
		entries = append(entries, item.Val.(*entry))
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].priority != entries[j].priority {
			return entries[i].priority < entries[j].priority
		}
		return entries[i].name < entries[j].name
	})
	return entries
}

// Detect returns the name and factory of the first extractor whose probe
// accepts src
func (r *Registry) Detect(src io.ReaderAt, length int64) (string, av.ExtractorFactory, error) {
	for _, e := range r.sorted() {
		ex := e.factory()
		in := av.OpenInput(src, 0, length)
		ok, err := ex.Probe(in)
		ex.Release()
		if err != nil && err != io.ErrUnexpectedEOF {
			return "", nil, errors.Wrapf(err, "probe %s", e.name)
		}
		if ok {
			return e.name, e.factory, nil
		}
	}
	return "", nil, ErrUnknownFormat
}

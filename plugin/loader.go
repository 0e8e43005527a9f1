package plugin

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrUnknownFormat is returned when no loader accepts the plugin path.
var ErrUnknownFormat = errors.New("unknown plugin format")

// LoaderFunc creates new plugin instance from path.
type LoaderFunc func(path string) (Plugin, error)

// Registry resolves plugin paths to loaders. Path is matched by a scheme
// prefix like "builtin:" or by file extension like ".so".
type Registry struct {
	m        sync.Mutex
	prefixes map[string]LoaderFunc
	suffixes map[string]LoaderFunc
}

// NewRegistry returns empty registry.
func NewRegistry() *Registry {
	return &Registry{
		prefixes: make(map[string]LoaderFunc),
		suffixes: make(map[string]LoaderFunc),
	}
}

// Prefix registers loader for paths with the scheme prefix.
func (r *Registry) Prefix(prefix string, fn LoaderFunc) {
	r.m.Lock()
	defer r.m.Unlock()
	r.prefixes[prefix] = fn
}

// Suffix registers loader for paths with the file extension.
func (r *Registry) Suffix(suffix string, fn LoaderFunc) {
	r.m.Lock()
	defer r.m.Unlock()
	r.suffixes[strings.ToLower(suffix)] = fn
}

// Load creates new plugin instance. The instance is not activated.
func (r *Registry) Load(path string) (Plugin, error) {
	r.m.Lock()
	fn := r.lookup(path)
	r.m.Unlock()
	if fn == nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownFormat, path)
	}
	return fn(path)
}

// Open loads the plugin, activates it and starts processing.
func (r *Registry) Open(path string, sampleRate int) (Plugin, error) {
	p, err := r.Load(path)
	if err != nil {
		return nil, err
	}
	if err := p.Activate(float64(sampleRate), MinFrames, MaxFrames); err != nil {
		p.Destroy()
		return nil, fmt.Errorf("activate %v: %w", path, err)
	}
	if err := p.StartProcessing(); err != nil {
		p.Destroy()
		return nil, fmt.Errorf("start processing %v: %w", path, err)
	}
	return p, nil
}

// Close stops processing and destroys the plugin.
func Close(p Plugin) {
	p.StopProcessing()
	p.Destroy()
}

func (r *Registry) lookup(path string) LoaderFunc {
	for prefix, fn := range r.prefixes {
		if strings.HasPrefix(path, prefix) {
			return fn
		}
	}
	lower := strings.ToLower(path)
	for suffix, fn := range r.suffixes {
		if strings.HasSuffix(lower, suffix) {
			return fn
		}
	}
	return nil
}

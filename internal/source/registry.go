package source

import "fmt"

// Registry holds the ordered adapter set built at startup from
// configuration. Order matters: higher-priority origins run first so
// the cost ceiling cuts off the cheap-and-good tail last.
type Registry struct {
	adapters []Adapter
	byName   map[string]Adapter
}

// NewRegistry builds a registry from candidate adapters in the order
// given by enabled names. Unknown names are an error (a typo in config
// should not silently drop a source); unavailable adapters register
// but are skipped at run time.
func NewRegistry(enabled []string, candidates []Adapter) (*Registry, error) {
	byName := make(map[string]Adapter, len(candidates))
	for _, a := range candidates {
		byName[a.Name()] = a
	}

	r := &Registry{byName: make(map[string]Adapter)}
	for _, name := range enabled {
		a, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown source adapter: %q", name)
		}
		r.adapters = append(r.adapters, a)
		r.byName[name] = a
	}
	return r, nil
}

// Adapters returns the ordered adapter list.
func (r *Registry) Adapters() []Adapter {
	return r.adapters
}

// Get returns a registered adapter by name.
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.byName[name]
	return a, ok
}

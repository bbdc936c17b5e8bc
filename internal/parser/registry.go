package parser

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownParser is returned by Get for a name nobody registered.
var ErrUnknownParser = errors.New("unknown parser")

var (
	mu       sync.RWMutex
	registry = map[string]Parser{}
	// order keeps registration order so filename selection is deterministic.
	order []string
)

// Register adds a parser under its Info().Name. Registering the same name
// twice replaces the earlier parser but keeps its position.
func Register(p Parser) {
	mu.Lock()
	defer mu.Unlock()
	name := p.Info().Name
	if _, ok := registry[name]; !ok {
		order = append(order, name)
	}
	registry[name] = p
}

// Get returns the parser registered under name.
func Get(name string) (Parser, error) {
	mu.RLock()
	defer mu.RUnlock()
	p, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownParser, name)
	}
	return p, nil
}

// Names returns the names of all registered parsers, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// registered returns the parsers in registration order.
func registered() []Parser {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Parser, 0, len(order))
	for _, name := range order {
		out = append(out, registry[name])
	}
	return out
}

// internal/notify/registry.go
//
// A super-light registry: backends call Register(channel, factory) in an
// init() function.  NewBackend looks up the configured channel and builds
// the backend from Settings.
package notify

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Factory builds a Backend.
type Factory func(s Settings, log *zap.SugaredLogger) (Backend, error)

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

// Register is called from backend init() functions.  A later registration
// for the same channel replaces the earlier one.
func Register(channel string, f Factory) {
	mu.Lock()
	registry[channel] = f
	mu.Unlock()
}

// Lookup returns the factory for channel or nil.
func Lookup(channel string) Factory {
	mu.RLock()
	defer mu.RUnlock()
	return registry[channel]
}

// Channels lists registered channel names, sorted.
func Channels() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NewBackend builds the backend for s.Channel.
func NewBackend(s Settings, log *zap.SugaredLogger) (Backend, error) {
	f := Lookup(s.Channel)
	if f == nil {
		return nil, fmt.Errorf("%w: unknown channel %q (have %v)", ErrInvalidSettings, s.Channel, Channels())
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return f(s, log)
}

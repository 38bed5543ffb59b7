package encoder

import (
	"context"
	"image"
	"io"
	"os/exec"
	"sort"
	"sync"

	"squeeze/logger"
)

// EncodeFunc is the function signature for any JPEG encoder
type EncodeFunc func(ctx context.Context, w io.Writer, img image.Image, opts EncodeOptions) error

type EncodeOptions struct {
	Quality int // 1–100
}

// Native is the registry name of the built-in encoder, always available.
const Native = "jpeg"

var (
	registry = map[string]EncodeFunc{}
	mu       sync.RWMutex
)

// Register adds encoder if the underlying command exists, logs status.
// An empty cmdName registers unconditionally.
func Register(name string, cmdName string, fn EncodeFunc) bool {
	if cmdName != "" {
		if _, err := exec.LookPath(cmdName); err != nil {
			logger.Warnf("encoder [%s] skipped: command '%s' not found in PATH", name, cmdName)
			return false
		}
	}
	mu.Lock()
	registry[name] = fn
	mu.Unlock()
	if cmdName != "" {
		logger.Debugf("encoder [%s] registered (command: %s)", name, cmdName)
	} else {
		logger.Debugf("encoder [%s] registered (no command required)", name)
	}
	return true
}

// Get looks up an encoder by name
func Get(name string) (EncodeFunc, bool) {
	mu.RLock()
	defer mu.RUnlock()
	fn, ok := registry[name]
	return fn, ok
}

// Resolve returns the named encoder, falling back to the native one with a
// warning when the name is not registered.
func Resolve(name string) EncodeFunc {
	if fn, ok := Get(name); ok {
		return fn
	}
	logger.Warnf("encoder [%s] unavailable, falling back to [%s]", name, Native)
	return EncodeJPEG
}

// Names lists registered encoders in sorted order.
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

// Explicit defaults registration
func RegisterDefaults() {
	Register(Native, "", EncodeJPEG)
	Register("magick", "magick", EncodeMagick)
}

package wasmimages

import (
	"errors"
	"net/url"
	"strings"
	"sync"

	"github.com/yousuf/tracecanon/internal/event"
)

// ErrNoBuildID is returned for modules that carry no build_id section; such
// modules cannot be symbolicated and are not recorded.
var ErrNoBuildID = errors.New("wasm module has no build_id section")

const debugIDLength = 32

// Registry keeps the debug images of loaded modules in load order.
// Frames refer to images by their position, so re-registering a URL moves it to the end.
type Registry struct {
	images []event.Image
	mu     sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register records the module loaded from moduleURL.
func (r *Registry) Register(moduleURL string, info ModuleInfo) (event.Image, error) {
	if info.BuildID == "" {
		return event.Image{}, ErrNoBuildID
	}

	img := event.Image{
		Type:      "wasm",
		CodeID:    info.BuildID,
		CodeFile:  moduleURL,
		DebugFile: resolveDebugFile(moduleURL, info.DebugFile),
		DebugID:   debugID(info.BuildID),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if idx := r.indexLocked(moduleURL); idx >= 0 {
		r.images = append(r.images[:idx], r.images[idx+1:]...)
	}
	r.images = append(r.images, img)
	return img, nil
}

// Images returns a copy of all known images.
func (r *Registry) Images() []event.Image {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]event.Image(nil), r.images...)
}

// Index returns the position of the image loaded from moduleURL, or -1.
func (r *Registry) Index(moduleURL string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.indexLocked(moduleURL)
}

// Len returns the number of registered images.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.images)
}

func (r *Registry) indexLocked(moduleURL string) int {
	for i, img := range r.images {
		if img.CodeFile == moduleURL {
			return i
		}
	}
	return -1
}

func resolveDebugFile(moduleURL, debugFile string) string {
	if debugFile == "" {
		return ""
	}
	base, err := url.Parse(moduleURL)
	if err != nil {
		return debugFile
	}
	ref, err := url.Parse(debugFile)
	if err != nil {
		return debugFile
	}
	return base.ResolveReference(ref).String()
}

// debugID pads or cuts the build id to 32 hex digits and appends the age digit.
func debugID(buildID string) string {
	id := buildID
	if len(id) < debugIDLength {
		id += strings.Repeat("0", debugIDLength-len(id))
	}
	return id[:debugIDLength] + "0"
}

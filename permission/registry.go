package permission

import (
	"errors"
	"strings"
	"sync"
)

const maskBits = 64

// Registry maps permission names to bit positions within a [Mask64].
type Registry struct {
	rootReserved bool
	rootBit      int

	mu        sync.RWMutex
	nameToBit map[string]int
	bitToName map[int]string
	frozen    bool
}

// NewRegistry creates a permission [Registry]. rootReserved reserves the
// highest bit as a root permission that satisfies every check.
func NewRegistry(rootReserved bool) *Registry {
	r := &Registry{
		rootReserved: rootReserved,
		rootBit:      -1,
		nameToBit:    make(map[string]int),
		bitToName:    make(map[int]string),
	}
	if rootReserved {
		r.rootBit = maskBits - 1
	}
	return r
}

// Register assigns the next available bit to the named permission.
// Names use the resource:action form. Must be called before [Registry.Freeze].
func (r *Registry) Register(name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, errors.New("registry frozen")
	}

	if err := validateName(name); err != nil {
		return -1, err
	}

	if _, exists := r.nameToBit[name]; exists {
		return -1, errors.New("permission already registered: " + name)
	}

	nextBit := len(r.nameToBit)

	if r.rootReserved && nextBit >= r.rootBit {
		return -1, errors.New("permission limit exceeded (root bit reserved)")
	}

	if !r.rootReserved && nextBit >= maskBits {
		return -1, errors.New("permission limit exceeded")
	}

	r.nameToBit[name] = nextBit
	r.bitToName[nextBit] = name

	return nextBit, nil
}

// Bit returns the bit index for the named permission, or false if not registered.
func (r *Registry) Bit(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[name]
	return bit, ok
}

// Name returns the permission name for the given bit index, or false if unassigned.
func (r *Registry) Name(bit int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.bitToName[bit]
	return name, ok
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered permissions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nameToBit)
}

// RootBit returns the reserved root permission bit, or false if root-bit
// reservation is disabled.
func (r *Registry) RootBit() (int, bool) {
	if !r.rootReserved {
		return -1, false
	}
	return r.rootBit, true
}

func validateName(name string) error {
	resource, action, ok := strings.Cut(name, ":")
	if !ok || resource == "" || action == "" || strings.ContainsAny(name, " \t") || strings.Count(name, ":") != 1 {
		return errors.New("permission name must look like resource:action: " + name)
	}
	return nil
}

package permission

import (
	"errors"
	"sort"
	"sync"
)

// RoleManager holds the immutable role table: each role's permission mask
// and its privilege rank.
type RoleManager struct {
	registry *Registry

	mu     sync.RWMutex
	roles  map[string]roleEntry
	frozen bool
}

type roleEntry struct {
	mask Mask64
	rank int
}

// NewRoleManager returns an empty, unfrozen manager over registry.
func NewRoleManager(registry *Registry) *RoleManager {
	return &RoleManager{
		registry: registry,
		roles:    make(map[string]roleEntry),
	}
}

// RegisterRole adds def. It fails after Freeze, on a duplicate name or on a
// permission the registry does not know.
func (rm *RoleManager) RegisterRole(def RoleDefinition) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.frozen {
		return errors.New("role manager frozen")
	}

	if def.Name == "" {
		return errors.New("role name empty")
	}
	if def.Rank <= 0 {
		return errors.New("role rank must be > 0: " + def.Name)
	}

	if _, exists := rm.roles[def.Name]; exists {
		return errors.New("role already registered")
	}

	var mask Mask64
	for _, perm := range def.Permissions {
		bit, ok := rm.registry.Bit(perm)
		if !ok {
			return errors.New("permission not registered: " + perm)
		}
		mask.Set(bit)
	}
	if def.Root {
		root, ok := rm.registry.RootBit()
		if !ok {
			return errors.New("root role requires a registry with a reserved root bit")
		}
		mask.Set(root)
	}

	rm.roles[def.Name] = roleEntry{mask: mask, rank: def.Rank}
	return nil
}

/*
====================================
LOOKUPS
====================================
*/

// GetMask returns the permission mask of roleName.
func (rm *RoleManager) GetMask(roleName string) (Mask64, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	entry, ok := rm.roles[roleName]
	return entry.mask, ok
}

// Rank returns the privilege rank of roleName. Higher is more privileged.
func (rm *RoleManager) Rank(roleName string) (int, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	entry, ok := rm.roles[roleName]
	return entry.rank, ok
}

// Has reports whether roleName grants perm. Unknown roles and unknown
// permissions grant nothing.
func (rm *RoleManager) Has(roleName, perm string) bool {
	mask, ok := rm.GetMask(roleName)
	if !ok {
		return false
	}
	bit, ok := rm.registry.Bit(perm)
	if !ok {
		return false
	}
	_, rootReserved := rm.registry.RootBit()
	return mask.Has(bit, rootReserved)
}

// Roles returns the registered role names, most privileged first.
func (rm *RoleManager) Roles() []string {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	out := make([]string, 0, len(rm.roles))
	for name := range rm.roles {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := rm.roles[out[i]].rank, rm.roles[out[j]].rank
		if ri != rj {
			return ri > rj
		}
		return out[i] < out[j]
	})
	return out
}

// Freeze blocks further registrations.
func (rm *RoleManager) Freeze() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.frozen = true
}

// Count returns the number of registered roles.
func (rm *RoleManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.roles)
}

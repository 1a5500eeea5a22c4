package permission

import "errors"

// Built-in roles, most privileged first.
const (
	AdminRole   = "admin"
	ManagerRole = "manager"
	CashierRole = "cashier"
	StaffRole   = "staff"
)

// RoleDefinition describes one row of the role table.
type RoleDefinition struct {
	Name        string
	Rank        int
	Permissions []string
	// Root grants every permission through the registry's root bit.
	Root bool
}

var defaultPermissions = []string{
	"product:create", "product:read", "product:update", "product:delete",
	"supplier:create", "supplier:read", "supplier:update", "supplier:delete",
	"purchase_order:create", "purchase_order:read", "purchase_order:update", "purchase_order:delete",
	"customer:create", "customer:read", "customer:update", "customer:delete",
	"sale:create", "sale:read", "sale:update", "sale:delete",
	"transaction:create", "transaction:read", "transaction:update", "transaction:delete",
	"report:read", "report:export",
	"import:run", "export:run",
	"user:create", "user:read", "user:update", "user:delete",
	"organization:manage",
}

// DefaultPermissions returns the permission catalogue for the inventory and
// bookkeeping backend.
func DefaultPermissions() []string {
	out := make([]string, len(defaultPermissions))
	copy(out, defaultPermissions)
	return out
}

// DefaultRoles returns the admin > manager > cashier > staff table.
func DefaultRoles() []RoleDefinition {
	return []RoleDefinition{
		{
			Name:        AdminRole,
			Rank:        4,
			Permissions: DefaultPermissions(),
			Root:        true,
		},
		{
			Name: ManagerRole,
			Rank: 3,
			Permissions: []string{
				"product:create", "product:read", "product:update", "product:delete",
				"supplier:create", "supplier:read", "supplier:update", "supplier:delete",
				"purchase_order:create", "purchase_order:read", "purchase_order:update", "purchase_order:delete",
				"customer:create", "customer:read", "customer:update", "customer:delete",
				"sale:create", "sale:read", "sale:update",
				"transaction:create", "transaction:read", "transaction:update",
				"report:read", "report:export",
				"import:run", "export:run",
				"user:read",
			},
		},
		{
			Name: CashierRole,
			Rank: 2,
			Permissions: []string{
				"product:read",
				"customer:create", "customer:read", "customer:update",
				"sale:create", "sale:read",
				"transaction:create", "transaction:read",
			},
		},
		{
			Name: StaffRole,
			Rank: 1,
			Permissions: []string{
				"product:read",
				"supplier:read",
				"customer:read",
				"sale:read",
			},
		},
	}
}

// BuildTable registers perms and roles and freezes both. The result is
// immutable and safe for concurrent reads.
func BuildTable(perms []string, roles []RoleDefinition) (*Registry, *RoleManager, error) {
	if len(perms) == 0 {
		return nil, nil, errors.New("permissions must be provided")
	}
	if len(roles) == 0 {
		return nil, nil, errors.New("roles must be provided")
	}

	needRoot := false
	for _, r := range roles {
		needRoot = needRoot || r.Root
	}

	registry := NewRegistry(needRoot)
	for _, p := range perms {
		if _, err := registry.Register(p); err != nil {
			return nil, nil, err
		}
	}
	registry.Freeze()

	manager := NewRoleManager(registry)
	for _, r := range roles {
		if err := manager.RegisterRole(r); err != nil {
			return nil, nil, err
		}
	}
	manager.Freeze()

	return registry, manager, nil
}

// Package accesscontrol holds the role assignments and the global pause
// switch shared by both registries. A single admin identity is seeded at
// construction and can never lose its admin standing through Revoke.
package accesscontrol

import (
	"sync"

	"healthpass/pkg/domain"
	domainerrors "healthpass/pkg/domain-errors"
)

type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleRegistrar Role = "REGISTRAR"
	RoleVerifier  Role = "VERIFIER"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleRegistrar, RoleVerifier:
		return true
	}
	return false
}

// AccessControl tracks per-identity roles and whether mutating operations
// are paused. All methods are safe for concurrent use.
type AccessControl struct {
	mu     sync.RWMutex
	admin  domain.Identity
	roles  map[domain.Identity]map[Role]bool
	paused bool
}

func New(admin domain.Identity) *AccessControl {
	ac := &AccessControl{
		admin: admin,
		roles: make(map[domain.Identity]map[Role]bool),
	}
	ac.roles[admin] = map[Role]bool{RoleAdmin: true}
	return ac
}

// Grant assigns role to identity. Only the admin may grant roles.
func (ac *AccessControl) Grant(caller, identity domain.Identity, role Role) error {
	if !role.Valid() {
		return domainerrors.New(domainerrors.CodeValidation, "unknown role")
	}
	if identity.IsZero() {
		return domainerrors.New(domainerrors.CodeValidation, "identity is required")
	}

	ac.mu.Lock()
	defer ac.mu.Unlock()

	if caller != ac.admin {
		return domainerrors.New(domainerrors.CodeForbidden, "only the admin may grant roles")
	}
	if ac.roles[identity] == nil {
		ac.roles[identity] = make(map[Role]bool)
	}
	ac.roles[identity][role] = true
	return nil
}

// Revoke removes role from identity. The seeded admin identity keeps its
// admin role regardless.
func (ac *AccessControl) Revoke(caller, identity domain.Identity, role Role) error {
	ac.mu.Lock()
	defer ac.mu.Unlock()

	if caller != ac.admin {
		return domainerrors.New(domainerrors.CodeForbidden, "only the admin may revoke roles")
	}
	if identity == ac.admin && role == RoleAdmin {
		return domainerrors.New(domainerrors.CodeInvariantViolation, "the seeded admin cannot lose the admin role")
	}
	if held := ac.roles[identity]; held != nil {
		delete(held, role)
	}
	return nil
}

func (ac *AccessControl) HasRole(identity domain.Identity, role Role) bool {
	ac.mu.RLock()
	defer ac.mu.RUnlock()
	return ac.roles[identity][role]
}

func (ac *AccessControl) IsAdmin(identity domain.Identity) bool {
	ac.mu.RLock()
	defer ac.mu.RUnlock()
	return identity == ac.admin || ac.roles[identity][RoleAdmin]
}

// RequireRole allows the call when identity holds role or is an admin.
func (ac *AccessControl) RequireRole(identity domain.Identity, role Role) error {
	ac.mu.RLock()
	defer ac.mu.RUnlock()

	if identity == ac.admin || ac.roles[identity][RoleAdmin] || ac.roles[identity][role] {
		return nil
	}
	return domainerrors.Newf(domainerrors.CodeForbidden, "caller lacks the %s role", role)
}

func (ac *AccessControl) RequireAdmin(identity domain.Identity) error {
	if !ac.IsAdmin(identity) {
		return domainerrors.New(domainerrors.CodeForbidden, "admin role required")
	}
	return nil
}

// Pause halts all mutating registry operations until Unpause.
func (ac *AccessControl) Pause(caller domain.Identity) error {
	if err := ac.RequireAdmin(caller); err != nil {
		return err
	}
	ac.mu.Lock()
	ac.paused = true
	ac.mu.Unlock()
	return nil
}

func (ac *AccessControl) Unpause(caller domain.Identity) error {
	if err := ac.RequireAdmin(caller); err != nil {
		return err
	}
	ac.mu.Lock()
	ac.paused = false
	ac.mu.Unlock()
	return nil
}

func (ac *AccessControl) Paused() bool {
	ac.mu.RLock()
	defer ac.mu.RUnlock()
	return ac.paused
}

// RequireUnpaused gates every mutating entry point.
func (ac *AccessControl) RequireUnpaused() error {
	if ac.Paused() {
		return domainerrors.New(domainerrors.CodeUnavailable, "registry operations are paused")
	}
	return nil
}

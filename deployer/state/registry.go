package state

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrDependencyMissing = errors.New("dependency missing")
	ErrAlreadyRecorded   = errors.New("role already recorded")
	ErrZeroAddress       = errors.New("zero address")
)

// Entry is a single resolved role.
type Entry struct {
	Role    Role           `json:"role" toml:"role"`
	Address common.Address `json:"address" toml:"address"`
}

// Registry maps roles to deployed addresses for the lifetime of one run.
// Entries are append-only: a role is recorded at most once and never removed.
type Registry struct {
	addrs map[Role]common.Address
	order []Role
}

func NewRegistry() *Registry {
	return &Registry{addrs: make(map[Role]common.Address)}
}

// Record stores addr under role. Recording a role twice or recording the zero
// address is an error.
func (r *Registry) Record(role Role, addr common.Address) error {
	if err := role.Check(); err != nil {
		return err
	}
	if addr == (common.Address{}) {
		return fmt.Errorf("cannot record %s: %w", role, ErrZeroAddress)
	}
	if prev, ok := r.addrs[role]; ok {
		return fmt.Errorf("cannot record %s at %s, already at %s: %w", role, addr.Hex(), prev.Hex(), ErrAlreadyRecorded)
	}
	r.addrs[role] = addr
	r.order = append(r.order, role)
	return nil
}

func (r *Registry) Resolve(role Role) (common.Address, error) {
	addr, ok := r.addrs[role]
	if !ok {
		return common.Address{}, fmt.Errorf("role %s is not resolved: %w", role, ErrDependencyMissing)
	}
	return addr, nil
}

// ResolveAll resolves roles in order. It fails on the first unresolved role.
func (r *Registry) ResolveAll(roles []Role) ([]common.Address, error) {
	out := make([]common.Address, len(roles))
	for i, role := range roles {
		addr, err := r.Resolve(role)
		if err != nil {
			return nil, err
		}
		out[i] = addr
	}
	return out, nil
}

func (r *Registry) Has(role Role) bool {
	_, ok := r.addrs[role]
	return ok
}

func (r *Registry) Len() int {
	return len(r.order)
}

// Entries returns the recorded roles in the order they were recorded.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.order))
	for i, role := range r.order {
		out[i] = Entry{Role: role, Address: r.addrs[role]}
	}
	return out
}

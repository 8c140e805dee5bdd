package domain

import "fmt"

// StaticDirectory is the fixed role→address binding provisioned at startup.
type StaticDirectory struct {
	accounts []Account
	byAddr   map[string]Account
}

// NewDirectory validates and indexes the account bindings. Every address
// must be unique and carry a known role.
func NewDirectory(accounts []Account) (*StaticDirectory, error) {
	d := &StaticDirectory{byAddr: make(map[string]Account, len(accounts))}
	for _, a := range accounts {
		if a.Address == "" {
			return nil, fmt.Errorf("account with role %s: %w: address", a.Role, ErrMissingField)
		}
		if !a.Role.Valid() {
			return nil, fmt.Errorf("account %s: %w", a.Address, ErrUnknownRole)
		}
		if _, dup := d.byAddr[a.Address]; dup {
			return nil, fmt.Errorf("account %s bound twice", a.Address)
		}
		d.byAddr[a.Address] = a
		d.accounts = append(d.accounts, a)
	}
	return d, nil
}

// Accounts returns all bindings in provisioning order.
func (d *StaticDirectory) Accounts() []Account {
	out := make([]Account, len(d.accounts))
	copy(out, d.accounts)
	return out
}

// Lookup returns the account bound to addr.
func (d *StaticDirectory) Lookup(addr string) (Account, bool) {
	a, ok := d.byAddr[addr]
	return a, ok
}

// ByRole returns the accounts holding role, in provisioning order.
func (d *StaticDirectory) ByRole(role Role) []Account {
	var out []Account
	for _, a := range d.accounts {
		if a.Role == role {
			out = append(out, a)
		}
	}
	return out
}

package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ─── Roles ──────────────────────────────────────────────────────────────────
// The five account roles are a closed set. Code that branches on a role
// switches over every value so a new role fails loudly instead of silently.

// Role identifies what an account is allowed to do in the marketplace.
type Role int

const (
	RoleProducer Role = iota + 1
	RoleFactory
	RoleCitizen
	RoleGovernment
	RolePollutionBody
)

// Roles lists every role in display order.
var Roles = []Role{RoleProducer, RoleFactory, RoleCitizen, RoleGovernment, RolePollutionBody}

// String returns the wire name of the role.
func (r Role) String() string {
	switch r {
	case RoleProducer:
		return "producer"
	case RoleFactory:
		return "factory"
	case RoleCitizen:
		return "citizen"
	case RoleGovernment:
		return "government"
	case RolePollutionBody:
		return "pollution_body"
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// Title returns a human-readable label ("Pollution Body").
func (r Role) Title() string {
	words := strings.Split(r.String(), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// Valid reports whether r is one of the five known roles.
func (r Role) Valid() bool {
	return r >= RoleProducer && r <= RolePollutionBody
}

// CanPurchase reports whether the role may buy credits on the market.
func (r Role) CanPurchase() bool {
	switch r {
	case RoleFactory, RoleCitizen:
		return true
	case RoleProducer, RoleGovernment, RolePollutionBody:
		return false
	}
	return false
}

// ParseRole parses a wire role name. "state_pollution_body" is accepted
// as an alias for the pollution body.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "producer":
		return RoleProducer, nil
	case "factory":
		return RoleFactory, nil
	case "citizen":
		return RoleCitizen, nil
	case "government":
		return RoleGovernment, nil
	case "pollution_body", "state_pollution_body":
		return RolePollutionBody, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ─── Accounts ───────────────────────────────────────────────────────────────

// Account binds a ledger address to a role. Bindings are fixed for the
// lifetime of the process.
type Account struct {
	Address string `json:"address" toml:"address"`
	Role    Role   `json:"role" toml:"role"`
}

// ShortAddress returns the first n characters of the address, used in
// human-readable journal details and certificate ids.
func ShortAddress(addr string, n int) string {
	if len(addr) <= n {
		return addr
	}
	return addr[:n]
}

// ProducerState is the ledger's view of a producer.
type ProducerState struct {
	Certified   bool  `json:"certified"`
	Active      bool  `json:"active"`
	TotalIssued int64 `json:"total_issued"`
}

// CanIssue reports whether the producer may mint credits.
func (p ProducerState) CanIssue() bool { return p.Certified && p.Active }

// FactoryState is the ledger's view of a factory's quota.
// Quota completion is always derived from Purchased and QuotaAmount.
type FactoryState struct {
	HasQuota    bool  `json:"has_quota"`
	QuotaAmount int64 `json:"quota"`
	Purchased   int64 `json:"credits_purchased"`
	// QuotaSeq increments every time a new quota is set.
	QuotaSeq int64 `json:"quota_seq"`
}

// QuotaMet reports whether purchases have reached the active quota.
func (f FactoryState) QuotaMet() bool {
	return f.HasQuota && f.Purchased >= f.QuotaAmount
}

// Progress returns purchased/quota as a percentage, 0 without a quota.
func (f FactoryState) Progress() float64 {
	if !f.HasQuota || f.QuotaAmount <= 0 {
		return 0
	}
	return float64(f.Purchased*100) / float64(f.QuotaAmount)
}

// MarshalJSON adds the derived quota_met flag.
func (f FactoryState) MarshalJSON() ([]byte, error) {
	type plain FactoryState
	return json.Marshal(struct {
		plain
		QuotaMet bool `json:"quota_met"`
	}{plain(f), f.QuotaMet()})
}

// Remaining returns the credits still needed to meet the quota.
func (f FactoryState) Remaining() int64 {
	if !f.HasQuota || f.Purchased >= f.QuotaAmount {
		return 0
	}
	return f.QuotaAmount - f.Purchased
}

// AccountState is a point-in-time snapshot of an account read from the ledger.
type AccountState struct {
	Account
	Balance  int64          `json:"balance"`
	Frozen   bool           `json:"frozen"`
	Producer *ProducerState `json:"producer,omitempty"`
	Factory  *FactoryState  `json:"factory,omitempty"`
}

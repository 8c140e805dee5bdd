package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

// ─── Role Tests ─────────────────────────────────────────────────────────────

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"producer", RoleProducer, false},
		{"Factory", RoleFactory, false},
		{" citizen ", RoleCitizen, false},
		{"government", RoleGovernment, false},
		{"pollution_body", RolePollutionBody, false},
		{"state_pollution_body", RolePollutionBody, false},
		{"admin", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRole(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseRole(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if tt.wantErr && !errors.Is(err, ErrUnknownRole) {
				t.Errorf("error = %v, want ErrUnknownRole", err)
			}
		})
	}
}

func TestRole_TextRoundTrip(t *testing.T) {
	for _, r := range Roles {
		b, err := r.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v) error: %v", r, err)
		}
		var got Role
		if err := got.UnmarshalText(b); err != nil || got != r {
			t.Errorf("UnmarshalText(%s) = %v, %v", b, got, err)
		}
	}
	if _, err := Role(99).MarshalText(); err == nil {
		t.Error("MarshalText(99) should fail")
	}
}

func TestRole_Title(t *testing.T) {
	if got := RolePollutionBody.Title(); got != "Pollution Body" {
		t.Errorf("Title() = %q, want Pollution Body", got)
	}
	if got := RoleCitizen.Title(); got != "Citizen" {
		t.Errorf("Title() = %q, want Citizen", got)
	}
}

func TestRole_CanPurchase(t *testing.T) {
	want := map[Role]bool{
		RoleProducer:      false,
		RoleFactory:       true,
		RoleCitizen:       true,
		RoleGovernment:    false,
		RolePollutionBody: false,
	}
	for r, w := range want {
		if got := r.CanPurchase(); got != w {
			t.Errorf("%v.CanPurchase() = %v, want %v", r, got, w)
		}
	}
}

func TestShortAddress(t *testing.T) {
	if got := ShortAddress("0x1234567890abcdef", 10); got != "0x12345678" {
		t.Errorf("ShortAddress() = %q", got)
	}
	if got := ShortAddress("0x12", 10); got != "0x12" {
		t.Errorf("ShortAddress(short) = %q", got)
	}
}

// ─── Quota Tests ────────────────────────────────────────────────────────────

func TestFactoryState(t *testing.T) {
	tests := []struct {
		name      string
		fs        FactoryState
		met       bool
		progress  float64
		remaining int64
	}{
		{"no quota", FactoryState{Purchased: 50}, false, 0, 0},
		{"not started", FactoryState{HasQuota: true, QuotaAmount: 1000}, false, 0, 1000},
		{"partial", FactoryState{HasQuota: true, QuotaAmount: 1000, Purchased: 600}, false, 60, 400},
		{"exact", FactoryState{HasQuota: true, QuotaAmount: 1000, Purchased: 1000}, true, 100, 0},
		{"over", FactoryState{HasQuota: true, QuotaAmount: 1000, Purchased: 1100}, true, 110, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fs.QuotaMet(); got != tt.met {
				t.Errorf("QuotaMet() = %v, want %v", got, tt.met)
			}
			if got := tt.fs.Progress(); got != tt.progress {
				t.Errorf("Progress() = %v, want %v", got, tt.progress)
			}
			if got := tt.fs.Remaining(); got != tt.remaining {
				t.Errorf("Remaining() = %d, want %d", got, tt.remaining)
			}
		})
	}
}

func TestFactoryState_ProgressExact(t *testing.T) {
	tests := []struct {
		purchased, quota int64
		want             float64
	}{
		{1100, 1000, 110},
		{999, 1000, 99.9},
		{1, 3, 100.0 / 3},
		{7, 10, 70},
	}
	for _, tt := range tests {
		fs := FactoryState{HasQuota: true, QuotaAmount: tt.quota, Purchased: tt.purchased}
		if got := fs.Progress(); got != tt.want {
			t.Errorf("Progress(%d/%d) = %v, want %v", tt.purchased, tt.quota, got, tt.want)
		}
	}
}

func TestFactoryState_JSON(t *testing.T) {
	b, err := json.Marshal(FactoryState{HasQuota: true, QuotaAmount: 10, Purchased: 12, QuotaSeq: 2})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if got["quota_met"] != true || got["quota"] != float64(10) || got["credits_purchased"] != float64(12) || got["has_quota"] != true {
		t.Errorf("json = %s", b)
	}
}

func TestBandFor(t *testing.T) {
	tests := []struct {
		progress float64
		met      bool
		want     Band
	}{
		{0, false, 0},
		{49.9, false, 0},
		{50, false, Band50},
		{74.9, false, Band50},
		{75, false, Band75},
		{99.9, false, Band75},
		{100, true, BandComplete},
		{60, true, BandComplete},
	}
	for _, tt := range tests {
		if got := BandFor(tt.progress, tt.met); got != tt.want {
			t.Errorf("BandFor(%v, %v) = %v, want %v", tt.progress, tt.met, got, tt.want)
		}
	}
}

func TestBand_Has(t *testing.T) {
	b := Band50 | BandComplete
	if !b.Has(Band50) || !b.Has(BandComplete) || b.Has(Band75) {
		t.Errorf("Has() wrong for %b", b)
	}
}

// ─── Error Tests ────────────────────────────────────────────────────────────

func TestError_Message(t *testing.T) {
	e := NewError(KindLedger, "issue", "Account is frozen.", ErrAccountFrozen)
	if e.Message() != "Account is frozen." {
		t.Errorf("Message() = %q", e.Message())
	}
	if !errors.Is(e, ErrAccountFrozen) {
		t.Error("errors.Is(ErrAccountFrozen) = false")
	}
	bare := NewError(KindLedger, "issue", "", ErrAccountFrozen)
	if bare.Message() != ErrAccountFrozen.Error() {
		t.Errorf("Message() = %q, want wrapped text", bare.Message())
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", Forbidden("freeze", "no"))
	if got := KindOf(wrapped); got != KindAuthorization {
		t.Errorf("KindOf(wrapped) = %v, want authorization", got)
	}
	if got := KindOf(errors.New("plain")); got != KindInternal {
		t.Errorf("KindOf(plain) = %v, want internal", got)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{NewError(KindLedger, "op", "", fmt.Errorf("x: %w", ErrTimeout)), true},
		{fmt.Errorf("run: %w", ErrPoolSaturated), true},
		{NewError(KindLedger, "op", "", ErrAccountFrozen), false},
		{NewError(KindPayment, "op", "", ErrPaymentDeclined), false},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestClassifyLedger(t *testing.T) {
	if got := ClassifyLedger("op", "", fmt.Errorf("x: %w", ErrUnknownAddress)); got.Kind != KindNotFound {
		t.Errorf("unknown address kind = %v, want not_found", got.Kind)
	}
	if got := ClassifyLedger("op", "", ErrInsufficientBalance); got.Kind != KindLedger {
		t.Errorf("insufficient balance kind = %v, want ledger", got.Kind)
	}
	orig := Invalid("op", "bad", ErrInvalidAmount)
	if got := ClassifyLedger("op", "", orig); got != orig {
		t.Error("existing *Error should pass through")
	}
}

// ─── Directory Tests ────────────────────────────────────────────────────────

func TestNewDirectory(t *testing.T) {
	d, err := NewDirectory([]Account{
		{Address: "0xa", Role: RoleProducer},
		{Address: "0xb", Role: RoleFactory},
		{Address: "0xc", Role: RoleProducer},
	})
	if err != nil {
		t.Fatalf("NewDirectory() error: %v", err)
	}
	producers := d.ByRole(RoleProducer)
	if len(producers) != 2 || producers[0].Address != "0xa" || producers[1].Address != "0xc" {
		t.Errorf("ByRole(producer) = %v", producers)
	}
	if a, ok := d.Lookup("0xb"); !ok || a.Role != RoleFactory {
		t.Errorf("Lookup(0xb) = %v, %v", a, ok)
	}
	if _, ok := d.Lookup("0xz"); ok {
		t.Error("Lookup(0xz) should miss")
	}

	accs := d.Accounts()
	accs[0].Address = "mutated"
	if d.Accounts()[0].Address != "0xa" {
		t.Error("Accounts() must return a copy")
	}
}

func TestNewDirectory_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		accounts []Account
	}{
		{"empty address", []Account{{Role: RoleCitizen}}},
		{"unknown role", []Account{{Address: "0xa"}}},
		{"duplicate", []Account{{Address: "0xa", Role: RoleCitizen}, {Address: "0xa", Role: RoleFactory}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewDirectory(tt.accounts); err == nil {
				t.Error("NewDirectory() = nil error, want failure")
			}
		})
	}
}

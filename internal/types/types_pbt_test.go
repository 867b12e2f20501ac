package types

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestWalletSet_MembershipIgnoresCase(t *testing.T) {
	properties := gopter.NewProperties(nil)

	hexAddr := gen.SliceOfN(40, gen.OneConstOf('0', '1', '7', 'a', 'b', 'c', 'd', 'e', 'f', 'A', 'B', 'F')).
		Map(func(rs []rune) string {
			return "0x" + string(rs)
		})

	properties.Property("primary is a member under any casing", prop.ForAll(
		func(addr string) bool {
			ws := NewWalletSet(strings.ToUpper(addr), "")
			return ws.Contains(strings.ToLower(addr)) && ws.Contains(addr)
		},
		hexAddr,
	))

	properties.Property("secondary equal to primary collapses", prop.ForAll(
		func(addr string) bool {
			ws := NewWalletSet(addr, strings.ToUpper(addr))
			return ws.Secondary == "" && len(ws.Addresses()) == 1
		},
		hexAddr,
	))

	properties.TestingRun(t)
}

func TestModeFromFlags(t *testing.T) {
	tests := []struct {
		name            string
		fetchAll        bool
		initialLoadOnly bool
		want            Mode
		wantBudget      int
	}{
		{"default is standard", false, false, ModeStandard, 5},
		{"fetch all is full", true, false, ModeFull, 100},
		{"initial load only", false, true, ModeInitial, 2},
		{"initial load wins over fetch all", true, true, ModeInitial, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ModeFromFlags(tt.fetchAll, tt.initialLoadOnly)
			if got != tt.want {
				t.Errorf("ModeFromFlags() = %v, want %v", got, tt.want)
			}
			if got.PageBudget() != tt.wantBudget {
				t.Errorf("PageBudget() = %d, want %d", got.PageBudget(), tt.wantBudget)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeStandard, "FULL": ModeFull, " initial ": ModeInitial} {
		got, ok := ParseMode(in)
		if !ok || got != want {
			t.Errorf("ParseMode(%q) = %v, %v; want %v", in, got, ok, want)
		}
	}
	if _, ok := ParseMode("everything"); ok {
		t.Error("ParseMode(\"everything\") should fail")
	}
}

func TestNormalizeQuantity(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"1000000000000000000", "1"},
		{"1500000000000000000", "1.5"},
		{"42", "0.000000000000000042"},
		{"0", "0"},
		{"123456789012345678901234567890", "123456789012.34567890123456789"},
		{"not-a-number", "0"},
	}
	for _, tt := range tests {
		if got := NormalizeQuantity(tt.raw); got != tt.want {
			t.Errorf("NormalizeQuantity(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

// Package types provides the domain types shared by the creator analytics engine.
package types

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Mode selects how much of the balance listing is walked for one request
type Mode string

const (
	// ModeInitial walks just enough pages to render a first view
	ModeInitial Mode = "initial"
	// ModeStandard is the default page budget
	ModeStandard Mode = "standard"
	// ModeFull walks the listing to (practical) completion
	ModeFull Mode = "full"
)

// Page budgets per mode
const (
	InitialPageBudget  = 2
	StandardPageBudget = 5
	FullPageBudget     = 100
)

// ParseMode parses a mode name. An empty string is the standard mode.
func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeStandard:
		return ModeStandard, true
	case ModeInitial:
		return ModeInitial, true
	case ModeFull:
		return ModeFull, true
	default:
		return "", false
	}
}

// ModeFromFlags maps the fetchAll / initialLoadOnly flag pair onto a Mode.
// initialLoadOnly wins when both are set.
func ModeFromFlags(fetchAll, initialLoadOnly bool) Mode {
	switch {
	case initialLoadOnly:
		return ModeInitial
	case fetchAll:
		return ModeFull
	default:
		return ModeStandard
	}
}

// FetchAll reports whether the mode walks the whole listing
func (m Mode) FetchAll() bool { return m == ModeFull }

// InitialLoadOnly reports whether the mode is the reduced first-view walk
func (m Mode) InitialLoadOnly() bool { return m == ModeInitial }

// PageBudget returns the maximum number of listing pages fetched in this mode
func (m Mode) PageBudget() int {
	switch m {
	case ModeInitial:
		return InitialPageBudget
	case ModeFull:
		return FullPageBudget
	default:
		return StandardPageBudget
	}
}

// Profile is the identity record of a creator. It is fetched fresh on every request.
type Profile struct {
	Handle       string `json:"handle"`
	DisplayName  string `json:"displayName,omitempty"`
	Bio          string `json:"bio,omitempty"`
	AvatarURL    string `json:"avatarUrl,omitempty"`
	PublicWallet string `json:"publicWallet,omitempty"`
}

// Balance is one token held by the creator's wallet set
type Balance struct {
	TokenAddress   string `json:"tokenAddress"`
	Name           string `json:"name"`
	Symbol         string `json:"symbol"`
	TotalSupply    string `json:"totalSupply"`
	UniqueHolders  int64  `json:"uniqueHolders"`
	CreatorAddress string `json:"creatorAddress,omitempty"`
	PreviewImage   string `json:"previewImage,omitempty"`
	RawBalance     string `json:"rawBalance"`
	// Balance is RawBalance / 10^18 rendered as an exact decimal string
	Balance   string `json:"balance"`
	IsCreator bool   `json:"isCreator"`
}

// TokenDecimals is the fixed precision of every platform coin
const TokenDecimals = 18

// NormalizeQuantity converts a raw integer token quantity into whole coins
// (raw / 10^18) as an exact decimal string. Unparseable input yields "0".
func NormalizeQuantity(raw string) string {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return "0"
	}
	return d.Shift(-TokenDecimals).String()
}

// BalancePage is one page of the cursor-based balance listing
type BalancePage struct {
	Edges      []Balance `json:"edges"`
	NextCursor string    `json:"nextCursor,omitempty"`
}

// AssetDetail is the enrichment record for a single token
type AssetDetail struct {
	Address       string     `json:"address"`
	TotalVolume   float64    `json:"totalVolume"`
	Volume24h     float64    `json:"volume24h"`
	UniqueHolders int64      `json:"uniqueHolders"`
	CreatedAt     *time.Time `json:"createdAt,omitempty"`
}

// EnrichedBalance is a created balance plus its detail. Detail is nil when
// enrichment failed for this asset.
type EnrichedBalance struct {
	Balance
	Detail   *AssetDetail `json:"detail"`
	Enriched bool         `json:"enriched"`
}

// WalletSet is the primary wallet plus at most one discovered secondary wallet.
// Addresses are stored lower-cased; the set is never mutated after construction.
type WalletSet struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary,omitempty"`
}

// NewWalletSet builds a wallet set. A secondary equal to the primary is dropped.
func NewWalletSet(primary, secondary string) WalletSet {
	p := strings.ToLower(strings.TrimSpace(primary))
	s := strings.ToLower(strings.TrimSpace(secondary))
	if s == p {
		s = ""
	}
	return WalletSet{Primary: p, Secondary: s}
}

// Contains reports case-insensitive membership of address in the set
func (w WalletSet) Contains(address string) bool {
	a := strings.ToLower(strings.TrimSpace(address))
	if a == "" {
		return false
	}
	return a == w.Primary || (w.Secondary != "" && a == w.Secondary)
}

// Addresses returns the members of the set, primary first
func (w WalletSet) Addresses() []string {
	out := []string{w.Primary}
	if w.Secondary != "" {
		out = append(out, w.Secondary)
	}
	return out
}

// Metrics are the summary statistics derived from enriched created assets
type Metrics struct {
	TotalEarnings          float64 `json:"totalEarnings"`
	TotalVolume            float64 `json:"totalVolume"`
	Posts                  int     `json:"posts"`
	AverageEarningsPerPost float64 `json:"averageEarningsPerPost"`
	EstimatedTraders       int64   `json:"estimatedTraders"`
	EstimatedCollectors    int64   `json:"estimatedCollectors"`
}

// AggregatedResult is the full analytics response for one creator
type AggregatedResult struct {
	Identifier       string            `json:"identifier"`
	Mode             Mode              `json:"mode"`
	Limit            int               `json:"limit"`
	Profile          Profile           `json:"profile"`
	Wallets          WalletSet         `json:"wallets"`
	Created          []EnrichedBalance `json:"created"`
	Collected        []Balance         `json:"collected"`
	CreatedCount     int               `json:"createdCount"`
	CollectedCount   int               `json:"collectedCount"`
	HasMore          bool              `json:"hasMore"`
	HasMoreCollected bool              `json:"hasMoreCollected"`
	HasMorePages     bool              `json:"hasMorePages"`
	PagesFetched     int               `json:"pagesFetched"`
	Metrics          Metrics           `json:"metrics"`
	GeneratedAt      time.Time         `json:"generatedAt"`
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

package adapter

import (
	"fmt"
	"strings"
	"time"

	"github.com/creator-analytics/internal/types"
)

type mediaContent struct {
	PreviewImage *struct {
		Medium string `json:"medium"`
		Small  string `json:"small"`
	} `json:"previewImage"`
}

func (m *mediaContent) url() string {
	if m == nil || m.PreviewImage == nil {
		return ""
	}
	if m.PreviewImage.Medium != "" {
		return m.PreviewImage.Medium
	}
	return m.PreviewImage.Small
}

type profileResponse struct {
	Profile *profileNode `json:"profile"`
}

type profileNode struct {
	Handle       string        `json:"handle"`
	DisplayName  string        `json:"displayName"`
	Bio          string        `json:"bio"`
	Avatar       *mediaContent `json:"avatar"`
	PublicWallet *struct {
		WalletAddress string `json:"walletAddress"`
	} `json:"publicWallet"`
}

func (p *profileNode) toProfile() *types.Profile {
	profile := &types.Profile{
		Handle:      p.Handle,
		DisplayName: p.DisplayName,
		Bio:         p.Bio,
		AvatarURL:   p.Avatar.url(),
	}
	if p.PublicWallet != nil {
		profile.PublicWallet = strings.TrimSpace(p.PublicWallet.WalletAddress)
	}
	return profile
}

type balancesResponse struct {
	Profile *struct {
		CoinBalances coinBalanceConnection `json:"coinBalances"`
	} `json:"profile"`
}

type coinBalanceConnection struct {
	Count int `json:"count"`
	Edges []struct {
		Node struct {
			Balance string   `json:"balance"`
			Coin    *coinRef `json:"coin"`
		} `json:"node"`
	} `json:"edges"`
	PageInfo struct {
		EndCursor   string `json:"endCursor"`
		HasNextPage bool   `json:"hasNextPage"`
	} `json:"pageInfo"`
}

type coinRef struct {
	Address        string        `json:"address"`
	Name           string        `json:"name"`
	Symbol         string        `json:"symbol"`
	TotalSupply    string        `json:"totalSupply"`
	UniqueHolders  int64         `json:"uniqueHolders"`
	CreatorAddress string        `json:"creatorAddress"`
	MediaContent   *mediaContent `json:"mediaContent"`
}

// toPage drops edges without a coin; the listing occasionally returns
// balances of delisted coins with a null coin.
func (c coinBalanceConnection) toPage() *types.BalancePage {
	page := &types.BalancePage{Edges: make([]types.Balance, 0, len(c.Edges))}
	for _, edge := range c.Edges {
		coin := edge.Node.Coin
		if coin == nil {
			continue
		}
		page.Edges = append(page.Edges, types.Balance{
			TokenAddress:   normalizeAddress(coin.Address),
			Name:           coin.Name,
			Symbol:         coin.Symbol,
			TotalSupply:    coin.TotalSupply,
			UniqueHolders:  coin.UniqueHolders,
			CreatorAddress: strings.TrimSpace(coin.CreatorAddress),
			PreviewImage:   coin.MediaContent.url(),
			RawBalance:     edge.Node.Balance,
			Balance:        types.NormalizeQuantity(edge.Node.Balance),
		})
	}
	if c.PageInfo.HasNextPage && c.PageInfo.EndCursor != "" {
		page.NextCursor = c.PageInfo.EndCursor
	}
	return page
}

type coinResponse struct {
	Token *coinDetailNode `json:"zora20Token"`
}

type coinDetailNode struct {
	Address       string `json:"address"`
	TotalVolume   string `json:"totalVolume"`
	Volume24h     string `json:"volume24h"`
	UniqueHolders int64  `json:"uniqueHolders"`
	CreatedAt     string `json:"createdAt"`
}

func (n *coinDetailNode) toDetail() (*types.AssetDetail, error) {
	total, err := parseVolume(n.TotalVolume)
	if err != nil {
		return nil, fmt.Errorf("%w: totalVolume %q", ErrBadResponse, n.TotalVolume)
	}
	day, err := parseVolume(n.Volume24h)
	if err != nil {
		return nil, fmt.Errorf("%w: volume24h %q", ErrBadResponse, n.Volume24h)
	}

	detail := &types.AssetDetail{
		Address:       normalizeAddress(n.Address),
		TotalVolume:   total,
		Volume24h:     day,
		UniqueHolders: n.UniqueHolders,
	}
	if n.CreatedAt != "" {
		if ts, err := time.Parse(time.RFC3339, n.CreatedAt); err == nil {
			ts = ts.UTC()
			detail.CreatedAt = &ts
		}
	}
	return detail, nil
}

type createdCoinsResponse struct {
	Profile *struct {
		CreatedCoins struct {
			Count int `json:"count"`
		} `json:"createdCoins"`
	} `json:"profile"`
}

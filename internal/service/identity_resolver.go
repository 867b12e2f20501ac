package service

import (
	"context"
	"errors"
	"strings"

	"github.com/creator-analytics/internal/adapter"
	apperrors "github.com/creator-analytics/internal/errors"
	"github.com/creator-analytics/internal/ratelimit"
	"github.com/creator-analytics/internal/types"
	"github.com/ethereum/go-ethereum/common"
)

// IdentityResolver turns a handle or address into a profile with a usable
// primary wallet
type IdentityResolver struct {
	profiles ProfileService
}

// NewIdentityResolver creates a new identity resolver
func NewIdentityResolver(profiles ProfileService) *IdentityResolver {
	return &IdentityResolver{profiles: profiles}
}

// Resolve looks up identifier. It fails with NOT_FOUND when no profile exists
// and NO_WALLET_ADDRESS when the profile has no valid primary wallet.
func (r *IdentityResolver) Resolve(ctx context.Context, identifier string) (*types.Profile, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, apperrors.NewInvalidParameterError("identifier", "must not be blank")
	}

	profile, err := r.profiles.ResolveProfile(ctx, identifier)
	if err != nil {
		if errors.Is(err, adapter.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("profile", identifier)
		}
		return nil, apperrors.NewUpstreamFetchError(ratelimit.OpResolveProfile, err)
	}
	if profile == nil {
		return nil, apperrors.NewNotFoundError("profile", identifier)
	}

	if !common.IsHexAddress(profile.PublicWallet) {
		return nil, apperrors.NewNoWalletAddressError(identifier)
	}

	return profile, nil
}

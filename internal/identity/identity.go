// Package identity reads and writes the signed-in profile record of a device.
// Its presence decides whether sessions run as a user or as the guest.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/storage"
)

// ProfileKey is the storage key of the profile record.
const ProfileKey = "user"

// Profile is the signed-in user as the backend returns it on login.
type Profile struct {
	UserID      domain.FlexString `json:"user_id"`
	Username    string            `json:"username"`
	UserEmail   string            `json:"user_email"`
	Address     string            `json:"address"`
	PhoneNumber string            `json:"phone_number"`
}

// Identity returns the identity the profile scopes sessions to, or guest.
func (p *Profile) Identity() domain.Identity {
	if p == nil {
		return domain.GuestIdentity
	}
	if id := strings.TrimSpace(string(p.UserID)); id != "" {
		return domain.Identity(id)
	}
	return domain.GuestIdentity
}

// Resolver yields the identity sessions should currently run as.
type Resolver interface {
	Resolve(ctx context.Context) domain.Identity
}

// Profiles manages the profile record on one device.
type Profiles struct {
	kv storage.KV
}

var _ Resolver = (*Profiles)(nil)

// NewProfiles creates a Profiles over kv.
func NewProfiles(kv storage.KV) *Profiles {
	return &Profiles{kv: kv}
}

// Current returns the stored profile, or nil when nobody is signed in. A
// record that does not decode is returned as an error.
func (p *Profiles) Current(ctx context.Context) (*Profile, error) {
	raw, err := p.kv.Get(ctx, ProfileKey)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read profile: %w", err)
	}

	var profile Profile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &profile, nil
}

// Resolve returns the profile's identity. An absent, unreadable or id-less
// profile resolves to guest.
func (p *Profiles) Resolve(ctx context.Context) domain.Identity {
	profile, err := p.Current(ctx)
	if err != nil {
		return domain.GuestIdentity
	}
	return profile.Identity()
}

// SignIn stores profile. Tag ctx with storage.WithOrigin so the writing tab can
// tell its own change apart.
func (p *Profiles) SignIn(ctx context.Context, profile Profile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := p.kv.Set(ctx, ProfileKey, raw); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}

// SignOut removes the profile record.
func (p *Profiles) SignOut(ctx context.Context) error {
	if err := p.kv.Delete(ctx, ProfileKey); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}

// Static always resolves to the same identity.
type Static domain.Identity

func (s Static) Resolve(context.Context) domain.Identity {
	if s == "" {
		return domain.GuestIdentity
	}
	return domain.Identity(s)
}

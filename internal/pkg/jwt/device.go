package jwt

import (
	"time"

	libJWT "github.com/golang-jwt/jwt/v5"
)

// DeviceClaims bind a remembered device to an account and its trust epoch.
type DeviceClaims struct {
	libJWT.RegisteredClaims
	AccountID int64 `json:"account_id,string"`
	Epoch     int64 `json:"epoch"`
}

// DeviceToken issues and parses trusted-device tokens.
//
// Parse only checks the signature, expiry, issuer and audience; comparing the
// epoch with the account's current one is the caller's job.
type DeviceToken interface {
	Issue(accountID, epoch int64) (string, DeviceClaims, error)
	Parse(tokenStr string) (DeviceClaims, error)
}

// DeviceHS512 implements DeviceToken with HS512.
type DeviceHS512 struct {
	hs512
}

// NewDeviceHS512 constructs a trusted-device token codec. The secret must not
// be shared with the access-token codec.
func NewDeviceHS512(cfg Config) (*DeviceHS512, error) {
	h, err := newHS512(cfg)
	if err != nil {
		return nil, err
	}

	return &DeviceHS512{hs512: h}, nil
}

// Issue signs a token for accountID bound to epoch.
func (d *DeviceHS512) Issue(accountID, epoch int64) (string, DeviceClaims, error) {
	claims := DeviceClaims{
		RegisteredClaims: d.registered(accountID, d.clock.Now()),
		AccountID:        accountID,
		Epoch:            epoch,
	}

	token, err := d.sign(claims)
	if err != nil {
		return "", DeviceClaims{}, err
	}

	return token, claims, nil
}

// Parse verifies a device token and returns its claims.
func (d *DeviceHS512) Parse(tokenStr string) (DeviceClaims, error) {
	var claims DeviceClaims
	if err := d.parse(tokenStr, &claims); err != nil {
		return DeviceClaims{}, err
	}

	return claims, nil
}

// ExpiresIn returns how long the token stays valid after now, never negative.
func (c DeviceClaims) ExpiresIn(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}

	return max(c.ExpiresAt.Sub(now), 0)
}

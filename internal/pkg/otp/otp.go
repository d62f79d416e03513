package otp

import (
	"crypto/subtle"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const secretSize = 20

// Key is a freshly generated secret with its provisioning URI.
type Key struct {
	Secret string
	URI    string
}

// OTP defines the contract for TOTP operations.
type OTP interface {
	// Generate creates a secret and provisioning URI for an account name.
	Generate(accountName string) (Key, error)
	// Provision rebuilds the provisioning URI for an existing secret.
	Provision(accountName, secret string) Key
	// Code computes the code for the time step containing at.
	Code(secret string, at time.Time) (string, error)
	// Verify reports whether code matches any step in the skew window around at,
	// and which step matched.
	Verify(secret, code string, at time.Time) (step int64, ok bool)
	// Step returns the time step containing at.
	Step(at time.Time) int64
}

// TOTP implements OTP with RFC 6238 codes over HMAC-SHA1.
type TOTP struct {
	issuer string
	period uint
	skew   uint
	digits otp.Digits
}

// NewTOTP constructs a TOTP engine.
//
// Digits other than 6 or 8 fall back to 6, a zero period falls back to 30
// seconds. Skew is the number of adjacent steps accepted on each side and
// may be zero.
func NewTOTP(issuer string, period, skew uint, digits otp.Digits) *TOTP {
	if digits != otp.DigitsSix && digits != otp.DigitsEight {
		digits = otp.DigitsSix
	}

	if period == 0 {
		period = 30
	}

	return &TOTP{
		issuer: issuer,
		period: period,
		skew:   skew,
		digits: digits,
	}
}

// Generate creates a secret and provisioning URI for an account name.
func (o *TOTP) Generate(accountName string) (Key, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      o.issuer,
		AccountName: accountName,
		Period:      o.period,
		SecretSize:  secretSize,
		Digits:      o.digits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return Key{}, err
	}

	return Key{Secret: key.Secret(), URI: key.URL()}, nil
}

// Provision rebuilds the otpauth:// URI of an existing secret. The result is
// byte-identical to the URI Generate returned for the same account.
func (o *TOTP) Provision(accountName, secret string) Key {
	v := url.Values{}
	v.Set("algorithm", otp.AlgorithmSHA1.String())
	v.Set("digits", o.digits.String())
	v.Set("issuer", o.issuer)
	v.Set("period", strconv.FormatUint(uint64(o.period), 10))
	v.Set("secret", secret)

	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + o.issuer + ":" + accountName,
		RawQuery: encodeQuery(v),
	}

	return Key{Secret: secret, URI: u.String()}
}

// encodeQuery matches pquerna/otp: sorted keys, path escaping, so spaces
// become %20 and ':' or '@' stay literal.
func encodeQuery(v url.Values) string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, val := range v[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.PathEscape(k))
			b.WriteByte('=')
			b.WriteString(url.PathEscape(val))
		}
	}
	return b.String()
}

// Code computes the code for the time step containing at.
func (o *TOTP) Code(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at, o.opts())
}

// Step returns the time step containing at.
func (o *TOTP) Step(at time.Time) int64 {
	return at.Unix() / int64(o.period)
}

// Verify compares code against every step in [step-skew, step+skew].
//
// Every candidate is computed and compared, matched or not. A malformed
// secret or code yields ok=false.
func (o *TOTP) Verify(secret, code string, at time.Time) (int64, bool) {
	if secret == "" || !o.wellFormed(code) {
		return 0, false
	}

	current := o.Step(at)
	skew := int64(o.skew)

	var (
		matched int64
		found   int
		broken  int
	)
	for step := current - skew; step <= current+skew; step++ {
		candidate, err := totp.GenerateCodeCustom(secret, time.Unix(step*int64(o.period), 0).UTC(), o.opts())
		if err != nil {
			broken = 1
			continue
		}

		eq := subtle.ConstantTimeCompare([]byte(candidate), []byte(code))
		take := eq & (1 - found)
		matched = int64(subtle.ConstantTimeSelect(take, int(step), int(matched)))
		found |= eq
	}

	if broken == 1 || found == 0 {
		return 0, false
	}

	return matched, true
}

func (o *TOTP) wellFormed(code string) bool {
	if len(code) != o.digits.Length() {
		return false
	}

	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}

	return true
}

func (o *TOTP) opts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    o.period,
		Digits:    o.digits,
		Algorithm: otp.AlgorithmSHA1,
	}
}

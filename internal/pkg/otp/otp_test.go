package otp_test

import (
	"net/url"
	"strings"
	"testing"
	"time"

	libotp "github.com/pquerna/otp"
	"github.com/shandysiswandi/otpguard/internal/pkg/otp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine() *otp.TOTP {
	return otp.NewTOTP("otpguard", 30, 1, libotp.DigitsSix)
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	engine := newEngine()

	first, err := engine.Generate("alice@example.com")
	require.NoError(t, err)
	second, err := engine.Generate("alice@example.com")
	require.NoError(t, err)

	assert.Len(t, first.Secret, 32)
	assert.NotEqual(t, first.Secret, second.Secret)
	assert.True(t, strings.HasPrefix(first.URI, "otpauth://totp/otpguard:alice@example.com?"))
	assert.Contains(t, first.URI, "secret="+first.Secret)
	assert.Contains(t, first.URI, "period=30")
}

func TestVerify(t *testing.T) {
	t.Parallel()

	engine := newEngine()
	key, err := engine.Generate("bob@example.com")
	require.NoError(t, err)

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	code, err := engine.Code(key.Secret, now)
	require.NoError(t, err)

	tests := []struct {
		name     string
		secret   string
		code     string
		at       time.Time
		wantOK   bool
		wantStep int64
	}{
		{name: "current step", secret: key.Secret, code: code, at: now, wantOK: true, wantStep: engine.Step(now)},
		{name: "one step late", secret: key.Secret, code: code, at: now.Add(30 * time.Second), wantOK: true, wantStep: engine.Step(now)},
		{name: "one step early", secret: key.Secret, code: code, at: now.Add(-30 * time.Second), wantOK: true, wantStep: engine.Step(now)},
		{name: "outside window", secret: key.Secret, code: code, at: now.Add(2 * time.Minute), wantOK: false},
		{name: "empty code", secret: key.Secret, code: "", at: now, wantOK: false},
		{name: "wrong length", secret: key.Secret, code: code + "1", at: now, wantOK: false},
		{name: "non digit", secret: key.Secret, code: "12a456", at: now, wantOK: false},
		{name: "empty secret", secret: "", code: code, at: now, wantOK: false},
		{name: "malformed secret", secret: "not base32 !!", code: code, at: now, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			step, ok := engine.Verify(tt.secret, tt.code, tt.at)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantStep, step)
			}
		})
	}
}

func TestNewTOTPDefaults(t *testing.T) {
	t.Parallel()

	engine := otp.NewTOTP("otpguard", 0, 0, libotp.Digits(7))
	key, err := engine.Generate("carol@example.com")
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)
	code, err := engine.Code(key.Secret, now)
	require.NoError(t, err)
	assert.Len(t, code, 6)

	_, ok := engine.Verify(key.Secret, code, now.Add(30*time.Second))
	assert.False(t, ok, "zero skew accepts only the current step")

	step, ok := engine.Verify(key.Secret, code, now)
	assert.True(t, ok)
	assert.Equal(t, now.Unix()/30, step)
}

func TestProvision(t *testing.T) {
	t.Parallel()

	engine := newEngine()
	key, err := engine.Generate("dave@example.com")
	require.NoError(t, err)

	rebuilt := engine.Provision("dave@example.com", key.Secret)
	assert.Equal(t, key.Secret, rebuilt.Secret)

	want, err := url.Parse(key.URI)
	require.NoError(t, err)
	got, err := url.Parse(rebuilt.URI)
	require.NoError(t, err)

	assert.Equal(t, want.Scheme, got.Scheme)
	assert.Equal(t, want.Host, got.Host)
	assert.Equal(t, want.Path, got.Path)
	assert.Equal(t, want.Query(), got.Query())
	assert.Equal(t, key.URI, rebuilt.URI)
}

func TestProvision_SameURIForAwkwardNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		issuer  string
		account string
	}{
		{"Acme & Co: Ops", "a+b@example.com"},
		{"Ünïcode Issuer", "first last@example.com"},
		{"semi;colon,comma", "x/y?z=1#frag"},
	}

	for _, tt := range tests {
		t.Run(tt.issuer, func(t *testing.T) {
			t.Parallel()

			engine := otp.NewTOTP(tt.issuer, 30, 1, libotp.DigitsSix)
			key, err := engine.Generate(tt.account)
			require.NoError(t, err)

			assert.Equal(t, key.URI, engine.Provision(tt.account, key.Secret).URI)
		})
	}
}

package mfa

import (
	"bytes"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

// DefaultRecoveryCodeCount is used when Generate receives a non-positive count.
const DefaultRecoveryCodeCount = 10

// RecoveryFileName is the suggested file name for an exported code set.
const RecoveryFileName = "otp-recovery-codes.txt"

// recoveryAlphabet is upper-case base32 without 0/O and 1/I, so codes read
// back from paper survive transcription.
const recoveryAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

const (
	recoveryGroups    = 3
	recoveryGroupSize = 4
	recoveryRawLen    = recoveryGroups * recoveryGroupSize
)

// ErrRecoveryCodeMalformed indicates a submission that cannot be a recovery code.
var ErrRecoveryCodeMalformed = errors.New("mfa: malformed recovery code")

// RecoveryCodeGenerator issues batches of plaintext recovery codes.
type RecoveryCodeGenerator interface {
	// Generate returns count distinct codes in issue order.
	Generate(count int) ([]string, error)
}

// RecoveryCode generates codes formatted as XXXX-XXXX-XXXX using crypto/rand.
type RecoveryCode struct{}

// NewRecoveryCode returns a new RecoveryCode generator.
func NewRecoveryCode() *RecoveryCode {
	return &RecoveryCode{}
}

// Generate returns count distinct codes in issue order.
func (rc *RecoveryCode) Generate(count int) ([]string, error) {
	if count <= 0 {
		count = DefaultRecoveryCodeCount
	}

	out := make([]string, 0, count)
	seen := make(map[string]struct{}, count)

	for len(out) < count {
		code, err := randomCode()
		if err != nil {
			return nil, err
		}

		if _, dup := seen[code]; dup {
			continue
		}

		seen[code] = struct{}{}
		out = append(out, code)
	}

	return out, nil
}

func randomCode() (string, error) {
	limit := big.NewInt(int64(len(recoveryAlphabet)))
	raw := make([]byte, recoveryRawLen)
	for i := range raw {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		raw[i] = recoveryAlphabet[n.Int64()]
	}

	return format(raw), nil
}

func format(raw []byte) string {
	var sb strings.Builder
	sb.Grow(recoveryRawLen + recoveryGroups - 1)
	for g := range recoveryGroups {
		if g > 0 {
			sb.WriteByte('-')
		}
		sb.Write(raw[g*recoveryGroupSize : (g+1)*recoveryGroupSize])
	}
	return sb.String()
}

// NormalizeRecoveryCode canonicalises user input to the issued XXXX-XXXX-XXXX
// form. Case, surrounding space and missing or extra separators are tolerated.
func NormalizeRecoveryCode(in string) (string, error) {
	raw := make([]byte, 0, recoveryRawLen)
	for _, r := range strings.ToUpper(in) {
		switch {
		case r == '-' || r == ' ' || r == '\t':
			continue
		case r > 0x7f || !strings.ContainsRune(recoveryAlphabet, r):
			return "", ErrRecoveryCodeMalformed
		}
		raw = append(raw, byte(r))
	}

	if len(raw) != recoveryRawLen {
		return "", ErrRecoveryCodeMalformed
	}

	return format(raw), nil
}

// ExportRecoveryCodes renders codes as a text payload, one code per line.
func ExportRecoveryCodes(codes []string) []byte {
	var buf bytes.Buffer
	for _, c := range codes {
		buf.WriteString(c)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

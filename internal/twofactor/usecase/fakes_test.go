package usecase_test

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/shandysiswandi/otpguard/internal/pkg/goerror"
	"github.com/shandysiswandi/otpguard/internal/twofactor/entity"
)

// memoryDB mirrors the compare-and-set predicates of the PostgreSQL store.
type memoryDB struct {
	mu       sync.Mutex
	accounts map[int64]entity.Account
	codes    map[int64][]entity.RecoveryCode
	writes   int
	fail     error
}

func newMemoryDB(accounts ...entity.Account) *memoryDB {
	db := &memoryDB{
		accounts: make(map[int64]entity.Account),
		codes:    make(map[int64][]entity.RecoveryCode),
	}
	for _, a := range accounts {
		db.accounts[a.ID] = a
	}
	return db
}

func (m *memoryDB) account(id int64) entity.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.accounts[id]
	a.RecoveryCodesLeft = len(m.codes[id])
	return a
}

func (m *memoryDB) recoveryCodes(id int64) []entity.RecoveryCode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entity.RecoveryCode(nil), m.codes[id]...)
}

func (m *memoryDB) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *memoryDB) failWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

func (m *memoryDB) GetAccount(_ context.Context, id int64) (*entity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	a, ok := m.accounts[id]
	if !ok {
		return nil, goerror.ErrNotFound
	}
	a.OTPSecret = append([]byte(nil), a.OTPSecret...)
	if len(a.OTPSecret) == 0 {
		a.OTPSecret = nil
	}
	a.RecoveryCodesLeft = len(m.codes[id])
	return &a, nil
}

func (m *memoryDB) GetTrustEpoch(_ context.Context, id int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return 0, m.fail
	}
	a, ok := m.accounts[id]
	if !ok {
		return 0, goerror.ErrNotFound
	}
	return a.TrustEpoch, nil
}

func (m *memoryDB) GetRecoveryCodes(_ context.Context, accountID int64) ([]entity.RecoveryCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	return append([]entity.RecoveryCode(nil), m.codes[accountID]...), nil
}

func (m *memoryDB) mutate(id int64, fn func(a *entity.Account) bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return false, m.fail
	}
	a, ok := m.accounts[id]
	if !ok {
		return false, goerror.ErrNotFound
	}
	if !fn(&a) {
		return false, nil
	}
	m.accounts[id] = a
	m.writes++
	return true, nil
}

func (m *memoryDB) SetPendingSecret(_ context.Context, id int64, ciphertext []byte) (bool, error) {
	return m.mutate(id, func(a *entity.Account) bool {
		if a.OTPEnabled || len(a.OTPSecret) > 0 {
			return false
		}
		a.OTPSecret = append([]byte(nil), ciphertext...)
		return true
	})
}

func (m *memoryDB) EnableOTP(_ context.Context, id int64, ciphertext []byte, step int64, at time.Time, codes []entity.RecoveryCode) (bool, error) {
	ok, err := m.mutate(id, func(a *entity.Account) bool {
		if a.OTPEnabled || !bytes.Equal(a.OTPSecret, ciphertext) {
			return false
		}
		a.OTPEnabled = true
		a.OTPEnabledAt = &at
		a.OTPLastStep = step
		return true
	})
	if ok {
		m.mu.Lock()
		m.codes[id] = append([]entity.RecoveryCode(nil), codes...)
		m.mu.Unlock()
	}
	return ok, err
}

func (m *memoryDB) DisableOTP(_ context.Context, id int64) (bool, error) {
	ok, err := m.mutate(id, func(a *entity.Account) bool {
		if len(a.OTPSecret) == 0 {
			return false
		}
		clearOTP(a)
		a.TrustEpoch++
		return true
	})
	if ok {
		m.mu.Lock()
		delete(m.codes, id)
		m.mu.Unlock()
	}
	return ok, err
}

func (m *memoryDB) ResetOTP(_ context.Context, id int64) (int64, error) {
	var epoch int64
	_, err := m.mutate(id, func(a *entity.Account) bool {
		clearOTP(a)
		a.TrustEpoch++
		epoch = a.TrustEpoch
		return true
	})
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	delete(m.codes, id)
	m.mu.Unlock()
	return epoch, nil
}

func (m *memoryDB) ReplaceRecoveryCodes(_ context.Context, accountID int64, codes []entity.RecoveryCode) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return false, m.fail
	}
	if !m.accounts[accountID].OTPEnabled {
		return false, nil
	}
	m.codes[accountID] = append([]entity.RecoveryCode(nil), codes...)
	m.writes++
	return true, nil
}

func (m *memoryDB) ConsumeRecoveryCode(_ context.Context, id, accountID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return false, m.fail
	}
	codes := m.codes[accountID]
	for i := range codes {
		if codes[i].ID == id {
			m.codes[accountID] = append(codes[:i:i], codes[i+1:]...)
			m.writes++
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryDB) AdvanceOTPStep(_ context.Context, id, step int64) (bool, error) {
	return m.mutate(id, func(a *entity.Account) bool {
		if !a.OTPEnabled || a.OTPLastStep >= step {
			return false
		}
		a.OTPLastStep = step
		return true
	})
}

func (m *memoryDB) RotateTrustEpoch(_ context.Context, id int64) (int64, error) {
	var epoch int64
	_, err := m.mutate(id, func(a *entity.Account) bool {
		a.TrustEpoch++
		epoch = a.TrustEpoch
		return true
	})
	return epoch, err
}

func (m *memoryDB) TouchStrongAuth(_ context.Context, id int64, at time.Time) error {
	_, err := m.mutate(id, func(a *entity.Account) bool {
		a.LastStrongAuthAt = &at
		return true
	})
	return err
}

func clearOTP(a *entity.Account) {
	a.OTPSecret = nil
	a.OTPEnabled = false
	a.OTPEnabledAt = nil
	a.OTPLastStep = 0
}

type memoryCache struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
	fail    error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{revoked: make(map[string]time.Duration)}
}

func (c *memoryCache) RevokeDevice(_ context.Context, jti string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.revoked[jti] = ttl
	return nil
}

func (c *memoryCache) IsDeviceRevoked(_ context.Context, jti string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return false, c.fail
	}
	_, ok := c.revoked[jti]
	return ok, nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []entity.SecurityEvent
}

func (b *recordingBus) PublishSecurityEvent(_ context.Context, ev entity.SecurityEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return nil
}

func (b *recordingBus) kinds() []entity.SecurityEventKind {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]entity.SecurityEventKind, 0, len(b.events))
	for _, ev := range b.events {
		out = append(out, ev.Kind)
	}
	return out
}

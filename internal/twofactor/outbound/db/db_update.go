package db

import (
	"context"
	"time"

	"github.com/shandysiswandi/otpguard/internal/pkg/goerror"
)

func (s *DB) SetPendingSecret(ctx context.Context, id int64, ciphertext []byte) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "SetPendingSecret")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, `
UPDATE twofactor_accounts
SET otp_secret = $2, updated_at = now()
WHERE id = $1 AND NOT otp_enabled AND otp_secret IS NULL`, id, ciphertext)
	if err != nil {
		return false, s.mapError(err)
	}

	return tag.RowsAffected() == 1, nil
}

func (s *DB) ConsumeRecoveryCode(ctx context.Context, id, accountID int64) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "ConsumeRecoveryCode")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, `DELETE FROM twofactor_recovery_codes WHERE id = $1 AND account_id = $2`, id, accountID)
	if err != nil {
		return false, s.mapError(err)
	}

	return tag.RowsAffected() == 1, nil
}

func (s *DB) AdvanceOTPStep(ctx context.Context, id, step int64) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "AdvanceOTPStep")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, `
UPDATE twofactor_accounts
SET otp_last_step = $2, updated_at = now()
WHERE id = $1 AND otp_enabled AND otp_last_step < $2`, id, step)
	if err != nil {
		return false, s.mapError(err)
	}

	return tag.RowsAffected() == 1, nil
}

func (s *DB) RotateTrustEpoch(ctx context.Context, id int64) (epoch int64, err error) {
	ctx, span := s.startSpan(ctx, "RotateTrustEpoch")
	defer func() { s.endSpan(span, err) }()

	err = s.conn.QueryRow(ctx, `
UPDATE twofactor_accounts
SET trust_epoch = trust_epoch + 1, updated_at = now()
WHERE id = $1
RETURNING trust_epoch`, id).Scan(&epoch)
	if err != nil {
		return 0, s.mapError(err)
	}

	return epoch, nil
}

func (s *DB) TouchStrongAuth(ctx context.Context, id int64, at time.Time) (err error) {
	ctx, span := s.startSpan(ctx, "TouchStrongAuth")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, `
UPDATE twofactor_accounts
SET last_strong_auth_at = $2, updated_at = now()
WHERE id = $1`, id, at)
	if err != nil {
		return s.mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return goerror.ErrNotFound
	}

	return nil
}

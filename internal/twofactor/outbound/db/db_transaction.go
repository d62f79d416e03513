package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"
	"github.com/shandysiswandi/otpguard/internal/twofactor/entity"
)

const clearOTP = `
UPDATE twofactor_accounts
SET otp_secret = NULL,
    otp_enabled = FALSE,
    otp_enabled_at = NULL,
    otp_last_step = 0,
    trust_epoch = trust_epoch + 1,
    updated_at = now()
WHERE id = $1`

func (s *DB) EnableOTP(ctx context.Context, id int64, ciphertext []byte, step int64, at time.Time, codes []entity.RecoveryCode) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "EnableOTP")
	defer func() { s.endSpan(span, err) }()

	return s.inTx(ctx, func(tx pgx.Tx) (bool, error) {
		tag, err := tx.Exec(ctx, `
UPDATE twofactor_accounts
SET otp_enabled = TRUE, otp_enabled_at = $3, otp_last_step = $4, updated_at = now()
WHERE id = $1 AND NOT otp_enabled AND otp_secret = $2`, id, ciphertext, at, step)
		if err != nil {
			return false, err
		}
		if tag.RowsAffected() != 1 {
			return false, nil
		}

		return true, s.replaceCodes(ctx, tx, id, codes)
	})
}

func (s *DB) DisableOTP(ctx context.Context, id int64) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "DisableOTP")
	defer func() { s.endSpan(span, err) }()

	return s.inTx(ctx, func(tx pgx.Tx) (bool, error) {
		tag, err := tx.Exec(ctx, clearOTP+` AND otp_secret IS NOT NULL`, id)
		if err != nil {
			return false, err
		}
		if tag.RowsAffected() != 1 {
			return false, nil
		}

		_, err = tx.Exec(ctx, `DELETE FROM twofactor_recovery_codes WHERE account_id = $1`, id)
		return true, err
	})
}

func (s *DB) ResetOTP(ctx context.Context, id int64) (epoch int64, err error) {
	ctx, span := s.startSpan(ctx, "ResetOTP")
	defer func() { s.endSpan(span, err) }()

	_, err = s.inTx(ctx, func(tx pgx.Tx) (bool, error) {
		if err := tx.QueryRow(ctx, clearOTP+` RETURNING trust_epoch`, id).Scan(&epoch); err != nil {
			return false, err
		}

		_, err := tx.Exec(ctx, `DELETE FROM twofactor_recovery_codes WHERE account_id = $1`, id)
		return true, err
	})
	if err != nil {
		return 0, err
	}

	return epoch, nil
}

func (s *DB) ReplaceRecoveryCodes(ctx context.Context, accountID int64, codes []entity.RecoveryCode) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "ReplaceRecoveryCodes")
	defer func() { s.endSpan(span, err) }()

	return s.inTx(ctx, func(tx pgx.Tx) (bool, error) {
		var enabled bool
		err := tx.QueryRow(ctx, `SELECT otp_enabled FROM twofactor_accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&enabled)
		if err != nil {
			return false, err
		}
		if !enabled {
			return false, nil
		}

		return true, s.replaceCodes(ctx, tx, accountID, codes)
	})
}

func (s *DB) replaceCodes(ctx context.Context, tx pgx.Tx, accountID int64, codes []entity.RecoveryCode) error {
	if _, err := tx.Exec(ctx, `DELETE FROM twofactor_recovery_codes WHERE account_id = $1`, accountID); err != nil {
		return err
	}

	if len(codes) == 0 {
		return nil
	}

	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"twofactor_recovery_codes"},
		[]string{"id", "account_id", "code_hash", "created_at"},
		pgx.CopyFromRows(lo.Map(codes, func(c entity.RecoveryCode, _ int) []any {
			return []any{c.ID, accountID, c.Hash, c.CreatedAt}
		})),
	)
	return err
}

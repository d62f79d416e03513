package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/samber/lo"
	"github.com/shandysiswandi/otpguard/internal/twofactor/entity"
)

const getAccount = `
SELECT a.id, a.email, a.password_hash, a.otp_secret, a.otp_enabled, a.otp_enabled_at,
       a.otp_last_step, a.trust_epoch, a.last_strong_auth_at,
       (SELECT count(*) FROM twofactor_recovery_codes c WHERE c.account_id = a.id)
FROM twofactor_accounts a
WHERE a.id = $1`

func (s *DB) GetAccount(ctx context.Context, id int64) (_ *entity.Account, err error) {
	ctx, span := s.startSpan(ctx, "GetAccount")
	defer func() { s.endSpan(span, err) }()

	var (
		acc        entity.Account
		enabledAt  pgtype.Timestamptz
		strongAt   pgtype.Timestamptz
		codesCount int64
	)
	err = s.conn.QueryRow(ctx, getAccount, id).Scan(
		&acc.ID,
		&acc.Email,
		&acc.PasswordHash,
		&acc.OTPSecret,
		&acc.OTPEnabled,
		&enabledAt,
		&acc.OTPLastStep,
		&acc.TrustEpoch,
		&strongAt,
		&codesCount,
	)
	if err != nil {
		return nil, s.mapError(err)
	}

	acc.OTPEnabledAt = timePtr(enabledAt)
	acc.LastStrongAuthAt = timePtr(strongAt)
	acc.RecoveryCodesLeft = int(codesCount)

	return &acc, nil
}

func (s *DB) GetTrustEpoch(ctx context.Context, id int64) (epoch int64, err error) {
	ctx, span := s.startSpan(ctx, "GetTrustEpoch")
	defer func() { s.endSpan(span, err) }()

	err = s.conn.QueryRow(ctx, `SELECT trust_epoch FROM twofactor_accounts WHERE id = $1`, id).Scan(&epoch)
	if err != nil {
		return 0, s.mapError(err)
	}

	return epoch, nil
}

type recoveryCodeRow struct {
	ID        int64     `db:"id"`
	AccountID int64     `db:"account_id"`
	CodeHash  string    `db:"code_hash"`
	CreatedAt time.Time `db:"created_at"`
}

func (s *DB) GetRecoveryCodes(ctx context.Context, accountID int64) (_ []entity.RecoveryCode, err error) {
	ctx, span := s.startSpan(ctx, "GetRecoveryCodes")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx, `
SELECT id, account_id, code_hash, created_at
FROM twofactor_recovery_codes
WHERE account_id = $1
ORDER BY id`, accountID)
	if err != nil {
		return nil, s.mapError(err)
	}

	result, err := pgx.CollectRows(rows, pgx.RowToStructByName[recoveryCodeRow])
	if err != nil {
		return nil, s.mapError(err)
	}

	return lo.Map(result, func(r recoveryCodeRow, _ int) entity.RecoveryCode {
		return entity.RecoveryCode{
			ID:        r.ID,
			AccountID: r.AccountID,
			Hash:      r.CodeHash,
			CreatedAt: r.CreatedAt,
		}
	}), nil
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time.UTC()
	return &t
}

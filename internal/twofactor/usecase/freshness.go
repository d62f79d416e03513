package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpguard/internal/pkg/goerror"
	"github.com/shandysiswandi/otpguard/internal/twofactor/entity"
)

const defaultRefreshTTL = 15 * time.Minute

var errRefreshRequired = goerror.NewBusinessWithFields("Credential refresh required", goerror.CodeRefreshRequired,
	FieldOutcome, string(entity.OutcomeRefreshRequired))

func (s *Usecase) refreshTTL() time.Duration {
	ttl := s.cfg.GetMinute("modules.twofactor.credential_refresh_ttl_minutes")
	if ttl <= 0 {
		return defaultRefreshTTL
	}
	return ttl
}

func (s *Usecase) needsRefresh(acc *entity.Account) bool {
	return acc.NeedsRefresh(s.clock.Now(), s.refreshTTL())
}

// ensureFresh must run before any write of a state-changing operation.
func (s *Usecase) ensureFresh(ctx context.Context, acc *entity.Account) error {
	if !s.needsRefresh(acc) {
		return nil
	}

	slog.WarnContext(ctx, "credential refresh required", "account_id", acc.ID)
	return errRefreshRequired
}

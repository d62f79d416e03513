package usecase

import (
	"context"
	"time"

	"github.com/shandysiswandi/otpguard/internal/twofactor/entity"
)

type StatusOutput struct {
	State             entity.OTPState
	EnabledAt         *time.Time
	RecoveryCodesLeft int
	TrustEpoch        int64
	RefreshRequired   bool
}

func (s *Usecase) Status(ctx context.Context) (*StatusOutput, error) {
	ctx, span := s.startSpan(ctx, "Status")
	defer span.End()

	acc, err := s.loadCaller(ctx)
	if err != nil {
		return nil, err
	}

	return &StatusOutput{
		State:             acc.State(),
		EnabledAt:         acc.OTPEnabledAt,
		RecoveryCodesLeft: acc.RecoveryCodesLeft,
		TrustEpoch:        acc.TrustEpoch,
		RefreshRequired:   s.needsRefresh(acc),
	}, nil
}

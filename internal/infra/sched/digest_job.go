package sched

import (
	"context"

	"github.com/rs/zerolog"
)

const PendingDigestJob = "pending_digest"

type digestSender interface {
	SendPendingDigest(ctx context.Context) (int, error)
}

// PendingDigest sends the admins a summary of the payments still waiting for them.
func PendingDigest(uc digestSender, logger *zerolog.Logger) Job {
	return func(ctx context.Context) error {
		n, err := uc.SendPendingDigest(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info().Int("count", n).Msg("pending digest sent")
		}
		return nil
	}
}

package bot

import (
	"context"

	"go.uber.org/zap"

	"github.com/sherlockbot/sherlock/internal/limiter"
)

// Handler is the signature of the orchestrator entry point the connector
// calls for each inbound request.
type Handler func(ctx context.Context, userID, channelID int64, query string) string

// Gate applies sliding-window admission in front of the expensive command
// surface. It is composed explicitly at the command entry points; passive
// mention/DM handling is intentionally not gated.
type Gate struct {
	limiter *limiter.Limiter
	enabled bool
	limit   int
	log     *zap.Logger
}

// NewGate creates an admission gate. When enabled is false the gate admits
// everything.
func NewGate(l *limiter.Limiter, enabled bool, requestsPerMinute int, log *zap.Logger) *Gate {
	return &Gate{limiter: l, enabled: enabled, limit: requestsPerMinute, log: log}
}

// Admit reports whether the user may proceed. When denied, the second return
// value is the user-facing message to send instead of doing any work.
func (g *Gate) Admit(userID int64) (bool, string) {
	if !g.enabled {
		return true, ""
	}
	if g.limiter.Allow(userID) {
		return true, ""
	}
	g.log.Warn("rate limit hit",
		zap.Int64("user_id", userID),
		zap.Int("limit", g.limit),
	)
	return false, MsgRateLimited(g.limit)
}

package deploy

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jlantz/metaci-cli/internal/heroku"
)

// SetupGetter fetches the current state of an app setup
type SetupGetter interface {
	GetAppSetup(ctx context.Context, id string) (*heroku.AppSetup, error)
}

// Poller waits for a Heroku app setup to leave the pending state
type Poller struct {
	getter   SetupGetter
	interval time.Duration
	logger   zerolog.Logger

	// OnBuildStarted runs once, the first time a poll reports a build
	OnBuildStarted func(ctx context.Context, build *heroku.BuildRef)
	// OnTick runs after every pending poll
	OnTick func(polls int)
}

// NewPoller creates a poller checking every interval
func NewPoller(getter SetupGetter, interval time.Duration, logger zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Poller{
		getter:   getter,
		interval: interval,
		logger:   logger.With().Str("component", "setup-poller").Logger(),
	}
}

// Wait polls setupID until its status is no longer pending and returns
// that final state. There is no attempt limit; cancel ctx to stop early.
func (p *Poller) Wait(ctx context.Context, setupID string) (*heroku.AppSetup, error) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	buildStarted := false
	for polls := 1; ; polls++ {
		setup, err := p.getter.GetAppSetup(ctx, setupID)
		if err != nil {
			return nil, err
		}

		if !buildStarted && setup.Build != nil {
			buildStarted = true
			if p.OnBuildStarted != nil {
				p.OnBuildStarted(ctx, setup.Build)
			}
		}

		if setup.Status != heroku.SetupPending {
			p.logger.Debug().
				Str("setup_id", setupID).
				Str("status", setup.Status).
				Int("polls", polls).
				Msg("App setup finished")
			return setup, nil
		}

		if p.OnTick != nil {
			p.OnTick(polls)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

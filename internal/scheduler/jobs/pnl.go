package jobs

import (
	"context"

	"github.com/wonny/miyagi/internal/trading"
	"github.com/wonny/miyagi/pkg/logger"
)

// PnlUpdateJob revalues open trades against current option quotes
type PnlUpdateJob struct {
	marker *trading.PnlMarker
	logger *logger.Logger
}

// NewPnlUpdateJob creates a new PnL update job
func NewPnlUpdateJob(marker *trading.PnlMarker, log *logger.Logger) *PnlUpdateJob {
	return &PnlUpdateJob{
		marker: marker,
		logger: log,
	}
}

// Name returns the job name
func (j *PnlUpdateJob) Name() string {
	return "pnl_update"
}

// Schedule returns the cron schedule (every minute)
func (j *PnlUpdateJob) Schedule() string {
	return "0 * * * * *" // Every minute
}

// Run executes the mark-to-market pass
func (j *PnlUpdateJob) Run(ctx context.Context) error {
	j.logger.Debug("Starting scheduled PnL update")

	updated, err := j.marker.MarkToMarket(ctx)
	if err != nil {
		return err
	}

	if updated > 0 {
		j.logger.WithField("updated", updated).Info("Open trades revalued")
	}

	return nil
}

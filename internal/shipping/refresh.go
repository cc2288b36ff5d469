package shipping

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// TaskRefreshRates is the asynq task type that reloads the cached rate table.
const TaskRefreshRates = "shipping:rates:refresh"

// NewRefreshTask builds the periodic refresh task.
func NewRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskRefreshRates, nil)
}

// RefreshHandler processes TaskRefreshRates.
type RefreshHandler struct {
	Source *CachedSource
	Logger zerolog.Logger
}

// ProcessTask implements asynq.Handler.
func (h RefreshHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if h.Source == nil {
		return errors.New("shipping: refresh source not configured")
	}
	table, err := h.Source.Refresh(ctx)
	if err != nil {
		h.Logger.Error().Err(err).Str("task", t.Type()).Msg("rate_table_refresh")
		return err
	}
	h.Logger.Info().
		Str("task", t.Type()).
		Int64("ups_base", table.UPSBase).
		Int64("air_base_cargo", table.AirBaseCargo).
		Msg("rate_table_refreshed")
	return nil
}

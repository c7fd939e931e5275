package coupling

import (
	"log/slog"
	"time"
)

// TickReport summarizes one coupling tick.
type TickReport struct {
	Tick     int64
	Cells    int // cells handed out by the population
	Updated  int // cells whose records were written
	Skipped  int // dead or out-of-domain
	Disabled int // skipped because an earlier tick disabled the network

	Failures        int
	ConfigErrors    int
	NumericalErrors int

	Duration time.Duration
}

// OK reports whether every active cell was updated.
func (r TickReport) OK() bool { return r.Failures == 0 }

// Attempted returns the number of cells the tick tried to update.
func (r TickReport) Attempted() int { return r.Updated + r.Failures }

// LogValue implements slog.LogValuer for structured logging.
func (r TickReport) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("tick", r.Tick),
		slog.Int("cells", r.Cells),
		slog.Int("updated", r.Updated),
		slog.Int("skipped", r.Skipped),
		slog.Int("disabled", r.Disabled),
		slog.Int("failures", r.Failures),
		slog.Int("config_errors", r.ConfigErrors),
		slog.Int("numerical_errors", r.NumericalErrors),
		slog.Int64("duration_us", r.Duration.Microseconds()),
	)
}

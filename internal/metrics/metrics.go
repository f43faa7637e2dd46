package metrics

import (
	"expvar"
	"time"
)

var startedAt = time.Now()

var (
	Ticks           = expvar.NewInt("ticks")
	Jumps           = expvar.NewInt("jumps")
	NoOpTicks       = expvar.NewInt("no_op_ticks")
	SkippedTicks    = expvar.NewInt("skipped_ticks")
	TransientErrors = expvar.NewInt("transient_errors")
	BridgeScouts    = expvar.NewInt("bridge_scouts")
	TradeFailures   = expvar.NewInt("trade_failures")
	InitAttempts    = expvar.NewInt("init_attempts")
)

func init() {
	expvar.Publish("uptime_seconds", expvar.Func(func() any {
		return int64(time.Since(startedAt).Seconds())
	}))
}

// Counters 当前计数快照
func Counters() map[string]int64 {
	return map[string]int64{
		"ticks":            Ticks.Value(),
		"jumps":            Jumps.Value(),
		"no_op_ticks":      NoOpTicks.Value(),
		"skipped_ticks":    SkippedTicks.Value(),
		"transient_errors": TransientErrors.Value(),
		"bridge_scouts":    BridgeScouts.Value(),
		"trade_failures":   TradeFailures.Value(),
		"init_attempts":    InitAttempts.Value(),
	}
}

package oracle

import (
	"log/slog"

	"github.com/shopspring/decimal"
)

// LogSink is a minimal metrics sink: it formats each pushed price with
// shopspring/decimal — matching the teacher's convention of running every
// externally-displayed monetary figure through decimal rather than raw
// integer math — and logs it structurally. It stands in for the
// original's influxdb write path, which is itself mostly a commented-out
// stub (see DESIGN.md); wiring a real time-series client is left to the
// chain-specific deployment.
type LogSink struct {
	Log *slog.Logger
	// Scale is how many decimal places the fixed-point price implicitly
	// carries (the engine sets 8).
	Scale int32
}

func (s LogSink) RecordPush(symbol string, price uint64, updateTime int64) {
	d := decimal.NewFromInt(int64(price)).Shift(-s.Scale)
	s.Log.Info("recorded push", "symbol", symbol, "price", d.String(), "update_time", updateTime)
}

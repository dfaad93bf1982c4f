package progress

import (
	"github.com/bobmcallan/tickzen/internal/interfaces"
	"github.com/bobmcallan/tickzen/internal/models"
)

// Fanout forwards every event to each sink in turn.
type Fanout []interfaces.ProgressSink

// NewFanout drops nil sinks. Returns nil when none remain, so the
// orchestrator falls back to its own logging.
func NewFanout(sinks ...interfaces.ProgressSink) interfaces.ProgressSink {
	var out Fanout
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}

// Emit implements ProgressSink
func (f Fanout) Emit(ev models.ProgressEvent) {
	for _, s := range f {
		s.Emit(ev)
	}
}

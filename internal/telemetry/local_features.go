package telemetry

import (
	"context"

	"github.com/petasbytes/turnloop/internal/metrics"
)

// EmitLocalFeatures records size features of a human input line. Raw text is
// never written.
func (e *Emitter) EmitLocalFeatures(ctx context.Context, user string) {
	if !e.Enabled() || !e.cfg.LocalFeatures {
		return
	}
	turnID, _ := TurnIDFromContext(ctx)
	f := metrics.CountFeatures(user)
	e.Emit("local_features", map[string]any{
		"turn_id":          turnID,
		"features_version": "1",
		"user": map[string]any{
			"bytes": f.Bytes,
			"runes": f.Runes,
			"words": f.Words,
			"lines": f.Lines,
		},
	})
}

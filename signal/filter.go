package signal

import (
	"fmt"
	"time"

	"github.com/tickhouse/papertrader/account"
)

// Rejection reasons, in gate order.
const (
	ReasonPositionState = "position-state"
	ReasonConfidence    = "confidence"
	ReasonEdge          = "edge"
	ReasonCooldown      = "cooldown"
)

// FilterResult is the outcome of running a signal through the pipeline.
type FilterResult struct {
	Accepted bool
	Reason   string // first gate that rejected, empty when accepted
	Detail   string
}

// Pipeline applies the four execution gates in fixed order, first
// rejection wins: position-state, confidence, minimum edge, cooldown.
// Together they turn a noisy alternating signal stream into a bounded,
// position-aware trade stream.
type Pipeline struct {
	MinConfidence float64
	MinEdgeBP     float64
	Cooldown      *Cooldown
}

func NewPipeline(minConfidence, minEdgeBP float64, cooldown *Cooldown) *Pipeline {
	return &Pipeline{
		MinConfidence: minConfidence,
		MinEdgeBP:     minEdgeBP,
		Cooldown:      cooldown,
	}
}

// Evaluate decides whether sig may proceed to execution given the
// current position state. The admissible transitions from a single
// signal are FLAT->LONG, LONG->FLAT, FLAT->SHORT and SHORT->FLAT; a BUY
// while LONG or a SELL while SHORT is redundant exposure and is dropped
// at the first gate.
func (p *Pipeline) Evaluate(sig Signal, state account.PositionState, now time.Time) FilterResult {
	if state == account.Long && sig.Action == Buy {
		return rejected(ReasonPositionState, "already LONG, ignoring BUY")
	}
	if state == account.Short && sig.Action == Sell {
		return rejected(ReasonPositionState, "already SHORT, ignoring SELL")
	}

	if sig.Confidence < p.MinConfidence {
		return rejected(ReasonConfidence,
			fmt.Sprintf("confidence %.2f below minimum %.2f", sig.Confidence, p.MinConfidence))
	}

	if sig.ExpectedEdgeBP < p.MinEdgeBP {
		return rejected(ReasonEdge,
			fmt.Sprintf("expected edge %.1fbp below minimum %.1fbp", sig.ExpectedEdgeBP, p.MinEdgeBP))
	}

	if p.Cooldown != nil && !p.Cooldown.Ready(sig.Symbol, now) {
		return rejected(ReasonCooldown, "minimum trade interval not elapsed")
	}

	return FilterResult{Accepted: true}
}

func rejected(reason, detail string) FilterResult {
	return FilterResult{Reason: reason, Detail: detail}
}

package signal

import "time"

// Action is the direction a signal asks for.
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
)

// Signal is one externally produced trade signal. The engine only
// consumes signals; it never generates them. One signal maps to at most
// one execution attempt.
type Signal struct {
	Time           time.Time `json:"timestamp"`
	Symbol         string    `json:"symbol"`
	Action         Action    `json:"action"`
	Confidence     float64   `json:"confidence"`
	ExpectedEdgeBP float64   `json:"expected_edge_bp"`
}

package broker

import (
	"context"
	"errors"
	"time"

	"github.com/tickhouse/papertrader/account"
)

var (
	// ErrInvalidOrder is returned at submission for zero/negative
	// quantity or a symbol with no known price.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrOrderRejected is the broker-reported terminal rejection.
	ErrOrderRejected = errors.New("order rejected")
	// ErrFillTimeout means the order did not reach a terminal state
	// within the caller's timeout window.
	ErrFillTimeout = errors.New("fill timeout")
	// ErrUnknownOrder is returned by status queries for ids the broker
	// has never seen.
	ErrUnknownOrder = errors.New("unknown order")
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

type Status string

const (
	Pending  Status = "PENDING"
	Filled   Status = "FILLED"
	Rejected Status = "REJECTED"
)

// OrderRequest describes a market order. Market is the only supported
// order type.
type OrderRequest struct {
	Symbol      string
	Side        Side
	Quantity    int64
	TimeInForce string
}

// Order is an accepted request, owned by the broker until resolved.
type Order struct {
	ID string
	OrderRequest
	SubmittedAt time.Time
}

// Fill is the broker's resolution of an order. PENDING is transient and
// must resolve within a bounded timeout; FILLED and REJECTED are
// terminal.
type Fill struct {
	OrderID  string
	Status   Status
	Price    float64
	Quantity int64
	FilledAt time.Time
	Reason   string
}

// Terminal reports whether the fill has reached a final state.
func (f Fill) Terminal() bool { return f.Status == Filled || f.Status == Rejected }

// AccountInfo is the broker's view of the account.
type AccountInfo struct {
	ID             string
	Cash           float64
	PortfolioValue float64
	BuyingPower    float64
}

// Broker is the order/fill/account contract, polymorphic over simulated
// and real implementations.
type Broker interface {
	SubmitOrder(ctx context.Context, req OrderRequest) (Order, error)
	OrderStatus(ctx context.Context, orderID string) (Fill, error)
	Positions(ctx context.Context) (map[string]account.Position, error)
	Account(ctx context.Context) (AccountInfo, error)
}

// PriceSetter is implemented by brokers whose fill price is supplied by
// the caller for the current tick. The broker must never re-derive or
// re-randomize that price: a BUY and a SELL submitted within the same
// tick fill against the identical base price.
type PriceSetter interface {
	SetPrice(symbol string, price float64)
}

// FillWaiter is implemented by brokers that can block until an order
// resolves, honoring context cancellation. Callers without this fall
// back to polling OrderStatus.
type FillWaiter interface {
	WaitFill(ctx context.Context, orderID string) (Fill, error)
}

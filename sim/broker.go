package sim

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tickhouse/papertrader/account"
	"github.com/tickhouse/papertrader/broker"
	"github.com/tickhouse/papertrader/internal/id"
)

// Options controls simulated fill behavior. All randomness flows from
// the seeded source so broker behavior is reproducible in tests.
// RejectProb and MaxSlippageBP are taken as given: zero means no
// rejections / no slippage, so the operator's config values pass
// through unchanged. Session defaults live in config.Default.
type Options struct {
	Seed          int64         // 0 means seed from the clock
	InitialCash   float64       // broker-side account view
	FillDelay     time.Duration // latency before an order resolves
	RejectProb    float64       // probability an order is REJECTED
	MaxSlippageBP float64       // slippage drawn uniformly from [0, max]
}

func (o Options) withDefaults() Options {
	if o.Seed == 0 {
		o.Seed = time.Now().UnixNano()
	}
	if o.InitialCash == 0 {
		o.InitialCash = 100000
	}
	if o.FillDelay == 0 {
		o.FillDelay = 100 * time.Millisecond
	}
	return o
}

type pendingOrder struct {
	order broker.Order
	fill  broker.Fill      // current view, PENDING until resolved
	final broker.Fill      // terminal outcome, decided at submission
	done  chan struct{}    // closed when the order resolves
	timer *time.Timer
}

// Broker simulates order execution against caller-supplied prices. An
// order's fate (fill vs reject, slippage draw) is decided exactly once
// at submission; the resolution itself lands after FillDelay so callers
// exercise their bounded-wait path.
type Broker struct {
	mu        sync.Mutex
	opts      Options
	accountID string
	rng       *rand.Rand
	prices    map[string]float64
	orders    map[string]*pendingOrder
	ledger    *account.State
}

func New(opts Options) *Broker {
	opts = opts.withDefaults()
	return &Broker{
		opts:      opts,
		accountID: "sim-" + uuid.NewString()[:8],
		rng:       rand.New(rand.NewSource(opts.Seed)),
		prices:    make(map[string]float64),
		orders:    make(map[string]*pendingOrder),
		ledger:    account.NewState(opts.InitialCash),
	}
}

// SetPrice sets the fill base price for symbol. Fills use exactly this
// price plus the slippage draw; the broker never re-derives it, so a
// BUY and a SELL in the same tick share one base price.
func (b *Broker) SetPrice(symbol string, price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prices[symbol] = price
}

func (b *Broker) SubmitOrder(ctx context.Context, req broker.OrderRequest) (broker.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if req.Quantity <= 0 {
		return broker.Order{}, fmt.Errorf("%w: quantity %d", broker.ErrInvalidOrder, req.Quantity)
	}
	base, ok := b.prices[req.Symbol]
	if !ok {
		return broker.Order{}, fmt.Errorf("%w: no price for symbol %q", broker.ErrInvalidOrder, req.Symbol)
	}

	ord := broker.Order{
		ID:           id.New(),
		OrderRequest: req,
		SubmittedAt:  time.Now().UTC(),
	}

	// Decide the outcome once, at submission.
	final := broker.Fill{OrderID: ord.ID}
	if b.rng.Float64() < b.opts.RejectProb {
		final.Status = broker.Rejected
		final.Reason = "simulated rejection"
	} else {
		slip := base * (b.rng.Float64() * b.opts.MaxSlippageBP / 10000)
		px := base + slip // adverse for BUY
		if req.Side == broker.Sell {
			px = base - slip
		}
		final.Status = broker.Filled
		final.Price = px
		final.Quantity = req.Quantity
	}

	po := &pendingOrder{
		order: ord,
		fill:  broker.Fill{OrderID: ord.ID, Status: broker.Pending},
		final: final,
		done:  make(chan struct{}),
	}
	po.timer = time.AfterFunc(b.opts.FillDelay, func() { b.resolve(ord.ID) })
	b.orders[ord.ID] = po

	return ord, nil
}

func (b *Broker) resolve(orderID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	po, ok := b.orders[orderID]
	if !ok || po.fill.Terminal() {
		return
	}

	po.final.FilledAt = time.Now().UTC()
	po.fill = po.final

	if po.fill.Status == broker.Filled {
		qty := po.fill.Quantity
		if po.order.Side == broker.Sell {
			qty = -qty
		}
		b.ledger.ApplyFill(po.order.Symbol, qty, po.fill.Price, po.fill.FilledAt)
		b.ledger.LifetimeTrades++
		b.ledger.MarkToMarket(b.priceLocked, po.fill.FilledAt)
	}
	close(po.done)
}

func (b *Broker) priceLocked(symbol string) (float64, bool) {
	px, ok := b.prices[symbol]
	return px, ok
}

func (b *Broker) OrderStatus(ctx context.Context, orderID string) (broker.Fill, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	po, ok := b.orders[orderID]
	if !ok {
		return broker.Fill{}, fmt.Errorf("%w: %s", broker.ErrUnknownOrder, orderID)
	}
	return po.fill, nil
}

// WaitFill blocks until the order resolves or ctx is done.
func (b *Broker) WaitFill(ctx context.Context, orderID string) (broker.Fill, error) {
	b.mu.Lock()
	po, ok := b.orders[orderID]
	b.mu.Unlock()
	if !ok {
		return broker.Fill{}, fmt.Errorf("%w: %s", broker.ErrUnknownOrder, orderID)
	}

	select {
	case <-po.done:
		b.mu.Lock()
		defer b.mu.Unlock()
		return po.fill, nil
	case <-ctx.Done():
		return broker.Fill{}, ctx.Err()
	}
}

func (b *Broker) Positions(ctx context.Context) (map[string]account.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ledger.Positions(), nil
}

func (b *Broker) Account(ctx context.Context) (broker.AccountInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return broker.AccountInfo{
		ID:             b.accountID,
		Cash:           b.ledger.Cash,
		PortfolioValue: b.ledger.PortfolioValue,
		BuyingPower:    b.ledger.BuyingPower,
	}, nil
}

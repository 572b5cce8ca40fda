// Package feed reads the newline-delimited JSON tick and signal streams
// produced by the external data-fetch and signal-generation
// collaborators. Feeds are deterministic and return ok=false at EOF;
// malformed lines are skipped and counted rather than aborting the
// session.
package feed

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tickhouse/papertrader/market"
	"github.com/tickhouse/papertrader/signal"
)

// TickFeed yields market ticks one at a time.
type TickFeed interface {
	Next() (t market.Tick, ok bool, err error)
	Close() error
}

// SignalFeed yields trade signals one at a time.
type SignalFeed interface {
	Next() (s signal.Signal, ok bool, err error)
	Close() error
}

type lineReader struct {
	sc      *bufio.Scanner
	closer  io.Closer
	skipped int
}

func newLineReader(r io.Reader, closer io.Closer) *lineReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &lineReader{sc: sc, closer: closer}
}

// next scans to the next line that decodes into v.
func (lr *lineReader) next(v any) (bool, error) {
	for lr.sc.Scan() {
		line := strings.TrimSpace(lr.sc.Text())
		if line == "" {
			continue
		}
		if err := json.Unmarshal([]byte(line), v); err != nil {
			lr.skipped++
			continue
		}
		return true, nil
	}
	return false, lr.sc.Err()
}

func (lr *lineReader) close() error {
	if lr.closer == nil {
		return nil
	}
	return lr.closer.Close()
}

// Skipped reports how many malformed lines were dropped so far.
func (lr *lineReader) Skipped() int { return lr.skipped }

// Ticks reads market.Tick records from NDJSON.
type Ticks struct {
	*lineReader
}

func NewTicks(r io.Reader) *Ticks {
	return &Ticks{newLineReader(r, nil)}
}

func OpenTicks(path string) (*Ticks, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tick stream: %w", err)
	}
	return &Ticks{newLineReader(f, f)}, nil
}

func (t *Ticks) Next() (market.Tick, bool, error) {
	var tick market.Tick
	ok, err := t.next(&tick)
	return tick, ok, err
}

func (t *Ticks) Close() error { return t.close() }

// Signals reads signal.Signal records from NDJSON. Actions are
// normalized to upper case; records with an action other than BUY or
// SELL are skipped like malformed lines.
type Signals struct {
	*lineReader
}

func NewSignals(r io.Reader) *Signals {
	return &Signals{newLineReader(r, nil)}
}

func OpenSignals(path string) (*Signals, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open signal stream: %w", err)
	}
	return &Signals{newLineReader(f, f)}, nil
}

func (s *Signals) Next() (signal.Signal, bool, error) {
	for {
		var sig signal.Signal
		ok, err := s.next(&sig)
		if !ok || err != nil {
			return signal.Signal{}, ok, err
		}

		sig.Action = signal.Action(strings.ToUpper(string(sig.Action)))
		if sig.Action != signal.Buy && sig.Action != signal.Sell {
			s.skipped++
			continue
		}
		return sig, true, nil
	}
}

func (s *Signals) Close() error { return s.close() }

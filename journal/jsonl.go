package journal

import (
	"encoding/json"
	"fmt"
	"os"
)

// JSONL appends trade and event records as newline-delimited JSON, one
// file each. Files are opened append-only so restarts extend the logs.
type JSONL struct {
	trades *os.File
	events *os.File
}

func NewJSONL(tradesPath, eventsPath string) (*JSONL, error) {
	tf, err := os.OpenFile(tradesPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trades log: %w", err)
	}
	ef, err := os.OpenFile(eventsPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		tf.Close()
		return nil, fmt.Errorf("open events log: %w", err)
	}
	return &JSONL{trades: tf, events: ef}, nil
}

func appendLine(f *os.File, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

func (j *JSONL) RecordTrade(t TradeRecord) error {
	return appendLine(j.trades, t)
}

func (j *JSONL) RecordEvent(e EventRecord) error {
	return appendLine(j.events, e)
}

func (j *JSONL) Close() error {
	if err := j.trades.Close(); err != nil {
		j.events.Close()
		return err
	}
	return j.events.Close()
}

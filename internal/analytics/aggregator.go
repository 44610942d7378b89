// Package analytics counts order and reservation events and periodically
// writes the totals to a JSON report file.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/events"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/observability"
)

// MinuteLayout is the orders_per_minute bucket key, always in UTC.
const MinuteLayout = "2006-01-02T15:04Z"

// Report is the on-disk document. Fields are declared in key order so the
// file reads the same as a sorted-key dump.
type Report struct {
	FailureRate     float64        `json:"failure_rate"`
	OrdersPerMinute map[string]int `json:"orders_per_minute"`
	TotalFailed     int            `json:"total_failed"`
	TotalOrders     int            `json:"total_orders"`
	TotalReserved   int            `json:"total_reserved"`
}

type envelope struct {
	EventType string `json:"event_type"`
	EventTime string `json:"event_time"`
}

type Aggregator struct {
	path       string
	flushEvery int
	logger     *zap.Logger

	mu       sync.Mutex
	seen     int
	orders   int
	reserved int
	failed   int
	perMin   map[string]int
}

// NewAggregator writes a report to path after every flushEvery messages.
// flushEvery below 1 disables periodic checkpoints.
func NewAggregator(path string, flushEvery int, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		path:       path,
		flushEvery: flushEvery,
		logger:     logger,
		perMin:     make(map[string]int),
	}
}

// Handle counts one event. It always acks: undecodable bodies and report
// write failures are logged, since a requeue would count the event twice.
func (a *Aggregator) Handle(ctx context.Context, msg events.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx = observability.Extract(ctx, msg.Headers)
	_, span := observability.Tracer("fulfillment/analytics").Start(ctx, "analytics.count")
	defer span.End()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.seen++
	var ev envelope
	if err := json.Unmarshal(msg.Body, &ev); err != nil {
		a.logger.Warn("skipping undecodable event", zap.ByteString("body", msg.Body), zap.Error(err))
	} else {
		a.count(ev)
	}

	if a.flushEvery > 0 && a.seen%a.flushEvery == 0 {
		if err := a.writeLocked(); err != nil {
			a.logger.Error("write analytics report", zap.Error(err))
			return nil
		}
		a.logger.Info("checkpoint",
			zap.Int("seen", a.seen),
			zap.Int("orders", a.orders),
			zap.Int("reserved", a.reserved),
			zap.Int("failed", a.failed),
		)
	}
	return nil
}

func (a *Aggregator) count(ev envelope) {
	switch ev.EventType {
	case events.EventTypeOrderPlaced:
		a.orders++
		bucket, err := MinuteBucket(ev.EventTime)
		if err != nil {
			a.logger.Warn("order without usable event_time", zap.String("event_time", ev.EventTime), zap.Error(err))
			return
		}
		a.perMin[bucket]++
	case events.EventTypeInventoryReserved:
		a.reserved++
	case events.EventTypeInventoryFailed:
		a.failed++
	}
}

// Snapshot returns the current totals.
func (a *Aggregator) Snapshot() Report {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reportLocked()
}

// Close writes the final report.
func (a *Aggregator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.writeLocked(); err != nil {
		return err
	}
	a.logger.Info("final report written", zap.String("path", a.path), zap.Int("seen", a.seen))
	return nil
}

func (a *Aggregator) reportLocked() Report {
	perMin := make(map[string]int, len(a.perMin))
	for k, v := range a.perMin {
		perMin[k] = v
	}
	return Report{
		FailureRate:     FailureRate(a.reserved, a.failed),
		OrdersPerMinute: perMin,
		TotalFailed:     a.failed,
		TotalOrders:     a.orders,
		TotalReserved:   a.reserved,
	}
}

// writeLocked replaces the report file through a rename so readers never
// see a partial document.
func (a *Aggregator) writeLocked() error {
	body, err := json.MarshalIndent(a.reportLocked(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(a.path), ".report-*.json")
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp.Name(), a.path); err != nil {
		return fmt.Errorf("replace report %s: %w", a.path, err)
	}
	return nil
}

// MinuteBucket truncates an RFC 3339 timestamp to its UTC minute.
func MinuteBucket(ts string) (string, error) {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return "", err
	}
	return t.UTC().Format(MinuteLayout), nil
}

// FailureRate is failed / (reserved + failed), rounded to six places; zero
// when nothing has been decided yet.
func FailureRate(reserved, failed int) float64 {
	decided := reserved + failed
	if decided == 0 {
		return 0
	}
	return math.Round(float64(failed)/float64(decided)*1e6) / 1e6
}

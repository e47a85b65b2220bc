// Package notify dispatches bot events to every configured channel. Events can
// be filtered by type so operators only receive the alerts they care about.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/camuig/sol-tracker/internal/logger"
	"github.com/camuig/sol-tracker/internal/pnl"
	"github.com/camuig/sol-tracker/internal/strategy"
)

const (
	EventTakeProfit = "take_profit"
	EventStopLoss   = "stop_loss"
	EventSkipped    = "skipped"
	EventError      = "error"
	EventStatus     = "status"
)

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans a notification out to all senders. With no events configured
// every event passes the filter.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *logger.Logger
}

func NewNotifier(senders []Sender, events []string, log *logger.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  log.Component("notifier"),
	}
}

// Notify sends to every sender if event passes the filter. A failing sender
// does not stop delivery to the others; their errors are combined.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.Debug("event filtered out", "event", event)
		return nil
	}
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.Error("sender failed", "sender", s.Name(), "error", err)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.Debug("notification sent", "sender", s.Name(), "title", title)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

func (n *Notifier) NotifySettlement(ctx context.Context, cp *pnl.ClosedPosition, mode string) {
	title, msg := FormatSettlement(cp, mode)
	n.report(n.Notify(ctx, SettlementEvent(cp), title, msg))
}

func (n *Notifier) NotifySignal(ctx context.Context, pos pnl.Position, r *pnl.Report) {
	tier := r.TriggeredTier()
	if tier == nil {
		return
	}
	title, msg := FormatSignal(pos, r)
	n.report(n.Notify(ctx, eventFor(tier.Kind), title, msg))
}

func (n *Notifier) NotifySkipped(ctx context.Context, pos pnl.Position, attempts int, cause error) {
	title, msg := FormatSkipped(pos, attempts, cause)
	n.report(n.Notify(ctx, EventSkipped, title, msg))
}

func (n *Notifier) NotifyError(ctx context.Context, where string, err error) {
	title, msg := FormatError(where, err)
	n.report(n.Notify(ctx, EventError, title, msg))
}

func (n *Notifier) NotifyStatus(ctx context.Context, message string) {
	n.report(n.Notify(ctx, EventStatus, "Status", message))
}

func (n *Notifier) report(err error) {
	if err != nil {
		n.logger.Warn("notification not delivered", "error", err)
	}
}

// SettlementEvent classifies a settlement by the tier that triggered it, or
// by its sign when it was settled manually.
func SettlementEvent(cp *pnl.ClosedPosition) string {
	if cp.TriggerTier != nil {
		return eventFor(cp.TriggerTier.Kind)
	}
	if cp.IsTakeProfit {
		return EventTakeProfit
	}
	return EventStopLoss
}

func eventFor(k strategy.Kind) string {
	if k == strategy.KindStopLoss {
		return EventStopLoss
	}
	return EventTakeProfit
}

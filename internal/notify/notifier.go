// Package notify fans scan events out to chat senders (Telegram, Discord).
// Operators choose which event types they receive.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionarb/internal/domain"
)

// Sender is one notification channel.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name identifies the sender in logs, e.g. "telegram".
	Name() string
}

// Options tune which events go out.
type Options struct {
	// Events lists the allowed event types; empty allows all.
	Events []string
	// MinNetProfit suppresses opportunity alerts below this net profit.
	MinNetProfit decimal.Decimal
}

// Notifier dispatches events to every registered sender.
type Notifier struct {
	senders      []Sender
	events       map[domain.EventType]bool
	minNetProfit decimal.Decimal
	logger       *slog.Logger
}

// NewNotifier creates a Notifier delivering to senders.
func NewNotifier(senders []Sender, opts Options, logger *slog.Logger) *Notifier {
	allowed := make(map[domain.EventType]bool, len(opts.Events))
	for _, e := range opts.Events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[domain.EventType(e)] = true
		}
	}
	return &Notifier{
		senders:      senders,
		events:       allowed,
		minNetProfit: opts.MinNetProfit,
		logger:       logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether event passes the filter and anyone is listening.
func (n *Notifier) Enabled(event domain.EventType) bool {
	if len(n.senders) == 0 {
		return false
	}
	return len(n.events) == 0 || n.events[event]
}

// Notify sends title and message for event if the filter allows it.
func (n *Notifier) Notify(ctx context.Context, event domain.EventType, title, message string) error {
	if !n.Enabled(event) {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", string(event)))
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// OpportunityFound alerts on one detected opportunity.
func (n *Notifier) OpportunityFound(ctx context.Context, sig domain.OpportunitySignal) error {
	o := sig.Opportunity
	if o.NetProfit.LessThan(n.minNetProfit) {
		return nil
	}
	title := fmt.Sprintf("%s %s", sig.Ticker, o.Kind.Label())
	var b strings.Builder
	fmt.Fprintf(&b, "Expiry %s, strikes %s\n", o.Expiry, joinStrikes(o.Strikes))
	fmt.Fprintf(&b, "Cost %s, net profit %s", o.Cost.StringFixed(2), o.NetProfit.StringFixed(2))
	if o.ROI.Valid {
		fmt.Fprintf(&b, ", ROI %s%%", o.ROI.Decimal.StringFixed(2))
	}
	for _, l := range o.Legs {
		fmt.Fprintf(&b, "\n  %s %d %s %s @ %s", l.Side, l.Quantity, l.Kind, l.Strike, l.Price.StringFixed(2))
	}
	return n.Notify(ctx, domain.EventOpportunityFound, title, b.String())
}

// ScanCompleted summarises a finished run.
func (n *Notifier) ScanCompleted(ctx context.Context, sum domain.ScanSummary) error {
	title := fmt.Sprintf("%s scan complete", sum.Ticker)
	msg := fmt.Sprintf("%d opportunities (parity %d, box %d, butterfly %d) in %s",
		sum.Total,
		sum.ByKind[domain.OpportunityParityViolation],
		sum.ByKind[domain.OpportunityBoxSpread],
		sum.ByKind[domain.OpportunityButterflySpread],
		sum.Duration.Round(time.Millisecond),
	)
	if sum.MalformedCount > 0 || sum.DuplicateCount > 0 {
		msg += fmt.Sprintf("\n%d malformed, %d duplicate records dropped", sum.MalformedCount, sum.DuplicateCount)
	}
	return n.Notify(ctx, domain.EventScanCompleted, title, msg)
}

// ScanFailed reports a run that could not finish.
func (n *Notifier) ScanFailed(ctx context.Context, ticker string, cause error) error {
	return n.Notify(ctx, domain.EventScanFailed, fmt.Sprintf("%s scan failed", ticker), cause.Error())
}

// dispatch delivers to every sender; one failure does not stop the rest.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

func joinStrikes(strikes []decimal.Decimal) string {
	parts := make([]string, len(strikes))
	for i, s := range strikes {
		parts[i] = s.String()
	}
	return strings.Join(parts, "/")
}

package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/AdamBeresnev/op-tournament/internal/metrics"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	channelAnnounce  = "announce"
	channelBroadcast = "broadcast"
	channelDirect    = "direct"
)

// Dispatcher fans post-commit side effects out on background goroutines.
type Dispatcher struct {
	announcer   Announcer
	broadcaster Broadcaster
	notifier    DirectNotifier
	metrics     metrics.Metrics
	logger      *slog.Logger
	timeout     time.Duration
	wg          sync.WaitGroup
}

type Option func(*Dispatcher)

func WithAnnouncer(a Announcer) Option {
	return func(d *Dispatcher) { d.announcer = a }
}

func WithBroadcaster(b Broadcaster) Option {
	return func(d *Dispatcher) { d.broadcaster = b }
}

func WithDirectNotifier(n DirectNotifier) Option {
	return func(d *Dispatcher) { d.notifier = n }
}

func NewDispatcher(logger *slog.Logger, m metrics.Metrics, timeout time.Duration, opts ...Option) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	d := &Dispatcher{metrics: m, logger: logger, timeout: timeout}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Publish announces text and broadcasts event without blocking the caller.
// Either part may be empty.
func (d *Dispatcher) Publish(ctx context.Context, tournamentID uuid.UUID, text string, event *Event) {
	if d == nil {
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		var g errgroup.Group
		if text != "" && d.announcer != nil {
			g.Go(func() error {
				return d.track(channelAnnounce, d.announcer.Announce(ctx, tournamentID, text))
			})
		}
		if event != nil && d.broadcaster != nil {
			ev := *event
			if ev.RoomID == "" {
				ev.RoomID = tournamentID.String()
			}
			g.Go(func() error {
				return d.track(channelBroadcast, d.broadcaster.Broadcast(ctx, tournamentID, ev))
			})
		}
		if err := g.Wait(); err != nil {
			d.logger.Warn("post-commit publish failed", "tournament_id", tournamentID, "error", err)
		}
	}()
}

// NotifyUser sends a direct message without blocking the caller.
func (d *Dispatcher) NotifyUser(ctx context.Context, userID uuid.UUID, text string, metadata map[string]string) {
	if d == nil || d.notifier == nil {
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		err := d.track(channelDirect, d.notifier.Notify(ctx, userID, text, metadata))
		if err != nil {
			d.logger.Warn("direct notification failed", "user_id", userID, "error", err)
		}
	}()
}

// Wait blocks until every pending delivery has finished.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

func (d *Dispatcher) track(channel string, err error) error {
	if d.metrics == nil {
		return err
	}
	if err != nil {
		d.metrics.IncNotificationsFailed(channel)
	} else {
		d.metrics.IncNotificationsSent(channel)
	}
	return err
}

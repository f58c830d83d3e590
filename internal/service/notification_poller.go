package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/models"
)

// NotificationFetcher is the read surface the poller refreshes from.
type NotificationFetcher interface {
	List(ctx context.Context, recipient models.Recipient, unreadOnly bool) ([]models.Notification, error)
}

// NotificationListener receives every successful fetch exactly once.
type NotificationListener func(notifications []models.Notification)

// NotificationPoller re-fetches a recipient's notifications at a fixed
// interval and fans each successful fetch out to all subscribers. It owns a
// single timer: Start is idempotent (a second call does not create a second
// interval) and Stop on an idle poller is a no-op.
type NotificationPoller struct {
	fetcher   NotificationFetcher
	recipient models.Recipient
	interval  time.Duration
	logger    *zap.Logger

	mu        sync.Mutex
	started   bool
	cancel    context.CancelFunc
	done      chan struct{}
	nextID    int
	listeners map[int]NotificationListener
}

// NewNotificationPoller constructs an idle poller for the given recipient.
func NewNotificationPoller(fetcher NotificationFetcher, recipient models.Recipient, interval time.Duration, logger *zap.Logger) *NotificationPoller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationPoller{
		fetcher:   fetcher,
		recipient: recipient,
		interval:  interval,
		logger:    logger,
		listeners: make(map[int]NotificationListener),
	}
}

// Subscribe registers a listener and returns its unsubscribe function.
// Unsubscribing twice is harmless.
func (p *NotificationPoller) Subscribe(listener NotificationListener) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = listener
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

// Start begins polling. Calling Start on a running poller does nothing.
func (p *NotificationPoller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.started = true
	go p.loop(pollCtx, p.done)
}

// Stop halts polling and waits for the loop to exit. Stopping an idle poller
// is a no-op.
func (p *NotificationPoller) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.started = false
	p.cancel = nil
	p.mu.Unlock()

	cancel()
	<-done
}

// Running reports whether the poll loop is active.
func (p *NotificationPoller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

func (p *NotificationPoller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	p.fetch(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.fetch(ctx)
		}
	}
}

func (p *NotificationPoller) fetch(ctx context.Context) {
	notifications, err := p.fetcher.List(ctx, p.recipient, false)
	if err != nil {
		p.logger.Warn("notification poll failed",
			zap.String("user_id", p.recipient.UserID), zap.Error(err))
		return
	}

	p.mu.Lock()
	listeners := make([]NotificationListener, 0, len(p.listeners))
	for _, l := range p.listeners {
		listeners = append(listeners, l)
	}
	p.mu.Unlock()

	for _, listener := range listeners {
		listener(notifications)
	}
}

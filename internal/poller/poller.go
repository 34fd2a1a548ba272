package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Armin-kho/satoshi-converter/internal/convert"
	"github.com/Armin-kho/satoshi-converter/internal/items"
	"github.com/Armin-kho/satoshi-converter/internal/sources"
)

const (
	// RefreshInterval is the fixed cadence of automatic fetches.
	RefreshInterval = 30 * time.Second
	// RequestTimeout bounds a single upstream call.
	RequestTimeout = 10 * time.Second

	// FetchFailedMessage is the only error text exposed to presentation.
	FetchFailedMessage = "Failed to fetch current rates. Please try again."
)

// Fetcher is the single-shot upstream price call.
type Fetcher interface {
	FetchPrices(ctx context.Context, assetID string, codes []string) (sources.PriceSnapshot, error)
}

// State is the snapshot presentation layers read. A zero LastUpdated means
// no fetch has succeeded yet; an empty Error means no error.
type State struct {
	Rates       []convert.CurrencyRate
	Loading     bool
	LastUpdated time.Time
	Error       string
	// CycleID identifies the fetch that produced Rates.
	CycleID string
}

func (s State) clone() State {
	if s.Rates != nil {
		s.Rates = append([]convert.CurrencyRate(nil), s.Rates...)
	}
	return s
}

type subscriber struct {
	id int
	fn func(State)
}

// Poller keeps State current by fetching on a fixed cadence and on demand.
// At most one fetch is in flight; triggers arriving meanwhile are dropped.
type Poller struct {
	fetcher Fetcher
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string

	interval time.Duration
	timeout  time.Duration

	mu       sync.Mutex
	state    State
	running  bool
	inFlight bool
	epoch    uint64
	stopCh   chan struct{}
	done     chan struct{}
	subs     []subscriber
	nextSub  int

	// serializes transitions with their notifications
	notifyMu sync.Mutex
}

// Option configures a Poller.
type Option func(*Poller)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock sets the time source used for LastUpdated.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
	}
}

func New(fetcher Fetcher, opts ...Option) *Poller {
	p := &Poller{
		fetcher:  fetcher,
		logger:   slog.Default(),
		now:      time.Now,
		newID:    uuid.NewString,
		interval: RefreshInterval,
		timeout:  RequestTimeout,
		state:    State{Loading: true},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start fetches once immediately and then every RefreshInterval.
// Calling Start on a running poller does nothing.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.epoch++
	p.stopCh = make(chan struct{})
	p.done = make(chan struct{})
	stopCh, done := p.stopCh, p.done
	p.mu.Unlock()

	go p.loop(stopCh, done)

	p.logger.Info("rate poller started", "interval", p.interval, "asset", items.AssetID)
}

// Stop cancels the cadence. An in-flight fetch is not cancelled, but its
// result is discarded. No subscriber callback starts after Stop returns; one
// already running when Stop is called may still be finishing. Stop on a
// poller that is not running does nothing.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.epoch++
	p.inFlight = false
	close(p.stopCh)
	done := p.done
	p.mu.Unlock()

	<-done
	p.logger.Info("rate poller stopped")
}

// RefreshNow starts a fetch outside the cadence. It reports false when the
// poller is not running or a fetch is already in flight.
func (p *Poller) RefreshNow() bool {
	return p.trigger("manual")
}

// State returns a copy of the current state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.clone()
}

// Subscribe registers fn to receive every state transition, in order.
// fn runs on the fetching goroutine and must not block for long.
func (p *Poller) Subscribe(fn func(State)) (unsubscribe func()) {
	p.mu.Lock()
	p.nextSub++
	id := p.nextSub
	p.subs = append(p.subs, subscriber{id: id, fn: fn})
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			for i, s := range p.subs {
				if s.id == id {
					p.subs = append(p.subs[:i:i], p.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (p *Poller) loop(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	p.trigger("start")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			p.trigger("tick")
		}
	}
}

func (p *Poller) trigger(reason string) bool {
	p.mu.Lock()
	if !p.running || p.inFlight {
		busy := p.inFlight
		p.mu.Unlock()
		if busy {
			p.logger.Debug("fetch already in flight, trigger dropped", "reason", reason)
		}
		return false
	}
	p.inFlight = true
	epoch := p.epoch
	p.mu.Unlock()

	go p.runCycle(epoch, reason)
	return true
}

// runCycle is one tick of the fetch cycle.
func (p *Poller) runCycle(epoch uint64, reason string) {
	cycle := p.newID()

	if !p.apply(epoch, false, func(s *State) {
		s.Error = ""
		s.Loading = true
	}) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	start := time.Now()
	snap, err := p.fetcher.FetchPrices(ctx, items.AssetID, items.Codes())
	if err != nil {
		p.logger.Warn("rate fetch failed",
			"cycle", cycle,
			"reason", reason,
			"kind", failureKind(err),
			"err", err,
			"duration", time.Since(start),
		)
		p.apply(epoch, true, func(s *State) {
			s.Error = FetchFailedMessage
			s.Loading = false
		})
		return
	}

	rates := convert.BuildRates(items.All, snap)
	updatedAt := p.now()
	applied := p.apply(epoch, true, func(s *State) {
		s.Rates = rates
		s.LastUpdated = updatedAt
		s.Error = ""
		s.CycleID = cycle
		s.Loading = false
	})
	if !applied {
		p.logger.Debug("discarding rates fetched after stop", "cycle", cycle)
		return
	}

	p.logger.Info("rates updated",
		"cycle", cycle,
		"reason", reason,
		"currencies", len(snap),
		"duration", time.Since(start),
	)
}

// apply mutates the state as one transition and notifies subscribers. It
// reports false, without touching anything, if the poller was stopped since
// the cycle began.
func (p *Poller) apply(epoch uint64, final bool, mutate func(*State)) bool {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	p.mu.Lock()
	if !p.running || p.epoch != epoch {
		p.mu.Unlock()
		return false
	}
	mutate(&p.state)
	if final {
		p.inFlight = false
	}
	snap := p.state.clone()
	subs := append([]subscriber(nil), p.subs...)
	p.mu.Unlock()

	for _, s := range subs {
		// Stop may have returned while an earlier subscriber ran.
		if !p.current(epoch) {
			break
		}
		s.fn(snap.clone())
	}
	return true
}

func (p *Poller) current(epoch uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running && p.epoch == epoch
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, sources.ErrTransport):
		return "transport"
	case errors.Is(err, sources.ErrStatus):
		return "status"
	case errors.Is(err, sources.ErrDecode):
		return "decode"
	}
	return "unknown"
}

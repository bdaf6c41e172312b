package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Xtsservices/BasavatarakamCanteen2/models"
	"github.com/Xtsservices/BasavatarakamCanteen2/receipt"
)

// MenuSource is the normalized catalog. *Catalog implements it.
type MenuSource interface {
	Categories(ctx context.Context) ([]string, error)
	Items(ctx context.Context) ([]models.MenuItem, error)
}

// Printer prints a receipt or fails; there is no partial print.
type Printer interface {
	Print(ctx context.Context, doc receipt.Document) error
}

// Sensor reports connectivity. Connected is queried once at start, after
// which changes arrive on the subscribed channel.
type Sensor interface {
	Connected(ctx context.Context) bool
	Subscribe() (<-chan bool, func())
}

type EngineConfig struct {
	OutletID int64
	Mobile   string
	Layout   receipt.Layout
	// Timeout bounds each network call and print. Zero means no limit.
	Timeout time.Duration
}

// Update is published to subscribers after every applied event.
type Update struct {
	Snapshot   Snapshot   `json:"snapshot"`
	Advisories []Advisory `json:"advisories,omitempty"`
}

type dispatchResult struct {
	snapshot Snapshot
	err      error
}

type envelope struct {
	event Event
	reply chan dispatchResult
}

// Engine serializes every event through one goroutine. Network calls and
// printing run on their own goroutines and report back as events.
type Engine struct {
	menu    MenuSource
	printer Printer
	orders  OrderBackend
	sensor  Sensor
	cfg     EngineConfig
	logger  *zap.SugaredLogger

	now   func() time.Time
	newID func() string

	events  chan envelope
	done    chan struct{}
	running sync.Once
	effects sync.WaitGroup

	mu       sync.RWMutex
	snapshot Snapshot
	subs     map[int]*Subscription
	nextSub  int
	stopped  bool
}

func NewEngine(menu MenuSource, printer Printer, orders OrderBackend, sensor Sensor, cfg EngineConfig, logger *zap.SugaredLogger) *Engine {
	return &Engine{
		menu:     menu,
		printer:  printer,
		orders:   orders,
		sensor:   sensor,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
		events:   make(chan envelope, 64),
		done:     make(chan struct{}),
		snapshot: State{}.Snapshot(),
		subs:     make(map[int]*Subscription),
	}
}

// SetClock replaces the time source used to stamp checkouts.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Run owns the state until ctx is done. It subscribes to the sensor, queries
// it once and starts the first sync. Run may only be called once.
func (e *Engine) Run(ctx context.Context) error {
	first := false
	e.running.Do(func() { first = true })
	if !first {
		return errors.New("engine already running")
	}

	changes, unsubscribe := e.sensor.Subscribe()
	defer unsubscribe()
	defer e.shutdown()

	e.logger.Infow("engine started", "outlet_id", e.cfg.OutletID)
	state := e.apply(ctx, State{}, Started{Connected: e.sensor.Connected(ctx)})
	for {
		select {
		case <-ctx.Done():
			e.logger.Infow("engine stopping", "outlet_id", e.cfg.OutletID)
			return nil
		case up := <-changes:
			state = e.apply(ctx, state, ConnectivityChanged{Connected: up})
		case env := <-e.events:
			next, res := e.step(ctx, state, env.event)
			state = next
			if env.reply != nil {
				env.reply <- res
			}
		}
	}
}

// Dispatch applies ev and returns the resulting snapshot. The error is the
// failing Advisory the event raised right away (errors.Is matches its
// sentinel, e.g. ErrEmptyCart); results of network calls arrive later
// through subscriptions.
func (e *Engine) Dispatch(ctx context.Context, ev Event) (Snapshot, error) {
	reply := make(chan dispatchResult, 1)
	select {
	case e.events <- envelope{event: ev, reply: reply}:
	case <-e.done:
		return Snapshot{}, ErrEngineStopped
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case res := <-reply:
		return res.snapshot, res.err
	case <-e.done:
		return Snapshot{}, ErrEngineStopped
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Snapshot returns the latest published snapshot.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot
}

func (e *Engine) apply(ctx context.Context, s State, ev Event) State {
	next, _ := e.step(ctx, s, ev)
	return next
}

func (e *Engine) step(ctx context.Context, s State, ev Event) (State, dispatchResult) {
	if pc, ok := ev.(PaymentChosen); ok {
		if pc.CheckoutID == "" {
			pc.CheckoutID = e.newID()
		}
		if pc.At.IsZero() {
			pc.At = e.now()
		}
		ev = pc
	}

	next, effects := Reduce(s, ev)

	var (
		advisories []Advisory
		firstErr   error
	)
	for _, eff := range effects {
		if a, ok := eff.(Advise); ok {
			advisories = append(advisories, a.Advisory)
			if firstErr == nil && a.Advisory.Err != nil {
				firstErr = a.Advisory
			}
			e.logAdvisory(a.Advisory)
			continue
		}
		e.execute(ctx, eff)
	}
	if next.Phase != s.Phase {
		e.logger.Infow("checkout phase changed", "from", s.Phase, "to", next.Phase, "outlet_id", e.cfg.OutletID)
	}

	snap := next.Snapshot()
	e.publish(Update{Snapshot: snap, Advisories: advisories})
	return next, dispatchResult{snapshot: snap, err: firstErr}
}

func (e *Engine) logAdvisory(a Advisory) {
	if a.Err == nil {
		e.logger.Infow("advisory", "code", a.Code, "message", a.Message)
		return
	}
	e.logger.Warnw("advisory", "code", a.Code, "message", a.Message, "error", a.Err)
}

func (e *Engine) execute(ctx context.Context, eff Effect) {
	e.effects.Add(1)
	go func() {
		defer e.effects.Done()
		if ev := e.perform(ctx, eff); ev != nil {
			e.post(ev)
		}
	}()
}

// post feeds a completion back into the loop unless the engine has stopped.
func (e *Engine) post(ev Event) {
	select {
	case e.events <- envelope{event: ev}:
	case <-e.done:
	}
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.cfg.Timeout)
}

func (e *Engine) perform(ctx context.Context, eff Effect) Event {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	switch eff := eff.(type) {
	case FetchCategories:
		categories, err := e.menu.Categories(ctx)
		if err != nil {
			e.logger.Errorw("categories sync failed", "outlet_id", e.cfg.OutletID, "error", err)
			return CategoriesFetched{Err: errors.Wrap(ErrCatalogFetchFailed, err.Error())}
		}
		e.logger.Infow("categories synced", "outlet_id", e.cfg.OutletID, "count", len(categories))
		return CategoriesFetched{Categories: categories}

	case FetchItems:
		items, err := e.menu.Items(ctx)
		if err != nil {
			e.logger.Errorw("items sync failed", "outlet_id", e.cfg.OutletID, "error", err)
			return ItemsFetched{Err: errors.Wrap(ErrCatalogFetchFailed, err.Error())}
		}
		e.logger.Infow("items synced", "outlet_id", e.cfg.OutletID, "count", len(items))
		return ItemsFetched{Items: items}

	case PrintReceipt:
		c := eff.Checkout
		err := e.print(ctx, c)
		if err != nil {
			e.logger.Errorw("receipt print failed", "receipt_id", c.ID, "item_count", len(c.Lines), "error", err)
			return PrintFinished{CheckoutID: c.ID, Err: errors.Wrap(ErrPrintFailed, err.Error())}
		}
		e.logger.Infow("receipt printed", "receipt_id", c.ID, "item_count", len(c.Lines), "total", c.Total.StringFixed(2), "mode", c.Mode)
		return PrintFinished{CheckoutID: c.ID}

	case SubmitOrder:
		c := eff.Checkout
		order := BuildOrder(c, e.cfg.OutletID, e.cfg.Mobile)
		err := e.orders.CreateOrder(ctx, c.ID, order)
		if err != nil {
			// Swallowed: the receipt is already out and the cart is cleared anyway.
			e.logger.Errorw("order submission failed", "outlet_id", e.cfg.OutletID, "receipt_id", c.ID,
				"item_count", len(order.Items), "error", errors.Wrap(ErrSubmissionFailed, err.Error()))
			return SubmitFinished{CheckoutID: c.ID, Err: err}
		}
		e.logger.Infow("order submitted", "outlet_id", e.cfg.OutletID, "receipt_id", c.ID, "item_count", len(order.Items))
		return SubmitFinished{CheckoutID: c.ID}
	}
	return nil
}

func (e *Engine) print(ctx context.Context, c Checkout) error {
	doc, err := receipt.Render(c.Bill(), e.cfg.Layout)
	if err != nil {
		return err
	}
	return e.printer.Print(ctx, doc)
}

func (e *Engine) shutdown() {
	close(e.done)
	e.effects.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	for id, sub := range e.subs {
		close(sub.ch)
		delete(e.subs, id)
	}
}

// Subscription receives updates until Close is called or the engine stops,
// at which point the channel is closed. A subscriber that falls behind loses
// the oldest pending updates.
type Subscription struct {
	ch     chan Update
	id     int
	engine *Engine
}

func (s *Subscription) Updates() <-chan Update {
	return s.ch
}

func (s *Subscription) Close() {
	e := s.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.subs[s.id]; !ok {
		return
	}
	delete(e.subs, s.id)
	close(s.ch)
}

// Subscribe starts a subscription. The current snapshot is delivered first.
func (e *Engine) Subscribe() *Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	sub := &Subscription{ch: make(chan Update, 16), id: e.nextSub, engine: e}
	e.nextSub++
	if e.stopped {
		close(sub.ch)
		return sub
	}
	sub.ch <- Update{Snapshot: e.snapshot}
	e.subs[sub.id] = sub
	return sub
}

func (e *Engine) publish(u Update) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snapshot = u.Snapshot
	for _, sub := range e.subs {
		select {
		case sub.ch <- u:
		default:
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- u
		}
	}
}

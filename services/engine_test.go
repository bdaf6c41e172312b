package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Xtsservices/BasavatarakamCanteen2/models"
	"github.com/Xtsservices/BasavatarakamCanteen2/receipt"
)

type fakeMenu struct {
	mu         sync.Mutex
	categories []string
	items      []models.MenuItem
	err        error
	fetches    int
}

func (f *fakeMenu) Categories(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return f.categories, f.err
}

func (f *fakeMenu) Items(ctx context.Context) ([]models.MenuItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return f.items, f.err
}

func (f *fakeMenu) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

type fakePrinter struct {
	mu   sync.Mutex
	err  error
	docs []receipt.Document
	gate chan struct{} // when set, Print blocks until it is closed
}

func (f *fakePrinter) Print(ctx context.Context, doc receipt.Document) error {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, doc)
	return f.err
}

func (f *fakePrinter) printed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs)
}

type fakeOrders struct {
	mu     sync.Mutex
	err    error
	ids    []string
	orders []models.Order
}

func (f *fakeOrders) CreateOrder(ctx context.Context, requestID string, order models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, requestID)
	f.orders = append(f.orders, order)
	return f.err
}

func (f *fakeOrders) submitted() []models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Order(nil), f.orders...)
}

type fakeSensor struct {
	mu        sync.Mutex
	connected bool
	ch        chan bool
}

func newFakeSensor(connected bool) *fakeSensor {
	return &fakeSensor{connected: connected, ch: make(chan bool, 1)}
}

func (f *fakeSensor) Connected(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeSensor) Subscribe() (<-chan bool, func()) { return f.ch, func() {} }

func (f *fakeSensor) set(up bool) {
	f.mu.Lock()
	f.connected = up
	f.mu.Unlock()
	f.ch <- up
}

type harness struct {
	engine  *Engine
	menu    *fakeMenu
	printer *fakePrinter
	orders  *fakeOrders
	sensor  *fakeSensor
	stop    func()
}

func newHarness(t *testing.T, connected bool) *harness {
	t.Helper()
	h := &harness{
		menu:    &fakeMenu{categories: []string{"Snacks", "Drinks"}, items: sampleMenu()},
		printer: &fakePrinter{},
		orders:  &fakeOrders{},
		sensor:  newFakeSensor(connected),
	}
	h.engine = NewEngine(h.menu, h.printer, h.orders, h.sensor, EngineConfig{
		OutletID: 4,
		Mobile:   "0000000000",
		Layout:   receipt.Layout{Outlet: "Canteen", Location: time.UTC},
		Timeout:  time.Second,
	}, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, h.engine.Run(ctx))
	}()
	h.stop = func() {
		cancel()
		<-done
	}
	t.Cleanup(h.stop)
	return h
}

func (h *harness) dispatch(t *testing.T, ev Event) (Snapshot, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return h.engine.Dispatch(ctx, ev)
}

func (h *harness) waitFor(t *testing.T, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool { return cond(h.engine.Snapshot()) }, 2*time.Second, 5*time.Millisecond)
	return h.engine.Snapshot()
}

func synced(s Snapshot) bool { return !s.Loading && len(s.Items) > 0 }

func TestEngineSyncsOnStart(t *testing.T) {
	h := newHarness(t, true)
	snap := h.waitFor(t, synced)
	assert.Equal(t, []string{"Snacks", "Drinks"}, snap.Categories)
	assert.Equal(t, "Snacks", snap.Category)
	assert.Equal(t, 2, h.menu.fetchCount())
}

func TestEngineOfflineStartThenReconnect(t *testing.T) {
	h := newHarness(t, false)
	sub := h.engine.Subscribe()
	defer sub.Close()

	_, err := h.dispatch(t, SyncRequested{})
	assert.True(t, errors.Is(err, ErrConnectivityUnavailable))
	assert.Zero(t, h.menu.fetchCount())

	h.sensor.set(true)
	h.waitFor(t, synced)
	assert.Equal(t, 2, h.menu.fetchCount())
}

func TestEngineSubmitFailureResetsCart(t *testing.T) {
	h := newHarness(t, true)
	h.orders.err = errors.New("backend down")
	h.waitFor(t, synced)

	_, err := h.dispatch(t, ItemIncreased{ID: 1})
	require.NoError(t, err)
	_, err = h.dispatch(t, ItemIncreased{ID: 1})
	require.NoError(t, err)
	snap, err := h.dispatch(t, ItemIncreased{ID: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, snap.ItemCount)
	assert.Equal(t, "40", snap.Total.String())

	snap, err = h.dispatch(t, PrintRequested{})
	require.NoError(t, err)
	assert.Equal(t, PhasePaymentSelect, snap.Phase)

	_, err = h.dispatch(t, PaymentChosen{Mode: models.PaymentCash})
	require.NoError(t, err)

	snap = h.waitFor(t, func(s Snapshot) bool { return s.Phase == PhaseIdle })
	assert.Zero(t, snap.ItemCount)
	assert.Equal(t, 1, h.printer.printed())

	orders := h.orders.submitted()
	require.Len(t, orders, 1)
	assert.Equal(t, []models.OrderItem{{ItemID: 1, Quantity: 2}, {ItemID: 2, Quantity: 1}}, orders[0].Items)
	assert.Equal(t, "cash", orders[0].Payment.Method)
	assert.NotEmpty(t, h.orders.ids[0])
}

func TestEngineSubmitsWhileOffline(t *testing.T) {
	h := newHarness(t, true)
	h.printer.gate = make(chan struct{})
	h.waitFor(t, synced)
	fetches := h.menu.fetchCount()

	_, err := h.dispatch(t, ItemIncreased{ID: 2})
	require.NoError(t, err)
	_, err = h.dispatch(t, PrintRequested{})
	require.NoError(t, err)
	snap, err := h.dispatch(t, PaymentChosen{Mode: models.PaymentUPI})
	require.NoError(t, err)
	assert.Equal(t, PhasePrinting, snap.Phase)

	h.sensor.set(false)
	h.waitFor(t, func(s Snapshot) bool { return !s.Connected })

	// catalog sync is gated on connectivity
	_, err = h.dispatch(t, SyncRequested{})
	assert.True(t, errors.Is(err, ErrConnectivityUnavailable))

	close(h.printer.gate)
	snap = h.waitFor(t, func(s Snapshot) bool { return s.Phase == PhaseIdle })
	assert.Zero(t, snap.ItemCount)
	assert.False(t, snap.Connected)

	// submission is not
	orders := h.orders.submitted()
	require.Len(t, orders, 1)
	assert.Equal(t, []models.OrderItem{{ItemID: 2, Quantity: 1}}, orders[0].Items)
	assert.Equal(t, "upi", orders[0].Payment.Method)
	assert.Equal(t, fetches, h.menu.fetchCount())
}

func TestEnginePrintFailureSkipsSubmission(t *testing.T) {
	h := newHarness(t, true)
	h.printer.err = errors.New("paper jam")
	h.waitFor(t, synced)

	_, err := h.dispatch(t, ItemIncreased{ID: 3})
	require.NoError(t, err)
	_, err = h.dispatch(t, PrintRequested{})
	require.NoError(t, err)
	_, err = h.dispatch(t, PaymentChosen{Mode: models.PaymentUPI})
	require.NoError(t, err)

	snap := h.waitFor(t, func(s Snapshot) bool { return s.Phase == PhaseFailed })
	assert.Equal(t, 1, snap.ItemCount)
	assert.Empty(t, h.orders.submitted())

	snap, err = h.dispatch(t, FailureAcknowledged{})
	require.NoError(t, err)
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Equal(t, 1, snap.ItemCount)
}

func TestEngineEmptyCartPrint(t *testing.T) {
	h := newHarness(t, true)
	h.waitFor(t, synced)
	snap, err := h.dispatch(t, PrintRequested{})
	assert.True(t, errors.Is(err, ErrEmptyCart))
	assert.Equal(t, PhaseIdle, snap.Phase)
}

func TestEngineSubscriptionSeesAdvisories(t *testing.T) {
	h := newHarness(t, true)
	h.waitFor(t, synced)
	sub := h.engine.Subscribe()
	defer sub.Close()

	_, err := h.dispatch(t, PrintRequested{})
	require.Error(t, err)

	timeout := time.After(time.Second)
	for {
		select {
		case u := <-sub.Updates():
			if len(u.Advisories) > 0 {
				assert.Equal(t, "Empty Cart", u.Advisories[0].Title)
				return
			}
		case <-timeout:
			t.Fatal("no advisory published")
		}
	}
}

func TestEngineStopped(t *testing.T) {
	h := newHarness(t, true)
	sub := h.engine.Subscribe()
	h.stop()

	_, err := h.engine.Dispatch(context.Background(), SyncRequested{})
	assert.ErrorIs(t, err, ErrEngineStopped)

	for range sub.Updates() {
	}
	sub.Close()
	assert.Error(t, h.engine.Run(context.Background()))
}

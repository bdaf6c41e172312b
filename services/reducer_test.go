package services

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xtsservices/BasavatarakamCanteen2/models"
)

func TestValidPhaseTransition(t *testing.T) {
	tests := []struct {
		from, to Phase
		want     bool
	}{
		{PhaseIdle, PhaseCartReview, true},
		{PhaseIdle, PhasePaymentSelect, true},
		{PhaseIdle, PhasePrinting, false},
		{PhaseCartReview, PhaseIdle, true},
		{PhaseCartReview, PhasePaymentSelect, true},
		{PhasePaymentSelect, PhasePrinting, true},
		{PhasePaymentSelect, PhaseCartReview, true},
		{PhasePaymentSelect, PhaseSubmitting, false},
		{PhasePrinting, PhaseSubmitting, true},
		{PhasePrinting, PhaseFailed, true},
		{PhasePrinting, PhaseIdle, false},
		{PhaseSubmitting, PhaseIdle, true},
		{PhaseSubmitting, PhaseFailed, false},
		{PhaseFailed, PhasePaymentSelect, true},
		{PhaseFailed, PhaseIdle, true},
		{PhaseFailed, PhasePrinting, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidPhaseTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func reduceAll(t *testing.T, s State, events ...Event) (State, []Effect) {
	t.Helper()
	var effects []Effect
	for _, ev := range events {
		s, effects = Reduce(s, ev)
	}
	return s, effects
}

func advisories(effects []Effect) []Advisory {
	var out []Advisory
	for _, eff := range effects {
		if a, ok := eff.(Advise); ok {
			out = append(out, a.Advisory)
		}
	}
	return out
}

func loaded() State {
	return State{Connected: true, Categories: []string{"Snacks", "Drinks"}, Items: sampleMenu()}
}

func TestStartOfflineAdvisesAndDoesNotFetch(t *testing.T) {
	s, effects := Reduce(State{}, Started{Connected: false})
	assert.Zero(t, s.Loading)
	adv := advisories(effects)
	require.Len(t, adv, 1)
	assert.True(t, errors.Is(adv[0].Err, ErrConnectivityUnavailable))
	assert.Len(t, effects, 1)
}

func TestStartOnlineFetchesBoth(t *testing.T) {
	s, effects := Reduce(State{}, Started{Connected: true})
	assert.Equal(t, 2, s.Loading)
	assert.Equal(t, []Effect{FetchCategories{}, FetchItems{}}, effects)
}

func TestReconnectTriggersSync(t *testing.T) {
	s, effects := Reduce(State{}, ConnectivityChanged{Connected: true})
	assert.True(t, s.Connected)
	assert.Equal(t, []Effect{FetchCategories{}, FetchItems{}}, effects)

	_, effects = Reduce(s, ConnectivityChanged{Connected: true})
	assert.Empty(t, effects, "no edge, no sync")

	s, effects = Reduce(s, ConnectivityChanged{Connected: false})
	assert.False(t, s.Connected)
	assert.Empty(t, effects)
}

func TestCategoriesFetchedDefaultsUnsetCategory(t *testing.T) {
	s := State{Connected: true, Loading: 2}
	s, _ = Reduce(s, CategoriesFetched{Categories: []string{"Snacks", "Drinks"}})
	assert.Equal(t, "Snacks", s.Category)
	assert.Equal(t, 1, s.Loading)

	s, _ = Reduce(s, CategorySelected{Category: "Drinks"})
	s, _ = Reduce(s, CategoriesFetched{Categories: []string{"Snacks", "Drinks"}})
	assert.Equal(t, "Drinks", s.Category, "a selected category survives a re-sync")
	assert.Zero(t, s.Loading)

	// All Items is the unset selector, so the next sync picks the first category again.
	s, _ = Reduce(s, CategorySelected{Category: models.AllItems})
	s, effects := Reduce(s, SyncRequested{})
	require.Len(t, effects, 2)
	s, _ = Reduce(s, CategoriesFetched{Categories: []string{"Snacks", "Drinks"}})
	assert.Equal(t, "Snacks", s.Category)
	assert.Equal(t, []string{"Snacks", "Drinks"}, s.Categories)
	assert.Equal(t, 1, s.Loading)
}

func TestFetchFailureKeepsCatalog(t *testing.T) {
	s := loaded()
	s.Loading = 2
	s, effects := Reduce(s, ItemsFetched{Err: ErrCatalogFetchFailed})
	assert.Equal(t, sampleMenu(), s.Items)
	assert.Equal(t, 1, s.Loading)
	adv := advisories(effects)
	require.Len(t, adv, 1)
	assert.Equal(t, "Failed to load menu.", adv[0].Message)

	s, _ = Reduce(s, CategoriesFetched{Err: ErrCatalogFetchFailed})
	assert.Equal(t, []string{"Snacks", "Drinks"}, s.Categories)
	assert.Zero(t, s.Loading)
}

func TestItemsFetchedClearsCart(t *testing.T) {
	s, _ := reduceAll(t, loaded(), ItemIncreased{ID: 1})
	fresh := sampleMenu()
	fresh[0].Quantity = 9
	s, _ = Reduce(s, ItemsFetched{Items: fresh})
	assert.Zero(t, TotalItemCount(s.Items))
}

func TestPrintWithEmptyCartIsRejected(t *testing.T) {
	for _, phase := range []Phase{PhaseIdle, PhaseCartReview} {
		s := loaded()
		s.Phase = phase
		next, effects := Reduce(s, PrintRequested{})
		assert.Equal(t, phase, next.Phase)
		adv := advisories(effects)
		require.Len(t, adv, 1)
		assert.True(t, errors.Is(adv[0].Err, ErrEmptyCart))
	}
}

func TestInvalidIntentsLeaveStateAlone(t *testing.T) {
	tests := []struct {
		phase Phase
		event Event
	}{
		{PhaseIdle, CartDismissed{}},
		{PhaseIdle, PaymentChosen{Mode: models.PaymentCash}},
		{PhaseIdle, PaymentCancelled{}},
		{PhaseIdle, FailureAcknowledged{}},
		{PhasePrinting, PrintRequested{}},
		{PhasePrinting, CartOpened{}},
		{PhaseSubmitting, PaymentChosen{Mode: models.PaymentUPI}},
		{PhasePaymentSelect, PaymentChosen{Mode: "Card"}},
	}
	for _, tt := range tests {
		s := loaded()
		s.Items, _ = IncreaseQuantity(s.Items, 1)
		s.Phase = tt.phase
		next, effects := Reduce(s, tt.event)
		assert.Equal(t, s, next, "%T in %s", tt.event, tt.phase)
		adv := advisories(effects)
		require.Len(t, adv, 1)
		assert.True(t, errors.Is(adv[0].Err, ErrInvalidTransition))
	}
}

func checkout(t *testing.T, s State, mode models.PaymentMode) (State, Checkout) {
	t.Helper()
	s, _ = Reduce(s, PrintRequested{})
	require.Equal(t, PhasePaymentSelect, s.Phase)
	at := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	s, effects := Reduce(s, PaymentChosen{Mode: mode, CheckoutID: "bill-1", At: at})
	require.Equal(t, PhasePrinting, s.Phase)
	require.Len(t, effects, 1)
	pr, ok := effects[0].(PrintReceipt)
	require.True(t, ok)
	return s, pr.Checkout
}

func TestHappyPath(t *testing.T) {
	s, _ := reduceAll(t, loaded(), ItemIncreased{ID: 1}, ItemIncreased{ID: 1}, ItemIncreased{ID: 2})
	s, c := checkout(t, s, models.PaymentUPI)
	assert.Equal(t, "bill-1", c.ID)
	assert.Equal(t, "40", c.Total.String())
	assert.Equal(t, []int64{1, 2}, ids(c.Lines))

	s, effects := Reduce(s, PrintFinished{CheckoutID: "bill-1"})
	assert.Equal(t, PhaseSubmitting, s.Phase)
	require.Len(t, effects, 2)
	adv := advisories(effects)
	require.Len(t, adv, 1)
	assert.Equal(t, "Bill printed! Paid via UPI", adv[0].Message)
	assert.Equal(t, SubmitOrder{Checkout: c}, effects[1])

	s, effects = Reduce(s, SubmitFinished{CheckoutID: "bill-1"})
	assert.Empty(t, effects)
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Nil(t, s.Checkout)
	assert.Zero(t, TotalItemCount(s.Items))
}

func TestSubmitFailureStillResets(t *testing.T) {
	s, _ := reduceAll(t, loaded(), ItemIncreased{ID: 3})
	s, _ = checkout(t, s, models.PaymentCash)
	s, _ = Reduce(s, PrintFinished{CheckoutID: "bill-1"})
	s, effects := Reduce(s, SubmitFinished{CheckoutID: "bill-1", Err: errors.New("502")})
	assert.Empty(t, effects)
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Zero(t, TotalItemCount(s.Items))
}

func TestPrintFailureKeepsCart(t *testing.T) {
	s, _ := reduceAll(t, loaded(), ItemIncreased{ID: 3}, CartOpened{})
	s, _ = checkout(t, s, models.PaymentCash)
	s, effects := Reduce(s, PrintFinished{CheckoutID: "bill-1", Err: ErrPrintFailed})
	assert.Equal(t, PhaseFailed, s.Phase)
	assert.Equal(t, 1, TotalItemCount(s.Items))
	for _, eff := range effects {
		_, isSubmit := eff.(SubmitOrder)
		assert.False(t, isSubmit)
	}
	adv := advisories(effects)
	require.Len(t, adv, 1)
	assert.Equal(t, "Print Failed", adv[0].Title)

	retry, _ := Reduce(s, FailureAcknowledged{Retry: true})
	assert.Equal(t, PhasePaymentSelect, retry.Phase)
	assert.Equal(t, 1, TotalItemCount(retry.Items))
	back, _ := Reduce(retry, PaymentCancelled{})
	assert.Equal(t, PhaseCartReview, back.Phase)

	done, _ := Reduce(s, FailureAcknowledged{})
	assert.Equal(t, PhaseIdle, done.Phase)
	assert.Equal(t, 1, TotalItemCount(done.Items))
}

func TestStaleCompletionsAreIgnored(t *testing.T) {
	s, _ := reduceAll(t, loaded(), ItemIncreased{ID: 3})
	s, _ = checkout(t, s, models.PaymentCash)
	next, effects := Reduce(s, PrintFinished{CheckoutID: "other"})
	assert.Equal(t, s, next)
	assert.Empty(t, effects)

	next, effects = Reduce(s, SubmitFinished{CheckoutID: "bill-1"})
	assert.Equal(t, s, next, "not submitting yet")
	assert.Empty(t, effects)
}

func TestCancelReturnsToWhereItStarted(t *testing.T) {
	s, _ := reduceAll(t, loaded(), ItemIncreased{ID: 1}, PrintRequested{}, PaymentCancelled{})
	assert.Equal(t, PhaseIdle, s.Phase)

	s, _ = reduceAll(t, s, CartOpened{}, PrintRequested{}, PaymentCancelled{})
	assert.Equal(t, PhaseCartReview, s.Phase)
	assert.Equal(t, 1, TotalItemCount(s.Items))
}

func TestPaymentChosenAfterCartEmptied(t *testing.T) {
	s, _ := reduceAll(t, loaded(), ItemIncreased{ID: 1}, PrintRequested{}, ItemDecreased{ID: 1})
	s, effects := Reduce(s, PaymentChosen{Mode: models.PaymentCash, CheckoutID: "x"})
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Nil(t, s.Checkout)
	adv := advisories(effects)
	require.Len(t, adv, 1)
	assert.True(t, errors.Is(adv[0].Err, ErrEmptyCart))
}

func TestSyncIsIdempotentForTheView(t *testing.T) {
	s := State{Connected: true}
	s, _ = reduceAll(t, s, SyncRequested{}, CategoriesFetched{Categories: []string{"Snacks", "Drinks"}}, ItemsFetched{Items: sampleMenu()})
	first := s.Snapshot().View(2)
	s, _ = reduceAll(t, s, SyncRequested{}, CategoriesFetched{Categories: []string{"Snacks", "Drinks"}}, ItemsFetched{Items: sampleMenu()})
	assert.Equal(t, first, s.Snapshot().View(2))
	assert.False(t, s.Snapshot().Loading)
}

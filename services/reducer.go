package services

import (
	"time"

	"github.com/Xtsservices/BasavatarakamCanteen2/models"
)

// Event is anything that can change the state: a user intent, a connectivity
// change or the result of a network call.
type Event interface{ event() }

// Started is posted once by the engine with the eagerly queried connectivity.
type Started struct{ Connected bool }

type SyncRequested struct{}

// CategorySelected picks a category; models.AllItems removes the filter.
type CategorySelected struct{ Category string }

type SearchChanged struct{ Text string }

type ItemIncreased struct{ ID int64 }

type ItemDecreased struct{ ID int64 }

type CartOpened struct{}

type CartDismissed struct{}

type PrintRequested struct{}

// PaymentChosen confirms the payment mode. CheckoutID and At are stamped by
// the engine when left empty.
type PaymentChosen struct {
	Mode       models.PaymentMode
	CheckoutID string
	At         time.Time
}

type PaymentCancelled struct{}

// FailureAcknowledged closes the print failure; Retry goes back to payment
// selection instead of the menu.
type FailureAcknowledged struct{ Retry bool }

type ConnectivityChanged struct{ Connected bool }

type CategoriesFetched struct {
	Categories []string
	Err        error
}

type ItemsFetched struct {
	Items []models.MenuItem
	Err   error
}

type PrintFinished struct {
	CheckoutID string
	Err        error
}

type SubmitFinished struct {
	CheckoutID string
	Err        error
}

func (Started) event()             {}
func (SyncRequested) event()       {}
func (CategorySelected) event()    {}
func (SearchChanged) event()       {}
func (ItemIncreased) event()       {}
func (ItemDecreased) event()       {}
func (CartOpened) event()          {}
func (CartDismissed) event()       {}
func (PrintRequested) event()      {}
func (PaymentChosen) event()       {}
func (PaymentCancelled) event()    {}
func (FailureAcknowledged) event() {}
func (ConnectivityChanged) event() {}
func (CategoriesFetched) event()   {}
func (ItemsFetched) event()        {}
func (PrintFinished) event()       {}
func (SubmitFinished) event()      {}

// Effect is work the engine performs after a transition.
type Effect interface{ effect() }

type FetchCategories struct{}

type FetchItems struct{}

type PrintReceipt struct{ Checkout Checkout }

type SubmitOrder struct{ Checkout Checkout }

// Advise shows a message to the person at the counter.
type Advise struct{ Advisory Advisory }

func (FetchCategories) effect() {}
func (FetchItems) effect()      {}
func (PrintReceipt) effect()    {}
func (SubmitOrder) effect()     {}
func (Advise) effect()          {}

// Reduce is the whole order lifecycle as a pure function. It never mutates
// the slices of s; every change produces new ones.
func Reduce(s State, ev Event) (State, []Effect) {
	switch ev := ev.(type) {
	case Started:
		s.Connected = ev.Connected
		return startSync(s)

	case SyncRequested:
		return startSync(s)

	case ConnectivityChanged:
		regained := !s.Connected && ev.Connected
		s.Connected = ev.Connected
		if regained {
			return startSync(s)
		}
		return s, nil

	case CategoriesFetched:
		s.Loading = doneLoading(s.Loading)
		if ev.Err != nil {
			return s, advise(loadFailedAdvisory("categories"))
		}
		s.Categories = ev.Categories
		if models.IsAllItems(s.Category) && len(ev.Categories) > 0 {
			s.Category = ev.Categories[0]
		}
		return s, nil

	case ItemsFetched:
		s.Loading = doneLoading(s.Loading)
		if ev.Err != nil {
			return s, advise(loadFailedAdvisory("menu"))
		}
		s.Items = ResetCart(ev.Items)
		return s, nil

	case CategorySelected:
		s.Category = ev.Category
		return s, nil

	case SearchChanged:
		s.Search = ev.Text
		return s, nil

	case ItemIncreased:
		s.Items, _ = IncreaseQuantity(s.Items, ev.ID)
		return s, nil

	case ItemDecreased:
		s.Items, _ = DecreaseQuantity(s.Items, ev.ID)
		return s, nil

	case CartOpened:
		return moveTo(s, PhaseCartReview)

	case CartDismissed:
		if s.Phase != PhaseCartReview {
			return s, advise(invalidTransitionAdvisory(s.Phase))
		}
		return moveTo(s, PhaseIdle)

	case PrintRequested:
		if s.Phase != PhaseIdle && s.Phase != PhaseCartReview {
			return s, advise(invalidTransitionAdvisory(s.Phase))
		}
		if TotalItemCount(s.Items) == 0 {
			return s, advise(emptyCartAdvisory())
		}
		s.Return = s.Phase
		return moveTo(s, PhasePaymentSelect)

	case PaymentChosen:
		if s.Phase != PhasePaymentSelect {
			return s, advise(invalidTransitionAdvisory(s.Phase))
		}
		if ev.Mode != models.PaymentCash && ev.Mode != models.PaymentUPI {
			return s, advise(invalidTransitionAdvisory(s.Phase))
		}
		lines := CartLines(s.Items)
		if len(lines) == 0 {
			s.Phase = s.Return
			return s, advise(emptyCartAdvisory())
		}
		c := Checkout{
			ID:    ev.CheckoutID,
			At:    ev.At,
			Mode:  ev.Mode,
			Lines: lines,
			Total: TotalAmount(lines),
		}
		s.Checkout = &c
		s.Phase = PhasePrinting
		return s, []Effect{PrintReceipt{Checkout: c}}

	case PaymentCancelled:
		if s.Phase != PhasePaymentSelect {
			return s, advise(invalidTransitionAdvisory(s.Phase))
		}
		return moveTo(s, s.Return)

	case PrintFinished:
		if s.Phase != PhasePrinting || s.Checkout == nil || s.Checkout.ID != ev.CheckoutID {
			return s, nil
		}
		if ev.Err != nil {
			s.Phase = PhaseFailed
			return s, advise(printFailedAdvisory())
		}
		s.Phase = PhaseSubmitting
		return s, []Effect{
			Advise{Advisory: printedAdvisory(s.Checkout.Mode)},
			SubmitOrder{Checkout: *s.Checkout},
		}

	case SubmitFinished:
		if s.Phase != PhaseSubmitting || s.Checkout == nil || s.Checkout.ID != ev.CheckoutID {
			return s, nil
		}
		// The bill is already printed, so the cart is cleared whether or
		// not the backend recorded the order.
		s.Items = ResetCart(s.Items)
		s.Checkout = nil
		s.Phase = PhaseIdle
		s.Return = PhaseIdle
		return s, nil

	case FailureAcknowledged:
		if s.Phase != PhaseFailed {
			return s, advise(invalidTransitionAdvisory(s.Phase))
		}
		s.Checkout = nil
		if !ev.Retry {
			s.Return = PhaseIdle
			return moveTo(s, PhaseIdle)
		}
		if TotalItemCount(s.Items) == 0 {
			s.Phase = PhaseIdle
			s.Return = PhaseIdle
			return s, advise(emptyCartAdvisory())
		}
		return moveTo(s, PhasePaymentSelect)
	}
	return s, nil
}

func startSync(s State) (State, []Effect) {
	if !s.Connected {
		return s, advise(noInternetAdvisory())
	}
	s.Loading += 2
	return s, []Effect{FetchCategories{}, FetchItems{}}
}

func moveTo(s State, to Phase) (State, []Effect) {
	if s.Phase == to {
		return s, nil
	}
	if !ValidPhaseTransition(s.Phase, to) {
		return s, advise(invalidTransitionAdvisory(s.Phase))
	}
	s.Phase = to
	return s, nil
}

func doneLoading(n int) int {
	if n > 0 {
		return n - 1
	}
	return 0
}

func advise(a Advisory) []Effect {
	return []Effect{Advise{Advisory: a}}
}

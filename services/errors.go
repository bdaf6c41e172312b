package services

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/Xtsservices/BasavatarakamCanteen2/models"
)

var (
	ErrConnectivityUnavailable = errors.New("connectivity unavailable")
	ErrCatalogFetchFailed      = errors.New("catalog fetch failed")
	ErrEmptyCart               = errors.New("cart is empty")
	ErrPrintFailed             = errors.New("print failed")
	ErrSubmissionFailed        = errors.New("order submission failed")
	ErrInvalidTransition       = errors.New("action not available in the current step")
	ErrEngineStopped           = errors.New("engine stopped")
)

// Advisory is a message the counter screen shows once, e.g. as an alert.
// Err is nil for good news.
type Advisory struct {
	Err     error  `json:"-"`
	Code    string `json:"code"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Error makes a failing advisory usable as the error Dispatch returns.
func (a Advisory) Error() string {
	if a.Err == nil {
		return a.Message
	}
	return a.Err.Error()
}

func (a Advisory) Unwrap() error { return a.Err }

func noInternetAdvisory() Advisory {
	return Advisory{
		Err:     ErrConnectivityUnavailable,
		Code:    "connectivity_unavailable",
		Title:   "No Internet",
		Message: "Please connect to the internet.",
	}
}

func loadFailedAdvisory(what string) Advisory {
	return Advisory{
		Err:     ErrCatalogFetchFailed,
		Code:    "catalog_fetch_failed",
		Title:   "Error",
		Message: fmt.Sprintf("Failed to load %s.", what),
	}
}

func emptyCartAdvisory() Advisory {
	return Advisory{
		Err:     ErrEmptyCart,
		Code:    "empty_cart",
		Title:   "Empty Cart",
		Message: "Please add items first.",
	}
}

func printFailedAdvisory() Advisory {
	return Advisory{
		Err:     ErrPrintFailed,
		Code:    "print_failed",
		Title:   "Print Failed",
		Message: "Could not print the bill.",
	}
}

func printedAdvisory(mode models.PaymentMode) Advisory {
	return Advisory{
		Code:    "printed",
		Title:   "Success",
		Message: fmt.Sprintf("Bill printed! Paid via %s", mode),
	}
}

func invalidTransitionAdvisory(phase Phase) Advisory {
	return Advisory{
		Err:     errors.Wrapf(ErrInvalidTransition, "phase %s", phase),
		Code:    "invalid_transition",
		Title:   "Not now",
		Message: "That action is not available right now.",
	}
}

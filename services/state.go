package services

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Xtsservices/BasavatarakamCanteen2/models"
	"github.com/Xtsservices/BasavatarakamCanteen2/receipt"
)

// Phase is the step of the checkout the counter screen is on.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCartReview
	PhasePaymentSelect
	PhasePrinting
	PhaseSubmitting
	PhaseFailed
)

var phaseNames = map[Phase]string{
	PhaseIdle:          "idle",
	PhaseCartReview:    "cart_review",
	PhasePaymentSelect: "payment_select",
	PhasePrinting:      "printing",
	PhaseSubmitting:    "submitting",
	PhaseFailed:        "failed",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

var phaseTransitions = map[Phase][]Phase{
	PhaseIdle:          {PhaseCartReview, PhasePaymentSelect},
	PhaseCartReview:    {PhaseIdle, PhasePaymentSelect},
	PhasePaymentSelect: {PhasePrinting, PhaseIdle, PhaseCartReview},
	PhasePrinting:      {PhaseSubmitting, PhaseFailed},
	PhaseSubmitting:    {PhaseIdle},
	PhaseFailed:        {PhasePaymentSelect, PhaseIdle},
}

// ValidPhaseTransition reports whether the checkout may move from one phase
// to the other.
func ValidPhaseTransition(from, to Phase) bool {
	for _, p := range phaseTransitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// Checkout is the cart frozen at the moment a payment mode was chosen. The
// receipt and the order payload are both built from it.
type Checkout struct {
	ID    string             `json:"id"`
	At    time.Time          `json:"at"`
	Mode  models.PaymentMode `json:"mode"`
	Lines []models.MenuItem  `json:"lines"`
	Total decimal.Decimal    `json:"total"`
}

// Bill converts the checkout into what the receipt prints.
func (c Checkout) Bill() receipt.Bill {
	lines := make([]receipt.Line, 0, len(c.Lines))
	for _, it := range c.Lines {
		lines = append(lines, receipt.Line{Name: it.Name, Quantity: it.Quantity, Amount: it.LineTotal()})
	}
	return receipt.Bill{ID: c.ID, IssuedAt: c.At, Lines: lines, Total: c.Total, Mode: c.Mode}
}

// State is everything the engine owns. It is only changed by Reduce.
type State struct {
	Connected  bool
	Categories []string
	Items      []models.MenuItem
	// Category is the selected category. AllItems means unset; the next
	// category sync replaces it with the first category.
	Category string
	Search   string
	// Loading counts catalog fetches in flight.
	Loading  int
	Phase    Phase
	Return   Phase // where a cancelled payment selection goes back to
	Checkout *Checkout
}

// Snapshot is a read-only copy of the state with the derived cart figures.
type Snapshot struct {
	Phase      Phase             `json:"phase"`
	Connected  bool              `json:"connected"`
	Loading    bool              `json:"loading"`
	Categories []string          `json:"categories"`
	Category   string            `json:"category"`
	Search     string            `json:"search"`
	Items      []models.MenuItem `json:"items"`
	Cart       []models.MenuItem `json:"cart"`
	ItemCount  int               `json:"itemCount"`
	Total      decimal.Decimal   `json:"total"`
	Checkout   *Checkout         `json:"checkout,omitempty"`
}

// Snapshot derives the published view of s. Slices are shared with s, which
// is safe because Reduce never modifies a slice in place.
func (s State) Snapshot() Snapshot {
	return Snapshot{
		Phase:      s.Phase,
		Connected:  s.Connected,
		Loading:    s.Loading > 0,
		Categories: s.Categories,
		Category:   s.Category,
		Search:     s.Search,
		Items:      s.Items,
		Cart:       CartLines(s.Items),
		ItemCount:  TotalItemCount(s.Items),
		Total:      TotalAmount(s.Items),
		Checkout:   s.Checkout,
	}
}

// View is the grouped, padded menu for a grid of the given width.
func (s Snapshot) View(columns int) View {
	return BuildView(s.Items, s.Category, s.Search, columns)
}

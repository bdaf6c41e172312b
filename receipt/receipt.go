// Package receipt lays out the printed bill for a walk-in order.
package receipt

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/Xtsservices/BasavatarakamCanteen2/models"
)

const (
	// TimeLayout matches the en-IN short date with a 12-hour clock.
	TimeLayout   = "2 Jan 2006, 3:04 pm"
	currency     = "₹"
	defaultWidth = 32
)

type Line struct {
	Name     string
	Quantity int
	Amount   decimal.Decimal
}

// Bill is everything printed on one receipt.
type Bill struct {
	ID       string
	IssuedAt time.Time
	Lines    []Line
	Total    decimal.Decimal
	Mode     models.PaymentMode
}

type Layout struct {
	Outlet   string
	Footer   string
	Location *time.Location
	Width    int // columns of the plain-text rendering
}

// Document is what gets handed to a printer: a self-contained HTML page and
// the same bill as fixed-width text for printers that take raw text.
type Document struct {
	Name string
	HTML string
	Text string
}

// ShortID is the bill number printed under the timestamp.
func ShortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return strings.ToUpper(id[:8])
	}
	return strings.ToUpper(id)
}

// FormatTime renders t in the outlet's time zone.
func FormatTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(TimeLayout)
}

func Money(d decimal.Decimal) string {
	return currency + d.StringFixed(2)
}

// Render builds the document. It does not touch any device.
func Render(b Bill, l Layout) (Document, error) {
	if len(b.Lines) == 0 {
		return Document{}, errors.New("bill has no lines")
	}
	data := htmlData{
		Outlet:  l.Outlet,
		When:    FormatTime(b.IssuedAt, l.Location),
		BillNo:  ShortID(b.ID),
		Total:   Money(b.Total),
		Payment: b.Mode.Caption(),
		Footer:  l.Footer,
	}
	for _, ln := range b.Lines {
		data.Rows = append(data.Rows, htmlRow{
			Label:  fmt.Sprintf("%s × %d", ln.Name, ln.Quantity),
			Amount: Money(ln.Amount),
		})
	}
	var buf bytes.Buffer
	if err := billTemplate.Execute(&buf, data); err != nil {
		return Document{}, errors.Wrap(err, "render bill")
	}
	return Document{
		Name: "bill-" + ShortID(b.ID) + ".html",
		HTML: buf.String(),
		Text: renderText(b, l),
	}, nil
}

func renderText(b Bill, l Layout) string {
	width := l.Width
	if width <= 0 {
		width = defaultWidth
	}
	rule := strings.Repeat("-", width)
	var lines []string
	lines = append(lines, center(l.Outlet, width))
	lines = append(lines, center(FormatTime(b.IssuedAt, l.Location), width))
	lines = append(lines, center("Bill #"+ShortID(b.ID), width))
	lines = append(lines, rule)
	for _, ln := range b.Lines {
		lines = append(lines, spread(fmt.Sprintf("%s x%d", ln.Name, ln.Quantity), Money(ln.Amount), width))
	}
	lines = append(lines, rule)
	lines = append(lines, spread("Total Amount", Money(b.Total), width))
	lines = append(lines, center(b.Mode.Caption(), width))
	lines = append(lines, rule)
	if l.Footer != "" {
		lines = append(lines, center(l.Footer, width))
	}
	return strings.Join(lines, "\n") + "\n"
}

func center(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return strings.Repeat(" ", (width-n)/2) + s
}

// spread puts left and right on one line, cutting left when they do not fit.
func spread(left, right string, width int) string {
	room := width - utf8.RuneCountInString(right) - 1
	if room < 1 {
		return left + " " + right
	}
	r := []rune(left)
	if len(r) > room {
		left = string(r[:room])
	}
	gap := width - utf8.RuneCountInString(left) - utf8.RuneCountInString(right)
	return left + strings.Repeat(" ", gap) + right
}

type htmlRow struct {
	Label  string
	Amount string
}

type htmlData struct {
	Outlet  string
	When    string
	BillNo  string
	Rows    []htmlRow
	Total   string
	Payment string
	Footer  string
}

var billTemplate = template.Must(template.New("bill").Parse(`<html>
<head>
  <meta charset="utf-8">
  <style>
    body { font-family: Arial; margin: 15px; font-size: 42px; }
    .header { text-align: center; font-weight: bold; font-size: 46px; margin-bottom: 10px; }
    .datetime { text-align: center; font-size: 42px; margin-bottom: 20px; border-bottom: 2px dashed #000; padding-top: 15px; }
    .row { display: flex; justify-content: space-between; margin: 8px 0; font-size: 36px; }
    .total { border-top: 2px dashed #000; padding-top: 15px; margin-top: 20px; font-weight: bold; font-size: 42px; }
    .payment { text-align: center; font-size: 40px; margin-top: 20px; font-weight: bold; }
    .footer { text-align: center; margin-top: 40px; margin-bottom: 80px; font-size: 38px; border-top: 2px dashed #000; padding-top: 15px; }
  </style>
</head>
<body>
  <div class="header">{{.Outlet}}</div>
  <div class="datetime">{{.When}}<br>Bill #{{.BillNo}}</div>
  <div class="items">
{{- range .Rows}}
    <div class="row"><span>{{.Label}}</span><span>{{.Amount}}</span></div>
{{- end}}
  </div>
  <div class="total">
    <div class="row"><span>Total Amount</span><span>{{.Total}}</span></div>
  </div>
  <div class="payment">{{.Payment}}</div>
  <div class="footer">{{.Footer}}</div>
</body>
</html>
`))

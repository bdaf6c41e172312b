package bot

import (
	"fmt"
	"hash/crc32"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Xtsservices/BasavatarakamCanteen2/models"
	"github.com/Xtsservices/BasavatarakamCanteen2/receipt"
	"github.com/Xtsservices/BasavatarakamCanteen2/services"
)

// Columns of the item grid. Telegram keyboards are phone-width.
const Columns = 2

const (
	cbNoop        = "noop"
	cbSync        = "sync"
	cbCart        = "cart"
	cbCartClose   = "cart:close"
	cbPrint       = "print"
	cbPayCash     = "pay:cash"
	cbPayUPI      = "pay:upi"
	cbPayCancel   = "pay:cancel"
	cbFailRetry   = "fail:retry"
	cbFailOK      = "fail:ok"
	cbCatPrefix   = "cat:"
	cbIncPrefix   = "inc:"
	cbDecPrefix   = "dec:"
	allItemsIndex = -1
	nameLimit     = 18
	categoryCols  = 3
	blankLabel    = " "
	// maxButtons is Telegram's limit for one inline keyboard.
	maxButtons = 100
)

// ParseCallback maps callback data back to an engine event. Categories are
// sent as index and name checksum so the data stays under Telegram's 64 byte
// limit; a tap on a button rendered before a re-sync changed the category
// list is rejected.
func ParseCallback(data string, snap services.Snapshot) (services.Event, bool) {
	switch data {
	case cbSync:
		return services.SyncRequested{}, true
	case cbCart:
		return services.CartOpened{}, true
	case cbCartClose:
		return services.CartDismissed{}, true
	case cbPrint:
		return services.PrintRequested{}, true
	case cbPayCash:
		return services.PaymentChosen{Mode: models.PaymentCash}, true
	case cbPayUPI:
		return services.PaymentChosen{Mode: models.PaymentUPI}, true
	case cbPayCancel:
		return services.PaymentCancelled{}, true
	case cbFailRetry:
		return services.FailureAcknowledged{Retry: true}, true
	case cbFailOK:
		return services.FailureAcknowledged{}, true
	}
	switch {
	case strings.HasPrefix(data, cbCatPrefix):
		return parseCategory(strings.TrimPrefix(data, cbCatPrefix), snap)
	case strings.HasPrefix(data, cbIncPrefix):
		id, err := strconv.ParseInt(strings.TrimPrefix(data, cbIncPrefix), 10, 64)
		if err != nil || id <= 0 {
			return nil, false
		}
		return services.ItemIncreased{ID: id}, true
	case strings.HasPrefix(data, cbDecPrefix):
		id, err := strconv.ParseInt(strings.TrimPrefix(data, cbDecPrefix), 10, 64)
		if err != nil || id <= 0 {
			return nil, false
		}
		return services.ItemDecreased{ID: id}, true
	}
	return nil, false
}

func categoryData(index int, name string) string {
	if index == allItemsIndex {
		return cbCatPrefix + strconv.Itoa(allItemsIndex)
	}
	return fmt.Sprintf("%s%d:%08x", cbCatPrefix, index, crc32.ChecksumIEEE([]byte(name)))
}

func parseCategory(data string, snap services.Snapshot) (services.Event, bool) {
	if data == strconv.Itoa(allItemsIndex) {
		return services.CategorySelected{Category: models.AllItems}, true
	}
	index, sum, ok := strings.Cut(data, ":")
	if !ok {
		return nil, false
	}
	i, err := strconv.Atoi(index)
	if err != nil || i < 0 || i >= len(snap.Categories) {
		return nil, false
	}
	name := snap.Categories[i]
	if sum != fmt.Sprintf("%08x", crc32.ChecksumIEEE([]byte(name))) {
		return nil, false
	}
	return services.CategorySelected{Category: name}, true
}

// Screen renders the message text and keyboard for a snapshot.
func Screen(snap services.Snapshot, outlet string) (string, tgbotapi.InlineKeyboardMarkup) {
	switch snap.Phase {
	case services.PhaseCartReview:
		return cartText(snap), cartKeyboard(snap)
	case services.PhasePaymentSelect:
		return fmt.Sprintf("💳 Total %s\nHow is the customer paying?", receipt.Money(snap.Total)), paymentKeyboard()
	case services.PhasePrinting:
		return "🖨 Printing the bill...", emptyKeyboard()
	case services.PhaseSubmitting:
		return "📤 Recording the order...", emptyKeyboard()
	case services.PhaseFailed:
		return "⚠️ Could not print the bill.", failedKeyboard()
	}
	return menuText(snap, outlet), menuKeyboard(snap)
}

func menuText(snap services.Snapshot, outlet string) string {
	var b strings.Builder
	if outlet != "" {
		fmt.Fprintf(&b, "🍽 %s\n", outlet)
	}
	if !snap.Connected {
		b.WriteString("📵 Offline\n")
	}
	if snap.Loading {
		b.WriteString("⏳ Loading menu...\n")
	}
	category := snap.Category
	if models.IsAllItems(category) {
		category = models.AllItemsLabel
	}
	fmt.Fprintf(&b, "Category: %s\n", category)
	if strings.TrimSpace(snap.Search) != "" {
		fmt.Fprintf(&b, "Search: %q\n", strings.TrimSpace(snap.Search))
	}
	if reason := snap.View(Columns).EmptyReason; reason != "" {
		fmt.Fprintf(&b, "\n%s\n", reason)
	}
	fmt.Fprintf(&b, "\n🛒 %d items · %s\n", snap.ItemCount, receipt.Money(snap.Total))
	b.WriteString("Send text to search, /clear to reset.")
	return b.String()
}

func cartText(snap services.Snapshot) string {
	if len(snap.Cart) == 0 {
		return "🛒 Cart is empty."
	}
	var b strings.Builder
	b.WriteString("🛒 Cart\n\n")
	for _, it := range snap.Cart {
		fmt.Fprintf(&b, "%s × %d  %s\n", it.Name, it.Quantity, receipt.Money(it.LineTotal()))
	}
	fmt.Fprintf(&b, "\nTotal Amount %s", receipt.Money(snap.Total))
	return b.String()
}

func categoryRows(snap services.Snapshot) [][]tgbotapi.InlineKeyboardButton {
	label := func(name string, selected bool) string {
		if selected {
			return "• " + name
		}
		return name
	}
	buttons := []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData(label(models.AllItemsLabel, models.IsAllItems(snap.Category)),
			categoryData(allItemsIndex, "")),
	}
	for i, c := range snap.Categories {
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(label(c, c == snap.Category),
			categoryData(i, c)))
	}
	var rows [][]tgbotapi.InlineKeyboardButton
	for len(buttons) > 0 {
		n := categoryCols
		if len(buttons) < n {
			n = len(buttons)
		}
		rows = append(rows, buttons[:n])
		buttons = buttons[n:]
	}
	return rows
}

func itemLabel(it models.MenuItem) string {
	label := fmt.Sprintf("%s %s", models.Truncate(it.Name, nameLimit), receipt.Money(it.Price))
	if it.Quantity > 0 {
		label += fmt.Sprintf(" ×%d", it.Quantity)
	}
	return label
}

func itemButton(it models.MenuItem) tgbotapi.InlineKeyboardButton {
	if it.IsPlaceholder() {
		return tgbotapi.NewInlineKeyboardButtonData(blankLabel, cbNoop)
	}
	return tgbotapi.NewInlineKeyboardButtonData(itemLabel(it), cbIncPrefix+strconv.FormatInt(it.ID, 10))
}

// menuKeyboard lays out the category rows, the item grid and the action row.
// Items that do not fit under maxButtons are left out and counted on a
// note button; searching narrows the grid.
func menuKeyboard(snap services.Snapshot) tgbotapi.InlineKeyboardMarkup {
	rows := categoryRows(snap)
	actions := tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("🛒 Cart (%d)", snap.ItemCount), cbCart),
		tgbotapi.NewInlineKeyboardButtonData("🖨 Print", cbPrint),
		tgbotapi.NewInlineKeyboardButtonData("🔄 Sync", cbSync),
	)
	budget := maxButtons - countButtons(rows) - len(actions) - 1 // room for the note
	hidden := 0
	for _, section := range snap.View(Columns).Sections {
		if budget < 1+Columns {
			hidden += realItems(section.Items)
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("· "+section.Title+" ·", cbNoop),
		))
		budget--
		for start := 0; start < len(section.Items); start += Columns {
			if budget < Columns {
				hidden += realItems(section.Items[start:])
				break
			}
			var row []tgbotapi.InlineKeyboardButton
			for _, it := range section.Items[start : start+Columns] {
				row = append(row, itemButton(it))
			}
			rows = append(rows, row)
			budget -= Columns
		}
	}
	if hidden > 0 {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%d more items, send text to search", hidden), cbNoop),
		))
	}
	rows = append(rows, actions)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func countButtons(rows [][]tgbotapi.InlineKeyboardButton) int {
	n := 0
	for _, r := range rows {
		n += len(r)
	}
	return n
}

func realItems(items []models.MenuItem) int {
	n := 0
	for _, it := range items {
		if !it.IsPlaceholder() {
			n++
		}
	}
	return n
}

func cartKeyboard(snap services.Snapshot) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, it := range snap.Cart {
		id := strconv.FormatInt(it.ID, 10)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➖", cbDecPrefix+id),
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s × %d", models.Truncate(it.Name, nameLimit), it.Quantity), cbNoop),
			tgbotapi.NewInlineKeyboardButtonData("➕", cbIncPrefix+id),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("« Menu", cbCartClose),
		tgbotapi.NewInlineKeyboardButtonData("🖨 Print", cbPrint),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func paymentKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💵 Cash", cbPayCash),
			tgbotapi.NewInlineKeyboardButtonData("📱 UPI", cbPayUPI),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Cancel", cbPayCancel),
		),
	)
}

func failedKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔁 Try again", cbFailRetry),
			tgbotapi.NewInlineKeyboardButtonData("« Menu", cbFailOK),
		),
	)
}

func emptyKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
}

package models

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// PaymentMode is how a walk-in customer paid at the counter.
type PaymentMode string

const (
	PaymentCash PaymentMode = "Cash"
	PaymentUPI  PaymentMode = "UPI"
)

const PaymentStatusSuccess = "success"

// ParsePaymentMode accepts "cash" or "upi" in any case.
func ParsePaymentMode(raw string) (PaymentMode, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "cash":
		return PaymentCash, true
	case "upi":
		return PaymentUPI, true
	}
	return "", false
}

// Caption is the line printed on the bill.
func (m PaymentMode) Caption() string {
	return "Paid by " + string(m)
}

// Method is the lower-cased value the order backend records.
func (m PaymentMode) Method() string {
	return strings.ToLower(string(m))
}

// Order is the body of POST /orders. It is built once per printed bill and
// discarded after the request, whatever the response.
type Order struct {
	MobileNumber string      `json:"mobileNumber"`
	CanteenID    int64       `json:"canteenId"`
	Items        []OrderItem `json:"items"`
	TotalAmount  json.Number `json:"totalAmount"`
	Payment      Payment     `json:"payment"`
}

type OrderItem struct {
	ItemID   int64 `json:"itemId"`
	Quantity int   `json:"quantity"`
}

type Payment struct {
	Status string      `json:"payment_status"`
	Amount json.Number `json:"amount"`
	Method string      `json:"payment_method"`
}

// Amount renders a money value as a JSON number with two decimals.
func Amount(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

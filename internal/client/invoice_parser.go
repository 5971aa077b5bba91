package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/pesio-ai/be-ap-reconciler/internal/reconcile"
)

// jsonObjectPattern grabs the outermost {...} span of model output
var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

var (
	errNotObject = errors.New("invoice JSON must be an object")
	errNotFinite = errors.New("invoice amounts must be finite")
)

// lenientNumber accepts a JSON number, a numeric string, or null. NaN and
// infinities are rejected.
type lenientNumber float64

func (n *lenientNumber) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*n = 0
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
		s = strings.NewReplacer(",", "", "$", "").Replace(s)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return errNotFinite
	}
	*n = lenientNumber(f)
	return nil
}

// lenientString accepts a JSON string, a number, or null
type lenientString struct {
	value *string
}

func (s *lenientString) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		s.value = nil
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		str = raw
	}
	s.value = &str
	return nil
}

type wireLineItem struct {
	Description string        `json:"description"`
	Quantity    lenientNumber `json:"quantity"`
	UnitPrice   lenientNumber `json:"unit_price"`
	Total       lenientNumber `json:"total"`
}

type wireInvoice struct {
	InvoiceNo lenientString  `json:"invoice_no"`
	Supplier  lenientString  `json:"supplier"`
	PONumber  lenientString  `json:"po_number"`
	Items     []wireLineItem `json:"items"`
	Total     lenientNumber  `json:"total"`
}

// ParseInvoiceJSON decodes an invoice from model or file output. It tries the
// whole text first, then the outermost brace-delimited block. ok is false
// when neither parses.
func ParseInvoiceJSON(text string) (reconcile.Invoice, bool) {
	if inv, err := decodeInvoice([]byte(text)); err == nil {
		return inv, true
	}
	if block := jsonObjectPattern.FindString(text); block != "" {
		if inv, err := decodeInvoice([]byte(block)); err == nil {
			return inv, true
		}
	}
	return reconcile.Invoice{}, false
}

func decodeInvoice(data []byte) (reconcile.Invoice, error) {
	if !bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		return reconcile.Invoice{}, errNotObject
	}
	var w wireInvoice
	if err := json.Unmarshal(data, &w); err != nil {
		return reconcile.Invoice{}, err
	}

	inv := reconcile.Invoice{
		InvoiceNo: w.InvoiceNo.value,
		Supplier:  w.Supplier.value,
		PONumber:  w.PONumber.value,
		Items:     make([]reconcile.LineItem, 0, len(w.Items)),
		Total:     float64(w.Total),
	}
	for _, item := range w.Items {
		inv.Items = append(inv.Items, reconcile.LineItem{
			Description: item.Description,
			Quantity:    float64(item.Quantity),
			UnitPrice:   float64(item.UnitPrice),
			Total:       float64(item.Total),
		})
	}
	return inv, nil
}

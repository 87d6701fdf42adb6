// Package pricing computes GST and order totals. Every caller that shows or charges a price
// (cart quote, checkout, manual order entry) goes through Summarize so the numbers agree.
package pricing

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// GST holds tax percentages. Total is always CGST + SGST.
type GST struct {
	CGST  float64 `json:"cgst" dynamodbav:"cgst"`
	SGST  float64 `json:"sgst" dynamodbav:"sgst"`
	Total float64 `json:"total" dynamodbav:"total"`
}

var apparelKeywords = []string{"t-shirt", "hoodie", "shirt", "pant", "jersey", "clothing", "apparel"}

// IsApparel reports whether a free-text category names clothing.
func IsApparel(category string) bool {
	c := strings.ToLower(category)
	for _, kw := range apparelKeywords {
		if strings.Contains(c, kw) {
			return true
		}
	}
	return false
}

// DefaultGST returns the tax rates for a category without explicit rates:
// apparel 2.5% + 2.5%, anything else 6% + 6%.
func DefaultGST(category string) GST {
	if IsApparel(category) {
		return GST{CGST: 2.5, SGST: 2.5, Total: 5}
	}
	return GST{CGST: 6, SGST: 6, Total: 12}
}

// RatesFor returns the explicit rates when present, else the category default.
// Negative or non-finite rates count as zero.
func RatesFor(gst *GST, category string) GST {
	if gst == nil {
		return DefaultGST(category)
	}
	c, s := sanitize(gst.CGST), sanitize(gst.SGST)
	return GST{CGST: c, SGST: s, Total: c + s}
}

func sanitize(rate float64) float64 {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 {
		return 0
	}
	return rate
}

// LineInput is one priced line: unit price in major units, quantity, tax rates.
type LineInput struct {
	UnitPrice float64
	Quantity  int
	GST       GST
}

// LineAmounts are the computed amounts for one line, rounded to paise.
type LineAmounts struct {
	Subtotal float64 `json:"subtotal"`
	CGST     float64 `json:"cgst"`
	SGST     float64 `json:"sgst"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// Totals are order-level sums, rounded to paise after summing exact line amounts.
type Totals struct {
	Subtotal   float64 `json:"subtotal" dynamodbav:"subtotal"`
	CGST       float64 `json:"cgst" dynamodbav:"cgst"`
	SGST       float64 `json:"sgst" dynamodbav:"sgst"`
	TaxTotal   float64 `json:"taxTotal" dynamodbav:"tax_total"`
	GrandTotal float64 `json:"grandTotal" dynamodbav:"grand_total"`
}

// MinorUnits returns GrandTotal in minor currency units (paise), rounded half up.
func (t Totals) MinorUnits() int64 {
	return decimal.NewFromFloat(t.GrandTotal).Shift(2).Round(0).IntPart()
}

type exact struct {
	sub, cgst, sgst decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

func compute(in LineInput) exact {
	qty := in.Quantity
	if qty < 0 {
		qty = 0
	}
	rates := RatesFor(&in.GST, "")
	sub := decimal.NewFromFloat(in.UnitPrice).Mul(decimal.NewFromInt(int64(qty)))
	return exact{
		sub:  sub,
		cgst: sub.Mul(decimal.NewFromFloat(rates.CGST)).Div(hundred),
		sgst: sub.Mul(decimal.NewFromFloat(rates.SGST)).Div(hundred),
	}
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// Line prices a single line.
func Line(in LineInput) LineAmounts {
	e := compute(in)
	tax := e.cgst.Add(e.sgst)
	return LineAmounts{
		Subtotal: money(e.sub),
		CGST:     money(e.cgst),
		SGST:     money(e.sgst),
		Tax:      money(tax),
		Total:    money(e.sub.Add(tax)),
	}
}

// Summarize prices a whole order.
func Summarize(lines []LineInput) Totals {
	var sub, cg, sg decimal.Decimal
	for _, l := range lines {
		e := compute(l)
		sub = sub.Add(e.sub)
		cg = cg.Add(e.cgst)
		sg = sg.Add(e.sgst)
	}
	tax := cg.Add(sg)
	return Totals{
		Subtotal:   money(sub),
		CGST:       money(cg),
		SGST:       money(sg),
		TaxTotal:   money(tax),
		GrandTotal: money(sub.Add(tax)),
	}
}

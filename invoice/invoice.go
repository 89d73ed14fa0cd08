// Package invoice computes invoice numbers, line totals, and GST tax splits
// using fixed-precision decimal arithmetic so rounding always matches what
// a printed invoice shows, never IEEE-754 float drift.
package invoice

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"chatinvoice/storage"
)

func init() {
	decimal.DivisionPrecision = 8
}

// Engine computes invoices from an order's items and the organization's
// business profile. It implements storage.InvoiceComputer.
type Engine struct{}

// round2 rounds d to 2 decimal places, half-up, the convention printed
// invoices use for currency.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Compute builds the Invoice embedded value for order, given the next
// sequence number and the resolved customer name. isInterstate decides
// CGST+SGST (false) vs IGST (true); callers are expected to resolve it from
// an explicit customer/business state comparison, never from free-text
// address sniffing. It never performs I/O.
func (e *Engine) Compute(profile *storage.BusinessProfile, sequence int, order *storage.Order, customerName string, isInterstate bool) (*storage.Invoice, error) {
	if profile == nil {
		return nil, fmt.Errorf("invoice: nil business profile")
	}

	lineItems := make([]storage.InvoiceLineItem, 0, len(order.Items))
	subtotal := decimal.Zero
	for _, item := range order.Items {
		qty := decimal.NewFromFloat(item.Quantity)
		var price decimal.Decimal
		if item.PricePerUnit != nil {
			price = decimal.NewFromFloat(*item.PricePerUnit)
		}
		amount := round2(qty.Mul(price))
		subtotal = subtotal.Add(amount)
		lineItems = append(lineItems, storage.InvoiceLineItem{
			ProductName:  item.ProductName,
			Quantity:     item.Quantity,
			PricePerUnit: toFloat(price),
			Amount:       toFloat(amount),
		})
	}
	subtotal = round2(subtotal)

	taxRate := decimal.NewFromFloat(profile.TaxRatePercent).Div(decimal.NewFromInt(100))

	invoice := &storage.Invoice{
		Number:       formatNumber(sequence),
		Date:         time.Now().UTC().Format("02/01/2006"),
		CustomerName: customerName,
		Items:        lineItems,
		Subtotal:     toFloat(subtotal),
		BusinessName: profile.BusinessName,
		GSTNumber:    profile.GSTNumber,
	}

	if isInterstate {
		igst := round2(subtotal.Mul(taxRate))
		igstFloat := toFloat(igst)
		invoice.IGST = &igstFloat
		invoice.Total = toFloat(subtotal.Add(igst))
		return invoice, nil
	}

	half := taxRate.Div(decimal.NewFromInt(2))
	cgst := round2(subtotal.Mul(half))
	sgst := round2(subtotal.Mul(half))
	invoice.CGST = toFloat(cgst)
	invoice.SGST = toFloat(sgst)
	invoice.Total = toFloat(subtotal.Add(cgst).Add(sgst))
	return invoice, nil
}

// formatNumber renders the sequence as INV-<year>-<NNN>, zero-padded to 3
// digits (sequences beyond 999 simply widen, never truncate).
func formatNumber(sequence int) string {
	return fmt.Sprintf("INV-%d-%03d", time.Now().UTC().Year(), sequence)
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// Package pricing computes order quotes. Everything here is pure: callers
// can recalculate speculatively for a live preview without touching state.
package pricing

import (
	"math"

	"ms-backoffice/internal/models"
)

// DownPaymentRate is the fraction of the final price requested up front
// when a negotiation is finalized.
const DownPaymentRate = 0.30

// Quote is the full price breakdown for one input set.
type Quote struct {
	TotalPrice      float64 `json:"total_price"`
	Discount        float64 `json:"discount"`
	FinalPrice      float64 `json:"final_price"`
	DPAmount        float64 `json:"dp_amount"`
	RemainingAmount float64 `json:"remaining_amount"`
}

// Input collects everything a quote depends on. PackagePrice is zero when no
// package is selected.
type Input struct {
	PackagePrice    float64
	CustomItems     []models.CustomItem
	AdditionalCosts float64
	Discount        float64
}

// Calculate turns an input set into a quote.
//
// total = package + sum(item price x qty) + additional costs
// final = max(0, total - discount), so a discount larger than the total
// clamps everything downstream to zero instead of going negative.
// Items with an empty name or a non-positive price or quantity are skipped,
// not rejected: sales staff routinely leave half-filled rows in the form.
func Calculate(in Input) Quote {
	total := in.PackagePrice + in.AdditionalCosts
	for _, item := range in.CustomItems {
		if !validItem(item) {
			continue
		}
		total += item.UnitPrice * float64(item.Quantity)
	}

	final := total - in.Discount
	if final < 0 {
		final = 0
	}

	dp := round2(final * DownPaymentRate)
	finalRounded := round2(final)

	return Quote{
		TotalPrice:      round2(total),
		Discount:        round2(in.Discount),
		FinalPrice:      finalRounded,
		DPAmount:        dp,
		RemainingAmount: round2(finalRounded - dp),
	}
}

// ValidItems filters out the rows Calculate would skip, so what gets
// persisted at finalization matches what was priced.
func ValidItems(items []models.CustomItem) []models.CustomItem {
	kept := make([]models.CustomItem, 0, len(items))
	for _, item := range items {
		if validItem(item) {
			kept = append(kept, item)
		}
	}
	return kept
}

func validItem(item models.CustomItem) bool {
	return item.Name != "" && item.UnitPrice > 0 && item.Quantity > 0
}

// round2 rounds half-up to two decimal places.
func round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

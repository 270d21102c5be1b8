package pricing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ms-backoffice/internal/models"
	"ms-backoffice/internal/order/pricing"
)

func TestCalculate_PackageWithItemsAndDiscount(t *testing.T) {
	quote := pricing.Calculate(pricing.Input{
		PackagePrice: 80_000_000,
		CustomItems: []models.CustomItem{
			{Name: "Extra decoration", UnitPrice: 5_000_000, Quantity: 2},
			{Name: "Photo booth", UnitPrice: 5_000_000, Quantity: 1},
		},
		AdditionalCosts: 5_000_000,
		Discount:        10_000_000,
	})

	assert.Equal(t, 100_000_000.0, quote.TotalPrice)
	assert.Equal(t, 10_000_000.0, quote.Discount)
	assert.Equal(t, 90_000_000.0, quote.FinalPrice)
	assert.Equal(t, 27_000_000.0, quote.DPAmount)
	assert.Equal(t, 63_000_000.0, quote.RemainingAmount)
}

func TestCalculate_DiscountLargerThanTotalClampsToZero(t *testing.T) {
	quote := pricing.Calculate(pricing.Input{
		PackagePrice: 1_000_000,
		Discount:     5_000_000,
	})

	assert.Equal(t, 1_000_000.0, quote.TotalPrice)
	assert.Equal(t, 0.0, quote.FinalPrice)
	assert.Equal(t, 0.0, quote.DPAmount)
	assert.Equal(t, 0.0, quote.RemainingAmount)
}

func TestCalculate_SkipsInvalidItems(t *testing.T) {
	quote := pricing.Calculate(pricing.Input{
		CustomItems: []models.CustomItem{
			{Name: "", UnitPrice: 100, Quantity: 1},
			{Name: "Zero price", UnitPrice: 0, Quantity: 3},
			{Name: "Negative qty", UnitPrice: 100, Quantity: -1},
			{Name: "Valid", UnitPrice: 250, Quantity: 2},
		},
	})

	assert.Equal(t, 500.0, quote.TotalPrice)
}

func TestCalculate_RoundsHalfUpToTwoDecimals(t *testing.T) {
	quote := pricing.Calculate(pricing.Input{
		// 3 x 33.335 = 100.005, rounds half-up to 100.01
		CustomItems: []models.CustomItem{
			{Name: "Odd item", UnitPrice: 33.335, Quantity: 3},
		},
	})

	assert.Equal(t, 100.01, quote.TotalPrice)
	assert.Equal(t, 100.01, quote.FinalPrice)
	// 30% of 100.005 = 30.0015, rounds to 30.0
	assert.Equal(t, 30.0, quote.DPAmount)
	assert.Equal(t, 70.01, quote.RemainingAmount)
}

func TestCalculate_EmptyInputIsZeroQuote(t *testing.T) {
	quote := pricing.Calculate(pricing.Input{})

	assert.Equal(t, pricing.Quote{}, quote)
}

func TestValidItems_FiltersWhatCalculateSkips(t *testing.T) {
	items := []models.CustomItem{
		{Name: "", UnitPrice: 100, Quantity: 1},
		{Name: "Kept", UnitPrice: 100, Quantity: 1},
		{Name: "Zero qty", UnitPrice: 100, Quantity: 0},
	}

	kept := pricing.ValidItems(items)

	assert.Len(t, kept, 1)
	assert.Equal(t, "Kept", kept[0].Name)
}

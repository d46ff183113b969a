package metrics

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// daysInPeriod is the fixed period length used for days-on-hand.
const daysInPeriod = 30

// Calculator derives the monthly KPI set from raw period data. It performs
// no I/O and never fails: absent or malformed inputs degrade to a zeroed,
// well-formed result with the data-quality report flagging what was missing.
type Calculator struct {
	clock func() time.Time
}

// NewCalculator builds a calculator using UTC wall-clock time.
func NewCalculator() *Calculator {
	return &Calculator{clock: func() time.Time { return time.Now().UTC() }}
}

// Calculate computes every KPI for one business month. Opening and closing
// stock are currency valuations; nil marks the value as absent and negative
// inputs are clamped to zero before any formula consumes them. Every division
// is guarded: a zero denominator yields 0, never NaN or Inf.
func (c *Calculator) Calculate(transactions []Transaction, expenses []Expense, openingStock, closingStock *float64) MetricSet {
	opening := clampStock(openingStock)
	closing := clampStock(closingStock)

	var (
		grossRevenue    float64
		returns         float64
		purchases       float64
		purchaseReturns float64
		saleQuantity    float64
		saleCount       int
		validCount      int
	)
	uniqueProducts := make(map[uuid.UUID]struct{})

	for _, tx := range transactions {
		if !tx.Valid() {
			continue
		}
		validCount++
		switch tx.Type {
		case TransactionSale:
			qty := math.Abs(float64(tx.Quantity))
			grossRevenue += qty * tx.Product.Price
			saleQuantity += qty
			saleCount++
			uniqueProducts[tx.Product.ID] = struct{}{}
		case TransactionReturnSale:
			returns += math.Abs(float64(tx.Quantity)) * tx.Product.Price
		case TransactionPurchase:
			purchases += float64(tx.Quantity) * tx.Product.CostPrice
		case TransactionReturnPurchase:
			purchaseReturns += math.Abs(float64(tx.Quantity)) * tx.Product.CostPrice
		}
	}

	var operatingExpenses float64
	for _, e := range expenses {
		operatingExpenses += e.Amount
	}

	netRevenue := grossRevenue - returns
	cogs := CostOfGoodsSold(opening, purchases, closing)
	grossProfit := netRevenue - cogs
	operatingIncome := grossProfit - operatingExpenses
	// No tax or interest modeling: net income mirrors operating income.
	netIncome := operatingIncome
	averageInventory := (opening + closing) / 2

	set := MetricSet{
		GrossRevenue:       round2(grossRevenue),
		Returns:            round2(returns),
		NetRevenue:         round2(netRevenue),
		ReturnRate:         round2(ratio(returns, grossRevenue) * 100),
		Purchases:          round2(purchases),
		PurchaseReturns:    round2(purchaseReturns),
		PurchaseReturnRate: round2(ratio(purchaseReturns, purchases) * 100),
		CostOfGoodsSold:    round2(cogs),
		GrossProfit:        round2(grossProfit),
		OperatingExpenses:  round2(operatingExpenses),
		OperatingIncome:    round2(operatingIncome),
		NetIncome:          round2(netIncome),
		GrossMargin:        round2(ratio(grossProfit, netRevenue) * 100),
		NetMargin:          round2(ratio(netIncome, netRevenue) * 100),
		OperatingMargin:    round2(ratio(operatingIncome, netRevenue) * 100),
		OpeningStock:       round2(opening),
		ClosingStock:       round2(closing),
		AverageInventory:   round2(averageInventory),
		InventoryTurnover:  round2(ratio(cogs, averageInventory)),
		DaysOnHand:         round2(ratio(averageInventory, cogs) * daysInPeriod),
		InventoryGrowth:    round2(ratio(closing-opening, opening) * 100),
		TransactionCount:   saleCount,
		AverageOrderValue:  round2(ratio(netRevenue, float64(saleCount))),
		AverageQuantity:    round2(ratio(saleQuantity, float64(saleCount))),
		UniqueProductsSold: len(uniqueProducts),
		ExpenseRatio:       round2(ratio(operatingExpenses, grossRevenue) * 100),
		// Simplified ratios; same guarded-division policy.
		AssetTurnover:  round2(ratio(netRevenue, averageInventory)),
		WorkingCapital: round2(closing - operatingExpenses),
		DataQuality: DataQuality{
			TotalTransactions: len(transactions),
			ValidTransactions: validCount,
			HasInventoryData:  openingStock != nil && closingStock != nil,
			HasExpenseData:    len(expenses) > 0,
			CalculationDate:   c.now(),
		},
	}
	return set
}

// CostOfGoodsSold values the inventory consumed in the period. The result is
// clamped at zero: valuation drift must not produce negative COGS.
func CostOfGoodsSold(openingStock, purchases, closingStock float64) float64 {
	cogs := openingStock + purchases - closingStock
	if cogs < 0 {
		return 0
	}
	return cogs
}

func (c *Calculator) now() time.Time {
	if c != nil && c.clock != nil {
		return c.clock()
	}
	return time.Now().UTC()
}

func clampStock(v *float64) float64 {
	if v == nil || *v < 0 || math.IsNaN(*v) {
		return 0
	}
	return *v
}

// ratio divides with the universal zero-denominator guard.
func ratio(numerator, denominator float64) float64 {
	if denominator <= 0 {
		return 0
	}
	return numerator / denominator
}

func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*100) / 100
}

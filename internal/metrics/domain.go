package metrics

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TransactionType classifies an inventory movement.
type TransactionType string

const (
	TransactionSale           TransactionType = "SALE"
	TransactionPurchase       TransactionType = "PURCHASE"
	TransactionReturnSale     TransactionType = "RETURN_SALE"
	TransactionReturnPurchase TransactionType = "RETURN_PURCHASE"
)

// Product carries the pricing attributes a transaction resolves against.
type Product struct {
	ID        uuid.UUID `json:"id"`
	Price     float64   `json:"price"`
	CostPrice float64   `json:"cost_price"`
}

// Transaction is a single inventory movement inside the period. Quantity is
// signed by convention: sales carry negative quantities, returns positive.
// A transaction whose product reference did not resolve has a nil Product
// and is excluded from every sum-based metric.
type Transaction struct {
	ID       uuid.UUID       `json:"id"`
	Type     TransactionType `json:"type"`
	Quantity int64           `json:"quantity"`
	Product  *Product        `json:"product,omitempty"`
}

// Valid reports whether the transaction resolved its product reference.
func (t Transaction) Valid() bool {
	return t.Product != nil
}

// Expense is an operating expense booked inside the period. Amount arrives
// from storage as a decimal string and is parsed at the repository boundary.
type Expense struct {
	ID        uuid.UUID `json:"id"`
	Amount    float64   `json:"amount"`
	Reference string    `json:"reference"`
}

// StockItem is one warehouse line used to value closing stock.
type StockItem struct {
	Quantity  float64 `json:"quantity"`
	CostPrice float64 `json:"cost_price"`
}

// Business is the directory entry the orchestrator validates periods against.
type Business struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// DataQuality is the per-run self-assessment of input usability. It rides on
// the MetricSet but is never persisted as a metric fact.
type DataQuality struct {
	TotalTransactions int       `json:"total_transactions"`
	ValidTransactions int       `json:"valid_transactions"`
	HasInventoryData  bool      `json:"has_inventory_data"`
	HasExpenseData    bool      `json:"has_expense_data"`
	CalculationDate   time.Time `json:"calculation_date"`
}

// MetricSet is the flat KPI set computed for one business and month. A fresh
// set is built on every run; recomputing a period fully replaces the previous
// values through the upsert path.
type MetricSet struct {
	GrossRevenue       float64 `json:"gross_revenue"`
	Returns            float64 `json:"returns"`
	NetRevenue         float64 `json:"net_revenue"`
	ReturnRate         float64 `json:"return_rate"`
	Purchases          float64 `json:"purchases"`
	PurchaseReturns    float64 `json:"purchase_returns"`
	PurchaseReturnRate float64 `json:"purchase_return_rate"`
	CostOfGoodsSold    float64 `json:"cost_of_goods_sold"`
	GrossProfit        float64 `json:"gross_profit"`
	OperatingExpenses  float64 `json:"operating_expenses"`
	OperatingIncome    float64 `json:"operating_income"`
	NetIncome          float64 `json:"net_income"`
	GrossMargin        float64 `json:"gross_margin"`
	NetMargin          float64 `json:"net_margin"`
	OperatingMargin    float64 `json:"operating_margin"`
	OpeningStock       float64 `json:"opening_stock"`
	ClosingStock       float64 `json:"closing_stock"`
	AverageInventory   float64 `json:"average_inventory"`
	InventoryTurnover  float64 `json:"inventory_turnover"`
	DaysOnHand         float64 `json:"days_on_hand"`
	InventoryGrowth    float64 `json:"inventory_growth"`
	TransactionCount   int     `json:"transaction_count"`
	AverageOrderValue  float64 `json:"average_order_value"`
	AverageQuantity    float64 `json:"average_quantity_per_transaction"`
	UniqueProductsSold int     `json:"unique_products_sold"`
	ExpenseRatio       float64 `json:"expense_ratio"`
	AssetTurnover      float64 `json:"asset_turnover"`
	WorkingCapital     float64 `json:"working_capital"`

	DataQuality DataQuality `json:"data_quality"`
}

// MetricField names one persistable metric and knows how to pull its value
// out of a computed set. The catalog below replaces dynamic key iteration:
// the set of synced metrics is statically enumerable and ordered.
type MetricField struct {
	Name    string
	Extract func(*MetricSet) any
}

// Catalog lists every metric fact the syncer persists, in write order.
// DataQuality is deliberately absent: it is a structural field, not a metric.
var Catalog = []MetricField{
	{"grossRevenue", func(s *MetricSet) any { return s.GrossRevenue }},
	{"returns", func(s *MetricSet) any { return s.Returns }},
	{"netRevenue", func(s *MetricSet) any { return s.NetRevenue }},
	{"returnRate", func(s *MetricSet) any { return s.ReturnRate }},
	{"purchases", func(s *MetricSet) any { return s.Purchases }},
	{"purchaseReturns", func(s *MetricSet) any { return s.PurchaseReturns }},
	{"purchaseReturnRate", func(s *MetricSet) any { return s.PurchaseReturnRate }},
	{"costOfGoodsSold", func(s *MetricSet) any { return s.CostOfGoodsSold }},
	{"grossProfit", func(s *MetricSet) any { return s.GrossProfit }},
	{"operatingExpenses", func(s *MetricSet) any { return s.OperatingExpenses }},
	{"operatingIncome", func(s *MetricSet) any { return s.OperatingIncome }},
	{"netIncome", func(s *MetricSet) any { return s.NetIncome }},
	{"grossMargin", func(s *MetricSet) any { return s.GrossMargin }},
	{"netMargin", func(s *MetricSet) any { return s.NetMargin }},
	{"operatingMargin", func(s *MetricSet) any { return s.OperatingMargin }},
	{"openingStock", func(s *MetricSet) any { return s.OpeningStock }},
	{"closingStock", func(s *MetricSet) any { return s.ClosingStock }},
	{"averageInventory", func(s *MetricSet) any { return s.AverageInventory }},
	{"inventoryTurnover", func(s *MetricSet) any { return s.InventoryTurnover }},
	{"daysOnHand", func(s *MetricSet) any { return s.DaysOnHand }},
	{"inventoryGrowth", func(s *MetricSet) any { return s.InventoryGrowth }},
	{"transactionCount", func(s *MetricSet) any { return s.TransactionCount }},
	{"averageOrderValue", func(s *MetricSet) any { return s.AverageOrderValue }},
	{"averageQuantityPerTransaction", func(s *MetricSet) any { return s.AverageQuantity }},
	{"uniqueProductsSold", func(s *MetricSet) any { return s.UniqueProductsSold }},
	{"expenseRatio", func(s *MetricSet) any { return s.ExpenseRatio }},
	{"assetTurnover", func(s *MetricSet) any { return s.AssetTurnover }},
	{"workingCapital", func(s *MetricSet) any { return s.WorkingCapital }},
}

// MetricNameClosingStock is read back as the next period's opening stock.
const MetricNameClosingStock = "closingStock"

// Metric is one persisted metric fact. Exactly one row exists per
// (business, name, period type, period); writes are upserts.
type Metric struct {
	BusinessID uuid.UUID `json:"business_id"`
	Name       string    `json:"name"`
	PeriodType string    `json:"period_type"`
	Period     time.Time `json:"period"`
	Value      string    `json:"value"`
	CreatedAt  time.Time `json:"created_at"`
}

// MetricStore persists and reads keyed metric facts.
type MetricStore interface {
	Upsert(ctx context.Context, metric Metric) error
	GetByName(ctx context.Context, businessID uuid.UUID, name, periodType string, period time.Time) (Metric, error)
	GetMonthly(ctx context.Context, businessID uuid.UUID, period time.Time) ([]Metric, error)
}

// TransactionSource reads the transactions booked inside an interval.
type TransactionSource interface {
	GetByInterval(ctx context.Context, businessID uuid.UUID, start, end time.Time) ([]Transaction, error)
}

// ExpenseSource reads the expenses booked inside an interval.
type ExpenseSource interface {
	GetByInterval(ctx context.Context, businessID uuid.UUID, start, end time.Time) ([]Expense, error)
}

// StockSource reads the current warehouse items for closing-stock valuation.
type StockSource interface {
	GetCurrentItems(ctx context.Context, businessID uuid.UUID) ([]StockItem, error)
}

// BusinessSource resolves business directory entries.
type BusinessSource interface {
	GetBusiness(ctx context.Context, id uuid.UUID) (Business, error)
	ListActive(ctx context.Context) ([]Business, error)
}

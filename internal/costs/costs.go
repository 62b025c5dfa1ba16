// Package costs models TWSE/TPEX transaction costs: brokerage commission
// with the regulatory floor, securities transaction tax at the regular or
// day-trade rate, and estimated slippage. Amounts are NTD and rounded to
// whole dollars the way brokers bill them.
package costs

import (
	"github.com/shopspring/decimal"

	"daypick/internal/config"
)

var (
	// CommissionRate is the statutory brokerage rate (0.1425%).
	CommissionRate = decimal.RequireFromString("0.001425")
	// TaxRate is the securities transaction tax on regular sells (0.3%).
	TaxRate = decimal.RequireFromString("0.003")
	// DayTradeTaxRate is the halved tax on day-trade sells (0.15%).
	DayTradeTaxRate = decimal.RequireFromString("0.0015")
	// MinCommission is the per-side commission floor in NTD.
	MinCommission = decimal.NewFromInt(20)
)

// Model prices one broker arrangement. The zero value is unusable; build it
// with NewModel.
type Model struct {
	discount decimal.Decimal
	slippage decimal.Decimal
	dayTrade bool
}

// NewModel builds a cost model from configuration. SlippageBps <= 0 disables
// the slippage estimate.
func NewModel(cfg config.CostsConfig) *Model {
	return &Model{
		discount: decimal.NewFromFloat(cfg.CommissionDiscount),
		slippage: decimal.NewFromFloat(cfg.SlippageBps).Div(decimal.NewFromInt(10000)),
		dayTrade: cfg.DayTrade,
	}
}

func tradeValue(price float64, shares int64) decimal.Decimal {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(shares))
}

// Commission returns one side's commission: value * 0.1425% * discount,
// never below the NT$20 floor, rounded to whole NTD.
func (m *Model) Commission(price float64, shares int64) decimal.Decimal {
	c := tradeValue(price, shares).Mul(CommissionRate).Mul(m.discount)
	return decimal.Max(c, MinCommission).Round(0)
}

// Tax returns the sell-side securities transaction tax.
func (m *Model) Tax(price float64, shares int64) decimal.Decimal {
	rate := TaxRate
	if m.dayTrade {
		rate = DayTradeTaxRate
	}
	return tradeValue(price, shares).Mul(rate).Round(0)
}

// Slippage returns one side's estimated slippage cost.
func (m *Model) Slippage(price float64, shares int64) decimal.Decimal {
	if m.slippage.Sign() <= 0 {
		return decimal.Zero
	}
	return tradeValue(price, shares).Mul(m.slippage).Round(0)
}

// Breakdown itemizes a full round trip.
type Breakdown struct {
	BuyCommission  decimal.Decimal `json:"buy_commission"`
	SellCommission decimal.Decimal `json:"sell_commission"`
	Tax            decimal.Decimal `json:"tax"`
	BuySlippage    decimal.Decimal `json:"buy_slippage"`
	SellSlippage   decimal.Decimal `json:"sell_slippage"`
}

// Total sums every component.
func (b Breakdown) Total() decimal.Decimal {
	return b.BuyCommission.Add(b.SellCommission).Add(b.Tax).
		Add(b.BuySlippage).Add(b.SellSlippage)
}

// RoundTrip prices a buy at entry and a sell at exit for the given share
// count.
func (m *Model) RoundTrip(entry, exit float64, shares int64) Breakdown {
	return Breakdown{
		BuyCommission:  m.Commission(entry, shares),
		SellCommission: m.Commission(exit, shares),
		Tax:            m.Tax(exit, shares),
		BuySlippage:    m.Slippage(entry, shares),
		SellSlippage:   m.Slippage(exit, shares),
	}
}

// PnL is a round trip's result net of costs. Return percentages are against
// the entry value.
type PnL struct {
	Gross          decimal.Decimal `json:"gross"`
	Net            decimal.Decimal `json:"net"`
	Costs          Breakdown       `json:"costs"`
	GrossReturnPct decimal.Decimal `json:"gross_return_pct"`
	NetReturnPct   decimal.Decimal `json:"net_return_pct"`
}

// NetPnL nets a round trip against the full cost stack.
func (m *Model) NetPnL(entry, exit float64, shares int64) PnL {
	gross := tradeValue(exit, shares).Sub(tradeValue(entry, shares))
	costs := m.RoundTrip(entry, exit, shares)
	p := PnL{
		Gross: gross,
		Net:   gross.Sub(costs.Total()),
		Costs: costs,
	}
	if invested := tradeValue(entry, shares); invested.Sign() > 0 {
		hundred := decimal.NewFromInt(100)
		p.GrossReturnPct = p.Gross.Div(invested).Mul(hundred).Round(4)
		p.NetReturnPct = p.Net.Div(invested).Mul(hundred).Round(4)
	}
	return p
}

// BreakevenPoint is the sell price at which a round trip nets zero.
type BreakevenPoint struct {
	Price       decimal.Decimal `json:"price"`
	Increase    decimal.Decimal `json:"increase"`
	IncreasePct decimal.Decimal `json:"increase_pct"`
}

// Breakeven solves for the exit price covering the round-trip costs by fixed
// point iteration; commissions re-price as the candidate exit moves, so a
// couple of passes settle it.
func (m *Model) Breakeven(entry float64, shares int64) BreakevenPoint {
	entryD := decimal.NewFromFloat(entry)
	sharesD := decimal.NewFromInt(shares)
	if shares <= 0 || entryD.Sign() <= 0 {
		return BreakevenPoint{Price: entryD}
	}

	tol := decimal.RequireFromString("0.005")
	be := entryD
	for i := 0; i < 10; i++ {
		total := m.RoundTrip(entry, be.InexactFloat64(), shares).Total()
		next := entryD.Add(total.Div(sharesD))
		done := next.Sub(be).Abs().LessThan(tol)
		be = next
		if done {
			break
		}
	}

	inc := be.Sub(entryD)
	return BreakevenPoint{
		Price:       be.Round(2),
		Increase:    inc.Round(2),
		IncreasePct: inc.Div(entryD).Mul(decimal.NewFromInt(100)).Round(3),
	}
}

package analyze

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/quantforge/backtestgo/types"
)

// WriteEquityCurve writes curve to w in the spec §6 column order:
// timestamp, cash, reserved_cash, margin_locked, position_value, equity.
func WriteEquityCurve(w io.Writer, curve []types.EquityPoint) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"timestamp", "cash", "reserved_cash", "margin_locked", "position_value", "equity"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, p := range curve {
		row := []string{
			p.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00"),
			formatFloat(p.Cash),
			formatFloat(p.ReservedCash),
			formatFloat(p.MarginLocked),
			formatFloat(p.PositionValue),
			formatFloat(p.Equity),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTradeLog writes fills to w in the spec §6 column order: timestamp,
// symbol, direction, quantity, price, commission, slippage, order_id.
func WriteTradeLog(w io.Writer, fills []types.FillEvent) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"timestamp", "symbol", "direction", "quantity", "price", "commission", "slippage", "order_id"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, f := range fills {
		row := []string{
			f.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00"),
			f.Symbol,
			string(f.Side),
			formatFloat(f.Quantity),
			formatFloat(f.FillPrice),
			formatFloat(f.Commission),
			formatFloat(f.Slippage),
			f.OrderID,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

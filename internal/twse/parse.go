package twse

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"daypick/internal/market"
)

// MI_INDEX column headers. TWSE names columns, TPEX rows are positional.
const (
	colStockID  = "證券代號"
	colName     = "證券名稱"
	colOpen     = "開盤價"
	colHigh     = "最高價"
	colLow      = "最低價"
	colClose    = "收盤價"
	colVolume   = "成交股數"
	colTurnover = "成交金額"
	colSign     = "漲跌(+/-)"
	colChange   = "漲跌價差"
)

const twseStockTableTitle = "每日收盤行情"

// parseTWSE extracts the all-stock close table from an MI_INDEX payload.
// TWSE has shipped three shapes of this response: top-level fields/data,
// a tables array, and legacy numbered keys (fields9/data9). A stat other
// than OK means nothing was published for the date.
func parseTWSE(body []byte, day time.Time) ([]market.DailyBar, error) {
	root := gjson.ParseBytes(body)
	if stat := root.Get("stat"); stat.Exists() && stat.String() != "OK" {
		return nil, nil
	}

	fields, data := twseTable(root)
	if !fields.Exists() || !data.Exists() {
		return nil, nil
	}

	cols := fields.Array()
	idx := make(map[string]int, len(cols))
	for i, f := range cols {
		idx[strings.TrimSpace(f.String())] = i
	}
	for _, required := range []string{colStockID, colClose} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("twse: close table missing column %q", required)
		}
	}

	var bars []market.DailyBar
	for _, row := range data.Array() {
		cells := row.Array()
		cell := func(col string) string {
			i, ok := idx[col]
			if !ok || i >= len(cells) {
				return ""
			}
			return strings.TrimSpace(cells[i].String())
		}

		id := cell(colStockID)
		if !commonStockID(id) {
			continue
		}
		closePx := numericCell(cell(colClose))
		change := numericCell(cell(colChange))
		// The change column carries the magnitude; the sign column carries
		// the direction, wrapped in markup on newer payloads.
		if strings.Contains(cell(colSign), "-") {
			change = -change
		}
		bars = append(bars, market.DailyBar{
			TradeDate: day,
			StockID:   id,
			StockName: cell(colName),
			Market:    "TWSE",
			Open:      numericCell(cell(colOpen)),
			High:      numericCell(cell(colHigh)),
			Low:       numericCell(cell(colLow)),
			Close:     closePx,
			PctChange: pctChange(closePx, change),
			Volume:    numericCell(cell(colVolume)),
			Turnover:  numericCell(cell(colTurnover)),
		})
	}
	return bars, nil
}

// twseTable finds the per-stock close table in any of the payload shapes.
func twseTable(root gjson.Result) (fields, data gjson.Result) {
	if f := root.Get("fields"); f.IsArray() && root.Get("data").IsArray() && hasColumns(f, colStockID, colClose) {
		return f, root.Get("data")
	}
	for _, t := range root.Get("tables").Array() {
		if !strings.Contains(t.Get("title").String(), twseStockTableTitle) {
			continue
		}
		if f := t.Get("fields"); f.IsArray() && t.Get("data").IsArray() {
			return f, t.Get("data")
		}
	}
	for _, t := range root.Get("tables").Array() {
		f := t.Get("fields")
		if f.IsArray() && t.Get("data").IsArray() && hasColumns(f, colStockID, colClose, colVolume) {
			return f, t.Get("data")
		}
	}
	if f := root.Get("fields9"); f.IsArray() && root.Get("data9").IsArray() {
		return f, root.Get("data9")
	}
	return gjson.Result{}, gjson.Result{}
}

func hasColumns(fields gjson.Result, cols ...string) bool {
	have := make(map[string]bool)
	for _, f := range fields.Array() {
		have[strings.TrimSpace(f.String())] = true
	}
	for _, c := range cols {
		if !have[c] {
			return false
		}
	}
	return true
}

// parseTPEX extracts the positional OTC close table. Columns run 代號,
// 名稱, 收盤, 漲跌, 開盤, 最高, 最低, 均價, 成交股數, 成交金額; the
// change column is already signed. Rows live under aaData on older
// payloads and data on newer ones.
func parseTPEX(body []byte, day time.Time) ([]market.DailyBar, error) {
	root := gjson.ParseBytes(body)
	data := root.Get("aaData")
	if !data.IsArray() {
		data = root.Get("data")
	}
	if !data.IsArray() {
		return nil, nil
	}

	var bars []market.DailyBar
	for _, row := range data.Array() {
		cells := row.Array()
		if len(cells) < 10 {
			continue
		}
		id := strings.TrimSpace(cells[0].String())
		if !commonStockID(id) {
			continue
		}
		closePx := numericCell(cells[2].String())
		change := numericCell(cells[3].String())
		bars = append(bars, market.DailyBar{
			TradeDate: day,
			StockID:   id,
			StockName: strings.TrimSpace(cells[1].String()),
			Market:    "TPEX",
			Open:      numericCell(cells[4].String()),
			High:      numericCell(cells[5].String()),
			Low:       numericCell(cells[6].String()),
			Close:     closePx,
			PctChange: pctChange(closePx, change),
			Volume:    numericCell(cells[8].String()),
			Turnover:  numericCell(cells[9].String()),
		})
	}
	return bars, nil
}

// numericCell cleans one exchange cell: comma separators stripped, the
// "--" and "-" placeholders and blanks undefined.
func numericCell(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" || s == "--" || s == "-" {
		return market.NA()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return market.NA()
	}
	return v
}

// pctChange derives the day's percent move from close and signed change,
// undefined when either input is undefined or the previous close was 0.
func pctChange(closePx, change float64) float64 {
	if !market.Defined(closePx) || !market.Defined(change) {
		return market.NA()
	}
	prev := closePx - change
	if prev == 0 {
		return market.NA()
	}
	return change / prev * 100
}

// commonStockID keeps plain 4-digit numeric ids. Warrants, preferred
// shares and most ETFs carry longer or suffixed codes.
func commonStockID(id string) bool {
	if len(id) != 4 {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

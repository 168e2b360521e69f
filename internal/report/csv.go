package report

import (
	"io"

	"github.com/gocarina/gocsv"

	"github.com/alanyoungcy/optionarb/internal/domain"
)

// Row is the flat CSV shape of one opportunity. Empty ROI means undefined.
type Row struct {
	Sequence        int    `csv:"sequence"`
	Ticker          string `csv:"ticker"`
	Kind            string `csv:"kind"`
	Expiry          string `csv:"expiry"`
	Strikes         string `csv:"strikes"`
	Cost            string `csv:"cost"`
	Profit          string `csv:"profit"`
	NetProfit       string `csv:"net_profit"`
	ROI             string `csv:"roi"`
	TheoreticalDiff string `csv:"theoretical_diff"`
	ActualDiff      string `csv:"actual_diff"`
	TheoreticalCall string `csv:"theoretical_call"`
}

// Rows flattens rep in sequence order.
func Rows(rep domain.Report) []*Row {
	rows := make([]*Row, 0, len(rep.Opportunities))
	for _, o := range rep.Opportunities {
		r := &Row{
			Sequence:        o.Sequence,
			Ticker:          rep.Ticker,
			Kind:            string(o.Kind),
			Expiry:          o.Expiry,
			Strikes:         strikes(o.Strikes),
			Cost:            o.Cost.String(),
			Profit:          o.Profit.String(),
			NetProfit:       o.NetProfit.String(),
			TheoreticalDiff: o.TheoreticalDiff.String(),
			ActualDiff:      o.ActualDiff.String(),
		}
		if o.ROI.Valid {
			r.ROI = o.ROI.Decimal.String()
		}
		if o.TheoreticalCall.Valid {
			r.TheoreticalCall = o.TheoreticalCall.Decimal.String()
		}
		rows = append(rows, r)
	}
	return rows
}

// WriteCSV writes rep as CSV with a header row.
func WriteCSV(w io.Writer, rep domain.Report) error {
	rows := Rows(rep)
	return gocsv.Marshal(&rows, w)
}

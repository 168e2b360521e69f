// Package report renders analysis reports for people and spreadsheets.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionarb/internal/domain"
)

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func percent(d decimal.NullDecimal) string {
	if !d.Valid {
		return "n/a"
	}
	return d.Decimal.StringFixed(2) + "%"
}

func strikes(ss []decimal.Decimal) string {
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = s.StringFixed(2)
	}
	return strings.Join(parts, "/")
}

// Heading is the banner printed above a ticker's results.
func Heading(rep domain.Report) string {
	return fmt.Sprintf("ARBITRAGE ANALYSIS FOR %s (Current Price: %s)", rep.Ticker, money(rep.UnderlyingPrice))
}

// Summary is the closing line with the total count.
func Summary(rep domain.Report) string {
	s := fmt.Sprintf("Found %d potential opportunities", rep.Total)
	if rep.Total == 0 {
		return s
	}
	counts := rep.CountByKind()
	var parts []string
	for _, k := range []domain.OpportunityKind{
		domain.OpportunityParityViolation,
		domain.OpportunityBoxSpread,
		domain.OpportunityButterflySpread,
	} {
		if n := counts[k]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, k.Label()))
		}
	}
	return s + " (" + strings.Join(parts, ", ") + ")"
}

// WriteTable renders rep as a terminal table, one row per opportunity in
// sequence order, between the heading and the summary.
func WriteTable(w io.Writer, rep domain.Report) error {
	if _, err := fmt.Fprintln(w, Heading(rep)); err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Type", "Expiry", "Strikes", "Cost", "Profit", "Net Profit", "ROI"})
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, o := range rep.Opportunities {
		table.Append([]string{
			fmt.Sprintf("%d", o.Sequence),
			o.Kind.Label(),
			o.Expiry,
			strikes(o.Strikes),
			money(o.Cost),
			money(o.Profit),
			money(o.NetProfit),
			percent(o.ROI),
		})
	}
	table.Render()

	_, err := fmt.Fprintln(w, Summary(rep))
	return err
}

// WriteText renders every opportunity as a block of labelled lines, grouped
// under its expiry.
func WriteText(w io.Writer, rep domain.Report) error {
	var b strings.Builder
	rule := strings.Repeat("-", 80)

	fmt.Fprintln(&b, Heading(rep))
	current := ""
	for _, o := range rep.Opportunities {
		if o.Expiry != current {
			current = o.Expiry
			fmt.Fprintf(&b, "%s\nEXPIRY DATE: %s\n%s\n", rule, current, rule)
		}
		fmt.Fprintf(&b, "\nOpportunity #%d\nType: %s\n", o.Sequence, o.Kind.Label())
		switch o.Kind {
		case domain.OpportunityParityViolation:
			fmt.Fprintf(&b, "Strike: %s\n", money(o.Strikes[0]))
			for _, l := range o.Legs {
				fmt.Fprintf(&b, "%s price: %s\n", titleKind(l.Kind), money(l.Price))
			}
			fmt.Fprintf(&b, "Theoretical difference: %s\n", money(o.TheoreticalDiff))
			fmt.Fprintf(&b, "Actual difference: %s\n", money(o.ActualDiff))
			fmt.Fprintf(&b, "Potential profit: %s\n", money(o.Profit))
			if o.TheoreticalCall.Valid {
				fmt.Fprintf(&b, "Discounted theoretical call: %s\n", money(o.TheoreticalCall.Decimal))
			}
			for _, l := range o.Legs {
				if l.TheoreticalPrice.Valid {
					fmt.Fprintf(&b, "%s model price: %s\n", titleKind(l.Kind), money(l.TheoreticalPrice.Decimal))
				}
			}
		case domain.OpportunityBoxSpread:
			fmt.Fprintf(&b, "Lower strike: %s\nHigher strike: %s\n", money(o.Strikes[0]), money(o.Strikes[1]))
			fmt.Fprintf(&b, "Cost: %s\nGuaranteed profit: %s\nNet profit: %s\n", money(o.Cost), money(o.Profit), money(o.NetProfit))
			if o.ROI.Valid {
				fmt.Fprintf(&b, "Return on investment: %s\n", percent(o.ROI))
			}
		case domain.OpportunityButterflySpread:
			fmt.Fprintf(&b, "Lower strike: %s\nMiddle strike: %s\nHigher strike: %s\n",
				money(o.Strikes[0]), money(o.Strikes[1]), money(o.Strikes[2]))
			fmt.Fprintf(&b, "Cost: %s\nMaximum profit: %s\n", money(o.Cost), money(o.Profit))
			if o.ROI.Valid {
				fmt.Fprintf(&b, "Return on investment: %s\n", percent(o.ROI))
			}
		}
	}
	fmt.Fprintf(&b, "\n%s\nANALYSIS COMPLETE - %s\n%s\n", rule, Summary(rep), rule)

	_, err := io.WriteString(w, b.String())
	return err
}

func titleKind(k domain.OptionKind) string {
	if k == domain.OptionKindPut {
		return "Put"
	}
	return "Call"
}

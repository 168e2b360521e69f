package postgres

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionarb/internal/domain"
)

// listQuery appends the ListOpts filters, ordering and paging to a query that
// already ends in a WHERE clause. tickerCol may be empty.
func listQuery(query string, args []any, opts domain.ListOpts, timeCol, tickerCol string) (string, []any) {
	argIdx := len(args) + 1

	if tickerCol != "" && opts.Ticker != "" {
		query += fmt.Sprintf(" AND %s = $%d", tickerCol, argIdx)
		args = append(args, strings.ToUpper(opts.Ticker))
		argIdx++
	}
	if opts.Since != nil {
		query += fmt.Sprintf(" AND %s >= $%d", timeCol, argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND %s <= $%d", timeCol, argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY %s DESC", timeCol)

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}
	return query, args
}

// NUMERIC columns are selected as ::text and parsed here so no precision is
// lost to float conversion.
func parseNumeric(col, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("postgres: parse %s %q: %w", col, s, err)
	}
	return d, nil
}

func parseNullNumeric(col string, s *string) (decimal.NullDecimal, error) {
	if s == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := parseNumeric(col, *s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

func nullNumeric(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrRateLimited       = errors.New("rate limited")
	ErrLockHeld          = errors.New("lock already held")
	ErrDataUnavailable   = errors.New("market data unavailable")
	ErrNoUnderlyingPrice = errors.New("underlying price must be positive")
	ErrUnknownProvider   = errors.New("unknown market data provider")
	ErrInvalidTicker     = errors.New("invalid ticker")
	ErrInvalidArchive    = errors.New("not an archived run path")
	ErrAlreadyArchived   = errors.New("run already archived")
)

// MalformedRecordError reports a raw record, or an auxiliary field of one, the
// normalizer had to drop. It is never fatal to a batch.
type MalformedRecordError struct {
	Index  int    // position in the input batch
	Field  string // offending field, empty when the record itself is unusable
	Reason string
}

func (e *MalformedRecordError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("record %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("record %d: field %q: %s", e.Index, e.Field, e.Reason)
}

// DuplicateContractError reports a second contract for an (expiry, kind,
// strike) key within one run.
type DuplicateContractError struct {
	Expiry string
	Kind   OptionKind
	Strike decimal.Decimal
	Index  int // position in the normalized sequence of the dropped contract
}

func (e *DuplicateContractError) Error() string {
	return fmt.Sprintf("duplicate %s %s strike %s (contract %d)", e.Expiry, e.Kind, e.Strike, e.Index)
}

// DataUnavailableError is returned by market data sources. Retrying it is the
// acquisition layer's job; it never reaches the scanner.
type DataUnavailableError struct {
	Ticker string
	Op     string
	Err    error
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Ticker, e.Err)
}

func (e *DataUnavailableError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrDataUnavailable) match any DataUnavailableError.
func (e *DataUnavailableError) Is(target error) bool {
	return target == ErrDataUnavailable
}

package arbitrage

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionarb/internal/domain"
)

// DuplicatePolicy decides what happens when two contracts share an
// (expiry, kind, strike) key.
type DuplicatePolicy string

const (
	// DuplicateFirstSeen keeps the first contract and drops later ones.
	DuplicateFirstSeen DuplicatePolicy = "first_seen"
	// DuplicateReject drops every contract of a duplicated key.
	DuplicateReject DuplicatePolicy = "reject"
)

// ParseDuplicatePolicy maps a config value to a policy. Empty means
// DuplicateFirstSeen.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(s) {
	case "", DuplicateFirstSeen:
		return DuplicateFirstSeen, nil
	case DuplicateReject:
		return DuplicateReject, nil
	default:
		return "", fmt.Errorf("unknown duplicate policy %q", s)
	}
}

// ExpiryGroup holds the contracts of one expiry, calls and puts each sorted
// ascending by strike.
type ExpiryGroup struct {
	Expiry time.Time
	Calls  []domain.OptionContract
	Puts   []domain.OptionContract
}

// Key returns the expiry formatted with domain.ExpiryLayout.
func (g ExpiryGroup) Key() string {
	return g.Expiry.Format(domain.ExpiryLayout)
}

// PutAt returns the put with exactly the given strike.
func (g ExpiryGroup) PutAt(strike decimal.Decimal) (domain.OptionContract, bool) {
	for _, p := range g.Puts {
		if p.Strike.Equal(strike) {
			return p, true
		}
	}
	return domain.OptionContract{}, false
}

type contractKey struct {
	expiry string
	kind   domain.OptionKind
	strike string
}

func keyOf(c domain.OptionContract) contractKey {
	// String() drops trailing zeros, so 100 and 100.00 share a key.
	return contractKey{expiry: c.ExpiryKey(), kind: c.Kind, strike: c.Strike.String()}
}

// GroupByExpiry partitions contracts into expiry groups in order of first
// occurrence. Duplicate keys are resolved by policy and each dropped contract
// is reported as *domain.DuplicateContractError.
func GroupByExpiry(contracts []domain.OptionContract, policy DuplicatePolicy) ([]ExpiryGroup, []error) {
	counts := make(map[contractKey]int, len(contracts))
	for _, c := range contracts {
		counts[keyOf(c)]++
	}

	var (
		groups []ExpiryGroup
		index  = make(map[string]int)
		seen   = make(map[contractKey]bool, len(contracts))
		errs   []error
	)
	for i, c := range contracts {
		k := keyOf(c)
		dup := counts[k] > 1 && (policy == DuplicateReject || seen[k])
		seen[k] = true
		if dup {
			errs = append(errs, &domain.DuplicateContractError{
				Expiry: k.expiry,
				Kind:   c.Kind,
				Strike: c.Strike,
				Index:  i,
			})
			continue
		}

		gi, ok := index[k.expiry]
		if !ok {
			gi = len(groups)
			index[k.expiry] = gi
			groups = append(groups, ExpiryGroup{Expiry: c.Expiry})
		}
		switch c.Kind {
		case domain.OptionKindCall:
			groups[gi].Calls = append(groups[gi].Calls, c)
		case domain.OptionKindPut:
			groups[gi].Puts = append(groups[gi].Puts, c)
		}
	}

	for i := range groups {
		sortByStrike(groups[i].Calls)
		sortByStrike(groups[i].Puts)
	}
	return groups, errs
}

func sortByStrike(cs []domain.OptionContract) {
	sort.SliceStable(cs, func(i, j int) bool {
		return cs[i].Strike.LessThan(cs[j].Strike)
	})
}

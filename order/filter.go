package order

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// PurposeFilter 选择订单用途：要么全部，要么一个非空集合。零值视为空集合，不合法。
type PurposeFilter struct {
	all bool
	set []Purpose
}

// AllPurposes 匹配任意用途。
func AllPurposes() PurposeFilter {
	return PurposeFilter{all: true}
}

// Purposes 匹配给定的用途集合。
func Purposes(p ...Purpose) PurposeFilter {
	set := make([]Purpose, 0, len(p))
	for _, v := range p {
		if !containsPurpose(set, v) {
			set = append(set, v)
		}
	}
	return PurposeFilter{set: set}
}

// ParsePurposes parses "all" or a comma separated list such as "mm,ob".
func ParsePurposes(s string) (PurposeFilter, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == string(PurposeAll) {
		return AllPurposes(), nil
	}
	var list []Purpose
	for _, part := range strings.Split(s, ",") {
		p := Purpose(strings.TrimSpace(part))
		if p == "" {
			continue
		}
		if !p.Valid() {
			return PurposeFilter{}, fmt.Errorf("%w: unknown purpose %q", ErrInvalidRequest, p)
		}
		list = append(list, p)
	}
	return Purposes(list...), nil
}

// IsAll reports whether the filter is the "all" sentinel.
func (f PurposeFilter) IsAll() bool { return f.all }

// Validate 拒绝空集合和未知用途。
func (f PurposeFilter) Validate() error {
	if f.all {
		return nil
	}
	if len(f.set) == 0 {
		return fmt.Errorf("%w: empty purpose set", ErrInvalidRequest)
	}
	for _, p := range f.set {
		if !p.Valid() {
			return fmt.Errorf("%w: unknown purpose %q", ErrInvalidRequest, p)
		}
	}
	return nil
}

// Contains reports whether p passes the filter.
func (f PurposeFilter) Contains(p Purpose) bool {
	return f.all || containsPurpose(f.set, p)
}

func (f PurposeFilter) String() string {
	if f.all {
		return string(PurposeAll)
	}
	parts := make([]string, len(f.set))
	for i, p := range f.set {
		parts[i] = string(p)
	}
	return strings.Join(parts, ", ")
}

func containsPurpose(set []Purpose, p Purpose) bool {
	for _, v := range set {
		if v == p {
			return true
		}
	}
	return false
}

// Filter 是对订单记录的查询条件，各字段之间为 AND 关系。
type Filter struct {
	Exchange string
	Pair     string
	Account  string
	Purposes PurposeFilter
	Side     Side // 空表示双向
	// IncludeProcessed 为 false 时只返回非终态记录。
	IncludeProcessed bool
	// Match 额外的字段条件，例如价格区间。
	Match func(*Record) bool
}

// Matches applies every condition of the filter to r.
func (f Filter) Matches(r *Record) bool {
	if !f.IncludeProcessed && r.IsProcessed {
		return false
	}
	if f.Exchange != "" && !strings.EqualFold(r.Exchange, f.Exchange) {
		return false
	}
	if f.Pair != "" && !strings.EqualFold(r.Pair, f.Pair) {
		return false
	}
	if r.Account != f.Account {
		return false
	}
	if !f.Purposes.Contains(r.Purpose) {
		return false
	}
	if f.Side != "" && r.Side != f.Side {
		return false
	}
	if f.Match != nil && !f.Match(r) {
		return false
	}
	return true
}

// PriceAbove 匹配价格严格高于 p 的记录。
func PriceAbove(p decimal.Decimal) func(*Record) bool {
	return func(r *Record) bool { return r.Price.GreaterThan(p) }
}

// PriceBelow 匹配价格严格低于 p 的记录。
func PriceBelow(p decimal.Decimal) func(*Record) bool {
	return func(r *Record) bool { return r.Price.LessThan(p) }
}

// PriceBetween matches records with low <= price <= high.
func PriceBetween(low, high decimal.Decimal) func(*Record) bool {
	return func(r *Record) bool {
		return r.Price.GreaterThanOrEqual(low) && r.Price.LessThanOrEqual(high)
	}
}

// ByID matches exactly one order id.
func ByID(id string) func(*Record) bool {
	return func(r *Record) bool { return r.ID == id }
}

package enums

import "fmt"

// StockPolicyKind selects how an item's inventory is governed.
type StockPolicyKind string

const (
	StockPolicyTracked   StockPolicyKind = "tracked"
	StockPolicyUnlimited StockPolicyKind = "unlimited"
	StockPolicyHidden    StockPolicyKind = "hidden"
)

var validStockPolicyKinds = []StockPolicyKind{
	StockPolicyTracked,
	StockPolicyUnlimited,
	StockPolicyHidden,
}

// String implements fmt.Stringer.
func (k StockPolicyKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known StockPolicyKind.
func (k StockPolicyKind) IsValid() bool {
	for _, candidate := range validStockPolicyKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseStockPolicyKind converts raw input into a StockPolicyKind.
func ParseStockPolicyKind(value string) (StockPolicyKind, error) {
	for _, candidate := range validStockPolicyKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock policy %q", value)
}

// StockPolicy is the tagged variant tracked(count) | unlimited | hidden.
// Count is meaningful only for tracked items.
type StockPolicy struct {
	Kind  StockPolicyKind
	Count int
}

func Tracked(count int) StockPolicy {
	return StockPolicy{Kind: StockPolicyTracked, Count: count}
}

func Unlimited() StockPolicy {
	return StockPolicy{Kind: StockPolicyUnlimited}
}

func Hidden() StockPolicy {
	return StockPolicy{Kind: StockPolicyHidden}
}

// Validate rejects unknown kinds and negative tracked counts.
func (p StockPolicy) Validate() error {
	if !p.Kind.IsValid() {
		return fmt.Errorf("invalid stock policy %q", p.Kind)
	}
	if p.Kind == StockPolicyTracked && p.Count < 0 {
		return fmt.Errorf("tracked stock count must be >= 0, got %d", p.Count)
	}
	return nil
}

func (p StockPolicy) IsTracked() bool   { return p.Kind == StockPolicyTracked }
func (p StockPolicy) IsUnlimited() bool { return p.Kind == StockPolicyUnlimited }
func (p StockPolicy) IsHidden() bool    { return p.Kind == StockPolicyHidden }

func (p StockPolicy) String() string {
	if p.IsTracked() {
		return fmt.Sprintf("tracked(%d)", p.Count)
	}
	return string(p.Kind)
}

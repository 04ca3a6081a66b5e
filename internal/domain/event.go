package domain

import "strings"

// EventKind is the category of a raw program log record.
type EventKind uint8

// Event kinds
const (
	KindCreate EventKind = iota
	KindBuy
	KindSell
	KindLiquidityChange
)

var kindNames = [...]string{
	KindCreate:          "create",
	KindBuy:             "buy",
	KindSell:            "sell",
	KindLiquidityChange: "liquidity_change",
}

func (k EventKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// KindSet is a set of event kinds. A single log record may carry several.
type KindSet uint8

// With returns the set with k added.
func (s KindSet) With(k EventKind) KindSet {
	return s | 1<<k
}

// Has reports whether k is in the set.
func (s KindSet) Has(k EventKind) bool {
	return s&(1<<k) != 0
}

// Empty reports whether no kind matched.
func (s KindSet) Empty() bool {
	return s == 0
}

// Kinds lists the members in declaration order.
func (s KindSet) Kinds() []EventKind {
	var out []EventKind
	for k := KindCreate; k <= KindLiquidityChange; k++ {
		if s.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

func (s KindSet) String() string {
	kinds := s.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return "{" + strings.Join(names, ",") + "}"
}

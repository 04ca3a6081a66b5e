package domain

// TokenFlow is the rolling buy/sell flow of a mint.
type TokenFlow struct {
	Mint          string
	Buys          []Movement // ObservedAt > now - window
	Sells         []Movement
	NetFlow       float64 // running total: buys minus sells, SOL
	UniqueBuyers  map[string]struct{}
	UniqueSellers map[string]struct{}
}

// NewTokenFlow returns an empty flow for mint.
func NewTokenFlow(mint string) *TokenFlow {
	return &TokenFlow{
		Mint:          mint,
		UniqueBuyers:  make(map[string]struct{}),
		UniqueSellers: make(map[string]struct{}),
	}
}

// Clone deep-copies the flow.
func (f *TokenFlow) Clone() TokenFlow {
	c := TokenFlow{
		Mint:          f.Mint,
		Buys:          append([]Movement(nil), f.Buys...),
		Sells:         append([]Movement(nil), f.Sells...),
		NetFlow:       f.NetFlow,
		UniqueBuyers:  make(map[string]struct{}, len(f.UniqueBuyers)),
		UniqueSellers: make(map[string]struct{}, len(f.UniqueSellers)),
	}
	for k := range f.UniqueBuyers {
		c.UniqueBuyers[k] = struct{}{}
	}
	for k := range f.UniqueSellers {
		c.UniqueSellers[k] = struct{}{}
	}
	return c
}

// Empty reports whether both windows are empty.
func (f *TokenFlow) Empty() bool {
	return len(f.Buys) == 0 && len(f.Sells) == 0
}

// TopMover summarizes a mint's flow for ranking.
type TopMover struct {
	Mint    string
	NetFlow float64
	Volume  float64 // buys + sells in the window, SOL
	Buyers  int
	Sellers int
}

package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pumpguard/internal/domain"
)

func TestClassify(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		name string
		logs []string
		want []domain.EventKind
	}{
		{
			name: "create",
			logs: []string{"Program 6EF8 invoke [1]", "Program log: Instruction: Create"},
			want: []domain.EventKind{domain.KindCreate},
		},
		{
			name: "initialize is create",
			logs: []string{"Program log: Instruction: InitializeMint2"},
			want: []domain.EventKind{domain.KindCreate},
		},
		{
			name: "buy",
			logs: []string{"Program log: Instruction: Buy"},
			want: []domain.EventKind{domain.KindBuy},
		},
		{
			name: "sell and withdraw",
			logs: []string{"Program log: Instruction: Sell", "Program log: withdraw"},
			want: []domain.EventKind{domain.KindSell, domain.KindLiquidityChange},
		},
		{
			name: "migrate",
			logs: []string{"Program log: migrate"},
			want: []domain.EventKind{domain.KindLiquidityChange},
		},
		{
			name: "case sensitive",
			logs: []string{"Program log: instruction: sell", "Program log: Withdraw"},
			want: nil,
		},
		{
			name: "nothing",
			logs: []string{"Program ComputeBudget111111111111111111111111111111 success"},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.logs)
			assert.Equal(t, tt.want, got.Kinds())
			assert.Equal(t, tt.want == nil, got.Empty())
		})
	}
}

func TestClassify_WithRules(t *testing.T) {
	c := NewClassifier(WithRules(Rule{Marker: "Instruction: CloseCurve", Kind: domain.KindLiquidityChange}))

	got := c.Classify([]string{"Program log: Instruction: CloseCurve"})
	assert.True(t, got.Has(domain.KindLiquidityChange))
	assert.False(t, got.Has(domain.KindSell))
}

func TestKindSetString(t *testing.T) {
	set := domain.KindSet(0).With(domain.KindBuy).With(domain.KindSell)
	assert.Equal(t, "{buy,sell}", set.String())
	assert.Equal(t, "{}", domain.KindSet(0).String())
}

package ledger

import (
	"errors"
	"fmt"
	"math"

	"hxh_team/internal/domain"
)

var ErrInvalidBudget = errors.New("invalid token budget")

// Defaults are the built-in budgets, in report order.
var Defaults = []domain.TokenBudget{
	{Agent: domain.AgentGon, Allocated: 15000, Used: 12000},
	{Agent: domain.AgentKillua, Allocated: 15000, Used: 8000},
	{Agent: domain.AgentKurapika, Allocated: 20000, Used: 18000},
	{Agent: domain.AgentHisoka, Allocated: 10000, Used: 7000},
	{Agent: domain.AgentMeruem, Allocated: 25000, Used: 23000},
}

// Ledger is read-only after construction.
type Ledger struct {
	budgets []domain.TokenBudget
}

func New(budgets []domain.TokenBudget) (*Ledger, error) {
	seen := make(map[domain.Agent]bool, len(budgets))
	copied := make([]domain.TokenBudget, 0, len(budgets))
	for _, b := range budgets {
		if b.Allocated < 0 || b.Used < 0 {
			return nil, fmt.Errorf("%w: %s has negative counts", ErrInvalidBudget, b.Agent)
		}
		if b.Used > b.Allocated {
			return nil, fmt.Errorf("%w: %s used %d exceeds allocated %d", ErrInvalidBudget, b.Agent, b.Used, b.Allocated)
		}
		if seen[b.Agent] {
			return nil, fmt.Errorf("%w: duplicate agent %s", ErrInvalidBudget, b.Agent)
		}
		seen[b.Agent] = true
		copied = append(copied, b)
	}
	return &Ledger{budgets: copied}, nil
}

func Default() *Ledger {
	l, err := New(Defaults)
	if err != nil {
		panic(err)
	}
	return l
}

func (l *Ledger) Len() int {
	return len(l.budgets)
}

func (l *Ledger) Report() []domain.UsageLine {
	out := make([]domain.UsageLine, 0, len(l.budgets))
	for _, b := range l.budgets {
		out = append(out, domain.UsageLine{
			Agent:      b.Agent,
			Used:       b.Used,
			Allocated:  b.Allocated,
			Percentage: Percentage(b.Used, b.Allocated),
		})
	}
	return out
}

// Percentage is used/allocated*100 rounded to one decimal; zero allocation is 0%.
func Percentage(used, allocated int) float64 {
	if allocated == 0 {
		return 0
	}
	return math.Round(float64(used)/float64(allocated)*1000) / 10
}

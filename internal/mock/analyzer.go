package mock

import (
	"context"
	"time"

	"hxh_team/internal/domain"
)

const (
	DefaultAnalysisDelay = 500 * time.Millisecond
	DefaultHarmonyDelay  = 300 * time.Millisecond
)

// Analyzer pretends to run a pre-emptive security review. The report is
// constant regardless of the task.
type Analyzer struct {
	delay time.Duration
}

func NewAnalyzer(delay time.Duration) *Analyzer {
	if delay <= 0 {
		delay = DefaultAnalysisDelay
	}
	return &Analyzer{delay: delay}
}

func (a *Analyzer) Analyze(ctx context.Context, _ string) (domain.SecurityReport, error) {
	if err := Delay(ctx, a.delay); err != nil {
		return domain.SecurityReport{}, err
	}
	return domain.SecurityReport{
		Threats:     []string{"SQL injection", "XSS vulnerability"},
		Constraints: []string{"Input validation required", "Output encoding needed"},
	}, nil
}

// Harmonizer pretends to reconcile code style across the team's results.
type Harmonizer struct {
	delay time.Duration
}

func NewHarmonizer(delay time.Duration) *Harmonizer {
	if delay <= 0 {
		delay = DefaultHarmonyDelay
	}
	return &Harmonizer{delay: delay}
}

func (h *Harmonizer) Harmonize(ctx context.Context, _ []domain.TaskResult) (domain.HarmonyReport, error) {
	if err := Delay(ctx, h.delay); err != nil {
		return domain.HarmonyReport{}, err
	}
	return domain.HarmonyReport{
		Score:   94,
		Comment: "Mmm, such beautiful consistency now ♥️",
	}, nil
}

// Delay blocks for d or until ctx is done.
func Delay(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

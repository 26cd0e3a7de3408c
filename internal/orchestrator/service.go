package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"hxh_team/internal/agent"
	"hxh_team/internal/domain"
	"hxh_team/internal/mock"
	"hxh_team/internal/policy"
)

const (
	DefaultChallengeDelay = 1 * time.Second

	researchCacheKeyPrefix = "research:"
)

type Reporter interface {
	Update(ev domain.ProgressEvent)
	Println(line string)
	Printf(format string, args ...any)
}

type Analyzer interface {
	Analyze(ctx context.Context, task string) (domain.SecurityReport, error)
}

type Harmonizer interface {
	Harmonize(ctx context.Context, results []domain.TaskResult) (domain.HarmonyReport, error)
}

type Ledger interface {
	Report() []domain.UsageLine
}

type Knowledge interface {
	Store(key string, value any)
}

// Recorder is the optional run journal.
type Recorder interface {
	CreateRun(ctx context.Context, run domain.Run) error
	FinishRun(ctx context.Context, runID string, status domain.RunStatus) error
	LogPhase(ctx context.Context, entry domain.PhaseLog) error
	LogResult(ctx context.Context, entry domain.ResultLog) error
	LogProgress(ctx context.Context, entry domain.ProgressLog) error
}

type Config struct {
	Units          agent.Config
	ChallengeDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.ChallengeDelay <= 0 {
		c.ChallengeDelay = DefaultChallengeDelay
	}
	return c
}

type Service struct {
	out        Reporter
	analyzer   Analyzer
	harmonizer Harmonizer
	ledger     Ledger
	knowledge  Knowledge
	recorder   Recorder
	gates      *policy.Engine
	cfg        Config
	logger     *log.Logger
}

func New(
	out Reporter,
	analyzer Analyzer,
	harmonizer Harmonizer,
	ledger Ledger,
	knowledge Knowledge,
	recorder Recorder,
	cfg Config,
	logger *log.Logger,
) *Service {
	if logger == nil {
		logger = log.Default()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{
		out:        out,
		analyzer:   analyzer,
		harmonizer: harmonizer,
		ledger:     ledger,
		knowledge:  knowledge,
		recorder:   recorder,
		gates:      policy.New(),
		cfg:        cfg.withDefaults(),
		logger:     logger,
	}
}

// RunSummary is what one pass through the pipeline produced.
type RunSummary struct {
	RunID    string
	Gates    policy.Gates
	Security *domain.SecurityReport
	Research []domain.ResearchResult
	Results  []domain.TaskResult
	Harmony  *domain.HarmonyReport
	Usage    []domain.UsageLine
}

// Run drives one scenario through security, research, execution, harmony,
// challenge and report, skipping the optional phases whose gate is closed.
func (s *Service) Run(ctx context.Context, sc domain.Scenario) (RunSummary, error) {
	sum := RunSummary{
		RunID: uuid.NewString(),
		Gates: s.gates.Evaluate(sc.Team, sc.Options),
	}
	s.journal(sum.RunID, "create run", s.recorder.CreateRun(ctx, domain.Run{
		ID:        sum.RunID,
		Task:      sc.Task,
		Team:      sc.Team,
		Options:   sc.Options,
		Status:    domain.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}))
	s.logger.Printf("run started id=%s team=%d task=%q", sum.RunID, len(sc.Team), sc.Task)

	s.out.Printf("\n🎯 HXH Team v2.0 Activating for: %s\n", sc.Task)
	s.out.Printf("Team: %s\n", domain.JoinTeam(sc.Team))
	s.out.Printf("Options: %s\n\n", sc.Options)

	sink := &runSink{svc: s, runID: sum.RunID}
	err := s.runPhases(ctx, sc, sink, &sum)

	status := domain.RunStatusDone
	if err != nil {
		status = domain.RunStatusCanceled
	}
	// The run may have been canceled; the journal still gets its final status.
	s.journal(sum.RunID, "finish run", s.recorder.FinishRun(context.WithoutCancel(ctx), sum.RunID, status))
	s.logger.Printf("run finished id=%s status=%s", sum.RunID, status)
	return sum, err
}

func (s *Service) runPhases(ctx context.Context, sc domain.Scenario, sink *runSink, sum *RunSummary) error {
	phases := []struct {
		phase domain.Phase
		fn    func() error
	}{
		{domain.PhaseSecurity, func() error { return s.securityPhase(ctx, sc, sum) }},
		{domain.PhaseResearch, func() error { return s.researchPhase(ctx, sc, sink, sum) }},
		{domain.PhaseExecution, func() error { return s.executionPhase(ctx, sc, sink, sum) }},
		{domain.PhaseHarmony, func() error { return s.harmonyPhase(ctx, sum) }},
		{domain.PhaseChallenge, func() error { return s.challengePhase(ctx) }},
		{domain.PhaseReport, func() error { return s.reportPhase(sum) }},
	}
	for _, p := range phases {
		decision := sum.Gates.For(p.phase)
		if !decision.Run {
			s.logPhase(ctx, sum.RunID, p.phase, domain.PhaseActionSkipped, decision.Reason)
			continue
		}
		s.logPhase(ctx, sum.RunID, p.phase, domain.PhaseActionStarted, decision.Reason)
		if err := p.fn(); err != nil {
			return fmt.Errorf("%s phase: %w", p.phase, err)
		}
		s.logPhase(ctx, sum.RunID, p.phase, domain.PhaseActionFinished, "")
	}
	return nil
}

func (s *Service) securityPhase(ctx context.Context, sc domain.Scenario, sum *RunSummary) error {
	report, err := s.analyzer.Analyze(ctx, sc.Task)
	if err != nil {
		return err
	}
	sum.Security = &report
	s.out.Println("⛓️ Kurapika: Pre-emptive security analysis complete!")
	s.out.Printf("   Threats detected: %s\n", strings.Join(report.Threats, ", "))
	s.out.Printf("   Security constraints applied: %s\n\n", strings.Join(report.Constraints, ", "))
	return nil
}

func (s *Service) researchPhase(ctx context.Context, sc domain.Scenario, sink *runSink, sum *RunSummary) error {
	s.out.Println("🔍 Starting parallel research phase...")
	start := time.Now()
	results, err := fanOut(ctx, sc.Team, func(ctx context.Context, id domain.Agent) (domain.ResearchResult, error) {
		return s.unit(id, sink).Research(ctx, sc.Task)
	})
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	for i, r := range results {
		s.knowledge.Store(researchCacheKeyPrefix+string(r.Agent), r)
		s.logResult(ctx, sum.RunID, domain.ResultKindResearch, i, r.Agent, r.Topic+": "+r.Findings)
	}
	sum.Research = results

	s.out.Printf("   ⏱️ All research completed in %.2fs (parallel)\n", elapsed.Seconds())
	s.out.Printf("   📚 %d research results cached\n", len(results))
	s.out.Println("✅ Research complete! Knowledge cached for team use.\n")
	return nil
}

func (s *Service) executionPhase(ctx context.Context, sc domain.Scenario, sink *runSink, sum *RunSummary) error {
	s.out.Println("⚡ Starting parallel execution with real-time updates...\n")
	if sum.Gates.Godspeed {
		s.out.Println("⚡ Killua: Activating Godspeed mode for 10x performance!\n")
	}
	results, err := fanOut(ctx, sc.Team, func(ctx context.Context, id domain.Agent) (domain.TaskResult, error) {
		return s.unit(id, sink).Execute(ctx, sc.Task)
	})
	if err != nil {
		return err
	}
	for i, r := range results {
		s.logResult(ctx, sum.RunID, domain.ResultKindExecution, i, r.Agent, r.Description)
	}
	sum.Results = results
	return nil
}

func (s *Service) harmonyPhase(ctx context.Context, sum *RunSummary) error {
	s.out.Println("\n♦️ Hisoka: Applying aesthetic improvements...")
	report, err := s.harmonizer.Harmonize(ctx, sum.Results)
	if err != nil {
		return err
	}
	sum.Harmony = &report
	s.out.Printf("   Consistency score: %d%%\n", report.Score)
	s.out.Printf("   Hisoka says: '%s'\n\n", report.Comment)
	return nil
}

func (s *Service) challengePhase(ctx context.Context) error {
	s.out.Println("\n🎮 Challenge System Demo:")
	s.out.Println("Hisoka challenges Killua on optimization approach!")
	lines := []string{
		"   Killua: 'My approach uses memoization - O(n) complexity'",
		"   Hisoka: 'But mine is more elegant with functional composition ♠️'",
		"   🏆 User votes for: Killua's approach (performance wins!)",
	}
	for _, line := range lines {
		if err := mock.Delay(ctx, s.cfg.ChallengeDelay); err != nil {
			return err
		}
		s.out.Println(line)
	}
	return nil
}

func (s *Service) reportPhase(sum *RunSummary) error {
	s.out.Println("\n💰 Token Usage Report (Leorio's tracking):")
	sum.Usage = s.ledger.Report()
	for _, line := range sum.Usage {
		s.out.Printf("   %s: %d/%d tokens (%.1f%%)\n", line.Agent, line.Used, line.Allocated, line.Percentage)
	}
	s.out.Println("\n✨ Task Complete! All improvements active and working perfectly!")
	return nil
}

func (s *Service) unit(id domain.Agent, sink *runSink) *agent.Unit {
	return agent.NewUnit(id, sink, s.cfg.Units, s.logger)
}

// fanOut runs work once per member concurrently and waits for all of them.
// Results keep the roster's launch order.
func fanOut[T any](ctx context.Context, team []domain.Agent, work func(context.Context, domain.Agent) (T, error)) ([]T, error) {
	results := make([]T, len(team))
	errs := make([]error, len(team))

	var wg sync.WaitGroup
	for i, id := range team {
		wg.Add(1)
		go func(i int, id domain.Agent) {
			defer wg.Done()
			results[i], errs[i] = work(ctx, id)
		}(i, id)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return results, nil
}

// runSink renders progress and mirrors it into the journal for one run.
type runSink struct {
	svc   *Service
	runID string
}

func (r *runSink) Progress(ctx context.Context, ev domain.ProgressEvent) {
	r.svc.out.Update(ev)
	r.svc.journal(r.runID, "log progress", r.svc.recorder.LogProgress(ctx, domain.ProgressLog{
		RunID:    r.runID,
		Agent:    ev.Agent,
		Action:   ev.Action,
		Progress: ev.Progress,
	}))
}

func (s *Service) logPhase(ctx context.Context, runID string, phase domain.Phase, action domain.PhaseAction, reason string) {
	s.journal(runID, "log phase", s.recorder.LogPhase(ctx, domain.PhaseLog{
		RunID:  runID,
		Phase:  phase,
		Action: action,
		Reason: reason,
	}))
}

func (s *Service) logResult(ctx context.Context, runID string, kind domain.ResultKind, seq int, id domain.Agent, desc string) {
	s.journal(runID, "log result", s.recorder.LogResult(ctx, domain.ResultLog{
		RunID:       runID,
		Kind:        kind,
		Seq:         seq,
		Agent:       id,
		Description: desc,
	}))
}

// journal failures never stop the narrative.
func (s *Service) journal(runID, op string, err error) {
	if err != nil {
		s.logger.Printf("journal %s failed run=%s: %v", op, runID, err)
	}
}

type nopRecorder struct{}

func (nopRecorder) CreateRun(context.Context, domain.Run) error { return nil }
func (nopRecorder) FinishRun(context.Context, string, domain.RunStatus) error { return nil }
func (nopRecorder) LogPhase(context.Context, domain.PhaseLog) error { return nil }
func (nopRecorder) LogResult(context.Context, domain.ResultLog) error { return nil }
func (nopRecorder) LogProgress(context.Context, domain.ProgressLog) error { return nil }

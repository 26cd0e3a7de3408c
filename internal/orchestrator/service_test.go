package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"hxh_team/internal/agent"
	"hxh_team/internal/cache"
	"hxh_team/internal/domain"
	"hxh_team/internal/ledger"
	"hxh_team/internal/mock"
	"hxh_team/internal/status"
	sqlitestore "hxh_team/internal/store/sqlite"
)

type countingAnalyzer struct {
	calls atomic.Int32
	inner *mock.Analyzer
}

func (a *countingAnalyzer) Analyze(ctx context.Context, task string) (domain.SecurityReport, error) {
	a.calls.Add(1)
	return a.inner.Analyze(ctx, task)
}

type harness struct {
	svc       *Service
	out       *bytes.Buffer
	analyzer  *countingAnalyzer
	knowledge *cache.Knowledge
}

func newHarness(t *testing.T, recorder Recorder) *harness {
	t.Helper()
	out := &bytes.Buffer{}
	analyzer := &countingAnalyzer{inner: mock.NewAnalyzer(time.Millisecond)}
	knowledge := cache.NewKnowledge()
	svc := New(
		status.New(out),
		analyzer,
		mock.NewHarmonizer(time.Millisecond),
		ledger.Default(),
		knowledge,
		recorder,
		Config{
			Units:          agent.Config{ResearchDelay: time.Millisecond, StepDelay: time.Millisecond},
			ChallengeDelay: time.Millisecond,
		},
		log.New(io.Discard, "", 0),
	)
	return &harness{svc: svc, out: out, analyzer: analyzer, knowledge: knowledge}
}

func TestPlainRosterRunsOnlyMandatoryPhases(t *testing.T) {
	h := newHarness(t, nil)
	team := []domain.Agent{"alpha", "bravo", "charlie"}

	sum, err := h.svc.Run(context.Background(), domain.Scenario{Task: "plain", Team: team})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(sum.Results) != len(team) {
		t.Fatalf("results=%d want=%d", len(sum.Results), len(team))
	}
	for i, r := range sum.Results {
		if r.Agent != team[i] {
			t.Fatalf("result %d agent=%s want=%s", i, r.Agent, team[i])
		}
		if r.Description != "Working on task - Complete!" {
			t.Fatalf("result %d description=%q", i, r.Description)
		}
	}

	out := h.out.String()
	if got := strings.Count(out, " tokens ("); got != ledger.Default().Len() {
		t.Fatalf("report lines=%d want=%d", got, ledger.Default().Len())
	}
	for _, forbidden := range []string{"Pre-emptive security", "Starting parallel research", "research results cached", "Research complete", "Hisoka: Applying", "Challenge System", "Godspeed"} {
		if strings.Contains(out, forbidden) {
			t.Fatalf("unexpected %q in output:\n%s", forbidden, out)
		}
	}
	if h.analyzer.calls.Load() != 0 {
		t.Fatalf("analyzer calls=%d want=0", h.analyzer.calls.Load())
	}
	if sum.Security != nil || sum.Harmony != nil || len(sum.Research) != 0 {
		t.Fatalf("optional phases produced output: %+v", sum)
	}
	if h.knowledge.Len() != 0 {
		t.Fatalf("knowledge cache populated without research: %d", h.knowledge.Len())
	}
	// alpha, bravo and charlie fall back to three steps each.
	if got := strings.Count(out, ": Working on task ["); got != 9 {
		t.Fatalf("progress lines=%d want=9", got)
	}
}

func TestSecurityPhaseRunsOnceWhenKurapikaPresent(t *testing.T) {
	rosters := [][]domain.Agent{
		{domain.AgentKurapika},
		{domain.AgentGon, domain.AgentKillua, domain.AgentKurapika, domain.AgentHisoka, domain.AgentMeruem},
	}
	for _, team := range rosters {
		h := newHarness(t, nil)
		sum, err := h.svc.Run(context.Background(), domain.Scenario{Task: "t", Team: team})
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if h.analyzer.calls.Load() != 1 {
			t.Fatalf("team=%v analyzer calls=%d want=1", team, h.analyzer.calls.Load())
		}
		if sum.Security == nil || len(sum.Security.Threats) != 2 {
			t.Fatalf("security report=%+v", sum.Security)
		}
		if !strings.Contains(h.out.String(), "   Threats detected: SQL injection, XSS vulnerability\n") {
			t.Fatalf("threats line missing:\n%s", h.out.String())
		}
	}
}

func TestResearchDisabledInvokesNoUnits(t *testing.T) {
	rec := &memoryRecorder{}
	h := newHarness(t, rec)
	_, err := h.svc.Run(context.Background(), domain.Scenario{
		Task:    "t",
		Team:    []domain.Agent{domain.AgentGon, domain.AgentMeruem},
		Options: domain.Options{ResearchFirst: false, ChallengeMode: true},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, ev := range rec.progressEvents() {
		if strings.HasPrefix(ev.Action, "Researching") || ev.Action == "Research complete!" {
			t.Fatalf("research unit ran: %+v", ev)
		}
	}
	if strings.Contains(h.out.String(), "Starting parallel research") || strings.Contains(h.out.String(), "research results cached") {
		t.Fatalf("research output present:\n%s", h.out.String())
	}
	if !strings.Contains(h.out.String(), "   🏆 User votes for: Killua's approach (performance wins!)") {
		t.Fatalf("challenge output missing:\n%s", h.out.String())
	}
}

func TestFullTeamScenario(t *testing.T) {
	h := newHarness(t, nil)
	team := []domain.Agent{domain.AgentGon, domain.AgentKillua, domain.AgentKurapika, domain.AgentHisoka, domain.AgentMeruem}
	sum, err := h.svc.Run(context.Background(), domain.Scenario{
		Task:    "Implement AI-powered code review system",
		Team:    team,
		Options: domain.Options{ResearchFirst: true, ChallengeMode: true},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(sum.Research) != len(team) {
		t.Fatalf("research=%d want=%d", len(sum.Research), len(team))
	}
	for i, r := range sum.Research {
		if r.Agent != team[i] {
			t.Fatalf("research %d agent=%s want=%s", i, r.Agent, team[i])
		}
		cached, ok := h.knowledge.Retrieve("research:" + string(r.Agent))
		if !ok {
			t.Fatalf("research for %s not cached", r.Agent)
		}
		if cached.(domain.ResearchResult).Topic != r.Topic {
			t.Fatalf("cached topic=%v want=%s", cached, r.Topic)
		}
	}
	if sum.Harmony == nil || sum.Harmony.Score != 94 {
		t.Fatalf("harmony=%+v", sum.Harmony)
	}
	if len(sum.Usage) != 5 || sum.Usage[0].Percentage != 80.0 {
		t.Fatalf("usage=%+v", sum.Usage)
	}

	out := h.out.String()
	ordered := []string{
		"🎯 HXH Team v2.0 Activating for: Implement AI-powered code review system",
		"Team: gon, killua, kurapika, hisoka, meruem",
		"Options: research_first=true challenge_mode=true",
		"⛓️ Kurapika: Pre-emptive security analysis complete!",
		"🔍 Starting parallel research phase...",
		"   📚 5 research results cached",
		"✅ Research complete! Knowledge cached for team use.",
		"⚡ Starting parallel execution with real-time updates...",
		"⚡ Killua: Activating Godspeed mode for 10x performance!",
		"♦️ Hisoka: Applying aesthetic improvements...",
		"   Consistency score: 94%",
		"🎮 Challenge System Demo:",
		"💰 Token Usage Report (Leorio's tracking):",
		"   gon: 12000/15000 tokens (80.0%)",
		"   killua: 8000/15000 tokens (53.3%)",
		"✨ Task Complete! All improvements active and working perfectly!",
	}
	pos := 0
	for _, want := range ordered {
		idx := strings.Index(out[pos:], want)
		if idx < 0 {
			t.Fatalf("missing or out of order %q in output:\n%s", want, out)
		}
		pos += idx + len(want)
	}
	if !strings.Contains(out, "👑 Meruem: Evolving optimal solution [16%] (Evolving...)") {
		t.Fatalf("meruem progress missing:\n%s", out)
	}
}

func TestRunCanceled(t *testing.T) {
	rec := &memoryRecorder{}
	h := newHarness(t, rec)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.svc.Run(ctx, domain.Scenario{Task: "t", Team: []domain.Agent{domain.AgentGon}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
	if rec.finalStatus() != domain.RunStatusCanceled {
		t.Fatalf("final status=%s want=%s", rec.finalStatus(), domain.RunStatusCanceled)
	}
	if strings.Contains(h.out.String(), "Task Complete!") {
		t.Fatalf("report ran after cancel")
	}
}

func TestJournalRecordsRun(t *testing.T) {
	store, err := sqlitestore.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	h := newHarness(t, store)
	team := []domain.Agent{domain.AgentGon, domain.AgentKillua, domain.AgentKurapika}
	sum, err := h.svc.Run(ctx, domain.Scenario{Task: "Build a real-time chat application", Team: team})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	run, err := store.GetRun(ctx, sum.RunID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run.Status != domain.RunStatusDone || len(run.Team) != 3 {
		t.Fatalf("run=%+v", run)
	}

	phases, err := store.ListRunPhases(ctx, sum.RunID)
	if err != nil {
		t.Fatalf("list phases: %v", err)
	}
	actions := make(map[domain.Phase]domain.PhaseAction)
	for _, p := range phases {
		actions[p.Phase] = p.Action
	}
	want := map[domain.Phase]domain.PhaseAction{
		domain.PhaseSecurity:  domain.PhaseActionFinished,
		domain.PhaseResearch:  domain.PhaseActionSkipped,
		domain.PhaseExecution: domain.PhaseActionFinished,
		domain.PhaseHarmony:   domain.PhaseActionSkipped,
		domain.PhaseChallenge: domain.PhaseActionSkipped,
		domain.PhaseReport:    domain.PhaseActionFinished,
	}
	for phase, action := range want {
		if actions[phase] != action {
			t.Fatalf("phase %s last action=%s want=%s", phase, actions[phase], action)
		}
	}

	results, err := store.ListRunResults(ctx, sum.RunID)
	if err != nil {
		t.Fatalf("list results: %v", err)
	}
	if len(results) != len(team) {
		t.Fatalf("results=%d want=%d", len(results), len(team))
	}
	for i, r := range results {
		if r.Agent != team[i] || r.Seq != i {
			t.Fatalf("result %d=%+v", i, r)
		}
	}

	progress, err := store.ListRunProgress(ctx, sum.RunID, 0)
	if err != nil {
		t.Fatalf("list progress: %v", err)
	}
	// gon 5 + killua 3 + kurapika 4 steps.
	if len(progress) != 12 {
		t.Fatalf("progress events=%d want=12", len(progress))
	}
}

type memoryRecorder struct {
	nopRecorder
	mu       sync.Mutex
	progress []domain.ProgressLog
	status   domain.RunStatus
}

func (m *memoryRecorder) LogProgress(_ context.Context, entry domain.ProgressLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress = append(m.progress, entry)
	return nil
}

func (m *memoryRecorder) FinishRun(_ context.Context, _ string, status domain.RunStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
	return nil
}

func (m *memoryRecorder) progressEvents() []domain.ProgressLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ProgressLog(nil), m.progress...)
}

func (m *memoryRecorder) finalStatus() domain.RunStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"hxh_team/internal/agent"
	"hxh_team/internal/cache"
	"hxh_team/internal/config"
	"hxh_team/internal/domain"
	"hxh_team/internal/ledger"
	"hxh_team/internal/mock"
	"hxh_team/internal/orchestrator"
	"hxh_team/internal/status"
	sqlitestore "hxh_team/internal/store/sqlite"
)

var defaultScenarios = []domain.Scenario{
	{
		Task: "Build a real-time chat application",
		Team: []domain.Agent{domain.AgentGon, domain.AgentKillua, domain.AgentKurapika},
		Options: domain.Options{
			ResearchFirst: false,
		},
	},
	{
		Task: "Implement AI-powered code review system",
		Team: []domain.Agent{domain.AgentGon, domain.AgentKillua, domain.AgentKurapika, domain.AgentHisoka, domain.AgentMeruem},
		Options: domain.Options{
			ResearchFirst: true,
			ChallengeMode: true,
		},
	},
}

func main() {
	configPath := flag.String("config", "", "path to a TOML config (default: built-in scenarios and delays)")
	dbPathFlag := flag.String("db", "", "sqlite run journal path override (journal disabled when empty)")
	verbose := flag.Bool("verbose", false, "write diagnostic logs to stderr")
	flag.Parse()

	logger := log.New(io.Discard, "", 0)
	if *verbose {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	scenarios, err := cfg.DemoScenarios(defaultScenarios)
	if err != nil {
		log.Fatalf("load scenarios: %v", err)
	}
	budgets := ledger.Defaults
	if len(cfg.Budgets) > 0 {
		budgets = cfg.TokenBudgets(ledger.Defaults)
	}
	usage, err := ledger.New(budgets)
	if err != nil {
		log.Fatalf("load token budgets: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var recorder orchestrator.Recorder
	dbPath := firstNonEmpty(*dbPathFlag, cfg.Demo.DBPath)
	if dbPath != "" {
		store, err := openJournal(ctx, dbPath)
		if err != nil {
			log.Fatalf("open run journal: %v", err)
		}
		defer func() {
			_ = store.Close()
		}()
		recorder = store
		logger.Printf("run journal enabled db=%s", dbPath)
	}

	orchCfg := orchestrator.Config{
		Units: agent.Config{
			ResearchDelay: durationMS(cfg.Delays.ResearchMS, agent.DefaultResearchDelay),
			StepDelay:     durationMS(cfg.Delays.StepMS, agent.DefaultStepDelay),
		},
		ChallengeDelay: durationMS(cfg.Delays.ChallengeMS, orchestrator.DefaultChallengeDelay),
	}
	out := status.New(os.Stdout)
	orch := orchestrator.New(
		out,
		mock.NewAnalyzer(durationMS(cfg.Delays.AnalysisMS, mock.DefaultAnalysisDelay)),
		mock.NewHarmonizer(durationMS(cfg.Delays.HarmonyMS, mock.DefaultHarmonyDelay)),
		usage,
		cache.NewKnowledge(),
		recorder,
		orchCfg,
		logger,
	)

	for i, sc := range scenarios {
		if i > 0 {
			out.Printf("\n%s\n\n", strings.Repeat("=", 60))
		}
		if _, err := orch.Run(ctx, sc); err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Printf("demo interrupted scenario=%d", i+1)
				return
			}
			log.Fatalf("run scenario %d: %v", i+1, err)
		}
	}
}

func openJournal(ctx context.Context, dbPath string) (*sqlitestore.Store, error) {
	dbPath = filepath.Clean(dbPath)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	store, err := sqlitestore.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func durationMS(v int, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return time.Duration(v) * time.Millisecond
}

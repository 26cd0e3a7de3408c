package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"hxh_team/internal/domain"
)

const sampleConfig = `
[demo]
db_path = "data/journal.db"

[delays]
step_ms = 10
challenge_ms = 20

[budgets.gon]
allocated = 1000
used = 250

[budgets.leorio]
allocated = 500
used = 100

[[scenarios]]
task = "Ship the hunter exam portal"
team = ["Gon", " killua ", ""]
research_first = true
`

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Path != "" || cfg.Demo.DBPath != "" || len(cfg.Scenarios) != 0 {
		t.Fatalf("expected zero config, got %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadDecodesSections(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Path != path {
		t.Fatalf("path=%s want=%s", cfg.Path, path)
	}
	if cfg.Demo.DBPath != "data/journal.db" {
		t.Fatalf("db_path=%q", cfg.Demo.DBPath)
	}
	if cfg.Delays.StepMS != 10 || cfg.Delays.ChallengeMS != 20 || cfg.Delays.AnalysisMS != 0 {
		t.Fatalf("delays=%+v", cfg.Delays)
	}
	if _, ok := cfg.Raw["budgets"]; !ok {
		t.Fatalf("raw config missing budgets: %v", cfg.Raw)
	}
}

func TestTokenBudgetsMergeOverDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defaults := []domain.TokenBudget{
		{Agent: domain.AgentGon, Allocated: 15000, Used: 12000},
		{Agent: domain.AgentKillua, Allocated: 15000, Used: 8000},
	}
	got := cfg.TokenBudgets(defaults)
	if len(got) != 3 {
		t.Fatalf("budgets=%d want=3", len(got))
	}
	if got[0].Agent != domain.AgentGon || got[0].Allocated != 1000 || got[0].Used != 250 {
		t.Fatalf("gon override=%+v", got[0])
	}
	if got[1] != defaults[1] {
		t.Fatalf("killua changed: %+v", got[1])
	}
	if got[2].Agent != "leorio" || got[2].Allocated != 500 {
		t.Fatalf("extra budget=%+v", got[2])
	}
	if defaults[0].Allocated != 15000 {
		t.Fatalf("defaults mutated")
	}
}

func TestDemoScenarios(t *testing.T) {
	defaults := []domain.Scenario{{Task: "default", Team: []domain.Agent{domain.AgentGon}}}

	got, err := Config{}.DemoScenarios(defaults)
	if err != nil {
		t.Fatalf("default scenarios: %v", err)
	}
	if len(got) != 1 || got[0].Task != "default" {
		t.Fatalf("scenarios=%+v", got)
	}

	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got, err = cfg.DemoScenarios(defaults)
	if err != nil {
		t.Fatalf("configured scenarios: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("scenarios=%d want=1", len(got))
	}
	sc := got[0]
	if sc.Task != "Ship the hunter exam portal" || !sc.Options.ResearchFirst || sc.Options.ChallengeMode {
		t.Fatalf("scenario=%+v", sc)
	}
	if len(sc.Team) != 2 || sc.Team[0] != domain.AgentGon || sc.Team[1] != domain.AgentKillua {
		t.Fatalf("team=%v", sc.Team)
	}

	bad := Config{Scenarios: []ScenarioConfig{{Task: "t", Team: []string{" "}}}}
	if _, err := bad.DemoScenarios(defaults); !errors.Is(err, ErrEmptyScenario) {
		t.Fatalf("err=%v want ErrEmptyScenario", err)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

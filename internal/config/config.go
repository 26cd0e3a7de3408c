package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"hxh_team/internal/domain"
)

var ErrEmptyScenario = errors.New("scenario requires a task and at least one team member")

type Config struct {
	Demo      DemoConfig              `toml:"demo"`
	Delays    DelayConfig             `toml:"delays"`
	Budgets   map[string]BudgetConfig `toml:"budgets"`
	Scenarios []ScenarioConfig        `toml:"scenarios"`
	Raw       map[string]any          `toml:"-"`
	Path      string                  `toml:"-"`
}

type DemoConfig struct {
	DBPath string `toml:"db_path"`
}

type DelayConfig struct {
	AnalysisMS  int `toml:"analysis_ms"`
	ResearchMS  int `toml:"research_ms"`
	StepMS      int `toml:"step_ms"`
	HarmonyMS   int `toml:"harmony_ms"`
	ChallengeMS int `toml:"challenge_ms"`
}

type BudgetConfig struct {
	Allocated int `toml:"allocated"`
	Used      int `toml:"used"`
}

type ScenarioConfig struct {
	Task          string   `toml:"task"`
	Team          []string `toml:"team"`
	ResearchFirst bool     `toml:"research_first"`
	ChallengeMode bool     `toml:"challenge_mode"`
}

// Load reads a TOML config. An empty path means built-in defaults and no
// file is read.
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return Config{}, nil
	}
	resolved := path
	if strings.HasPrefix(resolved, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve home directory: %w", err)
		}
		trimmed := strings.TrimPrefix(resolved, "~")
		trimmed = strings.TrimPrefix(trimmed, "\\")
		trimmed = strings.TrimPrefix(trimmed, "/")
		resolved = filepath.Join(home, trimmed)
	}
	resolved = filepath.Clean(resolved)

	bytes, err := os.ReadFile(resolved)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %s: %w", resolved, err)
	}

	var cfg Config
	if _, err := toml.Decode(string(bytes), &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config file: %w", err)
	}
	var raw map[string]any
	if _, err := toml.Decode(string(bytes), &raw); err != nil {
		return Config{}, fmt.Errorf("decode raw config: %w", err)
	}
	cfg.Raw = raw
	cfg.Path = resolved
	return cfg, nil
}

// TokenBudgets merges configured budgets over the defaults. Agents keep the
// default order; configured agents outside the defaults are appended sorted.
func (c Config) TokenBudgets(defaults []domain.TokenBudget) []domain.TokenBudget {
	out := make([]domain.TokenBudget, 0, len(defaults)+len(c.Budgets))
	seen := make(map[domain.Agent]bool, len(defaults))
	for _, b := range defaults {
		if override, ok := c.Budgets[string(b.Agent)]; ok {
			b.Allocated = override.Allocated
			b.Used = override.Used
		}
		seen[b.Agent] = true
		out = append(out, b)
	}

	extra := make([]string, 0)
	for name := range c.Budgets {
		if !seen[domain.Agent(name)] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		b := c.Budgets[name]
		out = append(out, domain.TokenBudget{Agent: domain.Agent(name), Allocated: b.Allocated, Used: b.Used})
	}
	return out
}

// DemoScenarios returns the configured scenarios, or defaults when none are set.
func (c Config) DemoScenarios(defaults []domain.Scenario) ([]domain.Scenario, error) {
	if len(c.Scenarios) == 0 {
		return defaults, nil
	}
	out := make([]domain.Scenario, 0, len(c.Scenarios))
	for i, sc := range c.Scenarios {
		team := domain.ParseTeam(sc.Team)
		if strings.TrimSpace(sc.Task) == "" || len(team) == 0 {
			return nil, fmt.Errorf("scenario %d: %w", i, ErrEmptyScenario)
		}
		out = append(out, domain.Scenario{
			Task: strings.TrimSpace(sc.Task),
			Team: team,
			Options: domain.Options{
				ResearchFirst: sc.ResearchFirst,
				ChallengeMode: sc.ChallengeMode,
			},
		})
	}
	return out, nil
}

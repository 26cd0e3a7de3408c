package policy

import (
	"hxh_team/internal/domain"
)

// Designated roles that switch optional phases on.
const (
	SecurityAgent = domain.AgentKurapika
	StyleAgent    = domain.AgentHisoka
	GodspeedAgent = domain.AgentKillua
)

// Decision is the outcome of one gate, with the reason recorded in the journal.
type Decision struct {
	Run    bool
	Reason string
}

// Gates is evaluated once per run; the pipeline never re-checks a gate.
type Gates struct {
	Security  Decision
	Research  Decision
	Harmony   Decision
	Challenge Decision
	Godspeed  bool
}

type Engine struct{}

func New() *Engine {
	return &Engine{}
}

func (e *Engine) Evaluate(team []domain.Agent, opts domain.Options) Gates {
	return Gates{
		Security:  rosterGate(team, SecurityAgent),
		Research:  optionGate(opts.ResearchFirst, "research_first"),
		Harmony:   rosterGate(team, StyleAgent),
		Challenge: optionGate(opts.ChallengeMode, "challenge_mode"),
		Godspeed:  hasMember(team, GodspeedAgent),
	}
}

// For reports the gate decision for a phase. Execution and report always run.
func (g Gates) For(phase domain.Phase) Decision {
	switch phase {
	case domain.PhaseSecurity:
		return g.Security
	case domain.PhaseResearch:
		return g.Research
	case domain.PhaseHarmony:
		return g.Harmony
	case domain.PhaseChallenge:
		return g.Challenge
	default:
		return Decision{Run: true, Reason: "always runs"}
	}
}

func rosterGate(team []domain.Agent, agent domain.Agent) Decision {
	if hasMember(team, agent) {
		return Decision{Run: true, Reason: string(agent) + " in roster"}
	}
	return Decision{Run: false, Reason: string(agent) + " not in roster"}
}

func optionGate(enabled bool, name string) Decision {
	if enabled {
		return Decision{Run: true, Reason: name + " requested"}
	}
	return Decision{Run: false, Reason: name + " not requested"}
}

func hasMember(team []domain.Agent, agent domain.Agent) bool {
	for _, member := range team {
		if member == agent {
			return true
		}
	}
	return false
}

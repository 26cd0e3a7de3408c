package domain

import (
	"fmt"
	"strings"
	"time"
)

type Agent string

const (
	AgentGon      Agent = "gon"
	AgentKillua   Agent = "killua"
	AgentKurapika Agent = "kurapika"
	AgentHisoka   Agent = "hisoka"
	AgentMeruem   Agent = "meruem"
)

// KnownAgents is the closed roster in ledger order.
var KnownAgents = []Agent{AgentGon, AgentKillua, AgentKurapika, AgentHisoka, AgentMeruem}

func (a Agent) Known() bool {
	switch a {
	case AgentGon, AgentKillua, AgentKurapika, AgentHisoka, AgentMeruem:
		return true
	default:
		return false
	}
}

// StatusTemplate returns the display line for a progress update.
// Unknown agents get the generic form.
func (a Agent) StatusTemplate(action string, progress int) string {
	switch a {
	case AgentGon:
		return fmt.Sprintf("🎯 Gon: %s [%d%%] (User-friendly!)", action, progress)
	case AgentKillua:
		return fmt.Sprintf("⚡ Killua: %s [%d%%] (Lightning fast!)", action, progress)
	case AgentKurapika:
		return fmt.Sprintf("⛓️ Kurapika: %s [%d%%] (Secured!)", action, progress)
	case AgentHisoka:
		return fmt.Sprintf("♦️ Hisoka: %s [%d%%] (Beautiful...)", action, progress)
	case AgentMeruem:
		return fmt.Sprintf("👑 Meruem: %s [%d%%] (Evolving...)", action, progress)
	default:
		return fmt.Sprintf("%s: %s [%d%%]", string(a), action, progress)
	}
}

func (a Agent) ResearchTopic() string {
	switch a {
	case AgentGon:
		return "UI/UX best practices 2024"
	case AgentKillua:
		return "performance optimization techniques"
	case AgentKurapika:
		return "security vulnerabilities OWASP"
	case AgentHisoka:
		return "clean code principles"
	case AgentMeruem:
		return "AI optimization patterns"
	default:
		return "general best practices"
	}
}

// ExecutionTask returns the stub work description and its step count.
func (a Agent) ExecutionTask() (string, int) {
	switch a {
	case AgentGon:
		return "Creating user-friendly UI", 5
	case AgentKillua:
		return "Optimizing backend performance", 3
	case AgentKurapika:
		return "Implementing security layers", 4
	case AgentHisoka:
		return "Refactoring for aesthetics", 4
	case AgentMeruem:
		return "Evolving optimal solution", 6
	default:
		return "Working on task", 3
	}
}

func ParseTeam(ids []string) []Agent {
	team := make([]Agent, 0, len(ids))
	for _, id := range ids {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" {
			continue
		}
		team = append(team, Agent(id))
	}
	return team
}

func JoinTeam(team []Agent) string {
	names := make([]string, 0, len(team))
	for _, a := range team {
		names = append(names, string(a))
	}
	return strings.Join(names, ", ")
}

type Phase string

const (
	PhaseSecurity  Phase = "security"
	PhaseResearch  Phase = "research"
	PhaseExecution Phase = "execution"
	PhaseHarmony   Phase = "harmony"
	PhaseChallenge Phase = "challenge"
	PhaseReport    Phase = "report"
)

// Phases lists the pipeline in execution order.
var Phases = []Phase{PhaseSecurity, PhaseResearch, PhaseExecution, PhaseHarmony, PhaseChallenge, PhaseReport}

type PhaseAction string

const (
	PhaseActionStarted  PhaseAction = "started"
	PhaseActionSkipped  PhaseAction = "skipped"
	PhaseActionFinished PhaseAction = "finished"
)

type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusDone     RunStatus = "done"
	RunStatusCanceled RunStatus = "canceled"
)

type ResultKind string

const (
	ResultKindResearch  ResultKind = "research"
	ResultKindExecution ResultKind = "execution"
)

type Options struct {
	ResearchFirst bool `json:"research_first" toml:"research_first"`
	ChallengeMode bool `json:"challenge_mode" toml:"challenge_mode"`
}

func (o Options) String() string {
	return fmt.Sprintf("research_first=%t challenge_mode=%t", o.ResearchFirst, o.ChallengeMode)
}

type ProgressEvent struct {
	Agent    Agent  `json:"agent"`
	Action   string `json:"action"`
	Progress int    `json:"progress"`
}

type TokenBudget struct {
	Agent     Agent `json:"agent"`
	Allocated int   `json:"allocated"`
	Used      int   `json:"used"`
}

type UsageLine struct {
	Agent      Agent   `json:"agent"`
	Used       int     `json:"used"`
	Allocated  int     `json:"allocated"`
	Percentage float64 `json:"percentage"`
}

type TaskResult struct {
	Agent       Agent  `json:"agent"`
	Description string `json:"description"`
}

type ResearchResult struct {
	Agent    Agent  `json:"agent"`
	Topic    string `json:"topic"`
	Findings string `json:"findings"`
}

type SecurityReport struct {
	Threats     []string `json:"threats"`
	Constraints []string `json:"constraints"`
}

type HarmonyReport struct {
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

type Scenario struct {
	Task    string  `json:"task"`
	Team    []Agent `json:"team"`
	Options Options `json:"options"`
}

type Run struct {
	ID         string     `json:"id"`
	Task       string     `json:"task"`
	Team       []Agent    `json:"team"`
	Options    Options    `json:"options"`
	Status     RunStatus  `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type PhaseLog struct {
	ID        int64       `json:"id"`
	RunID     string      `json:"run_id"`
	Phase     Phase       `json:"phase"`
	Action    PhaseAction `json:"action"`
	Reason    string      `json:"reason"`
	CreatedAt time.Time   `json:"created_at"`
}

type ResultLog struct {
	ID          int64      `json:"id"`
	RunID       string     `json:"run_id"`
	Kind        ResultKind `json:"kind"`
	Seq         int        `json:"seq"`
	Agent       Agent      `json:"agent"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
}

type ProgressLog struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Agent     Agent     `json:"agent"`
	Action    string    `json:"action"`
	Progress  int       `json:"progress"`
	CreatedAt time.Time `json:"created_at"`
}

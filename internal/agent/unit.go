package agent

import (
	"context"
	"log"
	"time"

	"hxh_team/internal/domain"
	"hxh_team/internal/mock"
)

const (
	DefaultResearchDelay = 500 * time.Millisecond
	DefaultStepDelay     = 200 * time.Millisecond

	mockFindings = "mock findings"
)

type ProgressSink interface {
	Progress(ctx context.Context, ev domain.ProgressEvent)
}

type Config struct {
	ResearchDelay time.Duration
	StepDelay     time.Duration
}

func (c Config) withDefaults() Config {
	if c.ResearchDelay <= 0 {
		c.ResearchDelay = DefaultResearchDelay
	}
	if c.StepDelay <= 0 {
		c.StepDelay = DefaultStepDelay
	}
	return c
}

// Unit is one team member's stub worker. It reads only the agent's static
// tables and reports through the shared sink.
type Unit struct {
	id     domain.Agent
	sink   ProgressSink
	cfg    Config
	logger *log.Logger
}

func NewUnit(id domain.Agent, sink ProgressSink, cfg Config, logger *log.Logger) *Unit {
	if logger == nil {
		logger = log.Default()
	}
	return &Unit{
		id:     id,
		sink:   sink,
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

func (u *Unit) ID() domain.Agent {
	return u.id
}

func (u *Unit) Research(ctx context.Context, task string) (domain.ResearchResult, error) {
	topic := u.id.ResearchTopic()
	if !u.id.Known() {
		u.logger.Printf("research fallback agent=%s topic=%q", u.id, topic)
	}

	u.sink.Progress(ctx, domain.ProgressEvent{Agent: u.id, Action: "Researching " + topic, Progress: 0})
	if err := mock.Delay(ctx, u.cfg.ResearchDelay); err != nil {
		return domain.ResearchResult{}, err
	}
	u.sink.Progress(ctx, domain.ProgressEvent{Agent: u.id, Action: "Research complete!", Progress: 100})

	return domain.ResearchResult{
		Agent:    u.id,
		Topic:    topic,
		Findings: mockFindings,
	}, nil
}

func (u *Unit) Execute(ctx context.Context, task string) (domain.TaskResult, error) {
	desc, steps := u.id.ExecutionTask()
	if !u.id.Known() {
		u.logger.Printf("execution fallback agent=%s desc=%q", u.id, desc)
	}

	for i := 0; i < steps; i++ {
		u.sink.Progress(ctx, domain.ProgressEvent{
			Agent:    u.id,
			Action:   desc,
			Progress: StepProgress(i, steps),
		})
		if err := mock.Delay(ctx, u.cfg.StepDelay); err != nil {
			return domain.TaskResult{}, err
		}
	}

	return domain.TaskResult{
		Agent:       u.id,
		Description: desc + " - Complete!",
	}, nil
}

// StepProgress is the truncated percentage after finishing step i of steps.
func StepProgress(i, steps int) int {
	if steps <= 0 {
		return 100
	}
	return (i + 1) * 100 / steps
}

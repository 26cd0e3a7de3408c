package main

import (
	"fmt"
	"sort"
	"strings"

	"hxh_team/internal/domain"
)

func renderPhases(items []domain.PhaseLog) string {
	if len(items) == 0 {
		return "No phases"
	}
	var b strings.Builder
	for _, p := range items {
		color := "white"
		switch p.Action {
		case domain.PhaseActionSkipped:
			color = "gray"
		case domain.PhaseActionFinished:
			color = "green"
		}
		b.WriteString(fmt.Sprintf("[%s]%-9s %s[-]", color, p.Phase, p.Action))
		if p.Reason != "" {
			b.WriteString("  " + trimLine(p.Reason, 60))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func renderResults(items []domain.ResultLog) string {
	if len(items) == 0 {
		return "No results"
	}
	var b strings.Builder
	for _, r := range items {
		b.WriteString(fmt.Sprintf("%-9s #%d %s: %s\n", r.Kind, r.Seq, r.Agent, trimLine(r.Description, 80)))
	}
	return b.String()
}

func renderProgress(items []domain.ProgressLog) string {
	if len(items) == 0 {
		return "No progress events"
	}
	var b strings.Builder
	for _, p := range items {
		b.WriteString(fmt.Sprintf("[%s] %s\n", p.CreatedAt.Local().Format("15:04:05.000"), p.Agent.StatusTemplate(p.Action, p.Progress)))
	}
	return b.String()
}

// renderAgentState shows the latest progress per agent, in first-seen order.
func renderAgentState(items []domain.ProgressLog) string {
	if len(items) == 0 {
		return "No agents reported yet"
	}
	latest := make(map[domain.Agent]domain.ProgressLog)
	order := make(map[domain.Agent]int)
	for i, p := range items {
		if _, ok := order[p.Agent]; !ok {
			order[p.Agent] = i
		}
		latest[p.Agent] = p
	}
	agents := make([]domain.Agent, 0, len(latest))
	for a := range latest {
		agents = append(agents, a)
	}
	sort.Slice(agents, func(i, j int) bool {
		return order[agents[i]] < order[agents[j]]
	})

	var b strings.Builder
	for _, a := range agents {
		p := latest[a]
		b.WriteString(fmt.Sprintf("%-9s %s %3d%%  %s\n", a, progressBar(p.Progress, 20), p.Progress, trimLine(p.Action, 40)))
	}
	return b.String()
}

func progressBar(pct, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := pct * width / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func trimLine(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

package status

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"hxh_team/internal/domain"
)

func TestUpdateKnownAgentTemplates(t *testing.T) {
	cases := map[domain.Agent]string{
		domain.AgentGon:      "🎯 Gon: Creating user-friendly UI [20%] (User-friendly!)",
		domain.AgentKillua:   "⚡ Killua: Creating user-friendly UI [20%] (Lightning fast!)",
		domain.AgentKurapika: "⛓️ Kurapika: Creating user-friendly UI [20%] (Secured!)",
		domain.AgentHisoka:   "♦️ Hisoka: Creating user-friendly UI [20%] (Beautiful...)",
		domain.AgentMeruem:   "👑 Meruem: Creating user-friendly UI [20%] (Evolving...)",
	}
	for agent, want := range cases {
		var buf bytes.Buffer
		New(&buf).Update(domain.ProgressEvent{Agent: agent, Action: "Creating user-friendly UI", Progress: 20})
		if got := strings.TrimRight(buf.String(), "\n"); got != want {
			t.Fatalf("agent=%s got=%q want=%q", agent, got, want)
		}
	}
}

func TestUpdateUnknownAgentUsesFallback(t *testing.T) {
	for _, id := range []string{"leorio", "netero", ""} {
		var buf bytes.Buffer
		New(&buf).Update(domain.ProgressEvent{Agent: domain.Agent(id), Action: "Working on task", Progress: 100})
		want := id + ": Working on task [100%]\n"
		if buf.String() != want {
			t.Fatalf("agent=%q got=%q want=%q", id, buf.String(), want)
		}
	}
}

func TestConcurrentUpdatesKeepLinesWhole(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Update(domain.ProgressEvent{Agent: domain.AgentKillua, Action: "step", Progress: i})
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 20 {
		t.Fatalf("lines=%d want=20", len(lines))
	}
	for _, line := range lines {
		if !strings.HasPrefix(line, "⚡ Killua: step [") || !strings.HasSuffix(line, "(Lightning fast!)") {
			t.Fatalf("torn line: %q", line)
		}
	}
}

package status

import (
	"fmt"
	"io"
	"os"
	"sync"

	"hxh_team/internal/domain"
)

// Reporter is the single output sink for the narrative. Each call writes
// whole lines under one lock so concurrent agents never split a line.
type Reporter struct {
	mu  sync.Mutex
	out io.Writer
}

func New(out io.Writer) *Reporter {
	if out == nil {
		out = os.Stdout
	}
	return &Reporter{out: out}
}

func (r *Reporter) Update(ev domain.ProgressEvent) {
	r.Println(ev.Agent.StatusTemplate(ev.Action, ev.Progress))
}

func (r *Reporter) Println(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintln(r.out, line)
}

func (r *Reporter) Printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintf(r.out, format, args...)
}

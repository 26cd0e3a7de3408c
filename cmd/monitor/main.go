package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"hxh_team/internal/domain"
	sqlitestore "hxh_team/internal/store/sqlite"
)

type journal interface {
	ListRuns(ctx context.Context, limit int) ([]domain.Run, error)
	ListRunPhases(ctx context.Context, runID string) ([]domain.PhaseLog, error)
	ListRunResults(ctx context.Context, runID string) ([]domain.ResultLog, error)
	ListRunProgress(ctx context.Context, runID string, limit int) ([]domain.ProgressLog, error)
}

type runDetails struct {
	phases   []domain.PhaseLog
	results  []domain.ResultLog
	progress []domain.ProgressLog
	err      error
}

func main() {
	dbPath := flag.String("db", "data/hxh_journal.db", "sqlite run journal written by hxh-demo -db")
	interval := flag.Duration("interval", 2*time.Second, "refresh interval")
	limit := flag.Int("limit", 100, "max runs to list")
	flag.Parse()

	if _, err := os.Stat(*dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "run journal not found: %v\n", err)
		os.Exit(1)
	}
	store, err := sqlitestore.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open run journal: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = store.Close()
	}()
	if err := store.Migrate(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "migrate run journal: %v\n", err)
		os.Exit(1)
	}

	app := tview.NewApplication()
	runsTable := tview.NewTable().
		SetBorders(false).
		SetSelectable(true, false)
	runsTable.SetTitle("Runs (Enter inspect, F5 refresh, F10 quit)").SetBorder(true)

	phasesView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	phasesView.SetTitle("Phases").SetBorder(true)

	resultsView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	resultsView.SetTitle("Results").SetBorder(true)

	agentStateView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	agentStateView.SetTitle("Agent State").SetBorder(true)

	progressView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	progressView.SetTitle("Progress").SetBorder(true)

	statusView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	statusView.SetBorder(true).SetTitle("Status")
	statusView.SetText(fmt.Sprintf("Journal %s | shortcuts: F10 quit, F5 refresh", *dbPath))

	rightTop := tview.NewFlex().
		AddItem(phasesView, 0, 1, false).
		AddItem(resultsView, 0, 2, false)
	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(rightTop, 0, 2, false).
		AddItem(agentStateView, 8, 0, false).
		AddItem(progressView, 0, 3, false)

	mainLayout := tview.NewFlex().
		AddItem(runsTable, 0, 1, true).
		AddItem(right, 0, 2, false)

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(mainLayout, 0, 12, true).
		AddItem(statusView, 3, 0, false)

	var selectedRunID string
	var lastRuns []domain.Run
	var detailsVersion uint64

	refreshRuns := func() {
		runs, err := store.ListRuns(context.Background(), *limit)
		if err != nil {
			app.QueueUpdateDraw(func() {
				runsTable.Clear()
				runsTable.SetCell(0, 0, tview.NewTableCell(fmt.Sprintf("load error: %v", err)).SetTextColor(tview.Styles.ContrastSecondaryTextColor))
			})
			return
		}
		lastRuns = runs
		app.QueueUpdateDraw(func() {
			renderRunsTable(runsTable, runs, selectedRunID)
		})
	}

	refreshDetailsAsync := func(runID string) {
		if strings.TrimSpace(runID) == "" {
			return
		}
		version := atomic.AddUint64(&detailsVersion, 1)
		go func(selected string, v uint64) {
			details := loadDetails(context.Background(), store, selected)
			if atomic.LoadUint64(&detailsVersion) != v {
				return
			}
			app.QueueUpdateDraw(func() {
				if selected != selectedRunID {
					return
				}
				if details.err != nil {
					statusView.SetText(fmt.Sprintf("error: %v", details.err))
					return
				}
				phasesView.SetText(renderPhases(details.phases))
				resultsView.SetText(renderResults(details.results))
				agentStateView.SetText(renderAgentState(details.progress))
				progressView.SetText(renderProgress(details.progress))
				progressView.ScrollToEnd()
			})
		}(runID, version)
	}

	runsTable.SetSelectedFunc(func(row, _ int) {
		if row <= 0 || row > len(lastRuns) {
			return
		}
		selectedRunID = lastRuns[row-1].ID
		statusView.SetText("Run " + selectedRunID)
		refreshDetailsAsync(selectedRunID)
	})

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyF10:
			app.Stop()
			return nil
		case tcell.KeyF5:
			go func() {
				refreshRuns()
				refreshDetailsAsync(selectedRunID)
			}()
			statusView.SetText("Manual refresh")
			return nil
		}
		return event
	})

	go func() {
		ticker := time.NewTicker(*interval)
		defer ticker.Stop()

		refreshRuns()
		for _, run := range lastRuns {
			if run.Status == domain.RunStatusRunning {
				selectedRunID = run.ID
				break
			}
		}
		if selectedRunID == "" && len(lastRuns) > 0 {
			selectedRunID = lastRuns[0].ID
		}
		refreshDetailsAsync(selectedRunID)

		for range ticker.C {
			refreshRuns()
			refreshDetailsAsync(selectedRunID)
		}
	}()

	if err := app.SetRoot(root, true).EnableMouse(true).SetFocus(runsTable).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "monitor failed: %v\n", err)
		os.Exit(1)
	}
}

func loadDetails(ctx context.Context, j journal, runID string) runDetails {
	phases, err := j.ListRunPhases(ctx, runID)
	if err != nil {
		return runDetails{err: err}
	}
	results, err := j.ListRunResults(ctx, runID)
	if err != nil {
		return runDetails{err: err}
	}
	progress, err := j.ListRunProgress(ctx, runID, 500)
	if err != nil {
		return runDetails{err: err}
	}
	return runDetails{phases: phases, results: results, progress: progress}
}

func renderRunsTable(table *tview.Table, runs []domain.Run, selectedRunID string) {
	table.Clear()
	headers := []string{"Run", "Status", "Team", "Started", "Task"}
	for i, h := range headers {
		table.SetCell(0, i, tview.NewTableCell(h).SetSelectable(false).SetAttributes(tcell.AttrBold))
	}
	for i, r := range runs {
		row := i + 1
		table.SetCell(row, 0, tview.NewTableCell(shortID(r.ID)))
		table.SetCell(row, 1, tview.NewTableCell(string(r.Status)))
		table.SetCell(row, 2, tview.NewTableCell(fmt.Sprintf("%d", len(r.Team))))
		table.SetCell(row, 3, tview.NewTableCell(r.StartedAt.Local().Format("15:04:05")))
		table.SetCell(row, 4, tview.NewTableCell(trimLine(r.Task, 64)))
		if r.ID == selectedRunID {
			table.Select(row, 0)
		}
	}
}

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hxh_team/internal/domain"

	_ "modernc.org/sqlite"
)

var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	task TEXT NOT NULL,
	team TEXT NOT NULL,
	options TEXT NOT NULL,
	status TEXT NOT NULL,
	started_at INTEGER NOT NULL,
	finished_at INTEGER NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

CREATE TABLE IF NOT EXISTS phase_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	phase TEXT NOT NULL,
	action TEXT NOT NULL,
	reason TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_phase_log_run ON phase_log(run_id, id);

CREATE TABLE IF NOT EXISTS task_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	seq INTEGER NOT NULL,
	agent TEXT NOT NULL,
	description TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	UNIQUE(run_id, kind, seq),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS progress_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	agent TEXT NOT NULL,
	action TEXT NOT NULL,
	progress INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_progress_events_run ON progress_events(run_id, id);
`

// Store is the run journal. Units write progress concurrently, so a single
// connection serializes writers inside the process.
type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set sqlite pragma %q: %w", stmt, err)
		}
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (s *Store) CreateRun(ctx context.Context, run domain.Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = domain.RunStatusRunning
	}
	team, err := json.Marshal(run.Team)
	if err != nil {
		return fmt.Errorf("encode team: %w", err)
	}
	opts, err := json.Marshal(run.Options)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO runs(id, task, team, options, status, started_at, finished_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Task, string(team), string(opts), string(run.Status),
		run.StartedAt.UnixMilli(), nullableMillis(run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

func (s *Store) FinishRun(ctx context.Context, runID string, status domain.RunStatus) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`,
		string(status), time.Now().UTC().UnixMilli(), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, runID string) (domain.Run, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, task, team, options, status, started_at, finished_at
		FROM runs WHERE id = ?`,
		runID,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Run{}, fmt.Errorf("get run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return domain.Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, task, team, options, status, started_at, finished_at
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		result = append(result, run)
	}
	return result, rows.Err()
}

func (s *Store) LogPhase(ctx context.Context, entry domain.PhaseLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO phase_log(run_id, phase, action, reason, created_at) VALUES(?, ?, ?, ?, ?)`,
		entry.RunID, string(entry.Phase), string(entry.Action), entry.Reason, entry.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("log phase: %w", err)
	}
	return nil
}

func (s *Store) LogResult(ctx context.Context, entry domain.ResultLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO task_results(run_id, kind, seq, agent, description, created_at) VALUES(?, ?, ?, ?, ?, ?)`,
		entry.RunID, string(entry.Kind), entry.Seq, string(entry.Agent), entry.Description, entry.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("log result: %w", err)
	}
	return nil
}

func (s *Store) LogProgress(ctx context.Context, entry domain.ProgressLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO progress_events(run_id, agent, action, progress, created_at) VALUES(?, ?, ?, ?, ?)`,
		entry.RunID, string(entry.Agent), entry.Action, entry.Progress, entry.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("log progress: %w", err)
	}
	return nil
}

func (s *Store) ListRunPhases(ctx context.Context, runID string) ([]domain.PhaseLog, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, run_id, phase, action, reason, created_at
		FROM phase_log WHERE run_id = ? ORDER BY id ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list run phases: %w", err)
	}
	defer rows.Close()

	result := make([]domain.PhaseLog, 0)
	for rows.Next() {
		var p domain.PhaseLog
		var phase, action string
		var created int64
		if err := rows.Scan(&p.ID, &p.RunID, &phase, &action, &p.Reason, &created); err != nil {
			return nil, fmt.Errorf("scan phase: %w", err)
		}
		p.Phase = domain.Phase(phase)
		p.Action = domain.PhaseAction(action)
		p.CreatedAt = millisToTime(created)
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *Store) ListRunResults(ctx context.Context, runID string) ([]domain.ResultLog, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, run_id, kind, seq, agent, description, created_at
		FROM task_results WHERE run_id = ? ORDER BY kind ASC, seq ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list run results: %w", err)
	}
	defer rows.Close()

	result := make([]domain.ResultLog, 0)
	for rows.Next() {
		var r domain.ResultLog
		var kind, agent string
		var created int64
		if err := rows.Scan(&r.ID, &r.RunID, &kind, &r.Seq, &agent, &r.Description, &created); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Kind = domain.ResultKind(kind)
		r.Agent = domain.Agent(agent)
		r.CreatedAt = millisToTime(created)
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *Store) ListRunProgress(ctx context.Context, runID string, limit int) ([]domain.ProgressLog, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, run_id, agent, action, progress, created_at
		FROM progress_events WHERE run_id = ? ORDER BY id ASC LIMIT ?`,
		runID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list run progress: %w", err)
	}
	defer rows.Close()

	result := make([]domain.ProgressLog, 0)
	for rows.Next() {
		var p domain.ProgressLog
		var agent string
		var created int64
		if err := rows.Scan(&p.ID, &p.RunID, &agent, &p.Action, &p.Progress, &created); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		p.Agent = domain.Agent(agent)
		p.CreatedAt = millisToTime(created)
		result = append(result, p)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (domain.Run, error) {
	var r domain.Run
	var team, opts, status string
	var started int64
	var finished sql.NullInt64
	if err := row.Scan(&r.ID, &r.Task, &team, &opts, &status, &started, &finished); err != nil {
		return domain.Run{}, err
	}
	if err := json.Unmarshal([]byte(team), &r.Team); err != nil {
		return domain.Run{}, fmt.Errorf("decode team: %w", err)
	}
	if err := json.Unmarshal([]byte(opts), &r.Options); err != nil {
		return domain.Run{}, fmt.Errorf("decode options: %w", err)
	}
	r.Status = domain.RunStatus(status)
	r.StartedAt = millisToTime(started)
	r.FinishedAt = nullMillisToTimePtr(finished)
	return r, nil
}

func nullMillisToTimePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := millisToTime(v.Int64)
	return &t
}

func millisToTime(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func nullableMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().UnixMilli()
}

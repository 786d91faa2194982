package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"WaveSentinel/internal/model"
)

// SQLiteRecorder persists historical data to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS signals (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			source      TEXT NOT NULL,
			code        TEXT NOT NULL,
			name        TEXT,
			price       REAL,
			status      TEXT,
			score       INTEGER,
			pattern     TEXT,
			stop_loss   REAL,
			target      REAL,
			atr         REAL,
			rule_set    TEXT,
			description TEXT,
			note        TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_ts ON signals(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_code ON signals(code)`,

		`CREATE TABLE IF NOT EXISTS backtest_runs (
			id               TEXT PRIMARY KEY,
			timestamp        INTEGER NOT NULL,
			kind             TEXT,
			pool             TEXT,
			start_date       TEXT,
			end_date         TEXT,
			sizing           TEXT,
			final_equity     REAL,
			principal        REAL,
			total_return     REAL,
			cagr             REAL,
			max_drawdown     REAL,
			sharpe           REAL,
			benchmark_return REAL,
			alpha            REAL,
			buys             INTEGER,
			exits            INTEGER,
			win_rate         REAL,
			payoff_ratio     REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ts ON backtest_runs(timestamp)`,

		`CREATE TABLE IF NOT EXISTS backtest_trades (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id  TEXT NOT NULL REFERENCES backtest_runs(id),
			seq     INTEGER NOT NULL,
			date    TEXT,
			action  TEXT,
			code    TEXT,
			name    TEXT,
			price   REAL,
			shares  REAL,
			amount  REAL,
			fee     REAL,
			pnl     REAL,
			reason  TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_run ON backtest_trades(run_id)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func stampOrNow(t time.Time) int64 {
	if t.IsZero() {
		return time.Now().Unix()
	}
	return t.Unix()
}

func (r *SQLiteRecorder) RecordSignal(evt *SignalEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := evt.Decision
	_, err := r.db.Exec(`INSERT INTO signals
		(timestamp, source, code, name, price, status, score, pattern,
		 stop_loss, target, atr, rule_set, description, note)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		stampOrNow(evt.At), evt.Source, evt.Fund.Code, evt.Fund.Name, evt.Price,
		string(d.Status), d.Score, d.Pattern, d.StopLoss, d.Target, d.ATR,
		string(d.RuleSet), d.Description, evt.Note,
	)
	return err
}

// RecordBacktest stores the run and its trades in one transaction and
// returns the run id.
func (r *SQLiteRecorder) RecordBacktest(run *BacktestRun) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	tx, err := r.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	s := run.Summary
	_, err = tx.Exec(`INSERT INTO backtest_runs
		(id, timestamp, kind, pool, start_date, end_date, sizing,
		 final_equity, principal, total_return, cagr, max_drawdown, sharpe,
		 benchmark_return, alpha, buys, exits, win_rate, payoff_ratio)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		run.ID, stampOrNow(run.At), run.Kind, run.Pool,
		dateOrEmpty(run.Start), dateOrEmpty(run.End), run.Sizing,
		s.FinalEquity, s.Principal, s.TotalReturn, s.CAGR, s.MaxDrawdown, s.Sharpe,
		s.BenchmarkReturn, s.Alpha, s.Buys, s.Exits, s.WinRate, s.PayoffRatio,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO backtest_trades
		(run_id, seq, date, action, code, name, price, shares, amount, fee, pnl, reason)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return "", fmt.Errorf("prepare trades: %w", err)
	}
	defer stmt.Close()
	for i, t := range run.Trades {
		if _, err := stmt.Exec(run.ID, i, t.Date.Format(model.DateLayout), string(t.Action), t.Code, t.Name,
			t.Price, t.Shares, t.Amount, t.Fee, t.PnL, t.Reason); err != nil {
			return "", fmt.Errorf("insert trade %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return run.ID, nil
}

func dateOrEmpty(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(model.DateLayout)
}

// RecentRuns lists the latest runs, newest first.
func (r *SQLiteRecorder) RecentRuns(limit int) ([]RunRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT ru.id, ru.timestamp, ru.kind, ru.pool, ru.total_return, ru.max_drawdown, ru.sharpe,
			(SELECT COUNT(*) FROM backtest_trades t WHERE t.run_id = ru.id)
		FROM backtest_runs ru ORDER BY ru.timestamp DESC, ru.rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var row RunRow
		var ts int64
		if err := rows.Scan(&row.ID, &ts, &row.Kind, &row.Pool, &row.TotalReturn, &row.MaxDrawdown, &row.Sharpe, &row.Trades); err != nil {
			return nil, err
		}
		row.At = time.Unix(ts, 0)
		out = append(out, row)
	}
	return out, rows.Err()
}

// TradeCount returns the number of stored trades for a run.
func (r *SQLiteRecorder) TradeCount(runID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM backtest_trades WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}

// SignalCount returns the number of stored signals for a fund.
func (r *SQLiteRecorder) SignalCount(code string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM signals WHERE code = ?`, code).Scan(&n)
	return n, err
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}

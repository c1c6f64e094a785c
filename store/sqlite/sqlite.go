/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements generic.TxStore (every role interface plus WithTx) on SQLite.
  All queries are written against a small querier interface so the same
  code runs on *sql.DB and inside a *sql.Tx.

KEY TABLES:
  workers, products, attendance:   Workforce master data
  slabs:                           Incentive slab tables
  production_days, production_lines: The production ledger
  salary_profiles, allowances, commissions, deductions: Pay inputs
  payroll_periods, payroll_records: Payroll output (records immutable)
  audit_log:                       Append-only audit trail

CONSTRAINTS AS A SECOND LINE OF DEFENCE:
  The services check these rules inside a transaction first; the schema
  enforces them again:
  - production_days.date UNIQUE                          one day per date
  - production_lines UNIQUE(day_id, worker_id, product_id) no duplicate entry
  - payroll_records UNIQUE(period_id, worker_id)           one record per worker

CONCURRENCY:
  Transactions start with BEGIN IMMEDIATE (_txlock=immediate) and are also
  serialised by a mutex, so a read-check-write inside WithTx never races
  another writer. An in-memory database is pinned to one connection,
  because every new connection to ":memory:" would open an empty database.

STORAGE FORMATS:
  Dates are TEXT YYYY-MM-DD (so range predicates compare as strings),
  timestamps TEXT RFC3339Nano, money TEXT decimal strings. Payroll
  record line items are stored as one JSON document per record.

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/payroll-engine/generic"
)

// Store implements generic.TxStore using SQLite.
type Store struct {
	queries
	db *sql.DB
	mu sync.Mutex
}

var _ generic.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database. URIs that carry their own query
// string, such as "file:x?mode=memory&cache=shared", are accepted too.
func New(dbPath string) (*Store, error) {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite3", dbPath+sep+"_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	store := &Store{queries: queries{q: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS workers (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		designation TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'Active'
	);

	CREATE INDEX IF NOT EXISTS idx_workers_status ON workers(status);

	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS attendance (
		worker_id TEXT NOT NULL,
		date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'Present',
		PRIMARY KEY (worker_id, date)
	);

	CREATE TABLE IF NOT EXISTS slabs (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		qty_from INTEGER NOT NULL,
		qty_to INTEGER NOT NULL,
		rate_per_unit TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_slabs_product ON slabs(product_id, qty_from);

	CREATE TABLE IF NOT EXISTS production_days (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'Open',
		finalized_at TEXT,
		finalized_by TEXT
	);

	CREATE TABLE IF NOT EXISTS production_lines (
		id TEXT PRIMARY KEY,
		day_id TEXT NOT NULL REFERENCES production_days(id),
		date TEXT NOT NULL,
		worker_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		product_name TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		applied_rate TEXT NOT NULL,
		line_total TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE (day_id, worker_id, product_id)
	);

	-- Hot path for payroll: a worker's lines in a date range
	CREATE INDEX IF NOT EXISTS idx_lines_worker_date ON production_lines(worker_id, date);

	CREATE TABLE IF NOT EXISTS salary_profiles (
		worker_id TEXT PRIMARY KEY,
		basic_salary TEXT NOT NULL,
		overtime_rate TEXT NOT NULL,
		worker_type TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS allowances (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		name TEXT NOT NULL,
		amount TEXT NOT NULL,
		frequency TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_allowances_worker ON allowances(worker_id, active);

	CREATE TABLE IF NOT EXISTS commissions (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		series TEXT NOT NULL,
		amount TEXT NOT NULL,
		window_start TEXT NOT NULL,
		window_end TEXT NOT NULL,
		approved INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_commissions_worker ON commissions(worker_id);

	CREATE TABLE IF NOT EXISTS deductions (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		type TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		applied INTEGER NOT NULL DEFAULT 0,
		applied_period_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_deductions_worker ON deductions(worker_id, applied);

	CREATE TABLE IF NOT EXISTS payroll_periods (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'Open',
		created_at TEXT NOT NULL,
		finalized_at TEXT
	);

	CREATE TABLE IF NOT EXISTS payroll_records (
		id TEXT PRIMARY KEY,
		period_id TEXT NOT NULL REFERENCES payroll_periods(id),
		worker_id TEXT NOT NULL,
		worker_name TEXT NOT NULL,
		basic_salary TEXT NOT NULL,
		overtime_hours TEXT NOT NULL,
		overtime_pay TEXT NOT NULL,
		allowances_total TEXT NOT NULL,
		commissions_total TEXT NOT NULL,
		assembly_earnings TEXT NOT NULL,
		deductions_total TEXT NOT NULL,
		gross_pay TEXT NOT NULL,
		net_pay TEXT NOT NULL,
		present_days INTEGER NOT NULL,
		period_days INTEGER NOT NULL,
		no_salary_profile INTEGER NOT NULL DEFAULT 0,
		lines_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE (period_id, worker_id)
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		period_id TEXT,
		date TEXT,
		detail TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_period ON audit_log(period_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{q: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements generic.Store over a querier.
type queries struct {
	q querier
}

var _ generic.Store = (*queries)(nil)

// =============================================================================
// SLABS
// =============================================================================

const slabColumns = `id, product_id, qty_from, qty_to, rate_per_unit`

func scanSlab(row scanner) (generic.Slab, error) {
	var (
		s    generic.Slab
		rate string
	)
	if err := row.Scan(&s.ID, &s.ProductID, &s.QtyFrom, &s.QtyTo, &rate); err != nil {
		return s, err
	}
	s.RatePerUnit = generic.MustParseDecimal(rate)
	return s, nil
}

func (q *queries) ListSlabs(ctx context.Context, productID generic.ProductID) ([]generic.Slab, error) {
	return queryAll(ctx, q.q, scanSlab,
		`SELECT `+slabColumns+` FROM slabs WHERE product_id = ? ORDER BY qty_from`, productID)
}

func (q *queries) GetSlab(ctx context.Context, id string) (*generic.Slab, error) {
	return queryOne(ctx, q.q, scanSlab, `SELECT `+slabColumns+` FROM slabs WHERE id = ?`, id)
}

func (q *queries) SaveSlab(ctx context.Context, s generic.Slab) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO slabs (`+slabColumns+`) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			product_id = excluded.product_id,
			qty_from = excluded.qty_from,
			qty_to = excluded.qty_to,
			rate_per_unit = excluded.rate_per_unit`,
		s.ID, s.ProductID, s.QtyFrom, s.QtyTo, s.RatePerUnit.String())
	if err != nil {
		return fmt.Errorf("failed to save slab: %w", err)
	}
	return nil
}

func (q *queries) DeleteSlab(ctx context.Context, id string) error {
	_, err := q.q.ExecContext(ctx, `DELETE FROM slabs WHERE id = ?`, id)
	return err
}

// =============================================================================
// WORKFORCE
// =============================================================================

func scanWorker(row scanner) (generic.Worker, error) {
	var w generic.Worker
	err := row.Scan(&w.ID, &w.Code, &w.Name, &w.Designation, &w.Status)
	return w, err
}

func (q *queries) SaveWorker(ctx context.Context, w generic.Worker) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO workers (id, code, name, designation, status) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			code = excluded.code, name = excluded.name,
			designation = excluded.designation, status = excluded.status`,
		w.ID, w.Code, w.Name, w.Designation, w.Status)
	if err != nil {
		return fmt.Errorf("failed to save worker: %w", err)
	}
	return nil
}

func (q *queries) GetWorker(ctx context.Context, id generic.WorkerID) (*generic.Worker, error) {
	return queryOne(ctx, q.q, scanWorker,
		`SELECT id, code, name, designation, status FROM workers WHERE id = ?`, id)
}

func (q *queries) ListWorkers(ctx context.Context, activeOnly bool) ([]generic.Worker, error) {
	query := `SELECT id, code, name, designation, status FROM workers`
	var args []any
	if activeOnly {
		query += ` WHERE status = ?`
		args = append(args, generic.WorkerActive)
	}
	return queryAll(ctx, q.q, scanWorker, query+` ORDER BY code`, args...)
}

func scanProduct(row scanner) (generic.Product, error) {
	var p generic.Product
	err := row.Scan(&p.ID, &p.Code, &p.Name)
	return p, err
}

func (q *queries) SaveProduct(ctx context.Context, p generic.Product) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO products (id, code, name) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET code = excluded.code, name = excluded.name`,
		p.ID, p.Code, p.Name)
	if err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}
	return nil
}

func (q *queries) GetProduct(ctx context.Context, id generic.ProductID) (*generic.Product, error) {
	return queryOne(ctx, q.q, scanProduct, `SELECT id, code, name FROM products WHERE id = ?`, id)
}

func (q *queries) ListProducts(ctx context.Context) ([]generic.Product, error) {
	return queryAll(ctx, q.q, scanProduct, `SELECT id, code, name FROM products ORDER BY name`)
}

func scanAttendance(row scanner) (generic.Attendance, error) {
	var (
		a    generic.Attendance
		date string
	)
	if err := row.Scan(&a.WorkerID, &date, &a.Status); err != nil {
		return a, err
	}
	a.Date = parseDate(date)
	return a, nil
}

func (q *queries) SaveAttendance(ctx context.Context, a generic.Attendance) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO attendance (worker_id, date, status) VALUES (?, ?, ?)
		ON CONFLICT(worker_id, date) DO UPDATE SET status = excluded.status`,
		a.WorkerID, a.Date.String(), a.Status)
	if err != nil {
		return fmt.Errorf("failed to save attendance: %w", err)
	}
	return nil
}

func (q *queries) ListAttendance(ctx context.Context, workerID generic.WorkerID, period generic.Period) ([]generic.Attendance, error) {
	return queryAll(ctx, q.q, scanAttendance, `
		SELECT worker_id, date, status FROM attendance
		WHERE worker_id = ? AND date >= ? AND date <= ?
		ORDER BY date`,
		workerID, period.Start.String(), period.End.String())
}

func (q *queries) CountPresentDays(ctx context.Context, workerID generic.WorkerID, period generic.Period) (int, error) {
	var n int
	err := q.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM attendance
		WHERE worker_id = ? AND status = ? AND date >= ? AND date <= ?`,
		workerID, generic.AttendancePresent, period.Start.String(), period.End.String(),
	).Scan(&n)
	return n, err
}

// =============================================================================
// PRODUCTION
// =============================================================================

const dayColumns = `id, date, status, finalized_at, finalized_by`

func scanDay(row scanner) (generic.ProductionDay, error) {
	var (
		d           generic.ProductionDay
		date        string
		finalizedAt sql.NullString
		finalizedBy sql.NullString
	)
	if err := row.Scan(&d.ID, &date, &d.Status, &finalizedAt, &finalizedBy); err != nil {
		return d, err
	}
	d.Date = parseDate(date)
	d.FinalizedAt = parseTimePtr(finalizedAt)
	d.FinalizedBy = finalizedBy.String
	return d, nil
}

func (q *queries) GetDay(ctx context.Context, date generic.Date) (*generic.ProductionDay, error) {
	return queryOne(ctx, q.q, scanDay, `SELECT `+dayColumns+` FROM production_days WHERE date = ?`, date.String())
}

func (q *queries) SaveDay(ctx context.Context, d generic.ProductionDay) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO production_days (`+dayColumns+`) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			finalized_at = excluded.finalized_at,
			finalized_by = excluded.finalized_by`,
		d.ID, d.Date.String(), d.Status, formatTimePtr(d.FinalizedAt), nullString(d.FinalizedBy))
	if err != nil {
		if isUniqueConstraintError(err) {
			return &generic.ValidationError{Field: "date", Reason: "a production day already exists for " + d.Date.String()}
		}
		return fmt.Errorf("failed to save production day: %w", err)
	}
	return nil
}

func (q *queries) ListDays(ctx context.Context, period generic.Period) ([]generic.ProductionDay, error) {
	return queryAll(ctx, q.q, scanDay, `
		SELECT `+dayColumns+` FROM production_days
		WHERE date >= ? AND date <= ? ORDER BY date`,
		period.Start.String(), period.End.String())
}

const lineColumns = `l.id, l.day_id, l.date, l.worker_id, l.product_id, l.product_name,
	l.quantity, l.applied_rate, l.line_total, l.created_at`

func scanLine(row scanner) (generic.ProductionLine, error) {
	var (
		l         generic.ProductionLine
		date      string
		rate      string
		total     string
		createdAt string
	)
	err := row.Scan(&l.ID, &l.DayID, &date, &l.WorkerID, &l.ProductID, &l.ProductName,
		&l.Quantity, &rate, &total, &createdAt)
	if err != nil {
		return l, err
	}
	l.Date = parseDate(date)
	l.AppliedRate = generic.MustParseDecimal(rate)
	l.LineTotal = generic.MustParseDecimal(total)
	l.CreatedAt = parseTime(createdAt)
	return l, nil
}

func (q *queries) GetLine(ctx context.Context, id string) (*generic.ProductionLine, error) {
	return queryOne(ctx, q.q, scanLine, `SELECT `+lineColumns+` FROM production_lines l WHERE l.id = ?`, id)
}

func (q *queries) FindLine(ctx context.Context, dayID string, workerID generic.WorkerID, productID generic.ProductID) (*generic.ProductionLine, error) {
	return queryOne(ctx, q.q, scanLine, `
		SELECT `+lineColumns+` FROM production_lines l
		WHERE l.day_id = ? AND l.worker_id = ? AND l.product_id = ?`,
		dayID, workerID, productID)
}

func (q *queries) ListLines(ctx context.Context, dayID string) ([]generic.ProductionLine, error) {
	return queryAll(ctx, q.q, scanLine, `
		SELECT `+lineColumns+` FROM production_lines l
		WHERE l.day_id = ? ORDER BY l.created_at, l.rowid`, dayID)
}

func (q *queries) SaveLine(ctx context.Context, l generic.ProductionLine) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO production_lines
		(id, day_id, date, worker_id, product_id, product_name, quantity, applied_rate, line_total, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			quantity = excluded.quantity,
			applied_rate = excluded.applied_rate,
			line_total = excluded.line_total`,
		l.ID, l.DayID, l.Date.String(), l.WorkerID, l.ProductID, l.ProductName,
		l.Quantity, l.AppliedRate.String(), l.LineTotal.String(), formatTime(l.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to save production line: %w", err)
	}
	return nil
}

func (q *queries) DeleteLine(ctx context.Context, id string) error {
	_, err := q.q.ExecContext(ctx, `DELETE FROM production_lines WHERE id = ?`, id)
	return err
}

func (q *queries) FinalizedLines(ctx context.Context, workerID generic.WorkerID, period generic.Period) ([]generic.ProductionLine, error) {
	return queryAll(ctx, q.q, scanLine, `
		SELECT `+lineColumns+`
		FROM production_lines l
		JOIN production_days d ON d.id = l.day_id
		WHERE l.worker_id = ? AND d.status = ? AND l.date >= ? AND l.date <= ?
		ORDER BY l.date, l.product_name`,
		workerID, generic.StateFinalized, period.Start.String(), period.End.String())
}

// =============================================================================
// COMPENSATION
// =============================================================================

func (q *queries) GetSalaryProfile(ctx context.Context, workerID generic.WorkerID) (*generic.SalaryProfile, error) {
	return queryOne(ctx, q.q, func(row scanner) (generic.SalaryProfile, error) {
		var (
			p             generic.SalaryProfile
			basic, otRate string
		)
		if err := row.Scan(&p.WorkerID, &basic, &otRate, &p.WorkerType); err != nil {
			return p, err
		}
		p.BasicSalary = generic.MustParseDecimal(basic)
		p.OvertimeRate = generic.MustParseDecimal(otRate)
		return p, nil
	}, `SELECT worker_id, basic_salary, overtime_rate, worker_type FROM salary_profiles WHERE worker_id = ?`, workerID)
}

func (q *queries) SaveSalaryProfile(ctx context.Context, p generic.SalaryProfile) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO salary_profiles (worker_id, basic_salary, overtime_rate, worker_type) VALUES (?, ?, ?, ?)
		ON CONFLICT(worker_id) DO UPDATE SET
			basic_salary = excluded.basic_salary,
			overtime_rate = excluded.overtime_rate,
			worker_type = excluded.worker_type`,
		p.WorkerID, p.BasicSalary.String(), p.OvertimeRate.String(), p.WorkerType)
	if err != nil {
		return fmt.Errorf("failed to save salary profile: %w", err)
	}
	return nil
}

const allowanceColumns = `id, worker_id, name, amount, frequency, active`

func scanAllowance(row scanner) (generic.Allowance, error) {
	var (
		a      generic.Allowance
		amount string
	)
	if err := row.Scan(&a.ID, &a.WorkerID, &a.Name, &amount, &a.Frequency, &a.Active); err != nil {
		return a, err
	}
	a.Amount = generic.MustParseDecimal(amount)
	return a, nil
}

func (q *queries) SaveAllowance(ctx context.Context, a generic.Allowance) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO allowances (`+allowanceColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, amount = excluded.amount,
			frequency = excluded.frequency, active = excluded.active`,
		a.ID, a.WorkerID, a.Name, a.Amount.String(), a.Frequency, a.Active)
	if err != nil {
		return fmt.Errorf("failed to save allowance: %w", err)
	}
	return nil
}

func (q *queries) GetAllowance(ctx context.Context, id string) (*generic.Allowance, error) {
	return queryOne(ctx, q.q, scanAllowance, `SELECT `+allowanceColumns+` FROM allowances WHERE id = ?`, id)
}

func (q *queries) ListAllowances(ctx context.Context, workerID generic.WorkerID, activeOnly bool) ([]generic.Allowance, error) {
	where, args := workerFilter(workerID)
	if activeOnly {
		where = append(where, "active = 1")
	}
	return queryAll(ctx, q.q, scanAllowance,
		`SELECT `+allowanceColumns+` FROM allowances`+whereClause(where)+` ORDER BY name`, args...)
}

const commissionColumns = `id, worker_id, series, amount, window_start, window_end, approved`

func scanCommission(row scanner) (generic.Commission, error) {
	var (
		c                  generic.Commission
		amount, start, end string
	)
	if err := row.Scan(&c.ID, &c.WorkerID, &c.Series, &amount, &start, &end, &c.Approved); err != nil {
		return c, err
	}
	c.Amount = generic.MustParseDecimal(amount)
	c.Window = generic.Period{Start: parseDate(start), End: parseDate(end)}
	return c, nil
}

func (q *queries) SaveCommission(ctx context.Context, c generic.Commission) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO commissions (`+commissionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			series = excluded.series, amount = excluded.amount,
			window_start = excluded.window_start, window_end = excluded.window_end,
			approved = excluded.approved`,
		c.ID, c.WorkerID, c.Series, c.Amount.String(), c.Window.Start.String(), c.Window.End.String(), c.Approved)
	if err != nil {
		return fmt.Errorf("failed to save commission: %w", err)
	}
	return nil
}

func (q *queries) GetCommission(ctx context.Context, id string) (*generic.Commission, error) {
	return queryOne(ctx, q.q, scanCommission, `SELECT `+commissionColumns+` FROM commissions WHERE id = ?`, id)
}

func (q *queries) ListCommissions(ctx context.Context, workerID generic.WorkerID) ([]generic.Commission, error) {
	where, args := workerFilter(workerID)
	return queryAll(ctx, q.q, scanCommission,
		`SELECT `+commissionColumns+` FROM commissions`+whereClause(where)+` ORDER BY window_start, rowid`, args...)
}

const deductionColumns = `id, worker_id, type, description, amount, applied, applied_period_id`

func scanDeduction(row scanner) (generic.Deduction, error) {
	var (
		d        generic.Deduction
		amount   string
		periodID sql.NullString
	)
	if err := row.Scan(&d.ID, &d.WorkerID, &d.Type, &d.Description, &amount, &d.Applied, &periodID); err != nil {
		return d, err
	}
	d.Amount = generic.MustParseDecimal(amount)
	d.AppliedPeriodID = periodID.String
	return d, nil
}

func (q *queries) SaveDeduction(ctx context.Context, d generic.Deduction) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO deductions (`+deductionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type, description = excluded.description, amount = excluded.amount,
			applied = excluded.applied, applied_period_id = excluded.applied_period_id`,
		d.ID, d.WorkerID, d.Type, d.Description, d.Amount.String(), d.Applied, nullString(d.AppliedPeriodID))
	if err != nil {
		return fmt.Errorf("failed to save deduction: %w", err)
	}
	return nil
}

func (q *queries) GetDeduction(ctx context.Context, id string) (*generic.Deduction, error) {
	return queryOne(ctx, q.q, scanDeduction, `SELECT `+deductionColumns+` FROM deductions WHERE id = ?`, id)
}

func (q *queries) ListDeductions(ctx context.Context, workerID generic.WorkerID, unappliedOnly bool) ([]generic.Deduction, error) {
	where, args := workerFilter(workerID)
	if unappliedOnly {
		where = append(where, "applied = 0")
	}
	return queryAll(ctx, q.q, scanDeduction,
		`SELECT `+deductionColumns+` FROM deductions`+whereClause(where)+` ORDER BY rowid`, args...)
}

func (q *queries) DeleteDeduction(ctx context.Context, id string) error {
	_, err := q.q.ExecContext(ctx, `DELETE FROM deductions WHERE id = ?`, id)
	return err
}

func (q *queries) MarkDeductionsApplied(ctx context.Context, ids []string, periodID string) error {
	for _, id := range ids {
		res, err := q.q.ExecContext(ctx,
			`UPDATE deductions SET applied = 1, applied_period_id = ? WHERE id = ?`, periodID, id)
		if err != nil {
			return fmt.Errorf("failed to mark deduction applied: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &generic.NotFoundError{Resource: "deduction", ID: id}
		}
	}
	return nil
}

// =============================================================================
// PAYROLL
// =============================================================================

const periodColumns = `id, name, start_date, end_date, status, created_at, finalized_at`

func scanPeriod(row scanner) (generic.PayrollPeriod, error) {
	var (
		p                     generic.PayrollPeriod
		start, end, createdAt string
		finalizedAt           sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Name, &start, &end, &p.Status, &createdAt, &finalizedAt); err != nil {
		return p, err
	}
	p.Period = generic.Period{Start: parseDate(start), End: parseDate(end)}
	p.CreatedAt = parseTime(createdAt)
	p.FinalizedAt = parseTimePtr(finalizedAt)
	return p, nil
}

func (q *queries) SavePeriod(ctx context.Context, p generic.PayrollPeriod) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO payroll_periods (`+periodColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, status = excluded.status, finalized_at = excluded.finalized_at`,
		p.ID, p.Name, p.Period.Start.String(), p.Period.End.String(), p.Status,
		formatTime(p.CreatedAt), formatTimePtr(p.FinalizedAt))
	if err != nil {
		return fmt.Errorf("failed to save payroll period: %w", err)
	}
	return nil
}

func (q *queries) GetPeriod(ctx context.Context, id string) (*generic.PayrollPeriod, error) {
	return queryOne(ctx, q.q, scanPeriod, `SELECT `+periodColumns+` FROM payroll_periods WHERE id = ?`, id)
}

func (q *queries) ListPeriods(ctx context.Context) ([]generic.PayrollPeriod, error) {
	return queryAll(ctx, q.q, scanPeriod, `SELECT `+periodColumns+` FROM payroll_periods ORDER BY start_date DESC`)
}

// recordLines is the JSON document stored in payroll_records.lines_json.
type recordLines struct {
	Assembly    []generic.AssemblyLine   `json:"assembly"`
	Allowances  []generic.AllowanceLine  `json:"allowances"`
	Deductions  []generic.DeductionLine  `json:"deductions"`
	Commissions []generic.CommissionLine `json:"commissions"`
}

const recordColumns = `id, period_id, worker_id, worker_name, basic_salary, overtime_hours, overtime_pay,
	allowances_total, commissions_total, assembly_earnings, deductions_total, gross_pay, net_pay,
	present_days, period_days, no_salary_profile, lines_json, created_at`

func scanRecord(row scanner) (generic.PayrollRecord, error) {
	var (
		r                                 generic.PayrollRecord
		basic, otHours, otPay, allowances string
		commissions, assembly, deductions string
		gross, net, linesJSON, createdAt  string
	)
	err := row.Scan(&r.ID, &r.PeriodID, &r.WorkerID, &r.WorkerName, &basic, &otHours, &otPay,
		&allowances, &commissions, &assembly, &deductions, &gross, &net,
		&r.PresentDays, &r.PeriodDays, &r.NoSalaryProfile, &linesJSON, &createdAt)
	if err != nil {
		return r, err
	}
	r.BasicSalary = generic.MustParseDecimal(basic)
	r.OvertimeHours = generic.MustParseDecimal(otHours)
	r.OvertimePay = generic.MustParseDecimal(otPay)
	r.AllowancesTotal = generic.MustParseDecimal(allowances)
	r.CommissionsTotal = generic.MustParseDecimal(commissions)
	r.AssemblyEarnings = generic.MustParseDecimal(assembly)
	r.DeductionsTotal = generic.MustParseDecimal(deductions)
	r.GrossPay = generic.MustParseDecimal(gross)
	r.NetPay = generic.MustParseDecimal(net)
	r.CreatedAt = parseTime(createdAt)

	var lines recordLines
	if err := json.Unmarshal([]byte(linesJSON), &lines); err != nil {
		return r, fmt.Errorf("failed to decode record lines: %w", err)
	}
	r.AssemblyLines = lines.Assembly
	r.AllowanceLines = lines.Allowances
	r.DeductionLines = lines.Deductions
	r.CommissionLines = lines.Commissions
	return r, nil
}

func (q *queries) SaveRecord(ctx context.Context, r generic.PayrollRecord) error {
	linesJSON, err := json.Marshal(recordLines{
		Assembly:    r.AssemblyLines,
		Allowances:  r.AllowanceLines,
		Deductions:  r.DeductionLines,
		Commissions: r.CommissionLines,
	})
	if err != nil {
		return fmt.Errorf("failed to encode record lines: %w", err)
	}

	_, err = q.q.ExecContext(ctx, `
		INSERT INTO payroll_records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.PeriodID, r.WorkerID, r.WorkerName,
		r.BasicSalary.String(), r.OvertimeHours.String(), r.OvertimePay.String(),
		r.AllowancesTotal.String(), r.CommissionsTotal.String(), r.AssemblyEarnings.String(),
		r.DeductionsTotal.String(), r.GrossPay.String(), r.NetPay.String(),
		r.PresentDays, r.PeriodDays, r.NoSalaryProfile, string(linesJSON), formatTime(r.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateRecord
		}
		return fmt.Errorf("failed to save payroll record: %w", err)
	}
	return nil
}

func (q *queries) GetRecord(ctx context.Context, periodID string, workerID generic.WorkerID) (*generic.PayrollRecord, error) {
	return queryOne(ctx, q.q, scanRecord,
		`SELECT `+recordColumns+` FROM payroll_records WHERE period_id = ? AND worker_id = ?`, periodID, workerID)
}

func (q *queries) ListRecords(ctx context.Context, periodID string) ([]generic.PayrollRecord, error) {
	return queryAll(ctx, q.q, scanRecord,
		`SELECT `+recordColumns+` FROM payroll_records WHERE period_id = ? ORDER BY worker_name`, periodID)
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (q *queries) AppendAudit(ctx context.Context, e generic.AuditEntry) error {
	var date sql.NullString
	if !e.Date.IsZero() {
		date = sql.NullString{String: e.Date.String(), Valid: true}
	}
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO audit_log (id, timestamp, actor_id, action, period_id, date, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, formatTime(e.Timestamp), e.ActorID, e.Action, nullString(e.PeriodID), date, e.Detail)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (q *queries) QueryAudit(ctx context.Context, f generic.AuditFilter) ([]generic.AuditEntry, error) {
	var (
		where []string
		args  []any
	)
	if f.PeriodID != nil {
		where = append(where, "period_id = ?")
		args = append(args, *f.PeriodID)
	}
	if f.ActorID != nil {
		where = append(where, "actor_id = ?")
		args = append(args, *f.ActorID)
	}
	if len(f.Actions) > 0 {
		where = append(where, "action IN (?"+strings.Repeat(", ?", len(f.Actions)-1)+")")
		for _, a := range f.Actions {
			args = append(args, a)
		}
	}

	entries, err := queryAll(ctx, q.q, func(row scanner) (generic.AuditEntry, error) {
		var (
			e              generic.AuditEntry
			ts             string
			periodID, date sql.NullString
		)
		if err := row.Scan(&e.ID, &ts, &e.ActorID, &e.Action, &periodID, &date, &e.Detail); err != nil {
			return e, err
		}
		e.Timestamp = parseTime(ts)
		e.PeriodID = periodID.String
		if date.Valid {
			e.Date = parseDate(date.String)
		}
		return e, nil
	}, `SELECT id, timestamp, actor_id, action, period_id, date, detail FROM audit_log`+
		whereClause(where)+` ORDER BY rowid`, args...)
	if err != nil {
		return nil, err
	}

	// Time bounds are applied in Go; timestamps are not stored in a sortable
	// fixed-width form.
	out := entries[:0]
	for _, e := range entries {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func queryAll[T any](ctx context.Context, q querier, scan func(scanner) (T, error), query string, args ...any) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// queryOne returns (nil, nil) when no row matches.
func queryOne[T any](ctx context.Context, q querier, scan func(scanner) (T, error), query string, args ...any) (*T, error) {
	v, err := scan(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return &v, nil
}

func workerFilter(workerID generic.WorkerID) ([]string, []any) {
	if workerID == "" {
		return nil, nil
	}
	return []string{"worker_id = ?"}, []any{workerID}
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseDate(s string) generic.Date {
	d, _ := generic.ParseDate(s)
	return d
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

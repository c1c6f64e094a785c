// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements generic.TxStore. Every call takes the mutex; WithTx holds
// it for the whole callback, so transactions are serialised.
type Memory struct {
	mu sync.RWMutex
	st *state
}

func NewMemory() *Memory {
	return &Memory{st: newState()}
}

var _ generic.TxStore = (*Memory)(nil)

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(generic.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(m.st); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

// read and write run f under the appropriate lock.
func read[T any](m *Memory, f func(*state) (T, error)) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return f(m.st)
}

func write(m *Memory, f func(*state) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return f(m.st)
}

// =============================================================================
// LOCKED FACADE - generic.Store on Memory delegates to state under the mutex
// =============================================================================

func (m *Memory) ListSlabs(ctx context.Context, productID generic.ProductID) ([]generic.Slab, error) {
	return read(m, func(s *state) ([]generic.Slab, error) { return s.ListSlabs(ctx, productID) })
}
func (m *Memory) GetSlab(ctx context.Context, id string) (*generic.Slab, error) {
	return read(m, func(s *state) (*generic.Slab, error) { return s.GetSlab(ctx, id) })
}
func (m *Memory) SaveSlab(ctx context.Context, sl generic.Slab) error {
	return write(m, func(s *state) error { return s.SaveSlab(ctx, sl) })
}
func (m *Memory) DeleteSlab(ctx context.Context, id string) error {
	return write(m, func(s *state) error { return s.DeleteSlab(ctx, id) })
}

func (m *Memory) SaveWorker(ctx context.Context, w generic.Worker) error {
	return write(m, func(s *state) error { return s.SaveWorker(ctx, w) })
}
func (m *Memory) GetWorker(ctx context.Context, id generic.WorkerID) (*generic.Worker, error) {
	return read(m, func(s *state) (*generic.Worker, error) { return s.GetWorker(ctx, id) })
}
func (m *Memory) ListWorkers(ctx context.Context, activeOnly bool) ([]generic.Worker, error) {
	return read(m, func(s *state) ([]generic.Worker, error) { return s.ListWorkers(ctx, activeOnly) })
}
func (m *Memory) SaveProduct(ctx context.Context, p generic.Product) error {
	return write(m, func(s *state) error { return s.SaveProduct(ctx, p) })
}
func (m *Memory) GetProduct(ctx context.Context, id generic.ProductID) (*generic.Product, error) {
	return read(m, func(s *state) (*generic.Product, error) { return s.GetProduct(ctx, id) })
}
func (m *Memory) ListProducts(ctx context.Context) ([]generic.Product, error) {
	return read(m, func(s *state) ([]generic.Product, error) { return s.ListProducts(ctx) })
}
func (m *Memory) SaveAttendance(ctx context.Context, a generic.Attendance) error {
	return write(m, func(s *state) error { return s.SaveAttendance(ctx, a) })
}
func (m *Memory) ListAttendance(ctx context.Context, workerID generic.WorkerID, period generic.Period) ([]generic.Attendance, error) {
	return read(m, func(s *state) ([]generic.Attendance, error) { return s.ListAttendance(ctx, workerID, period) })
}
func (m *Memory) CountPresentDays(ctx context.Context, workerID generic.WorkerID, period generic.Period) (int, error) {
	return read(m, func(s *state) (int, error) { return s.CountPresentDays(ctx, workerID, period) })
}

func (m *Memory) GetDay(ctx context.Context, date generic.Date) (*generic.ProductionDay, error) {
	return read(m, func(s *state) (*generic.ProductionDay, error) { return s.GetDay(ctx, date) })
}
func (m *Memory) SaveDay(ctx context.Context, d generic.ProductionDay) error {
	return write(m, func(s *state) error { return s.SaveDay(ctx, d) })
}
func (m *Memory) ListDays(ctx context.Context, period generic.Period) ([]generic.ProductionDay, error) {
	return read(m, func(s *state) ([]generic.ProductionDay, error) { return s.ListDays(ctx, period) })
}
func (m *Memory) GetLine(ctx context.Context, id string) (*generic.ProductionLine, error) {
	return read(m, func(s *state) (*generic.ProductionLine, error) { return s.GetLine(ctx, id) })
}
func (m *Memory) FindLine(ctx context.Context, dayID string, workerID generic.WorkerID, productID generic.ProductID) (*generic.ProductionLine, error) {
	return read(m, func(s *state) (*generic.ProductionLine, error) { return s.FindLine(ctx, dayID, workerID, productID) })
}
func (m *Memory) ListLines(ctx context.Context, dayID string) ([]generic.ProductionLine, error) {
	return read(m, func(s *state) ([]generic.ProductionLine, error) { return s.ListLines(ctx, dayID) })
}
func (m *Memory) SaveLine(ctx context.Context, l generic.ProductionLine) error {
	return write(m, func(s *state) error { return s.SaveLine(ctx, l) })
}
func (m *Memory) DeleteLine(ctx context.Context, id string) error {
	return write(m, func(s *state) error { return s.DeleteLine(ctx, id) })
}
func (m *Memory) FinalizedLines(ctx context.Context, workerID generic.WorkerID, period generic.Period) ([]generic.ProductionLine, error) {
	return read(m, func(s *state) ([]generic.ProductionLine, error) { return s.FinalizedLines(ctx, workerID, period) })
}

func (m *Memory) GetSalaryProfile(ctx context.Context, workerID generic.WorkerID) (*generic.SalaryProfile, error) {
	return read(m, func(s *state) (*generic.SalaryProfile, error) { return s.GetSalaryProfile(ctx, workerID) })
}
func (m *Memory) SaveSalaryProfile(ctx context.Context, p generic.SalaryProfile) error {
	return write(m, func(s *state) error { return s.SaveSalaryProfile(ctx, p) })
}
func (m *Memory) SaveAllowance(ctx context.Context, a generic.Allowance) error {
	return write(m, func(s *state) error { return s.SaveAllowance(ctx, a) })
}
func (m *Memory) GetAllowance(ctx context.Context, id string) (*generic.Allowance, error) {
	return read(m, func(s *state) (*generic.Allowance, error) { return s.GetAllowance(ctx, id) })
}
func (m *Memory) ListAllowances(ctx context.Context, workerID generic.WorkerID, activeOnly bool) ([]generic.Allowance, error) {
	return read(m, func(s *state) ([]generic.Allowance, error) { return s.ListAllowances(ctx, workerID, activeOnly) })
}
func (m *Memory) SaveCommission(ctx context.Context, c generic.Commission) error {
	return write(m, func(s *state) error { return s.SaveCommission(ctx, c) })
}
func (m *Memory) GetCommission(ctx context.Context, id string) (*generic.Commission, error) {
	return read(m, func(s *state) (*generic.Commission, error) { return s.GetCommission(ctx, id) })
}
func (m *Memory) ListCommissions(ctx context.Context, workerID generic.WorkerID) ([]generic.Commission, error) {
	return read(m, func(s *state) ([]generic.Commission, error) { return s.ListCommissions(ctx, workerID) })
}
func (m *Memory) SaveDeduction(ctx context.Context, d generic.Deduction) error {
	return write(m, func(s *state) error { return s.SaveDeduction(ctx, d) })
}
func (m *Memory) GetDeduction(ctx context.Context, id string) (*generic.Deduction, error) {
	return read(m, func(s *state) (*generic.Deduction, error) { return s.GetDeduction(ctx, id) })
}
func (m *Memory) ListDeductions(ctx context.Context, workerID generic.WorkerID, unappliedOnly bool) ([]generic.Deduction, error) {
	return read(m, func(s *state) ([]generic.Deduction, error) { return s.ListDeductions(ctx, workerID, unappliedOnly) })
}
func (m *Memory) DeleteDeduction(ctx context.Context, id string) error {
	return write(m, func(s *state) error { return s.DeleteDeduction(ctx, id) })
}
func (m *Memory) MarkDeductionsApplied(ctx context.Context, ids []string, periodID string) error {
	return write(m, func(s *state) error { return s.MarkDeductionsApplied(ctx, ids, periodID) })
}

func (m *Memory) SavePeriod(ctx context.Context, p generic.PayrollPeriod) error {
	return write(m, func(s *state) error { return s.SavePeriod(ctx, p) })
}
func (m *Memory) GetPeriod(ctx context.Context, id string) (*generic.PayrollPeriod, error) {
	return read(m, func(s *state) (*generic.PayrollPeriod, error) { return s.GetPeriod(ctx, id) })
}
func (m *Memory) ListPeriods(ctx context.Context) ([]generic.PayrollPeriod, error) {
	return read(m, func(s *state) ([]generic.PayrollPeriod, error) { return s.ListPeriods(ctx) })
}
func (m *Memory) SaveRecord(ctx context.Context, r generic.PayrollRecord) error {
	return write(m, func(s *state) error { return s.SaveRecord(ctx, r) })
}
func (m *Memory) GetRecord(ctx context.Context, periodID string, workerID generic.WorkerID) (*generic.PayrollRecord, error) {
	return read(m, func(s *state) (*generic.PayrollRecord, error) { return s.GetRecord(ctx, periodID, workerID) })
}
func (m *Memory) ListRecords(ctx context.Context, periodID string) ([]generic.PayrollRecord, error) {
	return read(m, func(s *state) ([]generic.PayrollRecord, error) { return s.ListRecords(ctx, periodID) })
}

func (m *Memory) AppendAudit(ctx context.Context, e generic.AuditEntry) error {
	return write(m, func(s *state) error { return s.AppendAudit(ctx, e) })
}
func (m *Memory) QueryAudit(ctx context.Context, f generic.AuditFilter) ([]generic.AuditEntry, error) {
	return read(m, func(s *state) ([]generic.AuditEntry, error) { return s.QueryAudit(ctx, f) })
}

// =============================================================================
// STATE - Unlocked maps; also the Store handed to WithTx callbacks
// =============================================================================

type lineKey struct {
	DayID     string
	WorkerID  generic.WorkerID
	ProductID generic.ProductID
}

type attendanceKey struct {
	WorkerID generic.WorkerID
	Date     generic.Date
}

type recordKey struct {
	PeriodID string
	WorkerID generic.WorkerID
}

type state struct {
	slabs       map[string]generic.Slab
	workers     map[generic.WorkerID]generic.Worker
	products    map[generic.ProductID]generic.Product
	attendance  map[attendanceKey]generic.Attendance
	days        map[string]generic.ProductionDay
	dayByDate   map[generic.Date]string
	lines       map[string]generic.ProductionLine
	lineIndex   map[lineKey]string
	profiles    map[generic.WorkerID]generic.SalaryProfile
	allowances  map[string]generic.Allowance
	commissions map[string]generic.Commission
	deductions  map[string]generic.Deduction
	periods     map[string]generic.PayrollPeriod
	records     map[recordKey]generic.PayrollRecord
	audit       []generic.AuditEntry
}

var _ generic.Store = (*state)(nil)

func newState() *state {
	return &state{
		slabs:       make(map[string]generic.Slab),
		workers:     make(map[generic.WorkerID]generic.Worker),
		products:    make(map[generic.ProductID]generic.Product),
		attendance:  make(map[attendanceKey]generic.Attendance),
		days:        make(map[string]generic.ProductionDay),
		dayByDate:   make(map[generic.Date]string),
		lines:       make(map[string]generic.ProductionLine),
		lineIndex:   make(map[lineKey]string),
		profiles:    make(map[generic.WorkerID]generic.SalaryProfile),
		allowances:  make(map[string]generic.Allowance),
		commissions: make(map[string]generic.Commission),
		deductions:  make(map[string]generic.Deduction),
		periods:     make(map[string]generic.PayrollPeriod),
		records:     make(map[recordKey]generic.PayrollRecord),
	}
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// clone copies every map. Records are immutable once stored, so sharing
// their line slices between snapshot and live state is safe.
func (s *state) clone() *state {
	return &state{
		slabs:       cloneMap(s.slabs),
		workers:     cloneMap(s.workers),
		products:    cloneMap(s.products),
		attendance:  cloneMap(s.attendance),
		days:        cloneMap(s.days),
		dayByDate:   cloneMap(s.dayByDate),
		lines:       cloneMap(s.lines),
		lineIndex:   cloneMap(s.lineIndex),
		profiles:    cloneMap(s.profiles),
		allowances:  cloneMap(s.allowances),
		commissions: cloneMap(s.commissions),
		deductions:  cloneMap(s.deductions),
		periods:     cloneMap(s.periods),
		records:     cloneMap(s.records),
		audit:       append([]generic.AuditEntry(nil), s.audit...),
	}
}

func ptr[T any](v T, ok bool) *T {
	if !ok {
		return nil
	}
	return &v
}

// --- slabs ---

func (s *state) ListSlabs(_ context.Context, productID generic.ProductID) ([]generic.Slab, error) {
	var out []generic.Slab
	for _, sl := range s.slabs {
		if sl.ProductID == productID {
			out = append(out, sl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QtyFrom < out[j].QtyFrom })
	return out, nil
}

func (s *state) GetSlab(_ context.Context, id string) (*generic.Slab, error) {
	sl, ok := s.slabs[id]
	return ptr(sl, ok), nil
}

func (s *state) SaveSlab(_ context.Context, sl generic.Slab) error {
	s.slabs[sl.ID] = sl
	return nil
}

func (s *state) DeleteSlab(_ context.Context, id string) error {
	delete(s.slabs, id)
	return nil
}

// --- workforce ---

func (s *state) SaveWorker(_ context.Context, w generic.Worker) error {
	s.workers[w.ID] = w
	return nil
}

func (s *state) GetWorker(_ context.Context, id generic.WorkerID) (*generic.Worker, error) {
	w, ok := s.workers[id]
	return ptr(w, ok), nil
}

func (s *state) ListWorkers(_ context.Context, activeOnly bool) ([]generic.Worker, error) {
	var out []generic.Worker
	for _, w := range s.workers {
		if activeOnly && !w.IsActive() {
			continue
		}
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *state) SaveProduct(_ context.Context, p generic.Product) error {
	s.products[p.ID] = p
	return nil
}

func (s *state) GetProduct(_ context.Context, id generic.ProductID) (*generic.Product, error) {
	p, ok := s.products[id]
	return ptr(p, ok), nil
}

func (s *state) ListProducts(_ context.Context) ([]generic.Product, error) {
	out := make([]generic.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *state) SaveAttendance(_ context.Context, a generic.Attendance) error {
	s.attendance[attendanceKey{WorkerID: a.WorkerID, Date: a.Date}] = a
	return nil
}

func (s *state) ListAttendance(_ context.Context, workerID generic.WorkerID, period generic.Period) ([]generic.Attendance, error) {
	var out []generic.Attendance
	for _, a := range s.attendance {
		if a.WorkerID == workerID && period.Contains(a.Date) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *state) CountPresentDays(ctx context.Context, workerID generic.WorkerID, period generic.Period) (int, error) {
	rows, _ := s.ListAttendance(ctx, workerID, period)
	n := 0
	for _, a := range rows {
		if a.Status == generic.AttendancePresent {
			n++
		}
	}
	return n, nil
}

// --- production ---

func (s *state) GetDay(_ context.Context, date generic.Date) (*generic.ProductionDay, error) {
	id, ok := s.dayByDate[date]
	if !ok {
		return nil, nil
	}
	d := s.days[id]
	return &d, nil
}

func (s *state) SaveDay(_ context.Context, d generic.ProductionDay) error {
	if existing, ok := s.dayByDate[d.Date]; ok && existing != d.ID {
		return &generic.ValidationError{Field: "date", Reason: "a production day already exists for " + d.Date.String()}
	}
	s.days[d.ID] = d
	s.dayByDate[d.Date] = d.ID
	return nil
}

func (s *state) ListDays(_ context.Context, period generic.Period) ([]generic.ProductionDay, error) {
	var out []generic.ProductionDay
	for _, d := range s.days {
		if period.Contains(d.Date) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *state) GetLine(_ context.Context, id string) (*generic.ProductionLine, error) {
	l, ok := s.lines[id]
	return ptr(l, ok), nil
}

func (s *state) FindLine(_ context.Context, dayID string, workerID generic.WorkerID, productID generic.ProductID) (*generic.ProductionLine, error) {
	id, ok := s.lineIndex[lineKey{DayID: dayID, WorkerID: workerID, ProductID: productID}]
	if !ok {
		return nil, nil
	}
	l := s.lines[id]
	return &l, nil
}

func (s *state) ListLines(_ context.Context, dayID string) ([]generic.ProductionLine, error) {
	var out []generic.ProductionLine
	for _, l := range s.lines {
		if l.DayID == dayID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *state) SaveLine(_ context.Context, l generic.ProductionLine) error {
	k := lineKey{DayID: l.DayID, WorkerID: l.WorkerID, ProductID: l.ProductID}
	if existing, ok := s.lineIndex[k]; ok && existing != l.ID {
		return generic.ErrDuplicateEntry
	}
	if old, ok := s.lines[l.ID]; ok {
		delete(s.lineIndex, lineKey{DayID: old.DayID, WorkerID: old.WorkerID, ProductID: old.ProductID})
	}
	s.lines[l.ID] = l
	s.lineIndex[k] = l.ID
	return nil
}

func (s *state) DeleteLine(_ context.Context, id string) error {
	l, ok := s.lines[id]
	if !ok {
		return nil
	}
	delete(s.lineIndex, lineKey{DayID: l.DayID, WorkerID: l.WorkerID, ProductID: l.ProductID})
	delete(s.lines, id)
	return nil
}

func (s *state) FinalizedLines(_ context.Context, workerID generic.WorkerID, period generic.Period) ([]generic.ProductionLine, error) {
	var out []generic.ProductionLine
	for _, l := range s.lines {
		if l.WorkerID != workerID || !period.Contains(l.Date) {
			continue
		}
		if day, ok := s.days[l.DayID]; ok && day.Status == generic.StateFinalized {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ProductName < out[j].ProductName
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

// --- compensation ---

func (s *state) GetSalaryProfile(_ context.Context, workerID generic.WorkerID) (*generic.SalaryProfile, error) {
	p, ok := s.profiles[workerID]
	return ptr(p, ok), nil
}

func (s *state) SaveSalaryProfile(_ context.Context, p generic.SalaryProfile) error {
	s.profiles[p.WorkerID] = p
	return nil
}

func (s *state) SaveAllowance(_ context.Context, a generic.Allowance) error {
	s.allowances[a.ID] = a
	return nil
}

func (s *state) GetAllowance(_ context.Context, id string) (*generic.Allowance, error) {
	a, ok := s.allowances[id]
	return ptr(a, ok), nil
}

func (s *state) ListAllowances(_ context.Context, workerID generic.WorkerID, activeOnly bool) ([]generic.Allowance, error) {
	var out []generic.Allowance
	for _, a := range s.allowances {
		if workerID != "" && a.WorkerID != workerID {
			continue
		}
		if activeOnly && !a.Active {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *state) SaveCommission(_ context.Context, c generic.Commission) error {
	s.commissions[c.ID] = c
	return nil
}

func (s *state) GetCommission(_ context.Context, id string) (*generic.Commission, error) {
	c, ok := s.commissions[id]
	return ptr(c, ok), nil
}

func (s *state) ListCommissions(_ context.Context, workerID generic.WorkerID) ([]generic.Commission, error) {
	var out []generic.Commission
	for _, c := range s.commissions {
		if workerID == "" || c.WorkerID == workerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Window.Start.Before(out[j].Window.Start) })
	return out, nil
}

func (s *state) SaveDeduction(_ context.Context, d generic.Deduction) error {
	s.deductions[d.ID] = d
	return nil
}

func (s *state) GetDeduction(_ context.Context, id string) (*generic.Deduction, error) {
	d, ok := s.deductions[id]
	return ptr(d, ok), nil
}

func (s *state) ListDeductions(_ context.Context, workerID generic.WorkerID, unappliedOnly bool) ([]generic.Deduction, error) {
	var out []generic.Deduction
	for _, d := range s.deductions {
		if workerID != "" && d.WorkerID != workerID {
			continue
		}
		if unappliedOnly && d.Applied {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *state) DeleteDeduction(_ context.Context, id string) error {
	delete(s.deductions, id)
	return nil
}

func (s *state) MarkDeductionsApplied(_ context.Context, ids []string, periodID string) error {
	for _, id := range ids {
		d, ok := s.deductions[id]
		if !ok {
			return &generic.NotFoundError{Resource: "deduction", ID: id}
		}
		d.Applied = true
		d.AppliedPeriodID = periodID
		s.deductions[id] = d
	}
	return nil
}

// --- payroll ---

func (s *state) SavePeriod(_ context.Context, p generic.PayrollPeriod) error {
	s.periods[p.ID] = p
	return nil
}

func (s *state) GetPeriod(_ context.Context, id string) (*generic.PayrollPeriod, error) {
	p, ok := s.periods[id]
	return ptr(p, ok), nil
}

func (s *state) ListPeriods(_ context.Context) ([]generic.PayrollPeriod, error) {
	out := make([]generic.PayrollPeriod, 0, len(s.periods))
	for _, p := range s.periods {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period.Start.After(out[j].Period.Start) })
	return out, nil
}

func (s *state) SaveRecord(_ context.Context, r generic.PayrollRecord) error {
	k := recordKey{PeriodID: r.PeriodID, WorkerID: r.WorkerID}
	if _, exists := s.records[k]; exists {
		return generic.ErrDuplicateRecord
	}
	s.records[k] = r.Clone()
	return nil
}

func (s *state) GetRecord(_ context.Context, periodID string, workerID generic.WorkerID) (*generic.PayrollRecord, error) {
	r, ok := s.records[recordKey{PeriodID: periodID, WorkerID: workerID}]
	if !ok {
		return nil, nil
	}
	c := r.Clone()
	return &c, nil
}

func (s *state) ListRecords(_ context.Context, periodID string) ([]generic.PayrollRecord, error) {
	var out []generic.PayrollRecord
	for k, r := range s.records {
		if k.PeriodID == periodID {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkerName < out[j].WorkerName })
	return out, nil
}

// --- audit ---

func (s *state) AppendAudit(_ context.Context, e generic.AuditEntry) error {
	s.audit = append(s.audit, e)
	return nil
}

func (s *state) QueryAudit(_ context.Context, f generic.AuditFilter) ([]generic.AuditEntry, error) {
	var out []generic.AuditEntry
	for _, e := range s.audit {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

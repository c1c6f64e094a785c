/*
handlers.go - HTTP API handlers for the production and payroll engine

PURPOSE:
  Exposes slabs, the production ledger and payroll periods over REST, plus
  thin master-data endpoints so the server is usable end to end. Handlers
  decode and validate the request, call one service method and write the
  result. Business rules live in the services.

ENDPOINTS:
  Master data:
    GET/POST   /api/workers                       List / create workers
    GET/PUT    /api/workers/{id}                  Get / update worker
    GET/PUT    /api/workers/{id}/salary-profile   Salary profile (upsert)
    GET/POST   /api/workers/{id}/attendance       Attendance (?from&to) / upsert
    GET/POST   /api/products                      List / create products
    GET/POST   /api/allowances                    List (?worker_id) / create
    DELETE     /api/allowances/{id}               Deactivate
    GET/POST   /api/commissions                   List / create
    POST       /api/commissions/{id}/approve      Approve
    GET/POST   /api/deductions                    List (?worker_id&pending) / create
    DELETE     /api/deductions/{id}               Delete while unapplied

  Slabs:
    GET/POST   /api/products/{id}/slabs           List / add
    PUT/DELETE /api/slabs/{id}                    Update / remove
    GET        /api/slabs/quote                   ?product_id&quantity preview

  Production:
    GET        /api/production?date=              Day sheet
    GET        /api/production/days?from&to       Days in a range
    POST       /api/production/entries            Add entry
    PUT/DELETE /api/production/entries/{id}       Update / remove entry
    POST       /api/production/days/{date}/finalize
    POST       /api/production/days/{date}/unlock
    GET        /api/production/days/{date}/summary
    GET        /api/production/report?from&to     Totals per worker and product

  Payroll:
    GET/POST   /api/payroll/periods               List / generate
    GET        /api/payroll/periods/{id}          Report
    POST       /api/payroll/periods/{id}/resume   Fill missing records
    POST       /api/payroll/periods/{id}/finalize Lock
    GET        /api/payroll/periods/{id}/audit    Audit trail
    GET        /api/audit                         ?action&actor

ACTOR:
  Mutating calls that are audited take the actor from the X-Actor-ID
  header. Authentication is out of scope; the header is trusted.

SEE ALSO:
  - dto.go: Request types
  - errors.go: Error to status mapping
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/production"
	"github.com/warp/payroll-engine/slab"
)

// ActorHeader names the caller in audit entries.
const ActorHeader = "X-Actor-ID"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   generic.TxStore
	Slabs   *slab.Service
	Ledger  *production.Ledger
	Payroll *payroll.Runner

	validate *validator.Validate
	log      *zap.Logger
	now      func() time.Time
}

func NewHandler(store generic.TxStore, slabs *slab.Service, ledger *production.Ledger, runner *payroll.Runner, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Store:    store,
		Slabs:    slabs,
		Ledger:   ledger,
		Payroll:  runner,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log.Named("api"),
		now:      time.Now,
	}
}

// decode reads a JSON body into dst and runs its validation tags.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &generic.ValidationError{Field: "body", Reason: err.Error()}
	}
	return h.validate.Struct(dst)
}

func actor(r *http.Request) string {
	return r.Header.Get(ActorHeader)
}

func dateParam(value, field string) (generic.Date, error) {
	if value == "" {
		return generic.Date{}, &generic.ValidationError{Field: field, Reason: "required"}
	}
	d, err := generic.ParseDate(value)
	if err != nil {
		return generic.Date{}, &generic.ValidationError{Field: field, Reason: err.Error()}
	}
	return d, nil
}

func periodParams(r *http.Request) (generic.Period, error) {
	from, err := dateParam(r.URL.Query().Get("from"), "from")
	if err != nil {
		return generic.Period{}, err
	}
	to, err := dateParam(r.URL.Query().Get("to"), "to")
	if err != nil {
		return generic.Period{}, err
	}
	return generic.NewPeriod(from, to)
}

func requirePositive(field string, d decimal.Decimal) error {
	if !d.IsPositive() {
		return &generic.ValidationError{Field: field, Reason: "must be greater than 0"}
	}
	return nil
}

func requireNonNegative(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return &generic.ValidationError{Field: field, Reason: "must not be negative"}
	}
	return nil
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// WORKERS
// =============================================================================

// ListWorkers returns workers; ?active=true limits to active ones.
// GET /api/workers
func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := h.Store.ListWorkers(r.Context(), r.URL.Query().Get("active") == "true")
	if err != nil {
		fail(w, r, err)
		return
	}
	if workers == nil {
		workers = []generic.Worker{}
	}
	writeJSON(w, http.StatusOK, workers)
}

// CreateWorker creates a worker.
// POST /api/workers
func (h *Handler) CreateWorker(w http.ResponseWriter, r *http.Request) {
	var req WorkerRequest
	if err := h.decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	h.saveWorker(w, r, req, http.StatusCreated)
}

// UpdateWorker replaces a worker's details.
// PUT /api/workers/{id}
func (h *Handler) UpdateWorker(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existing, err := h.Store.GetWorker(r.Context(), generic.WorkerID(id))
	if err != nil {
		fail(w, r, err)
		return
	}
	if existing == nil {
		fail(w, r, &generic.NotFoundError{Resource: "worker", ID: id})
		return
	}
	var req WorkerRequest
	if err := h.decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	req.ID = id
	h.saveWorker(w, r, req, http.StatusOK)
}

func (h *Handler) saveWorker(w http.ResponseWriter, r *http.Request, req WorkerRequest, status int) {
	worker := generic.Worker{
		ID:          generic.WorkerID(req.ID),
		Code:        req.Code,
		Name:        req.Name,
		Designation: req.Designation,
		Status:      generic.WorkerStatus(req.Status),
	}
	if worker.Status == "" {
		worker.Status = generic.WorkerActive
	}
	if err := h.Store.SaveWorker(r.Context(), worker); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, status, worker)
}

// GetWorker returns one worker.
// GET /api/workers/{id}
func (h *Handler) GetWorker(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	worker, err := h.Store.GetWorker(r.Context(), generic.WorkerID(id))
	if err != nil {
		fail(w, r, err)
		return
	}
	if worker == nil {
		fail(w, r, &generic.NotFoundError{Resource: "worker", ID: id})
		return
	}
	writeJSON(w, http.StatusOK, worker)
}

// GetSalaryProfile returns a worker's salary profile.
// GET /api/workers/{id}/salary-profile
func (h *Handler) GetSalaryProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	profile, err := h.Store.GetSalaryProfile(r.Context(), generic.WorkerID(id))
	if err != nil {
		fail(w, r, err)
		return
	}
	if profile == nil {
		fail(w, r, &generic.NotFoundError{Resource: "salary profile", ID: id})
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// PutSalaryProfile creates or replaces a worker's salary profile.
// PUT /api/workers/{id}/salary-profile
func (h *Handler) PutSalaryProfile(w http.ResponseWriter, r *http.Request) {
	id := generic.WorkerID(chi.URLParam(r, "id"))
	var req SalaryProfileRequest
	if err := h.decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if err := requireNonNegative("basic_salary", req.BasicSalary); err != nil {
		fail(w, r, err)
		return
	}
	if err := requireNonNegative("overtime_rate", req.OvertimeRate); err != nil {
		fail(w, r, err)
		return
	}
	if !h.workerExists(w, r, id) {
		return
	}
	profile := generic.SalaryProfile{
		WorkerID:     id,
		BasicSalary:  req.BasicSalary,
		OvertimeRate: req.OvertimeRate,
		WorkerType:   generic.WorkerType(req.WorkerType),
	}
	if err := h.Store.SaveSalaryProfile(r.Context(), profile); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// ListAttendance returns a worker's attendance in [from, to].
// GET /api/workers/{id}/attendance?from=&to=
func (h *Handler) ListAttendance(w http.ResponseWriter, r *http.Request) {
	period, err := periodParams(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	rows, err := h.Store.ListAttendance(r.Context(), generic.WorkerID(chi.URLParam(r, "id")), period)
	if err != nil {
		fail(w, r, err)
		return
	}
	if rows == nil {
		rows = []generic.Attendance{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// MarkAttendance upserts one day of attendance.
// POST /api/workers/{id}/attendance
func (h *Handler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	id := generic.WorkerID(chi.URLParam(r, "id"))
	var req AttendanceRequest
	if err := h.decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	date, err := dateParam(req.Date, "date")
	if err != nil {
		fail(w, r, err)
		return
	}
	if !h.workerExists(w, r, id) {
		return
	}
	a := generic.Attendance{WorkerID: id, Date: date, Status: generic.AttendanceStatus(req.Status)}
	if err := h.Store.SaveAttendance(r.Context(), a); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) workerExists(w http.ResponseWriter, r *http.Request, id generic.WorkerID) bool {
	worker, err := h.Store.GetWorker(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return false
	}
	if worker == nil {
		fail(w, r, &generic.NotFoundError{Resource: "worker", ID: string(id)})
		return false
	}
	return true
}

// =============================================================================
// PRODUCTS AND SLABS
// =============================================================================

// ListProducts returns all products.
// GET /api/products
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Store.ListProducts(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	if products == nil {
		products = []generic.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

// CreateProduct creates a product.
// POST /api/products
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := h.decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	p := generic.Product{ID: generic.ProductID(req.ID), Code: req.Code, Name: req.Name}
	if err := h.Store.SaveProduct(r.Context(), p); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// ListSlabs returns a product's slabs ordered by QtyFrom.
// GET /api/products/{id}/slabs
func (h *Handler) ListSlabs(w http.ResponseWriter, r *http.Request) {
	slabs, err := h.Slabs.List(r.Context(), generic.ProductID(chi.URLParam(r, "id")))
	if err != nil {
		fail(w, r, err)
		return
	}
	if slabs == nil {
		slabs = []generic.Slab{}
	}
	writeJSON(w, http.StatusOK, slabs)
}

// AddSlab adds a slab to a product.
// POST /api/products/{id}/slabs
func (h *Handler) AddSlab(w http.ResponseWriter, r *http.Request) {
	var req SlabRequest
	if err := h.decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	s, err := h.Slabs.Add(r.Context(), slab.Input{
		ProductID:   generic.ProductID(chi.URLParam(r, "id")),
		QtyFrom:     req.QtyFrom,
		QtyTo:       req.QtyTo,
		RatePerUnit: req.RatePerUnit,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// UpdateSlab changes a slab's range and rate.
// PUT /api/slabs/{id}
func (h *Handler) UpdateSlab(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existing, err := h.Store.GetSlab(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	if existing == nil {
		fail(w, r, &generic.NotFoundError{Resource: "slab", ID: id})
		return
	}
	var req SlabRequest
	if err := h.decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	s, err := h.Slabs.Update(r.Context(), id, slab.Input{
		ProductID:   existing.ProductID,
		QtyFrom:     req.QtyFrom,
		QtyTo:       req.QtyTo,
		RatePerUnit: req.RatePerUnit,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// DeleteSlab removes a slab.
// DELETE /api/slabs/{id}
func (h *Handler) DeleteSlab(w http.ResponseWriter, r *http.Request) {
	if err := h.Slabs.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// QuoteSlab previews the rate and total for a quantity.
// GET /api/slabs/quote?product_id=&quantity=
func (h *Handler) QuoteSlab(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	qty, err := strconv.Atoi(q.Get("quantity"))
	if err != nil {
		fail(w, r, &generic.ValidationError{Field: "quantity", Reason: "must be an integer"})
		return
	}
	productID := q.Get("product_id")
	if productID == "" {
		fail(w, r, &generic.ValidationError{Field: "product_id", Reason: "required"})
		return
	}
	quote, err := h.Slabs.Quote(r.Context(), generic.ProductID(productID), qty)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// =============================================================================
// COMPENSATION
// =============================================================================

// ListAllowances returns allowances, optionally for one worker.
// GET /api/allowances?worker_id=&active=true
func (h *Handler) ListAllowances(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.Store.ListAllowances(r.Context(), generic.WorkerID(q.Get("worker_id")), q.Get("active") == "true")
	if err != nil {
		fail(w, r, err)
		return
	}
	if list == nil {
		list = []generic.Allowance{}
	}
	writeJSON(w, http.StatusOK, list)
}

// CreateAllowance adds an active allowance.
// POST /api/allowances
func (h *Handler) CreateAllowance(w http.ResponseWriter, r *http.Request) {
	var req AllowanceRequest
	if err := h.decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if err := requirePositive("amount", req.Amount); err != nil {
		fail(w, r, err)
		return
	}
	if !h.workerExists(w, r, generic.WorkerID(req.WorkerID)) {
		return
	}
	a := generic.Allowance{
		ID:        uuid.NewString(),
		WorkerID:  generic.WorkerID(req.WorkerID),
		Name:      req.Name,
		Amount:    req.Amount,
		Frequency: generic.Frequency(req.Frequency),
		Active:    true,
	}
	if err := h.Store.SaveAllowance(r.Context(), a); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// DeactivateAllowance soft-deletes an allowance.
// DELETE /api/allowances/{id}
func (h *Handler) DeactivateAllowance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.Store.WithTx(r.Context(), func(tx generic.Store) error {
		a, err := tx.GetAllowance(r.Context(), id)
		if err != nil {
			return err
		}
		if a == nil {
			return &generic.NotFoundError{Resource: "allowance", ID: id}
		}
		a.Active = false
		return tx.SaveAllowance(r.Context(), *a)
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCommissions returns commissions, optionally for one worker.
// GET /api/commissions?worker_id=
func (h *Handler) ListCommissions(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListCommissions(r.Context(), generic.WorkerID(r.URL.Query().Get("worker_id")))
	if err != nil {
		fail(w, r, err)
		return
	}
	if list == nil {
		list = []generic.Commission{}
	}
	writeJSON(w, http.StatusOK, list)
}

// CreateCommission records a commission.
// POST /api/commissions
func (h *Handler) CreateCommission(w http.ResponseWriter, r *http.Request) {
	var req CommissionRequest
	if err := h.decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if err := requirePositive("amount", req.Amount); err != nil {
		fail(w, r, err)
		return
	}
	start, err := dateParam(req.PeriodStart, "period_start")
	if err != nil {
		fail(w, r, err)
		return
	}
	end, err := dateParam(req.PeriodEnd, "period_end")
	if err != nil {
		fail(w, r, err)
		return
	}
	window, err := generic.NewPeriod(start, end)
	if err != nil {
		fail(w, r, err)
		return
	}
	if !h.workerExists(w, r, generic.WorkerID(req.WorkerID)) {
		return
	}
	c := generic.Commission{
		ID:       uuid.NewString(),
		WorkerID: generic.WorkerID(req.WorkerID),
		Series:   req.Series,
		Amount:   req.Amount,
		Window:   window,
		Approved: req.Approved,
	}
	if err := h.Store.SaveCommission(r.Context(), c); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// ApproveCommission marks a commission approved.
// POST /api/commissions/{id}/approve
func (h *Handler) ApproveCommission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var approved generic.Commission
	err := h.Store.WithTx(r.Context(), func(tx generic.Store) error {
		c, err := tx.GetCommission(r.Context(), id)
		if err != nil {
			return err
		}
		if c == nil {
			return &generic.NotFoundError{Resource: "commission", ID: id}
		}
		c.Approved = true
		approved = *c
		return tx.SaveCommission(r.Context(), *c)
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, approved)
}

// ListDeductions returns deductions; ?pending=true limits to unapplied ones.
// GET /api/deductions?worker_id=&pending=true
func (h *Handler) ListDeductions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.Store.ListDeductions(r.Context(), generic.WorkerID(q.Get("worker_id")), q.Get("pending") == "true")
	if err != nil {
		fail(w, r, err)
		return
	}
	if list == nil {
		list = []generic.Deduction{}
	}
	writeJSON(w, http.StatusOK, list)
}

// CreateDeduction records an unapplied deduction.
// POST /api/deductions
func (h *Handler) CreateDeduction(w http.ResponseWriter, r *http.Request) {
	var req DeductionRequest
	if err := h.decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if err := requirePositive("amount", req.Amount); err != nil {
		fail(w, r, err)
		return
	}
	if !h.workerExists(w, r, generic.WorkerID(req.WorkerID)) {
		return
	}
	d := generic.Deduction{
		ID:          uuid.NewString(),
		WorkerID:    generic.WorkerID(req.WorkerID),
		Type:        req.Type,
		Description: req.Description,
		Amount:      req.Amount,
	}
	if err := h.Store.SaveDeduction(r.Context(), d); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// DeleteDeduction removes a deduction that no payroll has consumed.
// DELETE /api/deductions/{id}
func (h *Handler) DeleteDeduction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.Store.WithTx(r.Context(), func(tx generic.Store) error {
		d, err := tx.GetDeduction(r.Context(), id)
		if err != nil {
			return err
		}
		if d == nil {
			return &generic.NotFoundError{Resource: "deduction", ID: id}
		}
		if d.Applied {
			return &generic.ValidationError{Field: "id", Reason: "deduction was applied by payroll period " + d.AppliedPeriodID}
		}
		return tx.DeleteDeduction(r.Context(), id)
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// PRODUCTION
// =============================================================================

// GetProductionSheet returns one date's day row and lines.
// GET /api/production?date=YYYY-MM-DD
func (h *Handler) GetProductionSheet(w http.ResponseWriter, r *http.Request) {
	date, err := dateParam(r.URL.Query().Get("date"), "date")
	if err != nil {
		fail(w, r, err)
		return
	}
	sheet, err := h.Ledger.Sheet(r.Context(), date)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":   sheet.Date,
		"status": sheet.Status(),
		"day":    sheet.Day,
		"lines":  sheet.Lines,
	})
}

// ListProductionDays returns the days in [from, to].
// GET /api/production/days?from=&to=
func (h *Handler) ListProductionDays(w http.ResponseWriter, r *http.Request) {
	period, err := periodParams(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	days, err := h.Ledger.Days(r.Context(), period)
	if err != nil {
		fail(w, r, err)
		return
	}
	if days == nil {
		days = []generic.ProductionDay{}
	}
	writeJSON(w, http.StatusOK, days)
}

// AddEntry records a production entry.
// POST /api/production/entries
func (h *Handler) AddEntry(w http.ResponseWriter, r *http.Request) {
	var req EntryRequest
	if err := h.decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	date, err := dateParam(req.Date, "date")
	if err != nil {
		fail(w, r, err)
		return
	}
	line, err := h.Ledger.AddEntry(r.Context(), production.Entry{
		Date:      date,
		WorkerID:  generic.WorkerID(req.WorkerID),
		ProductID: generic.ProductID(req.ProductID),
		Quantity:  req.Quantity,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, line)
}

// UpdateEntry changes an entry's quantity.
// PUT /api/production/entries/{id}
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	var req UpdateEntryRequest
	if err := h.decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	line, err := h.Ledger.UpdateEntry(r.Context(), chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, line)
}

// RemoveEntry deletes an entry from an Open day.
// DELETE /api/production/entries/{id}
func (h *Handler) RemoveEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.Ledger.RemoveEntry(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FinalizeDay locks a production day.
// POST /api/production/days/{date}/finalize
func (h *Handler) FinalizeDay(w http.ResponseWriter, r *http.Request) {
	date, err := dateParam(chi.URLParam(r, "date"), "date")
	if err != nil {
		fail(w, r, err)
		return
	}
	day, err := h.Ledger.Finalize(r.Context(), date, actor(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

// UnlockDay re-opens a Finalized production day.
// POST /api/production/days/{date}/unlock
func (h *Handler) UnlockDay(w http.ResponseWriter, r *http.Request) {
	date, err := dateParam(chi.URLParam(r, "date"), "date")
	if err != nil {
		fail(w, r, err)
		return
	}
	day, err := h.Ledger.Unlock(r.Context(), date, actor(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

// DaySummary returns per-worker totals for a date.
// GET /api/production/days/{date}/summary
func (h *Handler) DaySummary(w http.ResponseWriter, r *http.Request) {
	date, err := dateParam(chi.URLParam(r, "date"), "date")
	if err != nil {
		fail(w, r, err)
		return
	}
	summary, err := h.Ledger.Summary(r.Context(), date)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// ProductionReport totals production over a date range.
// GET /api/production/report?from=&to=
func (h *Handler) ProductionReport(w http.ResponseWriter, r *http.Request) {
	period, err := periodParams(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	report, err := h.Ledger.RangeSummary(r.Context(), period)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// =============================================================================
// PAYROLL
// =============================================================================

func overtimeMap(in map[string]decimal.Decimal) map[generic.WorkerID]decimal.Decimal {
	out := make(map[generic.WorkerID]decimal.Decimal, len(in))
	for k, v := range in {
		out[generic.WorkerID(k)] = v
	}
	return out
}

// ListPeriods returns all payroll periods with record counts.
// GET /api/payroll/periods
func (h *Handler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := h.Payroll.List(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, periods)
}

// GeneratePayroll creates a period and a record for every active worker.
// POST /api/payroll/periods
func (h *Handler) GeneratePayroll(w http.ResponseWriter, r *http.Request) {
	var req GeneratePayrollRequest
	if err := h.decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	start, err := dateParam(req.PeriodStart, "period_start")
	if err != nil {
		fail(w, r, err)
		return
	}
	end, err := dateParam(req.PeriodEnd, "period_end")
	if err != nil {
		fail(w, r, err)
		return
	}
	res, err := h.Payroll.Run(r.Context(), payroll.RunInput{
		Name:          req.Name,
		Start:         start,
		End:           end,
		OvertimeHours: overtimeMap(req.OvertimeHours),
		ActorID:       actor(r),
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// GetPeriod returns a period's report.
// GET /api/payroll/periods/{id}
func (h *Handler) GetPeriod(w http.ResponseWriter, r *http.Request) {
	report, err := h.Payroll.Report(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ResumePayroll generates records missing from an Open period.
// POST /api/payroll/periods/{id}/resume
func (h *Handler) ResumePayroll(w http.ResponseWriter, r *http.Request) {
	var req ResumePayrollRequest
	if r.ContentLength != 0 {
		if err := h.decode(r, &req); err != nil {
			fail(w, r, err)
			return
		}
	}
	res, err := h.Payroll.Resume(r.Context(), chi.URLParam(r, "id"), overtimeMap(req.OvertimeHours), actor(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// FinalizePeriod locks a payroll period.
// POST /api/payroll/periods/{id}/finalize
func (h *Handler) FinalizePeriod(w http.ResponseWriter, r *http.Request) {
	p, err := h.Payroll.Finalize(r.Context(), chi.URLParam(r, "id"), actor(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// PeriodAudit returns a period's audit trail.
// GET /api/payroll/periods/{id}/audit
func (h *Handler) PeriodAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Payroll.Audit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []generic.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// QueryAudit filters the whole audit log.
// GET /api/audit?action=&actor=
func (h *Handler) QueryAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter generic.AuditFilter
	for _, a := range q["action"] {
		switch action := generic.AuditAction(a); action {
		case generic.AuditGenerate, generic.AuditFinalize, generic.AuditDayFinalize, generic.AuditDayUnlock:
			filter.Actions = append(filter.Actions, action)
		default:
			fail(w, r, &generic.ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action %q", a)})
			return
		}
	}
	if a := q.Get("actor"); a != "" {
		filter.ActorID = &a
	}
	entries, err := h.Store.QueryAudit(r.Context(), filter)
	if err != nil {
		fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []generic.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

package production

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
)

// DaySheet is a date's lines plus the day row, if one exists yet.
type DaySheet struct {
	Date  generic.Date             `json:"date"`
	Day   *generic.ProductionDay   `json:"day"`
	Lines []generic.ProductionLine `json:"lines"`
}

// Status is Open for a date that has no day row yet.
func (s DaySheet) Status() generic.LockState {
	if s.Day == nil {
		return generic.StateOpen
	}
	return s.Day.Status
}

// Sheet returns everything recorded for a date.
func (l *Ledger) Sheet(ctx context.Context, date generic.Date) (*DaySheet, error) {
	sheet := &DaySheet{Date: date, Lines: []generic.ProductionLine{}}
	day, err := l.store.GetDay(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load day: %w", err)
	}
	if day == nil {
		return sheet, nil
	}
	sheet.Day = day
	lines, err := l.store.ListLines(ctx, day.ID)
	if err != nil {
		return nil, fmt.Errorf("list lines: %w", err)
	}
	if lines != nil {
		sheet.Lines = lines
	}
	return sheet, nil
}

// Days lists the production days in a range.
func (l *Ledger) Days(ctx context.Context, period generic.Period) ([]generic.ProductionDay, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	return l.store.ListDays(ctx, period)
}

// WorkerTotal is one worker's output for a day or a range.
type WorkerTotal struct {
	WorkerID   generic.WorkerID `json:"worker_id"`
	WorkerName string           `json:"worker_name"`
	Entries    int              `json:"entries"`
	Quantity   int              `json:"quantity"`
	Earnings   decimal.Decimal  `json:"earnings"`
}

// DailySummary rolls a day's lines up per worker.
type DailySummary struct {
	Date         generic.Date      `json:"date"`
	Status       generic.LockState `json:"status"`
	Workers      []WorkerTotal     `json:"workers"`
	FactoryTotal decimal.Decimal   `json:"factory_total"`
}

// Summary totals a day per worker, ordered by earnings (highest first).
func (l *Ledger) Summary(ctx context.Context, date generic.Date) (*DailySummary, error) {
	sheet, err := l.Sheet(ctx, date)
	if err != nil {
		return nil, err
	}
	names, err := l.workerNames(ctx)
	if err != nil {
		return nil, err
	}

	byWorker := make(map[generic.WorkerID]*WorkerTotal)
	factory := decimal.Zero
	for _, line := range sheet.Lines {
		t, ok := byWorker[line.WorkerID]
		if !ok {
			t = &WorkerTotal{WorkerID: line.WorkerID, WorkerName: names[line.WorkerID], Earnings: decimal.Zero}
			byWorker[line.WorkerID] = t
		}
		t.Entries++
		t.Quantity += line.Quantity
		t.Earnings = t.Earnings.Add(line.LineTotal)
		factory = factory.Add(line.LineTotal)
	}

	summary := &DailySummary{
		Date:         date,
		Status:       sheet.Status(),
		Workers:      make([]WorkerTotal, 0, len(byWorker)),
		FactoryTotal: factory,
	}
	for _, t := range byWorker {
		summary.Workers = append(summary.Workers, *t)
	}
	sortByEarnings(summary.Workers)
	return summary, nil
}

func (l *Ledger) workerNames(ctx context.Context) (map[generic.WorkerID]string, error) {
	workers, err := l.store.ListWorkers(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	names := make(map[generic.WorkerID]string, len(workers))
	for _, w := range workers {
		names[w.ID] = w.Name
	}
	return names, nil
}

func sortByEarnings(totals []WorkerTotal) {
	sort.Slice(totals, func(i, j int) bool {
		a, b := totals[i], totals[j]
		if c := a.Earnings.Cmp(b.Earnings); c != 0 {
			return c > 0
		}
		return a.WorkerName < b.WorkerName
	})
}

// =============================================================================
// RANGE REPORT
// =============================================================================

// ProductTotal is one product's output over a range.
type ProductTotal struct {
	ProductID   generic.ProductID `json:"product_id"`
	ProductName string            `json:"product_name"`
	Quantity    int               `json:"quantity"`
	Total       decimal.Decimal   `json:"total"`
}

// RangeSummary rolls every line in a range up per worker and per product.
// Lines on Open days are included; OpenDays says how many of the working
// days payroll would still skip.
type RangeSummary struct {
	Period       generic.Period  `json:"period"`
	WorkingDays  int             `json:"working_days"`
	OpenDays     int             `json:"open_days"`
	Workers      []WorkerTotal   `json:"workers"`
	Products     []ProductTotal  `json:"products"`
	FactoryTotal decimal.Decimal `json:"factory_total"`
}

// RangeSummary totals production over a date range. A working day is a
// day with at least one line.
func (l *Ledger) RangeSummary(ctx context.Context, period generic.Period) (*RangeSummary, error) {
	days, err := l.Days(ctx, period)
	if err != nil {
		return nil, err
	}
	names, err := l.workerNames(ctx)
	if err != nil {
		return nil, err
	}

	summary := &RangeSummary{
		Period:       period,
		Workers:      []WorkerTotal{},
		Products:     []ProductTotal{},
		FactoryTotal: decimal.Zero,
	}
	byWorker := make(map[generic.WorkerID]*WorkerTotal)
	byProduct := make(map[generic.ProductID]*ProductTotal)
	for _, day := range days {
		lines, err := l.store.ListLines(ctx, day.ID)
		if err != nil {
			return nil, fmt.Errorf("list lines for %s: %w", day.Date, err)
		}
		if len(lines) == 0 {
			continue
		}
		summary.WorkingDays++
		if day.Status.Mutable() {
			summary.OpenDays++
		}
		for _, line := range lines {
			w, ok := byWorker[line.WorkerID]
			if !ok {
				w = &WorkerTotal{WorkerID: line.WorkerID, WorkerName: names[line.WorkerID], Earnings: decimal.Zero}
				byWorker[line.WorkerID] = w
			}
			w.Entries++
			w.Quantity += line.Quantity
			w.Earnings = w.Earnings.Add(line.LineTotal)

			p, ok := byProduct[line.ProductID]
			if !ok {
				p = &ProductTotal{ProductID: line.ProductID, ProductName: line.ProductName, Total: decimal.Zero}
				byProduct[line.ProductID] = p
			}
			p.Quantity += line.Quantity
			p.Total = p.Total.Add(line.LineTotal)

			summary.FactoryTotal = summary.FactoryTotal.Add(line.LineTotal)
		}
	}

	for _, w := range byWorker {
		summary.Workers = append(summary.Workers, *w)
	}
	sortByEarnings(summary.Workers)
	for _, p := range byProduct {
		summary.Products = append(summary.Products, *p)
	}
	sort.Slice(summary.Products, func(i, j int) bool {
		a, b := summary.Products[i], summary.Products[j]
		if c := a.Total.Cmp(b.Total); c != 0 {
			return c > 0
		}
		return a.ProductName < b.ProductName
	})
	return summary, nil
}

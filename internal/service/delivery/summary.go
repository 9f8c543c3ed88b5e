package delivery

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"milk-delivery/internal/domain"
)

func roundLiters(l float64) float64 {
	return math.Round(l*1000) / 1000
}

// ProductTotals are the liters of one product in a shift.
type ProductTotals struct {
	Product   domain.Product `json:"product"`
	Assigned  float64        `json:"assigned"`
	Delivered float64        `json:"delivered"`
	Pending   float64        `json:"pending"`
}

// ShiftSummary totals a shift per product. Both products are always listed.
type ShiftSummary struct {
	Date     string          `json:"date"`
	Shift    domain.Shift    `json:"shift"`
	Products []ProductTotals `json:"products"`
}

// ShiftSummary aggregates the assignments of date and shift by the product of
// their customer. Assignments whose customer is unknown are skipped.
func (s *Store) ShiftSummary(date string, shift domain.Shift) (ShiftSummary, error) {
	if _, err := domain.ParseDate(date); err != nil {
		return ShiftSummary{}, err
	}
	if _, err := domain.ParseShift(string(shift)); err != nil {
		return ShiftSummary{}, err
	}
	return shiftSummary(s.snapshot(), date, shift), nil
}

func shiftSummary(data *collections, date string, shift domain.Shift) ShiftSummary {
	totals := make(map[domain.Product]*ProductTotals, len(domain.Products))
	out := ShiftSummary{Date: date, Shift: shift, Products: make([]ProductTotals, len(domain.Products))}
	for i, p := range domain.Products {
		out.Products[i].Product = p
		totals[p] = &out.Products[i]
	}
	for _, a := range data.assignments {
		if a.Date != date || a.Shift != shift {
			continue
		}
		c, ok := data.customerByID[a.CustomerID]
		if !ok {
			continue
		}
		t, ok := totals[c.Product]
		if !ok {
			continue
		}
		t.Assigned += a.Liters
		if a.Delivered {
			t.Delivered += a.Liters
		}
	}
	for i := range out.Products {
		t := &out.Products[i]
		t.Assigned = roundLiters(t.Assigned)
		t.Delivered = roundLiters(t.Delivered)
		t.Pending = roundLiters(math.Max(t.Assigned-t.Delivered, 0))
	}
	return out
}

// AgentAssignment is one of an agent's stops joined with its customer.
type AgentAssignment struct {
	domain.Assignment
	CustomerName    string         `json:"customerName"`
	CustomerPhone   string         `json:"customerPhone"`
	CustomerAddress string         `json:"customerAddress,omitempty"`
	Product         domain.Product `json:"product"`
}

// AgentSummary is the workload of one delivery agent on a date.
type AgentSummary struct {
	Agent       domain.DeliveryAgent `json:"agent"`
	Assigned    float64              `json:"assigned"`
	Delivered   float64              `json:"delivered"`
	Pending     float64              `json:"pending"`
	Assignments []AgentAssignment    `json:"assignments"`
}

// AgentSummaries lists every agent with their assignments on date.
func (s *Store) AgentSummaries(date string) ([]AgentSummary, error) {
	if _, err := domain.ParseDate(date); err != nil {
		return nil, err
	}
	data := s.snapshot()
	byAgent := make(map[string]*AgentSummary, len(data.agents))
	out := make([]AgentSummary, len(data.agents))
	for i, a := range data.agents {
		out[i] = AgentSummary{Agent: a, Assignments: []AgentAssignment{}}
		byAgent[a.ID] = &out[i]
	}
	for _, a := range data.assignments {
		if a.Date != date {
			continue
		}
		sum, ok := byAgent[a.DeliveryAgentID]
		if !ok {
			continue
		}
		row := AgentAssignment{Assignment: a}
		if c, ok := data.customerByID[a.CustomerID]; ok {
			row.CustomerName = c.Name
			row.CustomerPhone = c.Phone
			row.CustomerAddress = c.Address
			row.Product = c.Product
		}
		sum.Assignments = append(sum.Assignments, row)
		sum.Assigned += a.Liters
		if a.Delivered {
			sum.Delivered += a.Liters
		}
	}
	for i := range out {
		out[i].Assigned = roundLiters(out[i].Assigned)
		out[i].Delivered = roundLiters(out[i].Delivered)
		out[i].Pending = roundLiters(math.Max(out[i].Assigned-out[i].Delivered, 0))
	}
	return out, nil
}

// Bill is a customer's monthly amount.
type Bill struct {
	CustomerID  string          `json:"customerId"`
	Name        string          `json:"name"`
	Phone       string          `json:"phone"`
	Product     domain.Product  `json:"product"`
	DailyLiters float64         `json:"dailyLiters"`
	Rate        decimal.Decimal `json:"rate"`
	Days        int             `json:"days"`
	Amount      decimal.Decimal `json:"amount"`
}

// Bills is the result of MonthlyBills.
type Bills struct {
	Year  int             `json:"year"`
	Month int             `json:"month"`
	Days  int             `json:"days"`
	Bills []Bill          `json:"bills"`
	Total decimal.Decimal `json:"total"`
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthlyBills bills each customer whose name contains search (case
// insensitive) for daily liters x rate x days in the month. Daily liters are
// the customer's total on their most recent assignment date up to the end of
// the month.
func (s *Store) MonthlyBills(year, month int, search string) (Bills, error) {
	if month < 1 || month > 12 {
		return Bills{}, fmt.Errorf("%w: month must be 1-12", domain.ErrValidation)
	}
	if year < 1 {
		return Bills{}, fmt.Errorf("%w: invalid year", domain.ErrValidation)
	}
	days := DaysIn(year, time.Month(month))
	monthEnd := time.Date(year, time.Month(month), days, 0, 0, 0, 0, time.UTC).Format(domain.DateLayout)

	data := s.snapshot()
	daily := representativeLiters(data.assignments, monthEnd)

	out := Bills{Year: year, Month: month, Days: days, Bills: []Bill{}, Total: decimal.Zero}
	for _, c := range data.customers {
		if !matchName(c.Name, search) {
			continue
		}
		liters := daily[c.ID]
		rate := c.EffectiveRate()
		amount := rate.Mul(decimal.NewFromFloat(liters)).Mul(decimal.NewFromInt(int64(days))).Round(2)
		out.Bills = append(out.Bills, Bill{
			CustomerID:  c.ID,
			Name:        c.Name,
			Phone:       c.Phone,
			Product:     c.Product,
			DailyLiters: liters,
			Rate:        rate,
			Days:        days,
			Amount:      amount,
		})
		out.Total = out.Total.Add(amount)
	}
	return out, nil
}

func representativeLiters(as []domain.Assignment, until string) map[string]float64 {
	latest := make(map[string]string)
	liters := make(map[string]float64)
	for _, a := range as {
		if a.Date > until {
			continue
		}
		switch last := latest[a.CustomerID]; {
		case a.Date > last:
			latest[a.CustomerID] = a.Date
			liters[a.CustomerID] = a.Liters
		case a.Date == last:
			liters[a.CustomerID] += a.Liters
		}
	}
	for id, l := range liters {
		liters[id] = roundLiters(l)
	}
	return liters
}

func matchName(name, search string) bool {
	search = strings.TrimSpace(search)
	if search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(search))
}

// ShiftSale is what a customer bought in one shift.
type ShiftSale struct {
	Liters float64         `json:"liters"`
	Amount decimal.Decimal `json:"amount"`
}

// DailySellRow is one customer's purchases on a date.
type DailySellRow struct {
	CustomerID string          `json:"customerId"`
	Name       string          `json:"name"`
	Product    domain.Product  `json:"product"`
	Rate       decimal.Decimal `json:"rate"`
	Morning    ShiftSale       `json:"morning"`
	Evening    ShiftSale       `json:"evening"`
	Total      ShiftSale       `json:"total"`
}

// DailySell lists the customers with assignments on date, split by shift.
func (s *Store) DailySell(date, search string) ([]DailySellRow, error) {
	if _, err := domain.ParseDate(date); err != nil {
		return nil, err
	}
	data := s.snapshot()
	liters := make(map[string]map[domain.Shift]float64)
	for _, a := range data.assignments {
		if a.Date != date {
			continue
		}
		if liters[a.CustomerID] == nil {
			liters[a.CustomerID] = make(map[domain.Shift]float64, 2)
		}
		liters[a.CustomerID][a.Shift] += a.Liters
	}

	out := []DailySellRow{}
	for _, c := range data.customers {
		byShift, ok := liters[c.ID]
		if !ok || !matchName(c.Name, search) {
			continue
		}
		rate := c.EffectiveRate()
		row := DailySellRow{
			CustomerID: c.ID,
			Name:       c.Name,
			Product:    c.Product,
			Rate:       rate,
			Morning:    sale(byShift[domain.ShiftMorning], rate),
			Evening:    sale(byShift[domain.ShiftEvening], rate),
		}
		row.Total = ShiftSale{
			Liters: roundLiters(row.Morning.Liters + row.Evening.Liters),
			Amount: row.Morning.Amount.Add(row.Evening.Amount),
		}
		out = append(out, row)
	}
	return out, nil
}

func sale(liters float64, rate decimal.Decimal) ShiftSale {
	liters = roundLiters(liters)
	return ShiftSale{Liters: liters, Amount: rate.Mul(decimal.NewFromFloat(liters)).Round(2)}
}

// BulkEntry is a quantity picked for one customer on the bulk sell screen.
type BulkEntry struct {
	CustomerID string  `json:"customerId"`
	Liters     float64 `json:"liters"`
}

// BulkLine is a priced BulkEntry.
type BulkLine struct {
	CustomerID string          `json:"customerId"`
	Name       string          `json:"name"`
	Product    domain.Product  `json:"product"`
	Liters     float64         `json:"liters"`
	Rate       decimal.Decimal `json:"rate"`
	Amount     decimal.Decimal `json:"amount"`
}

// BulkSale totals a bulk sell.
type BulkSale struct {
	Lines  []BulkLine      `json:"lines"`
	Liters float64         `json:"liters"`
	Amount decimal.Decimal `json:"amount"`
}

// BulkSell prices each entry at its customer's effective rate.
func (s *Store) BulkSell(entries []BulkEntry) (BulkSale, error) {
	data := s.snapshot()
	out := BulkSale{Lines: make([]BulkLine, 0, len(entries)), Amount: decimal.Zero}
	for _, e := range entries {
		if err := validateLiters(e.Liters); err != nil {
			return BulkSale{}, err
		}
		c, ok := data.customerByID[e.CustomerID]
		if !ok {
			return BulkSale{}, fmt.Errorf("customer %q: %w", e.CustomerID, domain.ErrNotFound)
		}
		rate := c.EffectiveRate()
		line := BulkLine{
			CustomerID: c.ID,
			Name:       c.Name,
			Product:    c.Product,
			Liters:     roundLiters(e.Liters),
			Rate:       rate,
		}
		line.Amount = rate.Mul(decimal.NewFromFloat(line.Liters)).Round(2)
		out.Lines = append(out.Lines, line)
		out.Liters += line.Liters
		out.Amount = out.Amount.Add(line.Amount)
	}
	out.Liters = roundLiters(out.Liters)
	return out, nil
}

// PickupRow compares what was collected from the dairy with what was delivered.
type PickupRow struct {
	Product   domain.Product `json:"product"`
	Picked    float64        `json:"picked"`
	Delivered float64        `json:"delivered"`
	Remaining float64        `json:"remaining"`
}

// Pickup reports, per product, the liters picked up for a shift against the
// liters delivered in it. Products missing from picked count as zero.
func (s *Store) Pickup(date string, shift domain.Shift, picked map[domain.Product]float64) ([]PickupRow, error) {
	summary, err := s.ShiftSummary(date, shift)
	if err != nil {
		return nil, err
	}
	for p, l := range picked {
		if _, err := domain.ParseProduct(string(p)); err != nil || p == "" {
			return nil, fmt.Errorf("%w: unknown product %q", domain.ErrValidation, p)
		}
		if err := validateLiters(l); err != nil {
			return nil, err
		}
	}
	out := make([]PickupRow, 0, len(summary.Products))
	for _, t := range summary.Products {
		row := PickupRow{
			Product:   t.Product,
			Picked:    roundLiters(picked[t.Product]),
			Delivered: t.Delivered,
		}
		row.Remaining = roundLiters(math.Max(row.Picked-row.Delivered, 0))
		out = append(out, row)
	}
	return out, nil
}

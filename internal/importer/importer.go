package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"milk-delivery/internal/domain"
)

type CustomerWriter interface {
	Upsert(ctx context.Context, c domain.Customer) (*domain.Customer, error)
}

type AgentWriter interface {
	Upsert(ctx context.Context, a domain.DeliveryAgent) (*domain.DeliveryAgent, error)
}

// CSVImporter reads a seller's customer or agent register from CSV and
// upserts each row under ownerID. Rows are keyed by phone.
type CSVImporter struct {
	reader  *csv.Reader
	ownerID string
}

func newCSVImporter(r io.Reader, ownerID string) CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // spreadsheet exports drop trailing empty cells
	csvr.TrimLeadingSpace = true
	return CSVImporter{reader: csvr, ownerID: ownerID}
}

// CustomerImporter expects the columns name, phone and optionally address,
// product, rate, plan, plan_type.
type CustomerImporter struct {
	CSVImporter
	repo CustomerWriter
}

func NewCustomerImporter(r io.Reader, repo CustomerWriter, ownerID string) *CustomerImporter {
	return &CustomerImporter{CSVImporter: newCSVImporter(r, ownerID), repo: repo}
}

// Run upserts every customer row and returns how many were written.
func (i *CustomerImporter) Run(ctx context.Context) (int, error) {
	return i.each(func(row record) error {
		product, err := domain.ParseProduct(row.get("product"))
		if err != nil {
			return err
		}
		rate := decimal.Zero
		if raw := row.get("rate"); raw != "" {
			rate, err = decimal.NewFromString(raw)
			if err != nil || rate.IsNegative() {
				return fmt.Errorf("%w: invalid rate %q", domain.ErrValidation, raw)
			}
		}
		_, err = i.repo.Upsert(ctx, domain.Customer{
			UserID:   i.ownerID,
			Name:     row.get("name"),
			Phone:    row.get("phone"),
			Address:  row.get("address"),
			Product:  product,
			Rate:     rate,
			Plan:     row.get("plan"),
			PlanType: row.get("plan_type"),
		})
		if err != nil {
			return fmt.Errorf("upsert customer %q: %w", row.get("name"), err)
		}
		return nil
	})
}

// AgentImporter expects the columns name, phone and optionally area, login_id.
type AgentImporter struct {
	CSVImporter
	repo AgentWriter
}

func NewAgentImporter(r io.Reader, repo AgentWriter, ownerID string) *AgentImporter {
	return &AgentImporter{CSVImporter: newCSVImporter(r, ownerID), repo: repo}
}

// Run upserts every agent row and returns how many were written.
func (i *AgentImporter) Run(ctx context.Context) (int, error) {
	return i.each(func(row record) error {
		_, err := i.repo.Upsert(ctx, domain.DeliveryAgent{
			OwnerID: i.ownerID,
			Name:    row.get("name"),
			Phone:   row.get("phone"),
			Area:    row.get("area"),
			LoginID: row.get("login_id"),
		})
		if err != nil {
			return fmt.Errorf("upsert agent %q: %w", row.get("name"), err)
		}
		return nil
	})
}

type record struct {
	values []string
	index  map[string]int
}

func (r record) get(column string) string {
	pos, ok := r.index[column]
	if !ok || pos >= len(r.values) {
		return ""
	}
	return strings.TrimSpace(r.values[pos])
}

// each reads the header, then calls fn for every non-blank row. Rows without
// a name and phone are rejected with their line number.
func (i *CSVImporter) each(fn func(row record) error) (int, error) {
	if i.ownerID == "" {
		return 0, fmt.Errorf("%w: owner id is required", domain.ErrValidation)
	}
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, required := range []string{"name", "phone"} {
		if _, ok := index[required]; !ok {
			return 0, fmt.Errorf("%w: missing %q column", domain.ErrValidation, required)
		}
	}

	imported := 0
	for {
		values, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}
		line, _ := i.reader.FieldPos(0)
		row := record{values: values, index: index}
		if blank(values) {
			continue
		}
		if row.get("name") == "" || row.get("phone") == "" {
			return imported, fmt.Errorf("line %d: %w: name and phone are required", line, domain.ErrValidation)
		}
		if err := fn(row); err != nil {
			return imported, fmt.Errorf("line %d: %w", line, err)
		}
		imported++
	}
	return imported, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	return idx
}

func blank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

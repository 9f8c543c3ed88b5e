package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"milk-delivery/internal/domain"
	"milk-delivery/internal/logger"
)

//go:embed demo.yaml
var demoYAML []byte

// Dataset is a seller's demo customers, agents and assignments.
type Dataset struct {
	OwnerID     string           `yaml:"owner_id"`
	Customers   []CustomerSeed   `yaml:"customers"`
	Agents      []AgentSeed      `yaml:"agents"`
	Assignments []AssignmentSeed `yaml:"assignments"`
}

type CustomerSeed struct {
	Name     string `yaml:"name"`
	Phone    string `yaml:"phone"`
	Address  string `yaml:"address"`
	Product  string `yaml:"product"`
	Rate     string `yaml:"rate"`
	Plan     string `yaml:"plan"`
	PlanType string `yaml:"plan_type"`
}

type AgentSeed struct {
	Name  string `yaml:"name"`
	Phone string `yaml:"phone"`
	Area  string `yaml:"area"`
}

// AssignmentSeed references its customer and agent by phone.
type AssignmentSeed struct {
	CustomerPhone string  `yaml:"customer_phone"`
	AgentPhone    string  `yaml:"agent_phone"`
	Date          string  `yaml:"date"`
	Shift         string  `yaml:"shift"`
	Liters        float64 `yaml:"liters"`
	Delivered     bool    `yaml:"delivered"`
}

// Demo returns the embedded dataset.
func Demo() (Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(demoYAML, &ds); err != nil {
		return Dataset{}, fmt.Errorf("decode demo dataset: %w", err)
	}
	return ds, nil
}

// Load decodes a dataset from r.
func Load(r io.Reader) (Dataset, error) {
	var ds Dataset
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&ds); err != nil {
		return Dataset{}, fmt.Errorf("decode dataset: %w", err)
	}
	return ds, nil
}

type customerWriter interface {
	Upsert(ctx context.Context, c domain.Customer) (*domain.Customer, error)
}

type agentWriter interface {
	Upsert(ctx context.Context, a domain.DeliveryAgent) (*domain.DeliveryAgent, error)
}

type assignmentWriter interface {
	Insert(ctx context.Context, in domain.NewAssignment) (*domain.Assignment, error)
}

// Writers are the repositories Apply writes through.
type Writers struct {
	Customers   customerWriter
	Agents      agentWriter
	Assignments assignmentWriter
}

// Result counts what Apply wrote.
type Result struct {
	Customers   int
	Agents      int
	Assignments int
	Skipped     int
}

// Apply upserts the dataset. Customers and agents are keyed by phone, and an
// assignment that already exists for its customer, date and shift is skipped,
// so running it twice is safe.
func Apply(ctx context.Context, w Writers, ds Dataset, log *zap.SugaredLogger) (Result, error) {
	log = logger.OrNop(log)
	if ds.OwnerID == "" {
		return Result{}, fmt.Errorf("%w: dataset owner_id is required", domain.ErrValidation)
	}

	var res Result
	customerIDs := make(map[string]string, len(ds.Customers))
	for _, cs := range ds.Customers {
		c, err := cs.toDomain(ds.OwnerID)
		if err != nil {
			return res, fmt.Errorf("customer %s: %w", cs.Name, err)
		}
		saved, err := w.Customers.Upsert(ctx, c)
		if err != nil {
			return res, fmt.Errorf("upsert customer %s: %w", cs.Name, err)
		}
		customerIDs[cs.Phone] = saved.ID
		res.Customers++
	}

	agentIDs := make(map[string]string, len(ds.Agents))
	for _, as := range ds.Agents {
		saved, err := w.Agents.Upsert(ctx, domain.DeliveryAgent{
			OwnerID: ds.OwnerID,
			Name:    as.Name,
			Phone:   as.Phone,
			Area:    as.Area,
		})
		if err != nil {
			return res, fmt.Errorf("upsert agent %s: %w", as.Name, err)
		}
		agentIDs[as.Phone] = saved.ID
		res.Agents++
	}

	for _, a := range ds.Assignments {
		customerID, ok := customerIDs[a.CustomerPhone]
		if !ok {
			return res, fmt.Errorf("%w: assignment references unknown customer phone %s", domain.ErrValidation, a.CustomerPhone)
		}
		agentID, ok := agentIDs[a.AgentPhone]
		if !ok {
			return res, fmt.Errorf("%w: assignment references unknown agent phone %s", domain.ErrValidation, a.AgentPhone)
		}
		shift, err := domain.ParseShift(a.Shift)
		if err != nil {
			return res, err
		}
		if _, err := domain.ParseDate(a.Date); err != nil {
			return res, err
		}
		_, err = w.Assignments.Insert(ctx, domain.NewAssignment{
			OwnerID:         ds.OwnerID,
			CustomerID:      customerID,
			DeliveryAgentID: agentID,
			Date:            a.Date,
			Shift:           shift,
			Liters:          a.Liters,
			Delivered:       a.Delivered,
		})
		if errors.Is(err, domain.ErrAlreadyExists) {
			log.Debugw("assignment already seeded", "customer_phone", a.CustomerPhone, "date", a.Date, "shift", a.Shift)
			res.Skipped++
			continue
		}
		if err != nil {
			return res, fmt.Errorf("insert assignment %s %s %s: %w", a.CustomerPhone, a.Date, a.Shift, err)
		}
		res.Assignments++
	}
	return res, nil
}

func (cs CustomerSeed) toDomain(ownerID string) (domain.Customer, error) {
	product, err := domain.ParseProduct(cs.Product)
	if err != nil {
		return domain.Customer{}, err
	}
	rate := decimal.Zero
	if cs.Rate != "" {
		rate, err = decimal.NewFromString(cs.Rate)
		if err != nil || rate.IsNegative() {
			return domain.Customer{}, fmt.Errorf("%w: invalid rate %q", domain.ErrValidation, cs.Rate)
		}
	}
	return domain.Customer{
		UserID:   ownerID,
		Name:     cs.Name,
		Phone:    cs.Phone,
		Address:  cs.Address,
		Product:  product,
		Rate:     rate,
		Plan:     cs.Plan,
		PlanType: cs.PlanType,
	}, nil
}

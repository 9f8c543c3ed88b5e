package delivery

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"milk-delivery/internal/domain"
	"milk-delivery/internal/logger"
	"milk-delivery/internal/metrics"
)

// State is the connectivity of a Store to its remote backend.
type State string

const (
	StateUnconfigured State = "unconfigured"
	StateDisconnected State = "disconnected"
	StateConnected    State = "connected"
)

type customerRepo interface {
	List(ctx context.Context, ownerID string) ([]domain.Customer, error)
}

type agentRepo interface {
	List(ctx context.Context, ownerID string) ([]domain.DeliveryAgent, error)
}

type assignmentRepo interface {
	List(ctx context.Context, f domain.AssignmentFilter) ([]domain.Assignment, error)
	Insert(ctx context.Context, in domain.NewAssignment) (*domain.Assignment, error)
	Update(ctx context.Context, id string, patch domain.AssignmentPatch) error
}

// Remote bundles the repositories a Store mirrors. A nil *Remote, or one with
// a missing repository, leaves the Store unconfigured.
type Remote struct {
	Customers   customerRepo
	Agents      agentRepo
	Assignments assignmentRepo
}

func (r *Remote) configured() bool {
	return r != nil && r.Customers != nil && r.Agents != nil && r.Assignments != nil
}

// collections is one immutable generation of mirrored data. Slices and maps
// are never mutated after publication; writers build a new value.
type collections struct {
	customers   []domain.Customer
	agents      []domain.DeliveryAgent
	assignments []domain.Assignment

	customerByID   map[string]domain.Customer
	agentByID      map[string]domain.DeliveryAgent
	assignmentByID map[string]int
}

func newCollections(customers []domain.Customer, agents []domain.DeliveryAgent, assignments []domain.Assignment) *collections {
	sort.SliceStable(customers, func(i, j int) bool { return customers[i].Name < customers[j].Name })
	sort.SliceStable(agents, func(i, j int) bool { return agents[i].Name < agents[j].Name })
	sortAssignments(assignments)

	c := &collections{
		customers:      customers,
		agents:         agents,
		assignments:    assignments,
		customerByID:   make(map[string]domain.Customer, len(customers)),
		agentByID:      make(map[string]domain.DeliveryAgent, len(agents)),
		assignmentByID: make(map[string]int, len(assignments)),
	}
	for _, cu := range customers {
		c.customerByID[cu.ID] = cu
	}
	for _, a := range agents {
		c.agentByID[a.ID] = a
	}
	c.indexAssignments()
	return c
}

func (c *collections) indexAssignments() {
	c.assignmentByID = make(map[string]int, len(c.assignments))
	for i, a := range c.assignments {
		c.assignmentByID[a.ID] = i
	}
}

func sortAssignments(as []domain.Assignment) {
	sort.SliceStable(as, func(i, j int) bool {
		if as[i].Date != as[j].Date {
			return as[i].Date < as[j].Date
		}
		return shiftOrder(as[i].Shift) < shiftOrder(as[j].Shift)
	})
}

func shiftOrder(s domain.Shift) int {
	if s == domain.ShiftEvening {
		return 1
	}
	return 0
}

// withAssignments returns a copy of c sharing the customer and agent data.
func (c *collections) withAssignments(as []domain.Assignment) *collections {
	next := *c
	next.assignments = as
	next.indexAssignments()
	return &next
}

// Store mirrors one owner's customers, agents and assignments and applies
// assignment mutations against the remote backend.
type Store struct {
	ownerID string
	remote  *Remote
	log     *zap.SugaredLogger
	metrics *metrics.Delivery

	refreshSeq atomic.Uint64

	// writeMu serializes mutations from the read of the current record
	// through the remote write to the local replace.
	writeMu sync.Mutex

	mu         sync.RWMutex
	state      State
	data       *collections
	appliedSeq uint64
	refreshed  bool
	loaded     bool
}

// NewStore builds an empty Store for ownerID. It holds no data until Refresh.
func NewStore(ownerID string, remote *Remote, log *zap.SugaredLogger, m *metrics.Delivery) *Store {
	s := &Store{
		ownerID: ownerID,
		remote:  remote,
		log:     logger.OrNop(log).With("owner_id", ownerID),
		metrics: m,
		state:   StateUnconfigured,
		data:    newCollections(nil, nil, nil),
	}
	if remote.configured() {
		s.state = StateDisconnected
	}
	return s
}

// OwnerID is the account whose data the Store mirrors.
func (s *Store) OwnerID() string { return s.ownerID }

// State reports the connectivity after the most recent refresh.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Refreshed reports whether Refresh has completed at least once.
func (s *Store) Refreshed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshed
}

// Loaded reports whether a refresh has ever reached the remote successfully.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Refresh reloads all three collections. Failures never surface as errors:
// the previous data is kept and the Store is marked disconnected. A refresh
// that started before the most recently applied one is discarded.
func (s *Store) Refresh(ctx context.Context) State {
	seq := s.refreshSeq.Add(1)

	if !s.remote.configured() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if seq > s.appliedSeq {
			s.data = newCollections(nil, nil, nil)
			s.state = StateUnconfigured
			s.appliedSeq = seq
		}
		s.refreshed = true
		return s.state
	}

	start := time.Now()
	customers, agents, assignments, err := s.fetch(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshed = true
	if seq < s.appliedSeq {
		s.log.Debugw("discarding stale refresh", "seq", seq, "applied", s.appliedSeq)
		return s.state
	}
	s.appliedSeq = seq
	if err != nil {
		s.state = StateDisconnected
		s.log.Warnw("store refresh failed", "error", err)
	} else {
		s.data = newCollections(customers, agents, assignments)
		s.state = StateConnected
		s.loaded = true
		s.log.Debugw("store refreshed",
			"customers", len(customers),
			"agents", len(agents),
			"assignments", len(assignments),
		)
	}
	s.metrics.ObserveRefresh(string(s.state), time.Since(start))
	return s.state
}

func (s *Store) fetch(ctx context.Context) ([]domain.Customer, []domain.DeliveryAgent, []domain.Assignment, error) {
	var (
		customers   []domain.Customer
		agents      []domain.DeliveryAgent
		assignments []domain.Assignment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		customers, err = s.remote.Customers.List(gctx, s.ownerID)
		if err != nil {
			return fmt.Errorf("list customers: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		agents, err = s.remote.Agents.List(gctx, s.ownerID)
		if err != nil {
			return fmt.Errorf("list agents: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		assignments, err = s.remote.Assignments.List(gctx, domain.AssignmentFilter{OwnerID: s.ownerID})
		if err != nil {
			return fmt.Errorf("list assignments: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	return customers, agents, assignments, nil
}

func (s *Store) snapshot() *collections {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// AssignInput is a request to assign liters of a customer's milk to an agent.
type AssignInput struct {
	CustomerID string       `json:"customerId"`
	AgentID    string       `json:"deliveryAgentId"`
	Date       string       `json:"date"`
	Shift      domain.Shift `json:"shift"`
	Liters     float64      `json:"liters"`
	Delivered  *bool        `json:"delivered,omitempty"`
}

// AssignWork creates an assignment remotely and mirrors the stored record.
// It requires a connected Store and returns domain.ErrOffline otherwise.
// Liters are rounded to the stored precision of three decimals.
func (s *Store) AssignWork(ctx context.Context, in AssignInput) (*domain.Assignment, error) {
	if s.State() != StateConnected {
		return nil, domain.ErrOffline
	}
	in.CustomerID = strings.TrimSpace(in.CustomerID)
	in.AgentID = strings.TrimSpace(in.AgentID)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.validateAssign(in); err != nil {
		return nil, err
	}
	in.Liters = roundLiters(in.Liters)

	delivered := false
	if in.Delivered != nil {
		delivered = *in.Delivered
	}
	created, err := s.remote.Assignments.Insert(ctx, domain.NewAssignment{
		OwnerID:         s.ownerID,
		CustomerID:      in.CustomerID,
		DeliveryAgentID: in.AgentID,
		Date:            in.Date,
		Shift:           in.Shift,
		Liters:          in.Liters,
		Delivered:       delivered,
	})
	s.metrics.IncMutation("assign", err)
	if err != nil {
		return nil, fmt.Errorf("insert assignment: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.assignmentByID[created.ID]; !ok {
		next := make([]domain.Assignment, len(s.data.assignments), len(s.data.assignments)+1)
		copy(next, s.data.assignments)
		next = append(next, *created)
		sortAssignments(next)
		s.data = s.data.withAssignments(next)
	}
	out := *created
	return &out, nil
}

func (s *Store) validateAssign(in AssignInput) error {
	if _, err := domain.ParseShift(string(in.Shift)); err != nil {
		return err
	}
	if _, err := domain.ParseDate(in.Date); err != nil {
		return err
	}
	if err := validateLiters(in.Liters); err != nil {
		return err
	}

	data := s.snapshot()
	if _, ok := data.customerByID[in.CustomerID]; !ok {
		return fmt.Errorf("%w: unknown customer %q", domain.ErrValidation, in.CustomerID)
	}
	if _, ok := data.agentByID[in.AgentID]; !ok {
		return fmt.Errorf("%w: unknown delivery agent %q", domain.ErrValidation, in.AgentID)
	}
	for _, a := range data.assignments {
		if a.CustomerID == in.CustomerID && a.Date == in.Date && a.Shift == in.Shift {
			return fmt.Errorf("%w: customer already assigned for %s %s", domain.ErrAlreadyExists, in.Date, in.Shift)
		}
	}
	return nil
}

func validateLiters(l float64) error {
	if math.IsNaN(l) || math.IsInf(l, 0) || l < 0 {
		return fmt.Errorf("%w: liters must be a non-negative number", domain.ErrValidation)
	}
	return nil
}

// ToggleDelivered flips the delivered flag, or sets it when delivered is
// non-nil. With a remote backend the local copy changes only after the
// remote update succeeds.
func (s *Store) ToggleDelivered(ctx context.Context, id string, delivered *bool) (*domain.Assignment, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	current, ok := s.AssignmentByID(id)
	if !ok {
		return nil, fmt.Errorf("assignment %q: %w", id, domain.ErrNotFound)
	}
	next := !current.Delivered
	if delivered != nil {
		next = *delivered
	}
	return s.patch(ctx, "toggle_delivered", id, domain.AssignmentPatch{Delivered: &next})
}

// UpdateAssignmentLiters sets the liters of one assignment, rounded to
// three decimals so the local copy matches what the remote stores.
func (s *Store) UpdateAssignmentLiters(ctx context.Context, id string, liters float64) (*domain.Assignment, error) {
	if err := validateLiters(liters); err != nil {
		return nil, err
	}
	liters = roundLiters(liters)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, ok := s.AssignmentByID(id); !ok {
		return nil, fmt.Errorf("assignment %q: %w", id, domain.ErrNotFound)
	}
	return s.patch(ctx, "update_liters", id, domain.AssignmentPatch{Liters: &liters})
}

// patch must be called with writeMu held.
func (s *Store) patch(ctx context.Context, op, id string, p domain.AssignmentPatch) (*domain.Assignment, error) {
	if s.remote.configured() {
		err := s.remote.Assignments.Update(ctx, id, p)
		s.metrics.IncMutation(op, err)
		if err != nil {
			return nil, fmt.Errorf("update assignment %q: %w", id, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.data.assignmentByID[id]
	if !ok {
		return nil, fmt.Errorf("assignment %q: %w", id, domain.ErrNotFound)
	}
	next := make([]domain.Assignment, len(s.data.assignments))
	copy(next, s.data.assignments)
	updated := next[idx]
	if p.Liters != nil {
		updated.Liters = *p.Liters
	}
	if p.Delivered != nil {
		updated.Delivered = *p.Delivered
	}
	next[idx] = updated
	s.data = s.data.withAssignments(next)
	return &updated, nil
}

// load replaces the mirrored data without contacting the remote.
func (s *Store) load(customers []domain.Customer, agents []domain.DeliveryAgent, assignments []domain.Assignment) {
	data := newCollections(
		append([]domain.Customer(nil), customers...),
		append([]domain.DeliveryAgent(nil), agents...),
		append([]domain.Assignment(nil), assignments...),
	)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
}

// CustomerByID looks up a mirrored customer.
func (s *Store) CustomerByID(id string) (domain.Customer, bool) {
	c, ok := s.snapshot().customerByID[id]
	return c, ok
}

// AgentByID looks up a mirrored delivery agent.
func (s *Store) AgentByID(id string) (domain.DeliveryAgent, bool) {
	a, ok := s.snapshot().agentByID[id]
	return a, ok
}

// AssignmentByID looks up a mirrored assignment.
func (s *Store) AssignmentByID(id string) (domain.Assignment, bool) {
	data := s.snapshot()
	idx, ok := data.assignmentByID[id]
	if !ok {
		return domain.Assignment{}, false
	}
	return data.assignments[idx], true
}

// Customers returns the customers ordered by name.
func (s *Store) Customers() []domain.Customer {
	return append([]domain.Customer(nil), s.snapshot().customers...)
}

// Agents returns the delivery agents ordered by name.
func (s *Store) Agents() []domain.DeliveryAgent {
	return append([]domain.DeliveryAgent(nil), s.snapshot().agents...)
}

// AssignmentQuery narrows Assignments. Empty fields match everything.
type AssignmentQuery struct {
	From       string
	To         string
	AgentID    string
	CustomerID string
}

func (q AssignmentQuery) match(a domain.Assignment) bool {
	switch {
	case q.From != "" && a.Date < q.From:
		return false
	case q.To != "" && a.Date > q.To:
		return false
	case q.AgentID != "" && a.DeliveryAgentID != q.AgentID:
		return false
	case q.CustomerID != "" && a.CustomerID != q.CustomerID:
		return false
	}
	return true
}

// Assignments returns the assignments matching q ordered by date then shift.
func (s *Store) Assignments(q AssignmentQuery) []domain.Assignment {
	out := []domain.Assignment{}
	for _, a := range s.snapshot().assignments {
		if q.match(a) {
			out = append(out, a)
		}
	}
	return out
}

// Snapshot is a consistent copy of everything the Store holds.
type Snapshot struct {
	State       State                  `json:"state"`
	Customers   []domain.Customer      `json:"customers"`
	Agents      []domain.DeliveryAgent `json:"agents"`
	Assignments []domain.Assignment    `json:"assignments"`
}

// Snapshot copies the current state and collections.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	data, state := s.data, s.state
	s.mu.RUnlock()
	return Snapshot{
		State:       state,
		Customers:   append([]domain.Customer{}, data.customers...),
		Agents:      append([]domain.DeliveryAgent{}, data.agents...),
		Assignments: append([]domain.Assignment{}, data.assignments...),
	}
}

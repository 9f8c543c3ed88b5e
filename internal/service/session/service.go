package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"milk-delivery/internal/domain"
	"milk-delivery/internal/logger"
	sessionrepo "milk-delivery/internal/repository/session"
)

// Role identifies who is calling the API.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleCustomer, RoleAgent:
		return r, nil
	}
	return "", fmt.Errorf("%w: role must be customer or agent", domain.ErrValidation)
}

func (r Role) noun() string {
	if r == RoleAgent {
		return "delivery agent"
	}
	return string(r)
}

var (
	// ErrInvalidCredentials is returned when no record matches a login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken indicates the bearer token could not be validated.
	ErrInvalidToken = errors.New("invalid token")
)

// LoginError reports a name and phone pair with no matching record.
type LoginError struct {
	Role Role
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("No %s found with given details", e.Role.noun())
}

func (e *LoginError) Unwrap() error { return ErrInvalidCredentials }

// Principal is the authenticated caller. OwnerID scopes every data access.
type Principal struct {
	Role      Role   `json:"role"`
	OwnerID   string `json:"ownerId"`
	SubjectID string `json:"subjectId"`
	Name      string `json:"name,omitempty"`
}

type customerFinder interface {
	FindByNamePhone(ctx context.Context, name, phone string) (*domain.Customer, error)
}

type agentFinder interface {
	FindByNamePhone(ctx context.Context, name, phone string) (*domain.DeliveryAgent, error)
}

// Service authenticates sellers by JWT and logs customers and agents in by
// name and phone.
type Service struct {
	customers customerFinder
	agents    agentFinder
	sessions  sessionrepo.Repository
	secret    []byte
	ttl       time.Duration
	now       func() time.Time
	log       *zap.SugaredLogger
}

type Options struct {
	Customers customerFinder
	Agents    agentFinder
	Sessions  sessionrepo.Repository
	JWTSecret string
	TTL       time.Duration
	Logger    *zap.SugaredLogger
}

func New(opts Options) *Service {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Service{
		customers: opts.Customers,
		agents:    opts.Agents,
		sessions:  opts.Sessions,
		secret:    []byte(opts.JWTSecret),
		ttl:       ttl,
		now:       time.Now,
		log:       logger.OrNop(opts.Logger),
	}
}

// LoginInput is the body of a customer or agent login.
type LoginInput struct {
	Role  string `json:"role"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// LoginResult carries the issued session token.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Principal Principal `json:"principal"`
}

// Login looks up the caller by trimmed name and phone and opens a session.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	name := strings.TrimSpace(in.Name)
	phone := strings.TrimSpace(in.Phone)
	if name == "" || phone == "" {
		return nil, fmt.Errorf("%w: enter name and phone", domain.ErrValidation)
	}
	role, err := ParseRole(in.Role)
	if err != nil {
		return nil, err
	}
	if s.customers == nil || s.agents == nil {
		return nil, domain.ErrOffline
	}

	var p Principal
	switch role {
	case RoleCustomer:
		c, err := s.customers.FindByNamePhone(ctx, name, phone)
		if err != nil {
			return nil, lookupErr(role, err)
		}
		p = Principal{Role: role, OwnerID: c.UserID, SubjectID: c.ID, Name: c.Name}
	case RoleAgent:
		a, err := s.agents.FindByNamePhone(ctx, name, phone)
		if err != nil {
			return nil, lookupErr(role, err)
		}
		p = Principal{Role: role, OwnerID: a.OwnerID, SubjectID: a.ID, Name: a.Name}
	}

	token, expiresAt, err := s.issue(ctx, p)
	if err != nil {
		return nil, err
	}
	s.log.Infow("session opened", "role", p.Role, "subject_id", p.SubjectID, "owner_id", p.OwnerID)
	return &LoginResult{Token: token, ExpiresAt: expiresAt, Principal: p}, nil
}

func lookupErr(role Role, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return &LoginError{Role: role}
	}
	return fmt.Errorf("find %s: %w", role.noun(), err)
}

func (s *Service) issue(ctx context.Context, p Principal) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	for i := 0; i < 5; i++ {
		token, err := randomToken()
		if err != nil {
			return "", time.Time{}, err
		}
		err = s.sessions.Create(ctx, sessionrepo.Session{
			Token:     token,
			OwnerID:   p.OwnerID,
			Role:      string(p.Role),
			SubjectID: p.SubjectID,
			Name:      p.Name,
			ExpiresAt: expiresAt,
			CreatedAt: now,
		})
		if err == nil {
			return token, expiresAt, nil
		}
		if errors.Is(err, domain.ErrAlreadyExists) {
			continue
		}
		return "", time.Time{}, err
	}
	return "", time.Time{}, errors.New("token collision")
}

// Logout ends a customer or agent session.
func (s *Service) Logout(ctx context.Context, token string) error {
	err := s.sessions.Delete(ctx, token)
	if errors.Is(err, domain.ErrNotFound) {
		return ErrInvalidToken
	}
	return err
}

// Authenticate resolves a bearer token. Signed JWTs identify sellers; any
// other token is looked up as a session.
func (s *Service) Authenticate(ctx context.Context, token string) (Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Principal{}, ErrInvalidToken
	}
	if strings.Count(token, ".") == 2 {
		return s.parseOwner(token)
	}
	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Principal{}, ErrInvalidToken
		}
		return Principal{}, err
	}
	if s.now().After(sess.ExpiresAt) {
		_ = s.sessions.Delete(ctx, token)
		return Principal{}, ErrInvalidToken
	}
	return Principal{
		Role:      Role(sess.Role),
		OwnerID:   sess.OwnerID,
		SubjectID: sess.SubjectID,
		Name:      sess.Name,
	}, nil
}

var signingMethod = jwt.SigningMethodHS256

// ownerClaims mirror the access tokens issued by the store's auth service.
type ownerClaims struct {
	Role  string `json:"role,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func (s *Service) parseOwner(token string) (Principal, error) {
	if len(s.secret) == 0 {
		return Principal{}, fmt.Errorf("%w: seller tokens are not accepted", ErrInvalidToken)
	}
	claims := &ownerClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != signingMethod {
				return nil, fmt.Errorf("unexpected signing method %s", t.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Principal{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return Principal{Role: RoleOwner, OwnerID: claims.Subject, SubjectID: claims.Subject, Name: claims.Email}, nil
}

// MintOwnerToken signs a seller token for ownerID. Used by local tooling.
func (s *Service) MintOwnerToken(ownerID string, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("jwt secret is required")
	}
	if ownerID == "" {
		return "", errors.New("owner id is required")
	}
	now := s.now()
	claims := ownerClaims{
		Role: "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

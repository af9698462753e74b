package auth

import (
	"fmt"

	"github.com/sbasrik/gatehouse/pkg"

	log "github.com/sirupsen/logrus"
)

// Operator is the fixed deployment-time credential pair that gates
// account registration. It is not a registry row; the secret is kept
// only as a bcrypt hash.
type Operator struct {
	Username     string
	PasswordHash string
}

// Service wires the registry, the credential verifier and the session
// store into the login, registration and logout flows.
type Service struct {
	registry Registry
	store    *SessionStore
	operator Operator
}

func NewService(registry Registry, store *SessionStore, operator Operator) *Service {
	return &Service{
		registry: registry,
		store:    store,
		operator: operator,
	}
}

func (s *Service) Store() *SessionStore {
	return s.store
}

// Login verifies the credentials against the registry and, on a match,
// creates a session. ErrUserNotFound and ErrWrongPassword are kept
// apart for audit logging; callers must render them identically to the
// client.
func (s *Service) Login(username, password string) (string, User, error) {
	user, err := s.registry.Lookup(username)
	if err != nil {
		return "", User{}, err
	}

	if !CheckPasswordHash(password, user.PasswordHash) {
		return "", User{}, ErrWrongPassword
	}

	token, err := s.store.Create(user.Username, user.Role)
	if err != nil {
		return "", User{}, fmt.Errorf("create session: %w", err)
	}
	return token, user, nil
}

// VerifyOperator checks the submitted operator credential pair. The
// plaintext secret must never be logged, matched or not.
func (s *Service) VerifyOperator(operatorLogin, operatorSecret string) bool {
	if operatorLogin != s.operator.Username {
		return false
	}
	return pkg.CheckPasswordHash(operatorSecret, s.operator.PasswordHash)
}

// Register inserts a new account and logs it straight in. The caller
// has already passed the operator gate (VerifyOperator). A new account
// gets the admin role iff its username equals the operator login -- an
// inherited rule, kept as-is for compatibility with existing
// deployments.
func (s *Service) Register(username, password, avatarPath string) (string, User, error) {
	role := RoleUser
	if username == s.operator.Username {
		role = RoleAdmin
	}

	user := User{
		Username:     username,
		PasswordHash: HashPassword(password),
		AvatarPath:   avatarPath,
		Role:         role,
	}
	if err := s.registry.Insert(user); err != nil {
		return "", User{}, err
	}

	token, err := s.store.Create(user.Username, user.Role)
	if err != nil {
		return "", User{}, fmt.Errorf("create session: %w", err)
	}
	return token, user, nil
}

// Logout removes the session. Idempotent: a second call with the same
// token is a no-op.
func (s *Service) Logout(token string) bool {
	removed := s.store.Remove(token)
	if !removed {
		log.Tracef("logout of unknown or already removed token")
	}
	return removed
}

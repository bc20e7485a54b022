package service

import (
	"context"
	"errors"
	"strings"

	"github.com/emrgen/plm/internal/registry"
	"github.com/emrgen/plm/internal/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AccountHeader carries the caller identity as <facility>|<group>|<account>.
const AccountHeader = "X-PLM-Account"

// NewAccountService creates a new AccountService.
func NewAccountService(store store.Store, directory *registry.Directory, registry *registry.Registry) *AccountService {
	return &AccountService{
		store:     store,
		directory: directory,
		registry:  registry,
	}
}

// AccountService resolves request identities and manages credentials.
type AccountService struct {
	store     store.Store
	directory *registry.Directory
	registry  *registry.Registry
}

// ResolveAccount parses an account header and looks the triple up in the
// directory. Malformed headers and unknown triples resolve to nothing.
func (a *AccountService) ResolveAccount(header string) (registry.Account, bool) {
	parts := strings.Split(header, "|")
	if len(parts) != 3 {
		return registry.Account{}, false
	}

	facility := strings.TrimSpace(parts[0])
	group := strings.TrimSpace(parts[1])
	name := strings.TrimSpace(parts[2])
	if facility == "" || group == "" || name == "" {
		return registry.Account{}, false
	}

	return a.directory.Find(name, facility, group)
}

// CreateAccount validates the password against the policy, appends the account
// with placeholder facility and group, and stores its password hash. The
// directory entry is removed again when the hash cannot be stored.
func (a *AccountService) CreateAccount(ctx context.Context, name, password string) (registry.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return registry.Account{}, ErrEmptyAccount
	}
	if password == "" {
		return registry.Account{}, ErrEmptyPassword
	}
	if violations := a.registry.Snapshot().Policy.Validate(password); len(violations) > 0 {
		return registry.Account{}, &PolicyViolationError{Violations: violations}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return registry.Account{}, status.Error(codes.InvalidArgument, "password must be at most 72 bytes long")
	}
	if err != nil {
		return registry.Account{}, err
	}

	acc, err := a.directory.Append(name)
	if errors.Is(err, registry.ErrDuplicateAccount) {
		return registry.Account{}, ErrDuplicateAccount
	}
	if err != nil {
		return registry.Account{}, err
	}

	if err := a.store.UpsertCredential(ctx, acc.Name, string(hash)); err != nil {
		if rmErr := a.directory.Remove(acc.Name); rmErr != nil {
			logrus.Errorf("remove account %s after failed credential write: %v", acc.Name, rmErr)
		}
		return registry.Account{}, err
	}
	logrus.Infof("account %s created", acc.Name)

	return acc, nil
}

// VerifyLogin checks the password of a directory account.
func (a *AccountService) VerifyLogin(ctx context.Context, facility, group, name, password string) (registry.Account, error) {
	acc, ok := a.directory.Find(name, facility, group)
	if !ok || strings.TrimSpace(facility) == "" || strings.TrimSpace(group) == "" {
		return registry.Account{}, ErrAccountNotFound
	}

	cred, err := a.store.GetCredential(ctx, acc.Name)
	if errors.Is(err, store.ErrRecordNotFound) {
		return registry.Account{}, ErrUnauthorized
	}
	if err != nil {
		return registry.Account{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return registry.Account{}, ErrUnauthorized
	}

	return acc, nil
}

// Hierarchy lists accounts by facility and group.
func (a *AccountService) Hierarchy() []registry.HierarchyNode {
	return a.directory.Hierarchy()
}

// Policy returns the active password policy.
func (a *AccountService) Policy() registry.Policy {
	return a.registry.Snapshot().Policy
}

package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/splax/expensetracker/internal/domain"
	"github.com/splax/expensetracker/internal/expensetest"
	"github.com/splax/expensetracker/internal/repository"
	jwtpkg "github.com/splax/expensetracker/pkg/jwt"
)

func newService(t *testing.T, users repository.UserRepository, opts ...jwtpkg.Option) Service {
	t.Helper()
	return New(users, expensetest.NewHasher(t), expensetest.NewTokens(t, opts...), expensetest.DiscardLogger(), Config{AccessTokenTTL: 30 * time.Minute})
}

func TestRegisterStoresHashedPassword(t *testing.T) {
	users := newUserRepoStub()
	svc := newService(t, users)

	user, err := svc.Register(context.Background(), " alice ", "alice@x.com", "pw1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID == 0 || user.Username != "alice" {
		t.Fatalf("unexpected user: %+v", user)
	}
	stored := users.byUsername["alice"]
	if stored == nil {
		t.Fatalf("expected user to be stored")
	}
	if stored.PasswordHash == "pw1" || !strings.HasPrefix(stored.PasswordHash, "$2") {
		t.Fatalf("expected a bcrypt hash, got %q", stored.PasswordHash)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	users := newUserRepoStub()
	svc := newService(t, users)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "alice", "alice@x.com", "pw1"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Register(ctx, "alice", "other@x.com", "pw2"); !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("expected duplicate username, got %v", err)
	}
	if _, err := svc.Register(ctx, "bob", "alice@x.com", "pw2"); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected duplicate email, got %v", err)
	}
	if len(users.byUsername) != 1 {
		t.Fatalf("expected store untouched, got %d users", len(users.byUsername))
	}
}

func TestRegisterRaceSurfacesStoreConstraint(t *testing.T) {
	users := newUserRepoStub()
	users.createErr = repository.ErrDuplicateUsername
	svc := newService(t, users)

	if _, err := svc.Register(context.Background(), "alice", "alice@x.com", "pw1"); !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("expected duplicate username from store, got %v", err)
	}
}

func TestRegisterRequiresFields(t *testing.T) {
	svc := newService(t, newUserRepoStub())
	cases := [][3]string{
		{"", "a@x.com", "pw"},
		{"alice", "  ", "pw"},
		{"alice", "a@x.com", ""},
	}
	for _, c := range cases {
		if _, err := svc.Register(context.Background(), c[0], c[1], c[2]); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected invalid input for %q, got %v", c, err)
		}
	}
}

func TestRegisterRejectsPasswordTooLongForBcrypt(t *testing.T) {
	users := newUserRepoStub()
	svc := newService(t, users)

	_, err := svc.Register(context.Background(), "alice", "alice@x.com", strings.Repeat("p", 73))
	if !errors.Is(err, ErrInvalidInput) || !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected invalid input for 73-byte password, got %v", err)
	}
	if len(users.byUsername) != 0 {
		t.Fatalf("expected nothing stored")
	}
}

func TestAuthenticateTrimsUsernameLikeRegister(t *testing.T) {
	svc := newService(t, newUserRepoStub())
	ctx := context.Background()
	if _, err := svc.Register(ctx, " alice", "alice@x.com", "pw1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	for _, name := range []string{"alice", " alice", "alice "} {
		if _, err := svc.Authenticate(ctx, name, "pw1"); err != nil {
			t.Fatalf("authenticate %q: %v", name, err)
		}
	}
}

func TestAuthenticateRejectsCorruptArgon2Row(t *testing.T) {
	users := newUserRepoStub()
	svc := newService(t, users)
	ctx := context.Background()
	if err := users.CreateUser(ctx, &domain.User{
		Username:     "bob",
		Email:        "bob@x.com",
		PasswordHash: "$argon2id$v=19$m=65536,t=0,p=1$c2FsdHNhbHQ$aGFzaGhhc2g",
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "bob", "pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestAuthenticateHidesWhichPartFailed(t *testing.T) {
	users := newUserRepoStub()
	svc := newService(t, users)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "alice", "alice@x.com", "pw1"); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, unknownErr := svc.Authenticate(ctx, "nobody", "pw1")
	_, wrongErr := svc.Authenticate(ctx, "alice", "wrong")
	if !errors.Is(unknownErr, ErrInvalidCredentials) || !errors.Is(wrongErr, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v and %v", unknownErr, wrongErr)
	}
	if unknownErr.Error() != wrongErr.Error() {
		t.Fatalf("expected identical errors, got %q and %q", unknownErr, wrongErr)
	}

	user, err := svc.Authenticate(ctx, "alice", "pw1")
	if err != nil || user.Username != "alice" {
		t.Fatalf("expected alice, got %+v, %v", user, err)
	}
}

func TestAuthenticateFailsClosedOnStoreError(t *testing.T) {
	users := newUserRepoStub()
	users.getErr = errors.New("connection refused")
	svc := newService(t, users)

	_, err := svc.Authenticate(context.Background(), "alice", "pw1")
	if err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestLoginAndAuthorize(t *testing.T) {
	users := newUserRepoStub()
	svc := newService(t, users)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "alice", "alice@x.com", "pw1"); err != nil {
		t.Fatalf("register: %v", err)
	}

	token, err := svc.Login(ctx, "alice", "pw1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token.TokenType != "bearer" || token.AccessToken == "" {
		t.Fatalf("unexpected token: %+v", token)
	}
	if token.ExpiresIn != 30*time.Minute {
		t.Fatalf("expected 30m lifetime, got %s", token.ExpiresIn)
	}

	user, err := svc.Authorize(ctx, token.AccessToken)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if user.Username != "alice" {
		t.Fatalf("expected alice, got %s", user.Username)
	}

	if _, err := svc.Login(ctx, "alice", "bad"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestAuthorizeRejectsBadTokens(t *testing.T) {
	users := newUserRepoStub()
	svc := newService(t, users)
	ctx := context.Background()

	for _, token := range []string{"", "   ", "garbage", "a.b.c"} {
		if _, err := svc.Authorize(ctx, token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected invalid token for %q, got %v", token, err)
		}
	}

	other, err := jwtpkg.NewService(jwtpkg.Config{Secret: "another-secret"})
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}
	forged, err := other.Issue("alice", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Authorize(ctx, forged); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for foreign key, got %v", err)
	}
}

func TestAuthorizeRejectsExpiredToken(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	users := newUserRepoStub()
	svc := newService(t, users, jwtpkg.WithClock(clock))
	ctx := context.Background()
	if _, err := svc.Register(ctx, "alice", "alice@x.com", "pw1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	token, err := svc.Login(ctx, "alice", "pw1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	now = now.Add(31 * time.Minute)
	if _, err := svc.Authorize(ctx, token.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestAuthorizeUnknownSubject(t *testing.T) {
	users := newUserRepoStub()
	svc := newService(t, users)
	ctx := context.Background()

	token, err := expensetest.NewTokens(t).Issue("ghost", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Authorize(ctx, token); !errors.Is(err, ErrIdentityNotFound) {
		t.Fatalf("expected identity not found, got %v", err)
	}

	users.getErr = errors.New("db down")
	if _, err := svc.Authorize(ctx, token); err == nil || errors.Is(err, ErrIdentityNotFound) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

type userRepoStub struct {
	mu         sync.Mutex
	nextID     int64
	byUsername map[string]*domain.User
	createErr  error
	getErr     error
}

func newUserRepoStub() *userRepoStub {
	return &userRepoStub{byUsername: map[string]*domain.User{}}
}

func (s *userRepoStub) CreateUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.nextID++
	user.ID = s.nextID
	clone := *user
	s.byUsername[user.Username] = &clone
	return nil
}

func (s *userRepoStub) find(match func(*domain.User) bool) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	for _, u := range s.byUsername {
		if match(u) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *userRepoStub) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	return s.find(func(u *domain.User) bool { return u.Username == username })
}

func (s *userRepoStub) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	return s.find(func(u *domain.User) bool { return u.Email == email })
}

func (s *userRepoStub) GetUserByID(_ context.Context, id int64) (*domain.User, error) {
	return s.find(func(u *domain.User) bool { return u.ID == id })
}

func (s *userRepoStub) UpdateUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.byUsername[user.Username]
	if !ok {
		return repository.ErrNotFound
	}
	existing.Email = user.Email
	existing.PasswordHash = user.PasswordHash
	return nil
}

package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"sync"
	"testing"
	"time"

	"sensor_gateway/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testSigningKey = "test-signing-key"
	testBootID     = "6f1c2b8e-boot"
)

// memUsers is an in-memory repository.Users that enforces unique usernames
// and at most one operator, like the SQLite schema does.
type memUsers struct {
	mu       sync.Mutex
	byName   map[string]models.User
	nextID   int
	countErr error
	createFn func(models.User) error
}

func newMemUsers() *memUsers {
	return &memUsers{byName: map[string]models.User{}}
}

func (m *memUsers) Create(_ context.Context, u models.User) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createFn != nil {
		if err := m.createFn(u); err != nil {
			return 0, err
		}
	}
	if _, ok := m.byName[u.Username]; ok {
		return 0, errors.New("UNIQUE constraint failed: users.username")
	}
	if u.Role == models.RoleOperator {
		for _, existing := range m.byName {
			if existing.Role == models.RoleOperator {
				return 0, errors.New("UNIQUE constraint failed: users.role")
			}
		}
	}
	m.nextID++
	u.ID = m.nextID
	m.byName[u.Username] = u
	return u.ID, nil
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byName[username]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *memUsers) CountByRole(_ context.Context, role models.Role) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return 0, m.countErr
	}
	n := 0
	for _, u := range m.byName {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func signIn(t *testing.T, svc *AuthService, username, password string) Principal {
	t.Helper()
	token, err := svc.GenerateToken(context.Background(), username, password)
	if err != nil {
		t.Fatalf("GenerateToken(%s): %v", username, err)
	}
	p, err := svc.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	return p
}

// --- enrollment ---

func TestAuthService_EnrollOperator_WithBootID(t *testing.T) {
	users := newMemUsers()
	svc := NewAuthService(users, testSigningKey, testBootID)

	id, err := svc.EnrollOperator(context.Background(), "field-tech", "s3cr3t", testBootID)
	if err != nil {
		t.Fatalf("EnrollOperator: %v", err)
	}

	stored := users.byName["field-tech"]
	if stored.Role != models.RoleOperator {
		t.Fatalf("stored role = %q, want operator", stored.Role)
	}
	if stored.PasswordHash == "s3cr3t" {
		t.Fatalf("password stored in clear")
	}
	if err := verifyPassword(stored.PasswordHash, "s3cr3t"); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}

	p := signIn(t, svc, "field-tech", "s3cr3t")
	if p.UserID != id || p.Role != models.RoleOperator {
		t.Fatalf("principal = %+v, want id %d operator", p, id)
	}
}

func TestAuthService_EnrollOperator_WrongBootID(t *testing.T) {
	users := newMemUsers()
	svc := NewAuthService(users, testSigningKey, testBootID)

	for _, bootID := range []string{"", "stale-boot-from-yesterday", testBootID + " "} {
		_, err := svc.EnrollOperator(context.Background(), "field-tech", "pw", bootID)
		if !errors.Is(err, ErrBootIDMismatch) {
			t.Fatalf("boot id %q: got %v, want ErrBootIDMismatch", bootID, err)
		}
	}
	if len(users.byName) != 0 {
		t.Fatalf("no account should be created, got %v", users.byName)
	}
}

func TestAuthService_EnrollOperator_NoBootIDConfigured(t *testing.T) {
	svc := NewAuthService(newMemUsers(), testSigningKey, "")
	_, err := svc.EnrollOperator(context.Background(), "field-tech", "pw", "")
	if !errors.Is(err, ErrBootIDMismatch) {
		t.Fatalf("got %v, want ErrBootIDMismatch", err)
	}
}

func TestAuthService_EnrollOperator_OnlyOnce(t *testing.T) {
	svc := NewAuthService(newMemUsers(), testSigningKey, testBootID)
	ctx := context.Background()

	if _, err := svc.EnrollOperator(ctx, "field-tech", "pw", testBootID); err != nil {
		t.Fatalf("first enrollment: %v", err)
	}
	_, err := svc.EnrollOperator(ctx, "someone-else", "pw", testBootID)
	if !errors.Is(err, ErrOperatorExists) {
		t.Fatalf("second enrollment: got %v, want ErrOperatorExists", err)
	}
}

func TestAuthService_EnrollOperator_ConcurrentCallersGetOneOperator(t *testing.T) {
	users := newMemUsers()
	svc := NewAuthService(users, testSigningKey, testBootID)

	const callers = 8
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		wins   int
		exists int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.EnrollOperator(context.Background(), string(rune('a'+i)), "pw", testBootID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrOperatorExists):
				exists++
			default:
				t.Errorf("caller %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 || exists != callers-1 {
		t.Fatalf("wins=%d exists=%d", wins, exists)
	}
}

func TestAuthService_EnrollOperator_CountError(t *testing.T) {
	users := newMemUsers()
	users.countErr = errors.New("database is locked")
	svc := NewAuthService(users, testSigningKey, testBootID)

	if _, err := svc.EnrollOperator(context.Background(), "field-tech", "pw", testBootID); err == nil {
		t.Fatalf("expected count error")
	}
}

func TestAuthService_AddViewer(t *testing.T) {
	users := newMemUsers()
	svc := NewAuthService(users, testSigningKey, testBootID)

	if _, err := svc.AddViewer(context.Background(), "dashboard", "pw"); err != nil {
		t.Fatalf("AddViewer: %v", err)
	}
	if p := signIn(t, svc, "dashboard", "pw"); p.Role != models.RoleViewer {
		t.Fatalf("role = %q, want viewer", p.Role)
	}
}

func TestAuthService_AddViewer_RejectsBlankInput(t *testing.T) {
	users := newMemUsers()
	users.createFn = func(models.User) error {
		t.Fatal("Create should not be called")
		return nil
	}
	svc := NewAuthService(users, testSigningKey, testBootID)

	if _, err := svc.AddViewer(context.Background(), "dashboard", "   "); err == nil {
		t.Fatalf("expected error for empty password")
	}
	if _, err := svc.AddViewer(context.Background(), " ", "pw"); err == nil {
		t.Fatalf("expected error for empty username")
	}
}

func TestAuthService_AddViewer_RepoError(t *testing.T) {
	users := newMemUsers()
	users.createFn = func(models.User) error { return errors.New("db down") }
	svc := NewAuthService(users, testSigningKey, testBootID)

	if _, err := svc.AddViewer(context.Background(), "dashboard", "pw"); err == nil {
		t.Fatalf("expected repo error")
	}
}

// --- sign-in ---

func TestAuthService_GenerateToken_UserNotFound(t *testing.T) {
	svc := NewAuthService(newMemUsers(), testSigningKey, testBootID)

	_, err := svc.GenerateToken(context.Background(), "ghost", "pw")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got: %v", err)
	}
}

func TestAuthService_GenerateToken_InvalidPassword(t *testing.T) {
	svc := NewAuthService(newMemUsers(), testSigningKey, testBootID)
	if _, err := svc.AddViewer(context.Background(), "dashboard", "correct"); err != nil {
		t.Fatalf("AddViewer: %v", err)
	}

	_, err := svc.GenerateToken(context.Background(), "dashboard", "wrong")
	if !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got: %v", err)
	}
}

// --- tokens ---

func signedClaims(t *testing.T, method jwt.SigningMethod, key any, claims *Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return s
}

func liveClaims(userID int, role models.Role) *Claims {
	now := time.Now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID: userID,
		Role:   role,
	}
}

func TestAuthService_ParseToken_Rejects(t *testing.T) {
	svc := NewAuthService(newMemUsers(), testSigningKey, testBootID)

	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey: %v", err)
	}
	expired := liveClaims(11, models.RoleOperator)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	cases := map[string]string{
		"malformed":    "not-a-jwt",
		"other key":    signedClaims(t, jwt.SigningMethodHS256, []byte("different-key"), liveClaims(5, models.RoleOperator)),
		"expired":      signedClaims(t, jwt.SigningMethodHS256, []byte(testSigningKey), expired),
		"rsa signed":   signedClaims(t, jwt.SigningMethodRS256, rsaKey, liveClaims(12, models.RoleOperator)),
		"missing role": signedClaims(t, jwt.SigningMethodHS256, []byte(testSigningKey), liveClaims(13, "")),
		"unknown role": signedClaims(t, jwt.SigningMethodHS256, []byte(testSigningKey), liveClaims(14, "admin")),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.ParseToken(token); err == nil {
				t.Fatalf("expected %s token to be rejected", name)
			}
		})
	}
}

func TestAuthService_ParseToken_CarriesRole(t *testing.T) {
	svc := NewAuthService(newMemUsers(), testSigningKey, testBootID)
	token, err := svc.issueToken(99, models.RoleViewer)
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}

	p, err := svc.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if p != (Principal{UserID: 99, Role: models.RoleViewer}) {
		t.Fatalf("principal = %+v", p)
	}
}

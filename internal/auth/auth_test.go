package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/kadriissam365-ops/artisanat-marocain/internal/domain"
)

type memoryUsers struct {
	mu    sync.Mutex
	byID  map[string]*domain.User
	count int
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byID: map[string]*domain.User{}}
}

func (m *memoryUsers) Create(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return domain.ErrDuplicate
		}
	}
	m.count++
	u.ID = "user-" + string(rune('0'+m.count))
	m.byID[u.ID] = u
	return nil
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memoryUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTokens(t *testing.T) {
	tokens := NewTokens("test-secret")
	user := &domain.User{ID: "u1", Role: domain.RoleAdmin}

	t.Run("round trip", func(t *testing.T) {
		raw, err := tokens.Issue(user)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		id, err := tokens.Parse(raw)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id.UserID != "u1" || !id.IsAdmin() {
			t.Errorf("unexpected identity: %+v", id)
		}
	})

	t.Run("rejects other secret", func(t *testing.T) {
		raw, _ := NewTokens("other").Issue(user)
		if _, err := tokens.Parse(raw); err == nil {
			t.Error("expected error for token signed with another secret")
		}
	})

	t.Run("rejects expired", func(t *testing.T) {
		raw, _ := tokens.Issue(user)
		later := NewTokens("test-secret")
		later.now = func() time.Time { return time.Now().Add(TokenTTL + time.Hour) }
		if _, err := later.Parse(raw); err == nil {
			t.Error("expected error for expired token")
		}
	})
}

func TestMiddleware(t *testing.T) {
	tokens := NewTokens("test-secret")
	mw := NewMiddleware(tokens, testLogger())
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }

	clientToken, _ := tokens.Issue(&domain.User{ID: "c1", Role: domain.RoleClient})
	adminToken, _ := tokens.Issue(&domain.User{ID: "a1", Role: domain.RoleAdmin})

	tests := []struct {
		name   string
		guard  func(http.HandlerFunc) http.HandlerFunc
		token  string
		status int
	}{
		{"user route anonymous", mw.RequireUser, "", http.StatusUnauthorized},
		{"user route with garbage token", mw.RequireUser, "garbage", http.StatusUnauthorized},
		{"user route as client", mw.RequireUser, clientToken, http.StatusNoContent},
		{"admin route anonymous", mw.RequireAdmin, "", http.StatusUnauthorized},
		{"admin route as client", mw.RequireAdmin, clientToken, http.StatusForbidden},
		{"admin route as admin", mw.RequireAdmin, adminToken, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := mw.Authenticate(tt.guard(ok))
			req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rec.Code)
			}
		})
	}
}

func TestHandler_Register(t *testing.T) {
	users := newMemoryUsers()
	handler := NewHandler(users, NewTokens("test-secret"), testLogger())

	t.Run("creates user with hashed password", func(t *testing.T) {
		body := `{"email":"Fatima@Example.ma","password":"argan-oil-1","firstName":"Fatima","lastName":"Zahra"}`
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
		rec := httptest.NewRecorder()

		handler.HandleRegister(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if strings.Contains(rec.Body.String(), "argan-oil-1") || strings.Contains(rec.Body.String(), "password") {
			t.Errorf("response leaks password data: %s", rec.Body.String())
		}

		u, _ := users.GetByEmail(context.Background(), "fatima@example.ma")
		if u == nil {
			t.Fatal("expected user to be stored with normalised email")
		}
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("argan-oil-1")) != nil {
			t.Error("stored hash does not match password")
		}
	})

	t.Run("duplicate email returns 409", func(t *testing.T) {
		body := `{"email":"fatima@example.ma","password":"another-pass","firstName":"F","lastName":"Z"}`
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
		rec := httptest.NewRecorder()

		handler.HandleRegister(rec, req)

		if rec.Code != http.StatusConflict {
			t.Errorf("expected status 409, got %d", rec.Code)
		}
	})

	t.Run("short password returns 400", func(t *testing.T) {
		body := `{"email":"youssef@example.ma","password":"short","firstName":"Y","lastName":"B"}`
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
		rec := httptest.NewRecorder()

		handler.HandleRegister(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})
}

func TestHandler_Login(t *testing.T) {
	users := newMemoryUsers()
	hash, _ := bcrypt.GenerateFromPassword([]byte("zellige-blue"), bcrypt.MinCost)
	_ = users.Create(context.Background(), &domain.User{Email: "omar@example.ma", PasswordHash: string(hash), Role: domain.RoleClient})

	tokens := NewTokens("test-secret")
	handler := NewHandler(users, tokens, testLogger())

	t.Run("valid credentials return token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"omar@example.ma","password":"zellige-blue"}`))
		rec := httptest.NewRecorder()

		handler.HandleLogin(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		var resp struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		id, err := tokens.Parse(resp.Token)
		if err != nil {
			t.Fatalf("issued token does not parse: %v", err)
		}
		if id.Role != domain.RoleClient {
			t.Errorf("expected CLIENT role, got %s", id.Role)
		}
	})

	t.Run("wrong password returns 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"omar@example.ma","password":"nope-nope"}`))
		rec := httptest.NewRecorder()

		handler.HandleLogin(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", rec.Code)
		}
	})

	t.Run("unknown email returns 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"ghost@example.ma","password":"zellige-blue"}`))
		rec := httptest.NewRecorder()

		handler.HandleLogin(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", rec.Code)
		}
	})
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/RedFoundry/convosync/internal/state"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *state.Store) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	store := state.NewStore(nil)
	return NewClient(srv.URL, store, zap.NewNop()), store
}

func TestLoginStoresTokenAndRole(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user/login/token", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("login method = %s", r.Method)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode login body: %v", err)
		}
		if body["username"] != "alice" {
			t.Errorf("username = %q", body["username"])
		}
		_ = json.NewEncoder(w).Encode(loginResponse{Value: "tok-123", Successful: true})
	})
	mux.HandleFunc("/user/current/status", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("status auth header = %q", got)
		}
		_ = json.NewEncoder(w).Encode(userStatusResponse{CurrentUserName: "alice", ActiveRole: "agency"})
	})

	c, store := newTestClient(t, mux)
	if err := c.Login(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if store.Token() != "tok-123" {
		t.Fatalf("token not stored, got %q", store.Token())
	}
	if store.ActiveRole() != "agency" {
		t.Fatalf("role not stored, got %q", store.ActiveRole())
	}
}

func TestLoginRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user/login/token", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(loginResponse{Successful: false, FailureReason: "bad password"})
	})

	c, store := newTestClient(t, mux)
	if err := c.Login(context.Background(), "alice", "wrong"); err == nil {
		t.Fatalf("expected login error")
	}
	if store.Token() != "" {
		t.Fatalf("rejected login stored a token")
	}
}

func TestTokenReturnsValue(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/token", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("forEntityId"); got != "42" {
			t.Errorf("forEntityId = %q", got)
		}
		_ = json.NewEncoder(w).Encode("session-token")
	})

	c, _ := newTestClient(t, mux)
	tok, err := c.Token(context.Background(), "42")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if tok != "session-token" {
		t.Fatalf("token = %q", tok)
	}
}

// A failed token fetch means "no session for this endpoint", not a hard
// error; callers skip the endpoint.
func TestTokenAbsentOnFailure(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	tok, err := c.Token(context.Background(), "42")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if tok != "" {
		t.Fatalf("expected empty token, got %q", tok)
	}
}

func TestScheduleAgencyRole(t *testing.T) {
	name := "Red Cross"
	mux := http.NewServeMux()
	mux.HandleFunc("/activity/future", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(scheduleResponse{
			RelatedAgencies: []RelatedEntity{
				{ID: 1, Code: "RC", Name: &name, EntityID: 77},
			},
			RelatedDonorLocations: []RelatedEntity{
				{ID: 2, Code: "DL", EntityID: 88},
			},
		})
	})

	c, store := newTestClient(t, mux)
	store.Dispatch(state.SetActiveRole("agency"))

	eps, err := c.Schedule(context.Background())
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if len(eps) != 1 {
		t.Fatalf("expected 1 endpoint for agency role, got %d", len(eps))
	}
	if eps[0].ID != "77" || eps[0].DisplayName != "Red Cross #RC" {
		t.Fatalf("unexpected endpoint %+v", eps[0])
	}
}

func TestScheduleDonorRole(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/activity/future", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(scheduleResponse{
			RelatedDonorLocations: []RelatedEntity{
				{ID: 2, Code: "A1", EntityID: 10},
				{ID: 3, Code: "A2", EntityID: 11},
			},
		})
	})

	c, _ := newTestClient(t, mux)
	eps, err := c.Schedule(context.Background())
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if len(eps) != 2 {
		t.Fatalf("expected 2 endpoints, got %d", len(eps))
	}
	// No name on the entity falls back to the placeholder.
	if eps[0].DisplayName != "No Name #A1" {
		t.Fatalf("unexpected display name %q", eps[0].DisplayName)
	}
}

func TestForbiddenResponseLogsOut(t *testing.T) {
	c, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	store.Dispatch(state.Login("stale-token"))

	if _, err := c.Schedule(context.Background()); err == nil {
		t.Fatalf("expected forbidden error")
	}
	if store.Token() != "" {
		t.Fatalf("stale token survived a 403")
	}
}

package graph

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/shineum/graph-sendmail/internal/email"
	"github.com/shineum/graph-sendmail/internal/provider"
)

func TestBuildSendMailRequest_BasicEmail(t *testing.T) {
	t.Parallel()

	msg := &email.Outbound{
		Subject: "Test Subject",
		Body:    email.Body{ContentType: email.ContentTypeText, Content: "Hello, World!"},
		To:      []string{"alice@example.com", "bob@example.com"},
		Sender:  "relay@example.com",
		From:    "printer@example.com",
	}

	req := buildSendMailRequest(msg)

	if req.Message.Subject != "Test Subject" {
		t.Errorf("Subject: got %q, want %q", req.Message.Subject, "Test Subject")
	}
	if req.Message.Body.ContentType != "text" {
		t.Errorf("Body.ContentType: got %q, want %q", req.Message.Body.ContentType, "text")
	}
	if req.Message.Body.Content != "Hello, World!" {
		t.Errorf("Body.Content: got %q, want %q", req.Message.Body.Content, "Hello, World!")
	}
	if len(req.Message.ToRecipients) != 2 {
		t.Fatalf("ToRecipients count: got %d, want 2", len(req.Message.ToRecipients))
	}
	if req.Message.ToRecipients[0].EmailAddress.Address != "alice@example.com" {
		t.Errorf("ToRecipients[0]: got %q, want %q", req.Message.ToRecipients[0].EmailAddress.Address, "alice@example.com")
	}
	if req.Message.ToRecipients[1].EmailAddress.Address != "bob@example.com" {
		t.Errorf("ToRecipients[1]: got %q, want %q", req.Message.ToRecipients[1].EmailAddress.Address, "bob@example.com")
	}
	if req.Message.Sender == nil || req.Message.Sender.EmailAddress.Address != "relay@example.com" {
		t.Errorf("Sender: got %+v, want relay@example.com", req.Message.Sender)
	}
	if req.Message.From == nil || req.Message.From.EmailAddress.Address != "printer@example.com" {
		t.Errorf("From: got %+v, want printer@example.com", req.Message.From)
	}
	if !req.SaveToSentItems {
		t.Error("SaveToSentItems: got false, want true")
	}
}

func TestBuildSendMailRequest_JSONShape(t *testing.T) {
	t.Parallel()

	req := buildSendMailRequest(&email.Outbound{
		Subject: "JSON Test",
		Body:    email.Body{ContentType: email.ContentTypeText, Content: "Body"},
		From:    "from@example.com",
	})
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("JSON marshal error: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("JSON unmarshal error: %v", err)
	}
	if doc["saveToSentItems"] != true {
		t.Errorf("saveToSentItems: got %v, want true", doc["saveToSentItems"])
	}
	message, ok := doc["message"].(map[string]any)
	if !ok {
		t.Fatalf("message: got %T", doc["message"])
	}
	if to, ok := message["toRecipients"].([]any); !ok || len(to) != 0 {
		t.Errorf("toRecipients: got %v, want empty array", message["toRecipients"])
	}
	if _, ok := message["sender"]; ok {
		t.Error("sender should be omitted when empty")
	}
	if _, ok := message["from"]; !ok {
		t.Error("from should be present")
	}
}

func TestGraphProvider_Name(t *testing.T) {
	t.Parallel()

	p := &GraphProvider{}
	if p.Name() != "msgraph" {
		t.Errorf("Name: got %q, want %q", p.Name(), "msgraph")
	}
}

// fakeGraph serves the token endpoint and the Graph users API.
type fakeGraph struct {
	t          *testing.T
	tokenCalls atomic.Int32
	lookups    atomic.Int32
	sends      atomic.Int32

	userStatus int
	user       graphUser
	sendStatus int
	sendBody   atomic.Pointer[sendMailRequest]
	lastLookup atomic.Pointer[http.Request]
}

func (f *fakeGraph) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/token":
		f.tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
		return
	case r.Header.Get("Authorization") != "Bearer test-token":
		f.t.Errorf("Authorization header: got %q, want %q", r.Header.Get("Authorization"), "Bearer test-token")
		w.WriteHeader(http.StatusUnauthorized)
		return
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1.0/users/"):
		f.lookups.Add(1)
		f.lastLookup.Store(r)
		status := f.userStatus
		if status == 0 {
			status = http.StatusOK
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status == http.StatusOK {
			json.NewEncoder(w).Encode(f.user)
			return
		}
		json.NewEncoder(w).Encode(graphErrorResponse{
			Error: graphError{Code: "Request_ResourceNotFound", Message: "Resource does not exist"},
		})
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/sendMail"):
		f.sends.Add(1)
		if r.URL.Path != "/v1.0/users/user-id-123/sendMail" {
			f.t.Errorf("send path: got %q", r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			f.t.Errorf("Content-Type header: got %q, want %q", r.Header.Get("Content-Type"), "application/json")
		}
		var body sendMailRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			f.t.Errorf("failed to decode request body: %v", err)
		}
		f.sendBody.Store(&body)
		status := f.sendStatus
		if status == 0 {
			status = http.StatusAccepted
		}
		w.WriteHeader(status)
		if status >= 400 {
			json.NewEncoder(w).Encode(graphErrorResponse{
				Error: graphError{Code: "ErrorAccessDenied", Message: "Access is denied"},
			})
		}
	default:
		f.t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestProvider(t *testing.T, f *fakeGraph) *GraphProvider {
	t.Helper()
	f.t = t
	server := httptest.NewServer(f)
	t.Cleanup(server.Close)

	return newWithOverrides(
		context.Background(),
		GraphProviderConfig{TenantID: "test-tenant", ClientID: "test-client", ClientSecret: "test-secret"},
		server.URL+"/v1.0",
		server.URL+"/token",
		server.Client(),
	)
}

func TestGraphProvider_ResolveIdentity(t *testing.T) {
	t.Parallel()

	f := &fakeGraph{user: graphUser{
		ID:                "user-id-123",
		DisplayName:       "Relay Account",
		Mail:              "relay@example.com",
		UserPrincipalName: "relay@example.com",
	}}
	p := newTestProvider(t, f)

	id, err := p.ResolveIdentity(context.Background(), "relay@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == nil {
		t.Fatal("expected identity, got nil")
	}
	if id.ID != "user-id-123" {
		t.Errorf("ID: got %q, want %q", id.ID, "user-id-123")
	}
	if id.PrincipalName != "relay@example.com" {
		t.Errorf("PrincipalName: got %q, want %q", id.PrincipalName, "relay@example.com")
	}
	if id.DisplayName != "Relay Account" {
		t.Errorf("DisplayName: got %q, want %q", id.DisplayName, "Relay Account")
	}

	req := f.lastLookup.Load()
	if req.URL.Path != "/v1.0/users/relay@example.com" {
		t.Errorf("lookup path: got %q", req.URL.Path)
	}
	if got := req.URL.Query().Get("$select"); got != userSelect {
		t.Errorf("$select: got %q, want %q", got, userSelect)
	}
}

func TestGraphProvider_ResolveIdentityNotFound(t *testing.T) {
	t.Parallel()

	f := &fakeGraph{userStatus: http.StatusNotFound}
	p := newTestProvider(t, f)

	id, err := p.ResolveIdentity(context.Background(), "ghost@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != nil {
		t.Errorf("expected nil identity, got %+v", id)
	}
}

func TestGraphProvider_ResolveIdentityEmptyID(t *testing.T) {
	t.Parallel()

	f := &fakeGraph{user: graphUser{UserPrincipalName: "odd@example.com"}}
	p := newTestProvider(t, f)

	id, err := p.ResolveIdentity(context.Background(), "odd@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != nil {
		t.Errorf("expected nil identity, got %+v", id)
	}
}

func TestGraphProvider_ResolveIdentityAPIError(t *testing.T) {
	t.Parallel()

	f := &fakeGraph{userStatus: http.StatusForbidden}
	p := newTestProvider(t, f)

	_, err := p.ResolveIdentity(context.Background(), "relay@example.com")
	if err == nil {
		t.Fatal("expected error for 403 response, got nil")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode: got %d, want %d", apiErr.StatusCode, http.StatusForbidden)
	}
	if apiErr.Message != "Resource does not exist" {
		t.Errorf("Message: got %q", apiErr.Message)
	}
}

func TestGraphProvider_SendSuccess(t *testing.T) {
	t.Parallel()

	f := &fakeGraph{}
	p := newTestProvider(t, f)

	msg := &email.Outbound{
		Subject: "Test",
		Body:    email.Body{ContentType: email.ContentTypeText, Content: "Body"},
		To:      []string{"user@example.com"},
		Sender:  "relay@example.com",
		From:    "relay@example.com",
	}

	err := p.Send(context.Background(), &provider.Identity{ID: "user-id-123"}, msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body := f.sendBody.Load()
	if body == nil {
		t.Fatal("send body not captured")
	}
	if body.Message.Subject != "Test" {
		t.Errorf("Subject in body: got %q, want %q", body.Message.Subject, "Test")
	}
	if !body.SaveToSentItems {
		t.Error("saveToSentItems: got false, want true")
	}
	if f.sends.Load() != 1 {
		t.Errorf("send calls: got %d, want 1", f.sends.Load())
	}
}

func TestGraphProvider_SendErrorIsSingleAttempt(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusBadRequest, http.StatusForbidden, http.StatusTooManyRequests, http.StatusServiceUnavailable} {
		f := &fakeGraph{sendStatus: status}
		p := newTestProvider(t, f)

		err := p.Send(context.Background(), &provider.Identity{ID: "user-id-123"}, &email.Outbound{To: []string{"user@example.com"}})
		if err == nil {
			t.Fatalf("HTTP %d: expected error, got nil", status)
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("HTTP %d: expected *APIError, got %T", status, err)
		}
		if apiErr.Code != "ErrorAccessDenied" {
			t.Errorf("HTTP %d: Code: got %q", status, apiErr.Code)
		}
		if n := f.sends.Load(); n != 1 {
			t.Errorf("HTTP %d: send calls: got %d, want 1", status, n)
		}
	}
}

func TestGraphProvider_SendRequiresIdentity(t *testing.T) {
	t.Parallel()

	f := &fakeGraph{}
	p := newTestProvider(t, f)

	if err := p.Send(context.Background(), nil, &email.Outbound{}); err == nil {
		t.Error("expected error for nil identity, got nil")
	}
	if f.sends.Load() != 0 {
		t.Error("no request should be made without an identity")
	}
}

func TestGraphProvider_NonJSONError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"test-token","token_type":"Bearer","expires_in":3600}`))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable"))
	}))
	defer server.Close()

	p := newWithOverrides(context.Background(), GraphProviderConfig{ClientID: "c", ClientSecret: "s"},
		server.URL+"/v1.0", server.URL+"/token", server.Client())

	_, err := p.ResolveIdentity(context.Background(), "relay@example.com")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Message != "upstream unavailable" {
		t.Errorf("Message: got %q, want %q", apiErr.Message, "upstream unavailable")
	}
}

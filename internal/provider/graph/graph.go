package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/shineum/graph-sendmail/internal/email"
	"github.com/shineum/graph-sendmail/internal/provider"
)

// graphBaseURL is the Graph API v1.0 root.
const graphBaseURL = "https://graph.microsoft.com/v1.0"

// requestTimeout bounds every token, lookup and send request.
const requestTimeout = 30 * time.Second

// userSelect lists the user properties fetched during identity resolution.
const userSelect = "id,displayName,mail,userPrincipalName"

// GraphProviderConfig holds the configuration for creating a GraphProvider.
type GraphProviderConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

// GraphProvider resolves users and sends mail via the Microsoft Graph API
// using OAuth2 client credentials authentication. Every call is a single
// attempt.
type GraphProvider struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new GraphProvider with the given configuration.
func New(ctx context.Context, cfg GraphProviderConfig) *GraphProvider {
	base := &http.Client{Timeout: requestTimeout}
	return newWithOverrides(ctx, cfg, graphBaseURL, tenantTokenURL(cfg.TenantID), base)
}

// newWithOverrides creates a GraphProvider with custom URLs and HTTP client,
// used for testing.
func newWithOverrides(ctx context.Context, cfg GraphProviderConfig, baseURL, tokenURL string, client *http.Client) *GraphProvider {
	return &GraphProvider{
		baseURL:    baseURL,
		httpClient: newCredentialClient(ctx, tokenURL, cfg.ClientID, cfg.ClientSecret, client),
	}
}

// Name returns the provider name.
func (g *GraphProvider) Name() string {
	return "msgraph"
}

// ResolveIdentity looks up a user by user principal name. A 404 response
// or a user without an id yields (nil, nil).
func (g *GraphProvider) ResolveIdentity(ctx context.Context, principal string) (*provider.Identity, error) {
	if principal == "" {
		return nil, errors.New("empty user principal name")
	}

	params := url.Values{}
	params.Set("$select", userSelect)
	userURL := fmt.Sprintf("%s/users/%s?%s", g.baseURL, url.PathEscape(principal), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user lookup request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		slog.Debug("Graph user not found", "upn", principal)
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, readAPIError(resp)
	}

	var user graphUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	if user.ID == "" {
		return nil, nil
	}

	return &provider.Identity{
		ID:            user.ID,
		PrincipalName: user.UserPrincipalName,
		DisplayName:   user.DisplayName,
		Mail:          user.Mail,
	}, nil
}

// Send delivers msg as the given user via the sendMail endpoint, saving a
// copy to the user's Sent Items. HTTP 202 Accepted is success.
func (g *GraphProvider) Send(ctx context.Context, id *provider.Identity, msg *email.Outbound) error {
	if id == nil || id.ID == "" {
		return errors.New("send requires a resolved identity")
	}

	bodyJSON, err := json.Marshal(buildSendMailRequest(msg))
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	sendURL := fmt.Sprintf("%s/users/%s/sendMail", g.baseURL, url.PathEscape(id.ID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sendURL, bytes.NewReader(bodyJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sendMail request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusOK {
		return nil
	}

	return readAPIError(resp)
}

// APIError is a non-success response from the Graph API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("Graph API error (HTTP %d, %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("Graph API error (HTTP %d): %s", e.StatusCode, e.Message)
}

// readAPIError builds an *APIError from a failed response, preferring the
// message in Graph's error envelope over the raw body.
func readAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var graphErrResp graphErrorResponse
	if jsonErr := json.Unmarshal(body, &graphErrResp); jsonErr == nil && graphErrResp.Error.Message != "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       graphErrResp.Error.Code,
			Message:    graphErrResp.Error.Message,
		}
	}

	return &APIError{StatusCode: resp.StatusCode, Message: string(body)}
}

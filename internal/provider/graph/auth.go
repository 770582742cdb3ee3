package graph

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// graphScope requests the application permissions granted to the client.
const graphScope = "https://graph.microsoft.com/.default"

// tenantTokenURL returns the Microsoft identity platform v2.0 token endpoint
// for a tenant.
func tenantTokenURL(tenantID string) string {
	return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenantID)
}

// newCredentialClient returns an HTTP client that authorizes every request
// with a bearer token from the OAuth2 client-credentials grant. Token
// requests and API requests both go through base's transport, and the
// returned client keeps base's timeout.
func newCredentialClient(ctx context.Context, tokenURL, clientID, clientSecret string, base *http.Client) *http.Client {
	creds := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{graphScope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	client := creds.Client(ctx)
	client.Timeout = base.Timeout
	return client
}

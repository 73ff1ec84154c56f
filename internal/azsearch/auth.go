package azsearch

import (
	"context"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
)

// searchScope is the Entra ID scope for Azure AI Search data-plane calls.
const searchScope = "https://search.azure.com/.default"

// refreshMargin renews tokens this long before expiry so in-flight requests
// never carry a token about to lapse.
const refreshMargin = 2 * time.Minute

// tokenSource caches one Entra ID access token and renews it near expiry.
// Safe for concurrent use.
type tokenSource struct {
	credential azcore.TokenCredential
	scope      string

	mu      sync.Mutex
	current azcore.AccessToken
}

func newTokenSource(credential azcore.TokenCredential, scope string) *tokenSource {
	return &tokenSource{credential: credential, scope: scope}
}

// Token returns a valid bearer token, requesting a fresh one when the cached
// token is missing or within refreshMargin of expiry.
func (ts *tokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.current.Token != "" && time.Until(ts.current.ExpiresOn) > refreshMargin {
		return ts.current.Token, nil
	}

	token, err := ts.credential.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{ts.scope}})
	if err != nil {
		return "", err
	}
	ts.current = token

	return token.Token, nil
}

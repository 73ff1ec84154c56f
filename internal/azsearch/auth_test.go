package azsearch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCredential implements azcore.TokenCredential for testing.
type fakeCredential struct {
	token      azcore.AccessToken
	err        error
	calls      int
	lastScopes []string
}

func (f *fakeCredential) GetToken(_ context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	f.calls++
	f.lastScopes = opts.Scopes
	if f.err != nil {
		return azcore.AccessToken{}, f.err
	}
	return f.token, nil
}

func TestTokenSourceCachesToken(t *testing.T) {
	cred := &fakeCredential{token: azcore.AccessToken{Token: "tok", ExpiresOn: time.Now().Add(time.Hour)}}
	ts := newTokenSource(cred, searchScope)

	for range 3 {
		got, err := ts.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok", got)
	}

	assert.Equal(t, 1, cred.calls)
	assert.Equal(t, []string{searchScope}, cred.lastScopes)
}

func TestTokenSourceRefreshesNearExpiry(t *testing.T) {
	cred := &fakeCredential{token: azcore.AccessToken{Token: "short", ExpiresOn: time.Now().Add(30 * time.Second)}}
	ts := newTokenSource(cred, searchScope)

	for range 2 {
		_, err := ts.Token(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, 2, cred.calls, "a token inside the refresh margin must be renewed")
}

func TestTokenSourceError(t *testing.T) {
	cred := &fakeCredential{err: errors.New("no credential chain")}
	ts := newTokenSource(cred, searchScope)

	_, err := ts.Token(context.Background())
	require.ErrorContains(t, err, "no credential chain")
}

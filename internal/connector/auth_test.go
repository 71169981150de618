package connector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestResolveBearer tests the fixed credential resolution order
func TestResolveBearer(t *testing.T) {
	tests := []struct {
		name       string
		creds      Credentials
		wantToken  string
		wantSource CredentialSource
	}{
		{
			name:       "oauth wins over api key",
			creds:      Credentials{OAuthAccessToken: "oauth-token", APIKey: "key"},
			wantToken:  "oauth-token",
			wantSource: SourceOAuth,
		},
		{
			name:       "api key when no oauth",
			creds:      Credentials{APIKey: "key"},
			wantToken:  "key",
			wantSource: SourceAPIKey,
		},
		{
			name:       "env-only yields no bearer",
			creds:      Credentials{EnvOnly: true},
			wantToken:  "",
			wantSource: SourceEnv,
		},
		{
			name:       "oauth wins even when env-only is set",
			creds:      Credentials{OAuthAccessToken: "oauth-token", EnvOnly: true},
			wantToken:  "oauth-token",
			wantSource: SourceOAuth,
		},
		{
			name:       "nothing resolved",
			creds:      Credentials{},
			wantToken:  "",
			wantSource: SourceNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, source := ResolveBearer(tt.creds)
			assert.Equal(t, tt.wantToken, token)
			assert.Equal(t, tt.wantSource, source)
		})
	}
}

package connector

// Credentials is the authentication material resolved for one connector by
// the external credential store. relay never persists any of it.
type Credentials struct {
	OAuthAccessToken string
	APIKey           string
	// EnvOnly marks connectors whose credential already lives in the
	// child's environment; no bearer resolution happens for them.
	EnvOnly bool
}

// CredentialSource names which credential won the resolution order.
type CredentialSource string

const (
	SourceOAuth  CredentialSource = "oauth"
	SourceAPIKey CredentialSource = "api_key"
	SourceEnv    CredentialSource = "env"
	SourceNone   CredentialSource = "none"
)

// ResolveBearer picks the bearer token for a connector. The order is fixed
// and deterministic: a live OAuth access token wins over a stored API key,
// which wins over an environment-only credential.
func ResolveBearer(creds Credentials) (string, CredentialSource) {
	if creds.OAuthAccessToken != "" {
		return creds.OAuthAccessToken, SourceOAuth
	}
	if creds.APIKey != "" {
		return creds.APIKey, SourceAPIKey
	}
	if creds.EnvOnly {
		return "", SourceEnv
	}
	return "", SourceNone
}

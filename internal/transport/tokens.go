package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/agentstation/orgsync/pkg/constants"
	"github.com/agentstation/orgsync/pkg/errors"
)

// ClientCredentialsSource returns a token source performing the OAuth2
// client_credentials grant with the credentials sent as form parameters.
// httpClient may be nil.
func ClientCredentialsSource(ctx context.Context, httpClient *http.Client, tokenURL, clientID, clientSecret string, scopes ...string) oauth2.TokenSource {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       scopes,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	return cfg.TokenSource(contextWithHTTPClient(ctx, httpClient))
}

// PasswordSource exchanges an email and password for an access token at a
// JSON token endpoint answering {"results":[{"access":"<jwt>"}]}. The token
// expiry is read from the JWT exp claim; tokens without one never expire.
type PasswordSource struct {
	ctx      context.Context
	client   *http.Client
	tokenURL string
	email    string
	password string
}

// NewPasswordSource creates a PasswordSource. httpClient may be nil.
func NewPasswordSource(ctx context.Context, httpClient *http.Client, tokenURL, email, password string) *PasswordSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: constants.TokenTimeout}
	}
	return &PasswordSource{
		ctx:      ctx,
		client:   httpClient,
		tokenURL: tokenURL,
		email:    email,
		password: password,
	}
}

// Token implements oauth2.TokenSource.
func (s *PasswordSource) Token() (*oauth2.Token, error) {
	body, err := json.Marshal(map[string]string{
		"email":    s.email,
		"password": s.password,
	})
	if err != nil {
		return nil, errors.WrapParse("json", "token request", err)
	}

	req, err := http.NewRequestWithContext(s.ctx, http.MethodPost, s.tokenURL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.WrapResource("create", "request", "POST "+s.tokenURL, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.NewAuthenticationError("reporting", "password", "token request failed", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapIO("read", "token response", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		apiErr := newAPIError("reporting", resp.StatusCode, req.URL.Path, raw, []string{"response_message", "detail"})
		return nil, errors.NewAuthenticationError("reporting", "password", apiErr.Message, apiErr)
	}

	var envelope struct {
		Results []struct {
			Access  string `json:"access"`
			Refresh string `json:"refresh"`
		} `json:"results"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, errors.NewAuthenticationError("reporting", "password", "malformed token response", err)
	}
	if len(envelope.Results) == 0 || envelope.Results[0].Access == "" {
		return nil, errors.NewAuthenticationError("reporting", "password", "token response carried no access token", nil)
	}

	access := envelope.Results[0].Access
	return &oauth2.Token{
		AccessToken:  access,
		TokenType:    "Bearer",
		RefreshToken: envelope.Results[0].Refresh,
		Expiry:       jwtExpiry(access),
	}, nil
}

// jwtExpiry returns the exp claim of an unverified JWT, or the zero time
// when the token is opaque or carries no expiry. The signature is not
// checked: the token is only presented back to the server that issued it.
func jwtExpiry(token string) time.Time {
	if strings.Count(token, ".") != 2 {
		return time.Time{}
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

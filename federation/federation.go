// Package federation implements authcore.FederationProvider for external
// identity providers that speak the OAuth2 authorization-code flow.
package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	authcore "github.com/cipherangel/authcore"
)

const maxResponseBytes = 1 << 20

// Config holds the endpoints and credentials for one provider.
type Config struct {
	Name         string
	TokenURL     string
	UserInfoURL  string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	HTTPClient   *http.Client
}

// Provider exchanges authorization codes over plain HTTP. It has no state
// beyond its configuration and is safe for concurrent use.
type Provider struct {
	cfg Config
}

// NewProvider builds a Provider from cfg. A missing HTTPClient gets a
// 10 second default.
func NewProvider(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, fmt.Errorf("provider name is required")
	}
	if cfg.TokenURL == "" || cfg.UserInfoURL == "" {
		return nil, fmt.Errorf("token and userinfo endpoints are required")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("client credentials are required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Provider{cfg: cfg}, nil
}

// NewGoogle builds a Provider preconfigured for Google's endpoints.
func NewGoogle(clientID, clientSecret, redirectURI string) (*Provider, error) {
	return NewProvider(Config{
		Name:         "google",
		TokenURL:     "https://oauth2.googleapis.com/token",
		UserInfoURL:  "https://openidconnect.googleapis.com/v1/userinfo",
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURI:  redirectURI,
	})
}

func (p *Provider) Name() string {
	return p.cfg.Name
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Error       string `json:"error"`
	ErrorDesc   string `json:"error_description"`
}

type userInfoResponse struct {
	Subject    string `json:"sub"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// Exchange trades an authorization code for the provider's profile via the
// token and userinfo endpoints.
func (p *Provider) Exchange(ctx context.Context, code string) (*authcore.FederatedIdentity, error) {
	access, err := p.exchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return p.fetchProfile(ctx, access)
}

func (p *Provider) exchangeCode(ctx context.Context, code string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", p.cfg.ClientID)
	form.Set("client_secret", p.cfg.ClientSecret)
	form.Set("redirect_uri", p.cfg.RedirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("token response: %w", err)
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || tok.Error != "" {
		return "", fmt.Errorf("token endpoint returned %d: %s %s", resp.StatusCode, tok.Error, tok.ErrorDesc)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned no access token")
	}

	return tok.AccessToken, nil
}

func (p *Provider) fetchProfile(ctx context.Context, accessToken string) (*authcore.FederatedIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.UserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo endpoint returned %d", resp.StatusCode)
	}

	var info userInfoResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&info); err != nil {
		return nil, fmt.Errorf("userinfo response: %w", err)
	}
	if info.Subject == "" {
		return nil, fmt.Errorf("userinfo response missing subject")
	}

	return &authcore.FederatedIdentity{
		Subject:   info.Subject,
		Email:     info.Email,
		FirstName: info.GivenName,
		LastName:  info.FamilyName,
	}, nil
}

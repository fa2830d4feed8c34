package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FederatedLogin exchanges an authorization code at the named provider and
// issues a token pair for the resulting identity, creating it on first
// contact. Federated identities are born verified and carry no password.
func (e *Engine) FederatedLogin(ctx context.Context, provider, code string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	p, ok := e.providers[provider]
	if !ok {
		return nil, &FederationError{Provider: provider, Err: errors.New("provider not registered")}
	}
	if code == "" {
		return nil, &FederationError{Provider: provider, Err: errors.New("empty authorization code")}
	}

	profile, err := p.Exchange(ctx, code)
	if err != nil {
		e.metricInc(MetricFederatedLoginFailure)
		e.emitAudit(ctx, auditEventFederatedLoginFailure, false, "", err, func() map[string]string {
			return map[string]string{"provider": provider}
		})
		return nil, &FederationError{Provider: provider, Err: err}
	}
	if profile.Subject == "" || profile.Email == "" {
		e.metricInc(MetricFederatedLoginFailure)
		return nil, &FederationError{Provider: provider, Err: errors.New("incomplete profile")}
	}

	identity, err := e.resolveFederated(ctx, provider, profile)
	if err != nil {
		e.metricInc(MetricFederatedLoginFailure)
		return nil, err
	}

	result, err := e.issueSession(ctx, identity)
	if err != nil {
		e.metricInc(MetricFederatedLoginFailure)
		return nil, err
	}

	e.metricInc(MetricFederatedLoginSuccess)
	e.emitAudit(ctx, auditEventFederatedLoginSuccess, true, identity.UID, nil, func() map[string]string {
		return map[string]string{"provider": provider}
	})

	return result, nil
}

// resolveFederated finds the identity for a provider profile. Lookup order:
// provider subject, then email, then create. An email match adopts the
// subject link implicitly by returning the existing identity.
func (e *Engine) resolveFederated(ctx context.Context, provider string, profile *FederatedIdentity) (*Identity, error) {
	identity, err := e.store.Identities().ByProviderSubject(ctx, provider, profile.Subject)
	if err == nil {
		return identity, nil
	}
	if !errors.Is(err, ErrIdentityNotFound) {
		return nil, persistence("federated-login", err)
	}

	email := strings.ToLower(strings.TrimSpace(profile.Email))
	identity, err = e.store.Identities().ByEmail(ctx, email)
	if err == nil {
		return identity, nil
	}
	if !errors.Is(err, ErrIdentityNotFound) {
		return nil, persistence("federated-login", err)
	}

	now := time.Now().UTC()
	identity = &Identity{
		UID:             uuid.NewString(),
		Email:           email,
		Username:        federatedUsername(email),
		FirstName:       profile.FirstName,
		LastName:        profile.LastName,
		Role:            DefaultRole,
		Verified:        true,
		Provider:        provider,
		ProviderSubject: profile.Subject,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.store.Identities().Create(ctx, identity); err != nil {
		if errors.Is(err, ErrIdentityExists) {
			// Lost a race with a concurrent first login; the winner's row
			// is the identity.
			identity, err = e.store.Identities().ByProviderSubject(ctx, provider, profile.Subject)
			if err == nil {
				return identity, nil
			}
		}
		return nil, persistence("federated-login", err)
	}

	e.emitAudit(ctx, auditEventAccountCreated, true, identity.UID, nil, func() map[string]string {
		return map[string]string{"provider": provider}
	})

	return identity, nil
}

// federatedUsername derives a username from the email local part, truncated
// to the username limit and suffixed for uniqueness headroom.
func federatedUsername(email string) string {
	local := email
	if at := strings.Index(email, "@"); at > 0 {
		local = email[:at]
	}
	// Truncate by runes so a multibyte local part cannot be cut mid-rune.
	if runes := []rune(local); len(runes) > maxUsernameLength-2 {
		local = string(runes[:maxUsernameLength-2])
	}
	return fmt.Sprintf("%s%02d", local, uuid.New().ID()%100)
}

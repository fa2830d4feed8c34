package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cipherangel/authcore/token"
)

const (
	maxEmailLength    = 40
	maxUsernameLength = 8
	maxNameLength     = 25
	minPasswordLength = 6

	// DefaultRole is assigned to identities created without an explicit role.
	DefaultRole = "user"

	// ProviderLocal tags identities that authenticate with a password.
	ProviderLocal = "local"
)

// Register creates a local identity and mails it a verification link. A
// non-nil Identity may come back together with a NotificationError: the
// identity was committed but the mail could not be delivered.
func (e *Engine) Register(ctx context.Context, input CreateIdentityInput) (*Identity, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	if err := validateRegistration(input); err != nil {
		return nil, err
	}

	hash, err := e.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now().UTC()
	identity := &Identity{
		UID:          uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		Username:     input.Username,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		PasswordHash: hash,
		Role:         input.Role,
		Verified:     input.Verified,
		Provider:     ProviderLocal,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if identity.Role == "" {
		identity.Role = DefaultRole
	}

	if err := e.store.Identities().Create(ctx, identity); err != nil {
		if errors.Is(err, ErrIdentityExists) {
			e.metricInc(MetricAccountDuplicate)
			e.emitAudit(ctx, auditEventAccountDuplicate, false, "", err, func() map[string]string {
				return map[string]string{"email": identity.Email}
			})
			return nil, ErrIdentityExists
		}
		return nil, persistence("register", err)
	}

	e.metricInc(MetricAccountCreated)
	e.emitAudit(ctx, auditEventAccountCreated, true, identity.UID, nil, nil)

	if err := e.issueVerification(ctx, identity); err != nil {
		return identity, err
	}

	return identity, nil
}

// CurrentUser resolves an access token to the identity it was issued for. A
// refresh token presented here fails with ErrAccessTokenRequired.
func (e *Engine) CurrentUser(ctx context.Context, accessToken string) (*Identity, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if accessToken == "" {
		return nil, ErrTokenMissing
	}

	claims, err := e.verify(ctx, accessToken, token.KindAccess, ErrAccessTokenRequired)
	if err != nil {
		return nil, err
	}

	identity, err := e.store.Identities().ByUID(ctx, claims.User.UID)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, persistence("current-user", err)
	}

	return identity, nil
}

func validateRegistration(input CreateIdentityInput) error {
	if err := validateEmail(input.Email); err != nil {
		return err
	}
	if err := validatePassword(input.Password); err != nil {
		return err
	}

	username := strings.TrimSpace(input.Username)
	if username == "" {
		return fmt.Errorf("%w: username required", ErrInvalidInput)
	}
	if len(username) > maxUsernameLength {
		return fmt.Errorf("%w: username longer than %d characters", ErrInvalidInput, maxUsernameLength)
	}
	if len(input.FirstName) > maxNameLength {
		return fmt.Errorf("%w: first name longer than %d characters", ErrInvalidInput, maxNameLength)
	}
	if len(input.LastName) > maxNameLength {
		return fmt.Errorf("%w: last name longer than %d characters", ErrInvalidInput, maxNameLength)
	}

	return nil
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("%w: email required", ErrInvalidInput)
	}
	if len(email) > maxEmailLength {
		return fmt.Errorf("%w: email longer than %d characters", ErrInvalidInput, maxEmailLength)
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return fmt.Errorf("%w: email shape invalid", ErrInvalidInput)
	}
	return nil
}

func validatePassword(pw string) error {
	if len(pw) < minPasswordLength {
		return fmt.Errorf("%w: password shorter than %d characters", ErrInvalidInput, minPasswordLength)
	}
	return nil
}

package authcore

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess              = "login_success"
	auditEventLoginFailure              = "login_failure"
	auditEventRefreshSuccess            = "refresh_success"
	auditEventRefreshInvalid            = "refresh_invalid"
	auditEventLogout                    = "logout"
	auditEventAccountCreated            = "account_created"
	auditEventAccountDuplicate          = "account_duplicate"
	auditEventEmailVerificationRequest  = "email_verification_request"
	auditEventEmailVerificationConfirm  = "email_verification_confirm"
	auditEventEmailVerificationFailure  = "email_verification_failure"
	auditEventPasswordResetRequest      = "password_reset_request"
	auditEventPasswordResetConfirm      = "password_reset_confirm"
	auditEventPasswordResetFailure      = "password_reset_failure"
	auditEventFederatedLoginSuccess     = "federated_login_success"
	auditEventFederatedLoginFailure     = "federated_login_failure"
	auditEventNotificationFailure       = "notification_failure"
)

// AuditErrorCode is the stable machine-readable label carried in
// AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrExpiredToken       AuditErrorCode = "expired_token"
	auditErrIdentityNotFound   AuditErrorCode = "identity_not_found"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrInvalidInput       AuditErrorCode = "invalid_input"
	auditErrNotification       AuditErrorCode = "notification_failed"
	auditErrFederation         AuditErrorCode = "federation_failed"
	auditErrPersistence        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	identityID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp:  time.Now().UTC(),
		EventType:  eventType,
		IdentityID: identityID,
		IP:         clientIPFromContext(ctx),
		UserAgent:  userAgentFromContext(ctx),
		Success:    success,
		Metadata:   metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	var notif *NotificationError
	var fed *FederationError
	var persist *PersistenceError

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrTokenExpired):
		return auditErrExpiredToken
	case errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrTokenMissing),
		errors.Is(err, ErrAccessTokenInvalid),
		errors.Is(err, ErrRefreshTokenInvalid),
		errors.Is(err, ErrAccessTokenRequired):
		return auditErrInvalidToken
	case errors.Is(err, ErrIdentityNotFound):
		return auditErrIdentityNotFound
	case errors.Is(err, ErrIdentityExists):
		return auditErrDuplicate
	case errors.Is(err, ErrInvalidInput):
		return auditErrInvalidInput
	case errors.As(err, &notif):
		return auditErrNotification
	case errors.As(err, &fed):
		return auditErrFederation
	case errors.As(err, &persist):
		return auditErrPersistence
	default:
		return auditErrInternal
	}
}

package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cipherangel/authcore/internal"
)

// RequestEmailVerification mints a fresh verification token for the identity
// behind email and mails it a confirmation link. Earlier verification tokens
// stay live until they expire or get used.
func (e *Engine) RequestEmailVerification(ctx context.Context, email string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	if err := validateEmail(email); err != nil {
		return err
	}
	email = strings.ToLower(strings.TrimSpace(email))

	identity, err := e.store.Identities().ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return ErrIdentityNotFound
		}
		return persistence("request-email-verification", err)
	}

	return e.issueVerification(ctx, identity)
}

// ConfirmEmailVerification redeems a verification token and marks the
// identity verified. The token burn and the verified flip commit in one
// transaction; a token works exactly once.
func (e *Engine) ConfirmEmailVerification(ctx context.Context, tok string) (*Identity, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if tok == "" {
		return nil, ErrTokenMissing
	}

	hash, err := internal.HashSingleUseToken(tok)
	if err != nil {
		e.metricInc(MetricEmailVerificationFailure)
		return nil, ErrTokenInvalid
	}

	var identity *Identity
	txErr := e.store.WithinTx(ctx, func(tx Store) error {
		rec, err := tx.SingleUseTokens().Consume(ctx, hash, PurposeVerifyEmail, time.Now().UTC())
		if err != nil {
			return err
		}
		if err := tx.Identities().SetVerified(ctx, rec.IdentityID); err != nil {
			return err
		}
		identity, err = tx.Identities().ByUID(ctx, rec.IdentityID)
		return err
	})
	if txErr != nil {
		e.metricInc(MetricEmailVerificationFailure)
		e.emitAudit(ctx, auditEventEmailVerificationFailure, false, "", txErr, nil)
		if errors.Is(txErr, ErrTokenInvalid) {
			return nil, txErr
		}
		return nil, persistence("confirm-email-verification", txErr)
	}

	e.metricInc(MetricEmailVerificationSuccess)
	e.emitAudit(ctx, auditEventEmailVerificationConfirm, true, identity.UID, nil, nil)

	return identity, nil
}

// issueVerification saves a verify-email token for identity and mails the
// link. The token survives a delivery failure; callers get a
// NotificationError and can ask for a resend.
func (e *Engine) issueVerification(ctx context.Context, identity *Identity) error {
	id, tok, hash, err := internal.NewSingleUseToken()
	if err != nil {
		return fmt.Errorf("minting verification token: %w", err)
	}

	now := time.Now().UTC()
	rec := SingleUseTokenRecord{
		ID:         id,
		SecretHash: hash,
		IdentityID: identity.UID,
		Purpose:    PurposeVerifyEmail,
		Payload:    identity.Email,
		ExpiresAt:  now.Add(e.config.SingleUse.TTL),
		CreatedAt:  now,
	}
	if err := e.store.SingleUseTokens().Save(ctx, rec); err != nil {
		return persistence("save-verification-token", err)
	}

	e.metricInc(MetricEmailVerificationRequest)
	e.emitAudit(ctx, auditEventEmailVerificationRequest, true, identity.UID, nil, nil)

	msg := Message{
		To:      identity.Email,
		Subject: fmt.Sprintf("Verify your %s account", e.config.Mail.AppName),
		Body: fmt.Sprintf(
			"<h1>Verify your email</h1><p>Click <a href=%q>this link</a> to verify your email address. The link expires in %s.</p>",
			joinTokenURL(e.config.Mail.VerificationURL, tok),
			e.config.SingleUse.TTL,
		),
	}
	if err := e.mailer.Send(ctx, msg); err != nil {
		e.metricInc(MetricNotificationFailure)
		e.emitAudit(ctx, auditEventNotificationFailure, false, identity.UID, err, nil)
		e.logger.WarnContext(ctx, "verification mail delivery failed",
			"identity", identity.UID, "error", err)
		return &NotificationError{Op: "email-verification", Err: err}
	}

	return nil
}

func joinTokenURL(base, tok string) string {
	return strings.TrimRight(base, "/") + "/" + tok
}

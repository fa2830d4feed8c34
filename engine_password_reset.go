package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cipherangel/authcore/internal"
)

// RequestPasswordReset mints a reset token for the identity behind email and
// mails it the reset link. Any earlier live reset token is marked used in
// the same transaction, so at most one reset token per identity can redeem.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
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
		return persistence("request-password-reset", err)
	}

	id, tok, hash, err := internal.NewSingleUseToken()
	if err != nil {
		return fmt.Errorf("minting reset token: %w", err)
	}

	now := time.Now().UTC()
	rec := SingleUseTokenRecord{
		ID:         id,
		SecretHash: hash,
		IdentityID: identity.UID,
		Purpose:    PurposeResetPassword,
		ExpiresAt:  now.Add(e.config.SingleUse.TTL),
		CreatedAt:  now,
	}
	txErr := e.store.WithinTx(ctx, func(tx Store) error {
		if err := tx.SingleUseTokens().InvalidateLive(ctx, identity.UID, PurposeResetPassword); err != nil {
			return err
		}
		return tx.SingleUseTokens().Save(ctx, rec)
	})
	if txErr != nil {
		return persistence("save-reset-token", txErr)
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, identity.UID, nil, nil)

	msg := Message{
		To:      identity.Email,
		Subject: fmt.Sprintf("Reset your %s password", e.config.Mail.AppName),
		Body: fmt.Sprintf(
			"<h1>Reset your password</h1><p>Click <a href=%q>this link</a> to choose a new password. The link expires in %s.</p>",
			joinTokenURL(e.config.Mail.PasswordResetURL, tok),
			e.config.SingleUse.TTL,
		),
	}
	if err := e.mailer.Send(ctx, msg); err != nil {
		e.metricInc(MetricNotificationFailure)
		e.emitAudit(ctx, auditEventNotificationFailure, false, identity.UID, err, nil)
		e.logger.WarnContext(ctx, "reset mail delivery failed",
			"identity", identity.UID, "error", err)
		return &NotificationError{Op: "password-reset", Err: err}
	}

	return nil
}

// ResetPassword redeems a reset token and installs the new password. The
// token burn and the hash update commit in one transaction; after the commit
// every refresh token of the identity is revoked.
func (e *Engine) ResetPassword(ctx context.Context, tok, newPassword, confirmPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if tok == "" {
		return ErrTokenMissing
	}
	if newPassword != confirmPassword {
		return fmt.Errorf("%w: passwords do not match", ErrInvalidInput)
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	hash, err := internal.HashSingleUseToken(tok)
	if err != nil {
		e.metricInc(MetricPasswordResetFailure)
		return ErrTokenInvalid
	}

	newHash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	var identityID string
	txErr := e.store.WithinTx(ctx, func(tx Store) error {
		rec, err := tx.SingleUseTokens().Consume(ctx, hash, PurposeResetPassword, time.Now().UTC())
		if err != nil {
			return err
		}
		identityID = rec.IdentityID
		return tx.Identities().UpdatePasswordHash(ctx, rec.IdentityID, newHash)
	})
	if txErr != nil {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetFailure, false, "", txErr, nil)
		if errors.Is(txErr, ErrTokenInvalid) {
			return txErr
		}
		return persistence("reset-password", txErr)
	}

	// The new password is already installed; a ledger failure here leaves
	// old refresh tokens live, so surface it loudly.
	if err := e.ledger.RevokeAllForIdentity(ctx, identityID); err != nil {
		e.logger.ErrorContext(ctx, "session revocation after password reset failed",
			"identity", identityID, "error", err)
		return persistence("revoke-sessions", err)
	}

	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, identityID, nil, nil)

	return nil
}

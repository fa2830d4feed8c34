package authcore

import (
	"log/slog"

	"github.com/cipherangel/authcore/password"
	"github.com/cipherangel/authcore/token"
)

// Engine is the authentication core. It is immutable after Build and safe
// for concurrent use; all state lives behind the Store and RefreshLedger
// collaborators.
type Engine struct {
	config    Config
	store     Store
	ledger    RefreshLedger
	mailer    Mailer
	providers map[string]FederationProvider
	hasher    *password.Hasher
	dummyHash string
	tokens    *token.Manager
	audit     *auditDispatcher
	metrics   *Metrics
	logger    *slog.Logger
}

// Close stops the audit dispatcher after flushing buffered events. The
// engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.store != nil && e.tokens != nil && e.hasher != nil
}

func (e *Engine) snapshotOf(identity *Identity) token.IdentitySnapshot {
	return token.IdentitySnapshot{
		Email: identity.Email,
		UID:   identity.UID,
		Role:  identity.Role,
	}
}

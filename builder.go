package authcore

import (
	"errors"
	"log/slog"

	"github.com/cipherangel/authcore/password"
	"github.com/cipherangel/authcore/token"
)

// Builder assembles an Engine. A Builder is single-use; Build fails on the
// second call.
type Builder struct {
	config Config

	store     Store
	ledger    RefreshLedger
	mailer    Mailer
	providers map[string]FederationProvider
	auditSink AuditSink
	logger    *slog.Logger

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config:    DefaultConfig(),
		providers: make(map[string]FederationProvider),
	}
}

// WithConfig replaces the builder's configuration wholesale.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the persistence backend. Required.
func (b *Builder) WithStore(s Store) *Builder {
	b.store = s
	return b
}

// WithRefreshLedger overrides the refresh ledger with a backend separate
// from the store, typically the Redis implementation. When unset the
// store's own ledger is used.
func (b *Builder) WithRefreshLedger(l RefreshLedger) *Builder {
	b.ledger = l
	return b
}

// WithMailer sets the outbound mail collaborator. Required.
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithFederation registers a federation provider under its Name.
func (b *Builder) WithFederation(p FederationProvider) *Builder {
	if p != nil {
		b.providers[p.Name()] = p
	}
	return b
}

// WithAuditSink sets the destination for audit events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the engine's structured logger. Defaults to slog.Default.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and collaborators and returns an
// immutable Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.store == nil {
		return nil, errors.New("store required")
	}
	if b.mailer == nil {
		return nil, errors.New("mailer required")
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	// Verified against on unknown-email logins so both failure paths cost
	// one full Argon2 pass.
	dummyHash, err := hasher.Hash("decoy-credential-for-timing")
	if err != nil {
		return nil, err
	}

	tokens, err := token.NewManager(token.Config{
		Secret:     cloneBytes(cfg.Token.Secret),
		AccessTTL:  cfg.Token.AccessTTL,
		RefreshTTL: cfg.Token.RefreshTTL,
		Issuer:     cfg.Token.Issuer,
		Leeway:     cfg.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}

	ledger := b.ledger
	if ledger == nil {
		ledger = b.store.RefreshTokens()
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	providers := make(map[string]FederationProvider, len(b.providers))
	for name, p := range b.providers {
		providers[name] = p
	}

	engine := &Engine{
		config:    cfg,
		store:     b.store,
		ledger:    ledger,
		mailer:    b.mailer,
		providers: providers,
		hasher:    hasher,
		dummyHash: dummyHash,
		tokens:    tokens,
		audit:     newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:   NewMetrics(cfg.Metrics),
		logger:    logger,
	}

	b.built = true

	return engine, nil
}

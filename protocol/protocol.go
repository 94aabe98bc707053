package protocol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"moxieprotocol/core/events"
	"moxieprotocol/core/state"
	"moxieprotocol/native/access"
	"moxieprotocol/native/bondingcurve"
	"moxieprotocol/native/pass"
	"moxieprotocol/native/rewards"
	"moxieprotocol/native/staking"
	"moxieprotocol/native/subjectfactory"
	"moxieprotocol/native/token"
	"moxieprotocol/native/tokenmanager"
	"moxieprotocol/native/vault"
	"moxieprotocol/native/vesting"
	"moxieprotocol/observability"
	"moxieprotocol/storage"
)

const (
	DomainPass         = "pass"
	DomainTokenManager = "tokenmanager"
	DomainVesting      = "vesting"
)

var (
	ErrNoAdmin       = errors.New("protocol: admin address required")
	ErrAdminMismatch = errors.New("protocol: configured admin differs from deployed admin")
	ErrUnknownDomain = errors.New("protocol: unknown role domain")
)

// Config describes a deployment. Fee and window values are only applied the
// first time the protocol is deployed into a database.
type Config struct {
	Admin common.Address

	TokenName     string
	TokenSymbol   string
	InitialSupply *big.Int

	CurveFees           bondingcurve.Fees
	CurveFeeBeneficiary common.Address

	AuctionTime subjectfactory.AuctionTime
	FactoryFees subjectfactory.FeeConfig

	LockPeriod uint64

	RewardsDomain rewards.Domain

	// Auction is the external batch auction used for onboarding. Without it
	// onboarding calls fail with ErrAuctionUnavailable.
	Auction subjectfactory.Auction
	Logger  *slog.Logger
	Now     func() int64
}

// Engines groups the wired protocol engines. Callers only reach it through
// Execute and View so every access is serialized.
type Engines struct {
	Addresses Addresses

	Tokens       *token.Ledger
	Passes       *pass.Registry
	Verifier     *pass.Verifier
	Vault        *vault.Engine
	TokenManager *tokenmanager.Engine
	BondingCurve *bondingcurve.Engine
	Factory      *subjectfactory.Engine
	Staking      *staking.Engine
	Rewards      *rewards.Engine
	Vesting      *vesting.Manager

	Roles map[string]*access.Registry
}

// Role returns the registry of a role domain.
func (e *Engines) Role(domain string) (*access.Registry, error) {
	reg, ok := e.Roles[domain]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDomain, domain)
	}
	return reg, nil
}

// Protocol is the single writer over the protocol state. Every mutating call
// runs as one transaction: its writes commit in a single batch and its events
// are published, or both are discarded.
type Protocol struct {
	mu      sync.Mutex
	db      storage.Database
	state   *state.Manager
	buf     *events.Buffer
	engines *Engines
	logger  *slog.Logger
	metrics *observability.TxMetrics
	tracer  trace.Tracer

	subsMu sync.RWMutex
	subs   events.Fanout
}

// New wires the engines over db and deploys them on first use.
func New(db storage.Database, cfg Config) (*Protocol, error) {
	if cfg.Admin == (common.Address{}) {
		return nil, ErrNoAdmin
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	p := &Protocol{
		db:      db,
		state:   state.NewManager(db),
		buf:     &events.Buffer{},
		logger:  logger.With("component", "protocol"),
		metrics: observability.Transactions(),
		tracer:  otel.Tracer("moxieprotocol/protocol"),
	}

	addrs, deployed, err := loadAddresses(p.state)
	if err != nil {
		return nil, err
	}
	if deployed && addrs.Admin != cfg.Admin {
		return nil, ErrAdminMismatch
	}

	tokens := token.NewLedger()
	tokens.SetState(p.state)
	if !deployed {
		addrs, err = deriveAddresses(cfg, tokens)
		if err != nil {
			p.state.Discard()
			return nil, err
		}
	}
	auction := cfg.Auction
	if auction == nil {
		auction = unavailableAuction{}
	}
	p.engines = wire(p.state, cfg, addrs, tokens, auction, now)
	p.setEmitter(p.buf)

	if !deployed {
		if err := bootstrap(p.state, p.engines, cfg); err != nil {
			p.state.Discard()
			p.buf.Drain()
			return nil, fmt.Errorf("protocol: bootstrap: %w", err)
		}
		if err := p.state.Commit(); err != nil {
			return nil, fmt.Errorf("protocol: commit bootstrap: %w", err)
		}
		p.logger.Info("protocol deployed",
			"admin", addrs.Admin.Hex(),
			"token", addrs.MoxieToken.Hex(),
			"events", len(p.buf.Drain()))
	}
	if err := registerHandlers(p.engines); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Protocol) setEmitter(emitter events.Emitter) {
	e := p.engines
	e.Tokens.SetEmitter(emitter)
	e.Passes.SetEmitter(emitter)
	e.Verifier.SetEmitter(emitter)
	e.Vault.SetEmitter(emitter)
	e.TokenManager.SetEmitter(emitter)
	e.BondingCurve.SetEmitter(emitter)
	e.Factory.SetEmitter(emitter)
	e.Staking.SetEmitter(emitter)
	e.Rewards.SetEmitter(emitter)
	e.Vesting.SetEmitter(emitter)
	for _, reg := range e.Roles {
		reg.SetEmitter(emitter)
	}
}

// Addresses returns the deployed component addresses.
func (p *Protocol) Addresses() Addresses {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engines.Addresses
}

// Subscribe registers an emitter receiving the events of committed
// transactions, in emission order.
func (p *Protocol) Subscribe(emitter events.Emitter) {
	if emitter == nil {
		return
	}
	p.subsMu.Lock()
	p.subs = append(p.subs, emitter)
	p.subsMu.Unlock()
}

// Execute runs fn as one transaction. A returned error reverts every state
// write and drops every event fn produced.
func (p *Protocol) Execute(ctx context.Context, op string, fn func(*Engines) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	txID := uuid.NewString()
	_, span := p.tracer.Start(ctx, "protocol."+op, trace.WithAttributes(
		attribute.String("tx", txID),
	))
	defer span.End()
	start := time.Now()
	snap := p.state.Snapshot()
	mark := p.buf.Mark()

	if err := fn(p.engines); err != nil {
		dropped := p.buf.Len() - mark
		p.state.RevertToSnapshot(snap)
		p.buf.Truncate(mark)
		p.metrics.Observe(op, time.Since(start), err, dropped)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Warn("tx reverted", "tx", txID, "op", op, "error", err)
		return err
	}
	if err := p.state.Commit(); err != nil {
		p.state.Discard()
		p.buf.Truncate(mark)
		p.metrics.Observe(op, time.Since(start), err, 0)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Error("tx commit failed", "tx", txID, "op", op, "error", err)
		return fmt.Errorf("protocol: commit %s: %w", op, err)
	}
	published := p.buf.Drain()
	p.metrics.Observe(op, time.Since(start), nil, 0)
	span.SetAttributes(attribute.Int("events", len(published)))
	span.SetStatus(codes.Ok, "committed")
	p.logger.Debug("tx committed",
		"tx", txID,
		"op", op,
		"events", len(published),
		"duration", time.Since(start).String())
	p.publish(published)
	return nil
}

func (p *Protocol) publish(evts []events.Event) {
	p.subsMu.RLock()
	subs := p.subs
	p.subsMu.RUnlock()
	recorder := observability.Events()
	for _, evt := range evts {
		recorder.RecordEvent(evt.EventType())
		subs.Emit(evt)
	}
}

// View runs a read-only fn under the writer lock. Writes made by fn are
// discarded.
func (p *Protocol) View(fn func(*Engines) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap := p.state.Snapshot()
	mark := p.buf.Mark()
	defer func() {
		p.state.RevertToSnapshot(snap)
		p.buf.Truncate(mark)
	}()
	return fn(p.engines)
}

// Close releases the backing database.
func (p *Protocol) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Discard()
	if p.db != nil {
		p.db.Close()
	}
}

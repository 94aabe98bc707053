package indexer

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"moxieprotocol/core/events"
)

const (
	defaultQueueSize = 1024
	maxTradesLimit   = 500
)

// Open connects to dsn. postgres:// and postgresql:// URLs use the Postgres
// driver; anything else is treated as a SQLite file path or URI.
func Open(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return gorm.Open(postgres.Open(dsn), cfg)
	}
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer; share one connection to avoid SQLITE_BUSY.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Indexer records committed curve trades for history queries. It is
// registered as a protocol subscriber; Emit only enqueues and Run performs
// the writes, so a slow database never holds up transactions.
type Indexer struct {
	db      *gorm.DB
	logger  *slog.Logger
	queue   chan Trade
	dropped atomic.Uint64
	closed  atomic.Bool
}

func New(db *gorm.DB, logger *slog.Logger) (*Indexer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return &Indexer{
		db:     db,
		logger: logger.With("component", "indexer"),
		queue:  make(chan Trade, defaultQueueSize),
	}, nil
}

// Emit implements events.Emitter.
func (i *Indexer) Emit(evt events.Event) {
	payload, ok := evt.(events.Payload)
	if !ok || payload.Event() == nil || i.closed.Load() {
		return
	}
	trade, ok := tradeFromEvent(payload.Event())
	if !ok {
		return
	}
	select {
	case i.queue <- trade:
	default:
		i.dropped.Add(1)
		i.logger.Warn("trade dropped, queue full", "subject", trade.Subject)
	}
}

// Dropped reports how many trades were lost to a full queue.
func (i *Indexer) Dropped() uint64 { return i.dropped.Load() }

// Run writes queued trades until ctx is cancelled, then flushes what is
// left and stops accepting new events.
func (i *Indexer) Run(ctx context.Context) error {
	for {
		select {
		case trade := <-i.queue:
			i.insert(trade)
		case <-ctx.Done():
			i.closed.Store(true)
			for {
				select {
				case trade := <-i.queue:
					i.insert(trade)
				default:
					return nil
				}
			}
		}
	}
}

func (i *Indexer) insert(trade Trade) {
	if err := i.db.Create(&trade).Error; err != nil {
		i.logger.Error("trade insert failed", "subject", trade.Subject, "error", err)
	}
}

// Trades returns the most recent trades of subject, newest first.
func (i *Indexer) Trades(ctx context.Context, subject common.Address, limit int) ([]Trade, error) {
	if limit <= 0 || limit > maxTradesLimit {
		limit = maxTradesLimit
	}
	var trades []Trade
	err := i.db.WithContext(ctx).
		Where("subject = ?", subject.Hex()).
		Order("id desc").
		Limit(limit).
		Find(&trades).Error
	return trades, err
}

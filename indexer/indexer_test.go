package indexer

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"moxieprotocol/core/events"
	"moxieprotocol/core/types"
	"moxieprotocol/native/bondingcurve"
)

var (
	subject      = common.HexToAddress("0x0000000000000000000000000000000000005b01")
	subjectToken = common.HexToAddress("0x0000000000000000000000000000000000005b02")
	reserve      = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	trader       = common.HexToAddress("0x0000000000000000000000000000000000000b01")
)

func newTestIndexer(t *testing.T) *Indexer {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "indexer.db"))
	require.NoError(t, err)
	idx, err := New(db, nil)
	require.NoError(t, err)
	return idx
}

func runIndexer(t *testing.T, idx *Indexer) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- idx.Run(ctx) }()
	return cancel, done
}

func TestTradeFromEvent(t *testing.T) {
	buy := bondingcurve.SharePurchasedEvent(subject, reserve, big.NewInt(103), subjectToken, big.NewInt(7), trader, big.NewInt(1), big.NewInt(2))
	got, ok := tradeFromEvent(buy)
	require.True(t, ok)
	require.Equal(t, SideBuy, got.Side)
	require.Equal(t, "103", got.ReserveAmount)
	require.Equal(t, "7", got.ShareAmount)
	require.Equal(t, subjectToken.Hex(), got.SubjectToken)

	sell := bondingcurve.ShareSoldEvent(subject, subjectToken, big.NewInt(7), reserve, big.NewInt(95), trader, big.NewInt(1), big.NewInt(2))
	got, ok = tradeFromEvent(sell)
	require.True(t, ok)
	require.Equal(t, SideSell, got.Side)
	require.Equal(t, "95", got.ReserveAmount)
	require.Equal(t, "7", got.ShareAmount)
	require.Equal(t, subjectToken.Hex(), got.SubjectToken)

	_, ok = tradeFromEvent(&types.Event{Type: "token.transfer"})
	require.False(t, ok)
}

func TestIndexerRecordsTrades(t *testing.T) {
	idx := newTestIndexer(t)
	cancel, done := runIndexer(t, idx)

	idx.Emit(events.Wrap(bondingcurve.SharePurchasedEvent(subject, reserve, big.NewInt(103), subjectToken, big.NewInt(7), trader, big.NewInt(1), big.NewInt(2))))
	idx.Emit(events.Wrap(&types.Event{Type: "token.transfer"}))
	idx.Emit(events.Wrap(bondingcurve.ShareSoldEvent(subject, subjectToken, big.NewInt(3), reserve, big.NewInt(40), trader, big.NewInt(0), big.NewInt(1))))

	require.Eventually(t, func() bool {
		trades, err := idx.Trades(context.Background(), subject, 10)
		return err == nil && len(trades) == 2
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	trades, err := idx.Trades(context.Background(), subject, 10)
	require.NoError(t, err)
	require.Equal(t, SideSell, trades[0].Side)
	require.Equal(t, SideBuy, trades[1].Side)
	require.Equal(t, "103", trades[1].ReserveAmount)

	other, err := idx.Trades(context.Background(), trader, 10)
	require.NoError(t, err)
	require.Empty(t, other)
	require.Zero(t, idx.Dropped())
}

func TestRunFlushesOnCancel(t *testing.T) {
	idx := newTestIndexer(t)
	for i := 0; i < 5; i++ {
		idx.Emit(events.Wrap(bondingcurve.SharePurchasedEvent(subject, reserve, big.NewInt(10), subjectToken, big.NewInt(1), trader, big.NewInt(0), big.NewInt(0))))
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, idx.Run(ctx))

	trades, err := idx.Trades(context.Background(), subject, 0)
	require.NoError(t, err)
	require.Len(t, trades, 5)

	// Closed indexers ignore new events.
	idx.Emit(events.Wrap(bondingcurve.SharePurchasedEvent(subject, reserve, big.NewInt(10), subjectToken, big.NewInt(1), trader, big.NewInt(0), big.NewInt(0))))
	require.Zero(t, len(idx.queue))
}

func TestEmitDropsWhenQueueFull(t *testing.T) {
	idx := newTestIndexer(t)
	idx.queue = make(chan Trade, 1)
	evt := events.Wrap(bondingcurve.SharePurchasedEvent(subject, reserve, big.NewInt(10), subjectToken, big.NewInt(1), trader, big.NewInt(0), big.NewInt(0)))
	idx.Emit(evt)
	idx.Emit(evt)
	require.EqualValues(t, 1, idx.Dropped())
}

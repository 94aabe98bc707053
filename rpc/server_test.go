package rpc

import (
	"context"
	"encoding/json"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"moxieprotocol/indexer"
	"moxieprotocol/native/bondingcurve"
	"moxieprotocol/native/staking"
	"moxieprotocol/native/subjectfactory"
	"moxieprotocol/native/vesting"
	"moxieprotocol/protocol"
	"moxieprotocol/storage"
)

var (
	subject      = common.HexToAddress("0x0000000000000000000000000000000000005b01")
	subjectToken = common.HexToAddress("0x0000000000000000000000000000000000005b02")
	holder       = common.HexToAddress("0x0000000000000000000000000000000000000b01")
)

type stubBackend struct {
	addrs protocol.Addresses
	curve *bondingcurve.CurveState
	locks []*staking.Lock
}

func (s *stubBackend) Addresses() protocol.Addresses { return s.addrs }

func (s *stubBackend) CurveState(subj common.Address) (*bondingcurve.CurveState, error) {
	if s.curve == nil || s.curve.Subject != subj {
		return nil, bondingcurve.ErrSubjectNotInitialized
	}
	return s.curve, nil
}

func (s *stubBackend) CurveFees() (*protocol.CurveFees, error) {
	return &protocol.CurveFees{
		Fees:        bondingcurve.Fees{ProtocolBuyFeePct: big.NewInt(1e16)}.Clone(),
		Beneficiary: holder,
	}, nil
}

func (s *stubBackend) QuoteBuy(common.Address, *big.Int) (*bondingcurve.BuyQuote, error) {
	return &bondingcurve.BuyQuote{Deposit: big.NewInt(103), ProtocolFee: big.NewInt(1), SubjectFee: big.NewInt(2)}, nil
}

func (s *stubBackend) QuoteSell(common.Address, *big.Int) (*bondingcurve.SellQuote, error) {
	return nil, bondingcurve.ErrInvalidAmount
}

func (s *stubBackend) VaultBalance(common.Address) (*big.Int, error) { return big.NewInt(301), nil }

func (s *stubBackend) SubjectToken(common.Address) (common.Address, bool, error) {
	return subjectToken, true, nil
}

func (s *stubBackend) OnboardingRecord(subj common.Address) (*subjectfactory.Subject, error) {
	return &subjectfactory.Subject{Subject: subj, InitialSupply: big.NewInt(0), Status: subjectfactory.StatusNotOnboarded}, nil
}

func (s *stubBackend) TokenBalance(common.Address, common.Address) (*big.Int, error) {
	return big.NewInt(7), nil
}

func (s *stubBackend) LockInfo(index uint64) (*staking.Lock, error) {
	if index >= uint64(len(s.locks)) {
		return nil, &staking.IndexError{Index: index, Err: staking.ErrInvalidIndex}
	}
	return s.locks[index], nil
}

func (s *stubBackend) VestingWallet(common.Address) (*protocol.WalletView, error) {
	return nil, vesting.ErrUnknownWallet
}

func (s *stubBackend) RewardsAccount(common.Address) (*protocol.RewardsAccount, error) {
	return &protocol.RewardsAccount{Balance: big.NewInt(5), Nonce: big.NewInt(1)}, nil
}

func newStub() *stubBackend {
	return &stubBackend{
		curve: &bondingcurve.CurveState{
			Subject:      subject,
			SubjectToken: subjectToken,
			ReserveRatio: 660000,
			Supply:       big.NewInt(600),
			Reserve:      big.NewInt(301),
			Initialized:  true,
		},
		locks: []*staking.Lock{{User: holder, Subject: subject, SubjectToken: subjectToken, Amount: big.NewInt(9), UnlockTime: 10, LockPeriod: 5}},
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res
}

func TestCurveEndpoints(t *testing.T) {
	h := NewServer(newStub(), ServerConfig{}).Handler()

	res := get(t, h, "/v1/curve/"+subject.Hex())
	require.Equal(t, http.StatusOK, res.Code)
	var st CurveStateResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &st))
	require.Equal(t, "600", st.Supply)
	require.Equal(t, "301", st.Reserve)
	require.EqualValues(t, 660000, st.ReserveRatio)

	res = get(t, h, "/v1/curve/"+holder.Hex())
	require.Equal(t, http.StatusNotFound, res.Code)

	res = get(t, h, "/v1/curve/not-an-address")
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = get(t, h, "/v1/curve/fees")
	require.Equal(t, http.StatusOK, res.Code)
	var fees CurveFeesResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &fees))
	require.Equal(t, "10000000000000000", fees.ProtocolBuyFeePct)
	require.Equal(t, "0", fees.SubjectSellFeePct)

	res = get(t, h, "/v1/curve/"+subject.Hex()+"/quote/buy?shares=10")
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), `"amount":"103"`)

	res = get(t, h, "/v1/curve/"+subject.Hex()+"/quote/buy?shares=-1")
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = get(t, h, "/v1/curve/"+subject.Hex()+"/quote/sell?amount=5")
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestLockWalletAndSubjectEndpoints(t *testing.T) {
	h := NewServer(newStub(), ServerConfig{}).Handler()

	res := get(t, h, "/v1/staking/locks/0")
	require.Equal(t, http.StatusOK, res.Code)
	var lock LockResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &lock))
	require.Equal(t, "9", lock.Amount)
	require.Equal(t, holder.Hex(), lock.User)

	require.Equal(t, http.StatusNotFound, get(t, h, "/v1/staking/locks/4").Code)
	require.Equal(t, http.StatusBadRequest, get(t, h, "/v1/staking/locks/x").Code)
	require.Equal(t, http.StatusNotFound, get(t, h, "/v1/vesting/wallets/"+holder.Hex()).Code)

	res = get(t, h, "/v1/subjects/"+subject.Hex())
	require.Equal(t, http.StatusOK, res.Code)
	var subj SubjectResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &subj))
	require.Equal(t, "NotOnboarded", subj.Status)
	require.Equal(t, subjectToken.Hex(), subj.SubjectToken)

	res = get(t, h, "/v1/rewards/"+holder.Hex())
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), `"nonce":"1"`)
}

func TestRateLimit(t *testing.T) {
	h := NewServer(newStub(), ServerConfig{RateLimit: RateLimit{RequestsPerMinute: 1, Burst: 2}}).Handler()
	path := "/v1/vault/" + subjectToken.Hex()
	require.Equal(t, http.StatusOK, get(t, h, path).Code)
	require.Equal(t, http.StatusOK, get(t, h, path).Code)
	require.Equal(t, http.StatusTooManyRequests, get(t, h, path).Code)

	// Health and metrics are not limited.
	require.Equal(t, http.StatusOK, get(t, h, "/healthz").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := NewServer(newStub(), ServerConfig{}).Handler()
	require.Equal(t, http.StatusOK, get(t, h, "/v1/addresses").Code)
	res := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, res.Code)
	require.True(t, strings.Contains(res.Body.String(), "moxie_rpc_requests_total"))
}

func TestAgainstProtocol(t *testing.T) {
	admin := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	p, err := protocol.New(storage.NewMemDB(), protocol.Config{
		Admin:         admin,
		InitialSupply: big.NewInt(1_000),
		AuctionTime:   subjectfactory.AuctionTime{Duration: 7200, CancellationDuration: 3600},
	})
	require.NoError(t, err)
	h := NewServer(p, ServerConfig{}).Handler()

	moxie := p.Addresses().MoxieToken
	res := get(t, h, "/v1/tokens/"+moxie.Hex()+"/balances/"+admin.Hex())
	require.Equal(t, http.StatusOK, res.Code)
	var bal BalanceResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &bal))
	require.Equal(t, "1000", bal.Balance)

	res = get(t, h, "/v1/addresses")
	var addrs AddressesResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &addrs))
	require.Equal(t, p.Addresses().BondingCurve.Hex(), addrs.BondingCurve)

	require.Equal(t, http.StatusNotFound, get(t, h, "/v1/curve/"+subject.Hex()).Code)
	require.Equal(t, http.StatusNotFound, get(t, h, "/v1/staking/locks/0").Code)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := NewServer(newStub(), ServerConfig{ShutdownTimeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.serveListener(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

type stubTrades struct {
	limit int
}

func (s *stubTrades) Trades(_ context.Context, subj common.Address, limit int) ([]indexer.Trade, error) {
	s.limit = limit
	if subj != subject {
		return nil, nil
	}
	return []indexer.Trade{
		{ID: 2, Side: indexer.SideSell, ReserveAmount: "40", ShareAmount: "3"},
		{ID: 1, Side: indexer.SideBuy, ReserveAmount: "103", ShareAmount: "7"},
	}, nil
}

func TestTradesEndpoint(t *testing.T) {
	require.Equal(t, http.StatusServiceUnavailable, get(t, NewServer(newStub(), ServerConfig{}).Handler(), "/v1/curve/"+subject.Hex()+"/trades").Code)

	trades := &stubTrades{}
	h := NewServer(newStub(), ServerConfig{Trades: trades}).Handler()
	res := get(t, h, "/v1/curve/"+subject.Hex()+"/trades?limit=5")
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, 5, trades.limit)
	var body TradesResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.Len(t, body.Trades, 2)
	require.Equal(t, indexer.SideSell, body.Trades[0].Side)
	require.Equal(t, "103", body.Trades[1].ReserveAmount)

	res = get(t, h, "/v1/curve/"+holder.Hex()+"/trades")
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), `"trades":[]`)

	require.Equal(t, http.StatusBadRequest, get(t, h, "/v1/curve/"+subject.Hex()+"/trades?limit=0").Code)
}

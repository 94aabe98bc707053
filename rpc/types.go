package rpc

import (
	"math/big"
	"time"

	"moxieprotocol/indexer"
	"moxieprotocol/native/bondingcurve"
	"moxieprotocol/native/staking"
	"moxieprotocol/native/subjectfactory"
	"moxieprotocol/protocol"
)

// Amounts are rendered as decimal strings to keep full uint256 precision.

type AddressesResponse struct {
	Admin          string `json:"admin"`
	MoxieToken     string `json:"moxieToken"`
	Vault          string `json:"vault"`
	TokenManager   string `json:"tokenManager"`
	BondingCurve   string `json:"bondingCurve"`
	SubjectFactory string `json:"subjectFactory"`
	Staking        string `json:"staking"`
	Rewards        string `json:"rewards"`
	VestingManager string `json:"vestingManager"`
	Auction        string `json:"auction"`
}

type CurveStateResponse struct {
	Subject      string `json:"subject"`
	SubjectToken string `json:"subjectToken"`
	ReserveToken string `json:"reserveToken"`
	ReserveRatio uint32 `json:"reserveRatio"`
	Supply       string `json:"supply"`
	Reserve      string `json:"reserve"`
	Initialized  bool   `json:"initialized"`
}

type CurveFeesResponse struct {
	ProtocolBuyFeePct  string `json:"protocolBuyFeePct"`
	ProtocolSellFeePct string `json:"protocolSellFeePct"`
	SubjectBuyFeePct   string `json:"subjectBuyFeePct"`
	SubjectSellFeePct  string `json:"subjectSellFeePct"`
	Beneficiary        string `json:"feeBeneficiary"`
}

type QuoteResponse struct {
	Amount      string `json:"amount"`
	ProtocolFee string `json:"protocolFee"`
	SubjectFee  string `json:"subjectFee"`
}

type SubjectResponse struct {
	Subject        string `json:"subject"`
	SubjectToken   string `json:"subjectToken,omitempty"`
	AuctionID      uint64 `json:"auctionId"`
	AuctionEndDate uint64 `json:"auctionEndDate"`
	InitialSupply  string `json:"initialSupply"`
	Status         string `json:"status"`
}

type BalanceResponse struct {
	Token   string `json:"token"`
	Holder  string `json:"holder,omitempty"`
	Balance string `json:"balance"`
}

type LockResponse struct {
	Index        uint64 `json:"index"`
	User         string `json:"user"`
	Subject      string `json:"subject"`
	SubjectToken string `json:"subjectToken"`
	Amount       string `json:"amount"`
	UnlockTime   uint64 `json:"unlockTime"`
	LockPeriod   uint64 `json:"lockPeriod"`
}

type WalletResponse struct {
	Address          string `json:"address"`
	Owner            string `json:"owner"`
	Beneficiary      string `json:"beneficiary"`
	Token            string `json:"token"`
	ManagedAmount    string `json:"managedAmount"`
	StartTime        uint64 `json:"startTime"`
	EndTime          uint64 `json:"endTime"`
	Periods          uint64 `json:"periods"`
	ReleaseStartTime uint64 `json:"releaseStartTime"`
	VestingCliffTime uint64 `json:"vestingCliffTime"`
	Revocable        bool   `json:"revocable"`
	Revoked          bool   `json:"revoked"`
	UsedAmount       string `json:"usedAmount"`
	ReleasedAmount   string `json:"releasedAmount"`
	VestedAmount     string `json:"vestedAmount"`
	AvailableAmount  string `json:"availableAmount"`
	ReleasableAmount string `json:"releasableAmount"`
	SurplusAmount    string `json:"surplusAmount"`
	Balance          string `json:"balance"`
}

type RewardsResponse struct {
	Account string `json:"account"`
	Balance string `json:"balance"`
	Nonce   string `json:"nonce"`
}

type TradeResponse struct {
	ID            uint64    `json:"id"`
	Side          string    `json:"side"`
	Beneficiary   string    `json:"beneficiary"`
	ReserveAmount string    `json:"reserveAmount"`
	ShareAmount   string    `json:"shareAmount"`
	ProtocolFee   string    `json:"protocolFee"`
	SubjectFee    string    `json:"subjectFee"`
	Time          time.Time `json:"time"`
}

type TradesResponse struct {
	Subject string          `json:"subject"`
	Trades  []TradeResponse `json:"trades"`
}

func newTradesResponse(subject string, trades []indexer.Trade) TradesResponse {
	out := TradesResponse{Subject: subject, Trades: make([]TradeResponse, 0, len(trades))}
	for _, t := range trades {
		out.Trades = append(out.Trades, TradeResponse{
			ID:            t.ID,
			Side:          t.Side,
			Beneficiary:   t.Beneficiary,
			ReserveAmount: t.ReserveAmount,
			ShareAmount:   t.ShareAmount,
			ProtocolFee:   t.ProtocolFee,
			SubjectFee:    t.SubjectFee,
			Time:          t.CreatedAt.UTC(),
		})
	}
	return out
}

func amount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func newAddressesResponse(a protocol.Addresses) AddressesResponse {
	return AddressesResponse{
		Admin:          a.Admin.Hex(),
		MoxieToken:     a.MoxieToken.Hex(),
		Vault:          a.Vault.Hex(),
		TokenManager:   a.TokenManager.Hex(),
		BondingCurve:   a.BondingCurve.Hex(),
		SubjectFactory: a.SubjectFactory.Hex(),
		Staking:        a.Staking.Hex(),
		Rewards:        a.Rewards.Hex(),
		VestingManager: a.VestingManager.Hex(),
		Auction:        a.Auction.Hex(),
	}
}

func newCurveStateResponse(st *bondingcurve.CurveState) CurveStateResponse {
	return CurveStateResponse{
		Subject:      st.Subject.Hex(),
		SubjectToken: st.SubjectToken.Hex(),
		ReserveToken: st.ReserveToken.Hex(),
		ReserveRatio: st.ReserveRatio,
		Supply:       amount(st.Supply),
		Reserve:      amount(st.Reserve),
		Initialized:  st.Initialized,
	}
}

func newSubjectResponse(rec *subjectfactory.Subject) SubjectResponse {
	out := SubjectResponse{
		Subject:        rec.Subject.Hex(),
		AuctionID:      rec.AuctionID,
		AuctionEndDate: rec.AuctionEndDate,
		InitialSupply:  amount(rec.InitialSupply),
		Status:         rec.Status.String(),
	}
	if rec.Status != subjectfactory.StatusNotOnboarded {
		out.SubjectToken = rec.SubjectToken.Hex()
	}
	return out
}

func newLockResponse(index uint64, lock *staking.Lock) LockResponse {
	return LockResponse{
		Index:        index,
		User:         lock.User.Hex(),
		Subject:      lock.Subject.Hex(),
		SubjectToken: lock.SubjectToken.Hex(),
		Amount:       amount(lock.Amount),
		UnlockTime:   lock.UnlockTime,
		LockPeriod:   lock.LockPeriod,
	}
}

func newWalletResponse(view *protocol.WalletView) WalletResponse {
	st := view.State
	return WalletResponse{
		Address:          st.Address.Hex(),
		Owner:            st.Owner.Hex(),
		Beneficiary:      st.Beneficiary.Hex(),
		Token:            st.Token.Hex(),
		ManagedAmount:    amount(st.ManagedAmount),
		StartTime:        st.StartTime,
		EndTime:          st.EndTime,
		Periods:          st.Periods,
		ReleaseStartTime: st.ReleaseStartTime,
		VestingCliffTime: st.VestingCliffTime,
		Revocable:        st.Revocable,
		Revoked:          st.Revoked,
		UsedAmount:       amount(st.UsedAmount),
		ReleasedAmount:   amount(st.ReleasedAmount),
		VestedAmount:     amount(view.Vested),
		AvailableAmount:  amount(view.Available),
		ReleasableAmount: amount(view.Releasable),
		SurplusAmount:    amount(view.Surplus),
		Balance:          amount(view.Balance),
	}
}

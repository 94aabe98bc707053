package rpc

import (
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"moxieprotocol/observability"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func observe(module, method string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			observability.ModuleMetrics().Observe(module, method, rec.status, time.Since(start))
		})
	}
}

func addressParam(r *http.Request, name string) (common.Address, error) {
	raw := chi.URLParam(r, name)
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid %s address %q", name, raw)
	}
	return common.HexToAddress(raw), nil
}

func amountQuery(r *http.Request, name string) (*big.Int, error) {
	raw := r.URL.Query().Get(name)
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok || v.Sign() <= 0 {
		return nil, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}

func (s *Server) handleAddresses(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newAddressesResponse(s.backend.Addresses()))
}

func (s *Server) handleCurveFees(w http.ResponseWriter, _ *http.Request) {
	fees, err := s.backend.CurveFees()
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CurveFeesResponse{
		ProtocolBuyFeePct:  amount(fees.Fees.ProtocolBuyFeePct),
		ProtocolSellFeePct: amount(fees.Fees.ProtocolSellFeePct),
		SubjectBuyFeePct:   amount(fees.Fees.SubjectBuyFeePct),
		SubjectSellFeePct:  amount(fees.Fees.SubjectSellFeePct),
		Beneficiary:        fees.Beneficiary.Hex(),
	})
}

func (s *Server) handleCurveState(w http.ResponseWriter, r *http.Request) {
	subject, err := addressParam(r, "subject")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, err := s.backend.CurveState(subject)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCurveStateResponse(st))
}

func (s *Server) handleQuoteBuy(w http.ResponseWriter, r *http.Request) {
	subject, err := addressParam(r, "subject")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	shares, err := amountQuery(r, "shares")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q, err := s.backend.QuoteBuy(subject, shares)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, QuoteResponse{Amount: amount(q.Deposit), ProtocolFee: amount(q.ProtocolFee), SubjectFee: amount(q.SubjectFee)})
}

func (s *Server) handleQuoteSell(w http.ResponseWriter, r *http.Request) {
	subject, err := addressParam(r, "subject")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sell, err := amountQuery(r, "amount")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q, err := s.backend.QuoteSell(subject, sell)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, QuoteResponse{Amount: amount(q.Return), ProtocolFee: amount(q.ProtocolFee), SubjectFee: amount(q.SubjectFee)})
}

func (s *Server) handleSubject(w http.ResponseWriter, r *http.Request) {
	subject, err := addressParam(r, "subject")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := s.backend.OnboardingRecord(subject)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	out := newSubjectResponse(rec)
	if out.SubjectToken == "" {
		if tok, ok, err := s.backend.SubjectToken(subject); err != nil {
			writeBackendError(w, err)
			return
		} else if ok {
			out.SubjectToken = tok.Hex()
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleVaultBalance(w http.ResponseWriter, r *http.Request) {
	tok, err := addressParam(r, "token")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bal, err := s.backend.VaultBalance(tok)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{Token: tok.Hex(), Balance: amount(bal)})
}

func (s *Server) handleTokenBalance(w http.ResponseWriter, r *http.Request) {
	tok, err := addressParam(r, "token")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	holder, err := addressParam(r, "holder")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bal, err := s.backend.TokenBalance(tok, holder)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{Token: tok.Hex(), Holder: holder.Hex(), Balance: amount(bal)})
}

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.ParseUint(chi.URLParam(r, "index"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid lock index")
		return
	}
	lock, err := s.backend.LockInfo(index)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newLockResponse(index, lock))
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r, "wallet")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := s.backend.VestingWallet(addr)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newWalletResponse(view))
}

func (s *Server) handleRewards(w http.ResponseWriter, r *http.Request) {
	account, err := addressParam(r, "account")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	acct, err := s.backend.RewardsAccount(account)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RewardsResponse{Account: account.Hex(), Balance: amount(acct.Balance), Nonce: amount(acct.Nonce)})
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Trades == nil {
		writeError(w, http.StatusServiceUnavailable, "trade history disabled")
		return
	}
	subject, err := addressParam(r, "subject")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", raw))
			return
		}
	}
	trades, err := s.cfg.Trades.Trades(r.Context(), subject, limit)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTradesResponse(subject.Hex(), trades))
}

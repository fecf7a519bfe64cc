package api

import (
	"math"
	"net/http"
	"sort"
	"strconv"

	"revenue-market/internal/ledger"
)

type registerAssetRequest struct {
	MetadataURI string `json:"metadata_uri"`
}

func (s *Server) registerAsset(w http.ResponseWriter, r *http.Request) {
	var req registerAssetRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	asset, err := s.ledger.RegisterAsset(r.Context(), actor(r), req.MetadataURI)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newAsset(asset))
}

func (s *Server) getAsset(w http.ResponseWriter, r *http.Request) {
	assetID, err := uintParam(r, "assetID")
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	asset, err := s.ledger.Asset(r.Context(), assetID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAsset(asset))
}

type mintRequest struct {
	Price             uint64 `json:"price,string"`
	Supply            uint64 `json:"supply,string"`
	MaturityDate      int64  `json:"maturity_date"`
	CollateralDeposit uint64 `json:"collateral_deposit,string"`
}

func (s *Server) mintToken(w http.ResponseWriter, r *http.Request) {
	assetID, err := uintParam(r, "assetID")
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	var req mintRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	token, err := s.ledger.MintRevenueToken(r.Context(), ledger.MintRequest{
		Partner:           actor(r),
		AssetID:           assetID,
		Price:             req.Price,
		Supply:            req.Supply,
		MaturityDate:      req.MaturityDate,
		CollateralDeposit: req.CollateralDeposit,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newToken(token))
}

func (s *Server) getEarnings(w http.ResponseWriter, r *http.Request) {
	assetID, err := uintParam(r, "assetID")
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	agg, err := s.ledger.Earnings(r.Context(), assetID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEarnings(agg))
}

type distributeRequest struct {
	TotalRevenue uint64 `json:"total_revenue,string"`
	Deposited    uint64 `json:"deposited,string"`
}

func (s *Server) distribute(w http.ResponseWriter, r *http.Request) {
	assetID, err := uintParam(r, "assetID")
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	var req distributeRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	receipt, err := s.ledger.DistributeEarnings(r.Context(), ledger.DistributeRequest{
		Partner:      actor(r),
		AssetID:      assetID,
		TotalRevenue: req.TotalRevenue,
		Deposited:    req.Deposited,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newDistribution(receipt))
}

func (s *Server) distributionHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "distribution history is disabled", Kind: ledger.KindInternal.String()})
		return
	}
	assetID, err := uintParam(r, "assetID")
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	if _, err := s.ledger.Asset(r.Context(), assetID); err != nil {
		s.writeError(w, r, err)
		return
	}
	rows, err := s.history.GetByAssetID(r.Context(), assetID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]HistoryResponse, 0, len(rows))
	for _, d := range rows {
		out = append(out, newHistory(d))
	}
	writeJSON(w, http.StatusOK, out)
}

// distributionsInRange lists every asset's distributions with from <= distributed_at <= to.
func (s *Server) distributionsInRange(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "distribution history is disabled", Kind: ledger.KindInternal.String()})
		return
	}
	q := r.URL.Query()
	from, to := int64(0), int64(math.MaxInt64)
	for _, p := range []struct {
		name string
		dst  *int64
	}{{"from", &from}, {"to", &to}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.badRequest(w, "invalid "+p.name)
			return
		}
		*p.dst = n
	}
	if from > to {
		s.badRequest(w, "from is after to")
		return
	}

	rows, err := s.history.GetByTimeRange(r.Context(), from, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]HistoryResponse, 0, len(rows))
	for _, d := range rows {
		out = append(out, newHistory(d))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) rankAssets(w http.ResponseWriter, r *http.Request) {
	ranked, err := s.ledger.RankAssets(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]YieldResponse, 0, len(ranked))
	for _, y := range ranked {
		out = append(out, YieldResponse{
			AssetID:           y.AssetID,
			TokenID:           y.TokenID,
			APR:               y.APR.StringFixed(2),
			DistributionCount: y.Earnings.DistributionCount,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getToken(w http.ResponseWriter, r *http.Request) {
	tokenID, err := uintParam(r, "tokenID")
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	token, err := s.ledger.Token(r.Context(), tokenID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newToken(token))
}

func (s *Server) getAPR(w http.ResponseWriter, r *http.Request) {
	tokenID, err := uintParam(r, "tokenID")
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	apr, err := s.ledger.EstimateAPR(r.Context(), tokenID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"apr": apr.StringFixed(2)})
}

// HolderResponse is one token balance.
type HolderResponse struct {
	Holder  string `json:"holder"`
	Balance uint64 `json:"balance,string"`
}

func (s *Server) getHolders(w http.ResponseWriter, r *http.Request) {
	tokenID, err := uintParam(r, "tokenID")
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	holders, err := s.ledger.Holders(r.Context(), tokenID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]HolderResponse, 0, len(holders))
	for h, b := range holders {
		out = append(out, HolderResponse{Holder: h, Balance: b})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Holder < out[j].Holder })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	tokenID, err := uintParam(r, "tokenID")
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	holder := chiParam(r, "holder")
	balance, err := s.ledger.BalanceOf(r.Context(), holder, tokenID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, HolderResponse{Holder: holder, Balance: balance})
}

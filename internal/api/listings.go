package api

import (
	"context"
	"net/http"
	"strconv"

	"revenue-market/internal/domain"
	"revenue-market/internal/ledger"
)

type createListingRequest struct {
	TokenID       uint64 `json:"token_id"`
	Amount        uint64 `json:"amount,string"`
	PricePerToken uint64 `json:"price_per_token,string"`
	Duration      int64  `json:"duration"`
	BuyerPaysFee  bool   `json:"buyer_pays_fee"`
}

func (s *Server) createListing(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	listing, err := s.ledger.CreateListing(r.Context(), ledger.CreateListingRequest{
		Seller:        actor(r),
		TokenID:       req.TokenID,
		Amount:        req.Amount,
		PricePerToken: req.PricePerToken,
		Duration:      req.Duration,
		BuyerPaysFee:  req.BuyerPaysFee,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newListing(listing))
}

// listListings filters by ?seller= or ?status=, defaulting to ACTIVE.
func (s *Server) listListings(w http.ResponseWriter, r *http.Request) {
	var (
		listings []*domain.Listing
		err      error
	)
	if seller := r.URL.Query().Get("seller"); seller != "" {
		listings, err = s.ledger.ListingsBySeller(r.Context(), seller)
	} else {
		status := domain.ListingStatus(r.URL.Query().Get("status"))
		if status == "" {
			status = domain.ListingStatusActive
		}
		listings, err = s.ledger.ListListings(r.Context(), status)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListings(listings))
}

func (s *Server) getListing(w http.ResponseWriter, r *http.Request) {
	listingID, err := uintParam(r, "listingID")
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	listing, err := s.ledger.GetListing(r.Context(), listingID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListing(listing))
}

func (s *Server) quote(w http.ResponseWriter, r *http.Request) {
	listingID, err := uintParam(r, "listingID")
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	amount, err := strconv.ParseUint(r.URL.Query().Get("amount"), 10, 64)
	if err != nil {
		s.badRequest(w, "invalid amount")
		return
	}
	q, err := s.ledger.Quote(r.Context(), listingID, amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newQuote(q))
}

func (s *Server) listingEvents(w http.ResponseWriter, r *http.Request) {
	listingID, err := uintParam(r, "listingID")
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	evs, err := s.ledger.ListingEvents(r.Context(), listingID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelopes(evs))
}

func (s *Server) listPositions(w http.ResponseWriter, r *http.Request) {
	listingID, err := uintParam(r, "listingID")
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	positions, err := s.ledger.ListPositions(r.Context(), listingID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]PositionResponse, 0, len(positions))
	for _, p := range positions {
		out = append(out, newPosition(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getPosition(w http.ResponseWriter, r *http.Request) {
	listingID, err := uintParam(r, "listingID")
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	pos, err := s.ledger.GetPosition(r.Context(), listingID, chiParam(r, "buyer"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPosition(pos))
}

type purchaseRequest struct {
	Amount uint64 `json:"amount,string"`
}

func (s *Server) purchase(w http.ResponseWriter, r *http.Request) {
	listingID, err := uintParam(r, "listingID")
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	var req purchaseRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	receipt, err := s.ledger.Purchase(r.Context(), actor(r), listingID, req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, PurchaseResponse{
		ListingID: receipt.ListingID,
		Quote:     newQuote(receipt.Quote),
		Position:  newPosition(&receipt.Position),
		Remaining: receipt.Remaining,
	})
}

type extendRequest struct {
	AdditionalDuration int64 `json:"additional_duration"`
}

func (s *Server) extendListing(w http.ResponseWriter, r *http.Request) {
	listingID, err := uintParam(r, "listingID")
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	var req extendRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	listing, err := s.ledger.ExtendListing(r.Context(), actor(r), listingID, req.AdditionalDuration)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListing(listing))
}

func (s *Server) cancelListing(w http.ResponseWriter, r *http.Request) {
	s.closeListing(w, r, s.ledger.CancelListing)
}

func (s *Server) finalizeListing(w http.ResponseWriter, r *http.Request) {
	s.closeListing(w, r, s.ledger.FinalizeListing)
}

type closeFunc func(ctx context.Context, caller string, listingID uint64) (*domain.Listing, error)

func (s *Server) closeListing(w http.ResponseWriter, r *http.Request, fn closeFunc) {
	listingID, err := uintParam(r, "listingID")
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	listing, err := fn(r.Context(), actor(r), listingID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListing(listing))
}

func (s *Server) claimTokens(w http.ResponseWriter, r *http.Request) {
	s.claim(w, r, s.ledger.ClaimTokens)
}

func (s *Server) claimRefund(w http.ResponseWriter, r *http.Request) {
	s.claim(w, r, s.ledger.ClaimRefund)
}

func (s *Server) claim(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, buyer string, listingID uint64) (uint64, error)) {
	listingID, err := uintParam(r, "listingID")
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	amount, err := fn(r.Context(), actor(r), listingID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AmountResponse{Amount: amount})
}

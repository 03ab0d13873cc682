package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ideal-lab5/tlock-engine/engine"
	"github.com/ideal-lab5/tlock-engine/metrics"
	"github.com/ideal-lab5/tlock-engine/oracle"
	"github.com/ideal-lab5/tlock-engine/proxy"
)

// AuctionService exposes the proxy over HTTP. Commit-side requests are
// signed envelopes; the signer's public key is the participant identity.
type AuctionService struct {
	log   *slog.Logger
	proxy *proxy.Proxy
}

func NewAuctionService(log *slog.Logger, p *proxy.Proxy) *AuctionService {
	return &AuctionService{log: log, proxy: p}
}

func (s *AuctionService) RegisterRoutes(r chi.Router) {
	r.Post("/assets", s.registerAsset)
	r.Post("/assets/{id}/commit", s.commit)
	r.Post("/assets/{id}/close", s.close)
	r.Post("/assets/{id}/resolve", s.resolve)
	r.Post("/assets/{id}/abort", s.abort)
	r.Get("/assets/{id}/round", s.queryRound)
}

func (s *AuctionService) registerAsset(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	signed, err := DecodeMessage[Signed[RegisterAssetRequest]](r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}
	req, sellerKey, err := signed.Recover()
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid signature: %v", err), http.StatusUnauthorized)
		return
	}
	if len(req.Metadata) == 0 {
		http.Error(w, "Missing asset metadata", http.StatusBadRequest)
		return
	}

	id, err := s.proxy.Register(
		engine.ParticipantID(sellerKey.String()),
		req.Metadata,
		engine.Amount(req.ReservePrice),
		engine.Amount(req.MinDeposit),
		oracle.SlotID(req.Deadline),
	)
	if err != nil {
		s.writeError(w, err)
		return
	}
	metrics.OpenRounds.Inc()

	s.log.Info("Asset registered", "assetID", id, "deadline", req.Deadline)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(RegisterAssetResponse{AssetID: string(id)})
}

func (s *AuctionService) commit(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	assetID := proxy.AssetID(chi.URLParam(r, "id"))

	signed, err := DecodeMessage[Signed[CommitRequest]](r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}
	req, signerKey, err := signed.Recover()
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid signature: %v", err), http.StatusUnauthorized)
		return
	}
	if len(req.Ciphertext) == 0 {
		http.Error(w, "Missing ciphertext", http.StatusBadRequest)
		return
	}

	participant := engine.ParticipantID(signerKey.String())
	if err := s.proxy.Commit(assetID, participant, req.Ciphertext, engine.Amount(req.Deposit)); err != nil {
		s.writeError(w, err)
		return
	}
	metrics.CommitsTotal.WithLabelValues("auction").Inc()

	writeStatus(w, "committed")
}

func (s *AuctionService) close(w http.ResponseWriter, r *http.Request) {
	assetID := proxy.AssetID(chi.URLParam(r, "id"))
	if err := s.proxy.Close(assetID); err != nil {
		s.writeError(w, err)
		return
	}
	writeStatus(w, "closed")
}

func (s *AuctionService) resolve(w http.ResponseWriter, r *http.Request) {
	assetID := proxy.AssetID(chi.URLParam(r, "id"))

	// A repeated resolve returns the cached outcome; the gauge only moves
	// the first time.
	view, viewErr := s.proxy.QueryRound(assetID)
	alreadyResolved := viewErr == nil && view.Status == engine.StatusResolved.String()

	outcome, err := s.proxy.Resolve(assetID)
	if err != nil {
		if errors.Is(err, engine.ErrSecretUnavailable) {
			metrics.ResolvesTotal.WithLabelValues("auction", "deferred").Inc()
		} else {
			metrics.ResolvesTotal.WithLabelValues("auction", "error").Inc()
		}
		s.writeError(w, err)
		return
	}
	metrics.ResolvesTotal.WithLabelValues("auction", "ok").Inc()
	if !alreadyResolved {
		metrics.OpenRounds.Dec()
	}

	s.log.Info("Auction resolved", "assetID", assetID, "sold", outcome.Sold, "clearingPrice", outcome.ClearingPrice)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(outcome)
}

func (s *AuctionService) abort(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	assetID := proxy.AssetID(chi.URLParam(r, "id"))

	signed, err := DecodeMessage[Signed[AbortRequest]](r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}
	_, callerKey, err := signed.Recover()
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid signature: %v", err), http.StatusUnauthorized)
		return
	}

	if err := s.proxy.Abort(assetID, engine.ParticipantID(callerKey.String())); err != nil {
		s.writeError(w, err)
		return
	}
	metrics.OpenRounds.Dec()
	writeStatus(w, "aborted")
}

func (s *AuctionService) queryRound(w http.ResponseWriter, r *http.Request) {
	assetID := proxy.AssetID(chi.URLParam(r, "id"))

	view, err := s.proxy.QueryRound(assetID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(view)
}

func (s *AuctionService) writeError(w http.ResponseWriter, err error) {
	writeEngineError(s.log, w, err)
}

// writeEngineError maps domain errors to HTTP statuses. ErrSecretUnavailable
// is the retryable case: 503 with a Retry-After hint.
func writeEngineError(log *slog.Logger, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrSecretUnavailable):
		metrics.SecretUnavailableRetries.Inc()
		w.Header().Set("Retry-After", "1")
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, proxy.ErrAssetNotFound), errors.Is(err, engine.ErrRoundNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, proxy.ErrAlreadyRegistered):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, proxy.ErrOutOfWindow),
		errors.Is(err, engine.ErrRoundNotOpen),
		errors.Is(err, engine.ErrRoundNotClosed),
		errors.Is(err, engine.ErrDeadlineNotReached),
		errors.Is(err, engine.ErrNotRoundOpener):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, engine.ErrInsufficientDeposit), errors.Is(err, engine.ErrInvalidDeadline):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Error("Request failed", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeStatus(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

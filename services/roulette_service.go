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
	"github.com/ideal-lab5/tlock-engine/roulette"
)

// RouletteService exposes the recurring parity event over HTTP.
type RouletteService struct {
	log   *slog.Logger
	event *roulette.Event
}

func NewRouletteService(log *slog.Logger, event *roulette.Event) *RouletteService {
	return &RouletteService{log: log, event: event}
}

func (s *RouletteService) RegisterRoutes(r chi.Router) {
	r.Post("/roulette/commit", s.commit)
	r.Post("/roulette/resolve", s.resolve)
	r.Post("/roulette/fast-forward", s.fastForward)
	r.Get("/roulette/round", s.queryRound)
}

func (s *RouletteService) commit(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
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
	if err := s.event.Commit(participant, req.Ciphertext, engine.Amount(req.Deposit)); err != nil {
		writeEngineError(s.log, w, err)
		return
	}
	metrics.CommitsTotal.WithLabelValues("roulette").Inc()

	writeStatus(w, "committed")
}

func (s *RouletteService) resolve(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.event.Resolve()
	if err != nil {
		if errors.Is(err, engine.ErrSecretUnavailable) {
			metrics.ResolvesTotal.WithLabelValues("roulette", "deferred").Inc()
		} else {
			metrics.ResolvesTotal.WithLabelValues("roulette", "error").Inc()
		}
		writeEngineError(s.log, w, err)
		return
	}
	metrics.ResolvesTotal.WithLabelValues("roulette", "ok").Inc()

	s.log.Info("Roulette round resolved", "target", outcome.Target, "winners", len(outcome.Winners), "carried", outcome.Carried)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(outcome)
}

func (s *RouletteService) fastForward(w http.ResponseWriter, r *http.Request) {
	skipped, err := s.event.FastForward()
	if err != nil {
		writeEngineError(s.log, w, err)
		return
	}
	if skipped > 0 {
		s.log.Info("Fast-forwarded over empty rounds", "skipped", skipped, "index", s.event.CurrentIndex())
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"skipped": skipped})
}

func (s *RouletteService) queryRound(w http.ResponseWriter, r *http.Request) {
	index := s.event.CurrentIndex()
	resp := RouletteRoundResponse{
		Index:    index,
		Deadline: uint64(s.event.DeadlineOf(index)),
		Pool:     uint64(s.event.Pool()),
	}
	if view, err := s.event.View(); err == nil {
		resp.Open = view.Status == "open"
		resp.Status = view.Status
		resp.Commitments = view.Commitments
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

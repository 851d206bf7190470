package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"airdrop-reconciler/internal/domain"
	"airdrop-reconciler/internal/observability"
	"airdrop-reconciler/internal/storage"
	"airdrop-reconciler/internal/storage/memory"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored runs and reward history over HTTP",
		Long: `Read-only JSON API over the configured stores:

  GET /runs?season=S2            runs of a season
  GET /runs/{id}                 one run summary
  GET /runs/{id}/records         final rows of a run
  GET /addresses/{addr}/history  captured rows of an address across runs

Without configured DSNs the API serves empty in-memory stores.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			st, err := openStores(ctx, a.logger, a.cfg, true)
			if err != nil {
				return err
			}
			defer st.close()

			h := &apiHandler{runs: st.runs, snapshots: st.snapshots, logger: a.logger}
			if h.runs == nil {
				h.runs = memory.NewRunStore()
			}
			if h.snapshots == nil {
				h.snapshots = memory.NewRewardSnapshotStore()
			}

			srv := &http.Server{Addr: addr, Handler: h.routes(), ReadHeaderTimeout: 5 * time.Second}
			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("starting API server", zap.String("addr", addr))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
				a.logger.Info("shutting down API server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address")
	return cmd
}

// apiHandler serves the read API.
type apiHandler struct {
	runs      storage.RunStore
	snapshots storage.RewardSnapshotStore
	logger    *zap.Logger
}

func (h *apiHandler) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", observability.Handler())
	mux.HandleFunc("GET /runs", h.handleListRuns)
	mux.HandleFunc("GET /runs/{id}", h.handleGetRun)
	mux.HandleFunc("GET /runs/{id}/records", h.handleGetRecords)
	mux.HandleFunc("GET /addresses/{addr}/history", h.handleHistory)
	return mux
}

// runResponse is the JSON form of a run summary.
type runResponse struct {
	RunID            string    `json:"run_id"`
	Season           string    `json:"season"`
	Status           string    `json:"status"`
	StartedAt        time.Time `json:"started_at"`
	CompletedAt      time.Time `json:"completed_at"`
	CandidatesRead   int       `json:"candidates_read"`
	Duplicates       int       `json:"duplicate_candidates"`
	Prefiltered      int       `json:"prefiltered"`
	RemoteRecords    int       `json:"remote_records"`
	MalformedRemotes int       `json:"malformed_remotes"`
	RemoteOverrides  int       `json:"remote_overrides"`
	AmbiguousRemotes int       `json:"ambiguous_remotes"`
	InvalidAddresses int       `json:"invalid_addresses"`
	Excluded         int       `json:"excluded"`
	BelowThreshold   int       `json:"below_threshold"`
	Kept             int       `json:"kept"`
	TotalWaifu       float64   `json:"total_waifu"`
	TotalLlama       float64   `json:"total_llama"`
	TotalBase        float64   `json:"total_base"`
}

// recordResponse is the JSON form of a reconciled row.
type recordResponse struct {
	RunID          string  `json:"run_id,omitempty"`
	Position       *int    `json:"position,omitempty"`
	Address        string  `json:"address"`
	Waifu          float64 `json:"waifu"`
	Llama          float64 `json:"llama"`
	BaseTotal      float64 `json:"base_total"`
	LocalBaseTotal float64 `json:"local_base_total"`
	Source         string  `json:"source"`
}

func toRunResponse(r *domain.RunSummary) runResponse {
	return runResponse{
		RunID:            r.RunID,
		Season:           r.Season,
		Status:           string(r.Status),
		StartedAt:        r.StartedAt,
		CompletedAt:      r.CompletedAt,
		CandidatesRead:   r.CandidatesRead,
		Duplicates:       r.DuplicateCandidates,
		Prefiltered:      r.Prefiltered,
		RemoteRecords:    r.RemoteRecords,
		MalformedRemotes: r.MalformedRemotes,
		RemoteOverrides:  r.RemoteOverrides,
		AmbiguousRemotes: r.AmbiguousRemotes,
		InvalidAddresses: r.InvalidAddresses,
		Excluded:         r.Excluded,
		BelowThreshold:   r.BelowThreshold,
		Kept:             r.Kept,
		TotalWaifu:       r.TotalWaifu,
		TotalLlama:       r.TotalLlama,
		TotalBase:        r.TotalBase,
	}
}

func toRecordResponse(r domain.ReconciledRecord) recordResponse {
	return recordResponse{
		Address:        r.Address.String(),
		Waifu:          r.Waifu,
		Llama:          r.Llama,
		BaseTotal:      r.BaseTotal,
		LocalBaseTotal: r.LocalBaseTotal,
		Source:         string(r.Source),
	}
}

func (h *apiHandler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	season := r.URL.Query().Get("season")
	if season == "" {
		http.Error(w, "season is required", http.StatusBadRequest)
		return
	}

	runs, err := h.runs.ListRuns(r.Context(), season)
	if err != nil {
		h.fail(w, "list runs", err)
		return
	}

	resp := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, toRunResponse(run))
	}
	writeJSON(w, resp)
}

func (h *apiHandler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.GetRun(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.fail(w, "get run", err)
		return
	}
	writeJSON(w, toRunResponse(run))
}

func (h *apiHandler) handleGetRecords(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.runs.GetRun(r.Context(), id); errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	} else if err != nil {
		h.fail(w, "get run", err)
		return
	}

	records, err := h.runs.GetRecords(r.Context(), id)
	if err != nil {
		h.fail(w, "get records", err)
		return
	}

	resp := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, toRecordResponse(rec))
	}
	writeJSON(w, resp)
}

func (h *apiHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	addr := domain.NewAddress(r.PathValue("addr"))

	snaps, err := h.snapshots.GetByAddress(r.Context(), addr)
	if err != nil {
		h.fail(w, "get history", err)
		return
	}

	resp := make([]recordResponse, 0, len(snaps))
	for _, sn := range snaps {
		rec := toRecordResponse(sn.Record)
		rec.RunID = sn.RunID
		pos := sn.Position
		rec.Position = &pos
		resp = append(resp, rec)
	}
	writeJSON(w, resp)
}

func (h *apiHandler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error("api request failed", zap.String("op", op), zap.Error(err))
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

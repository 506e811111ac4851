package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/mjrating/internal/adapters/repository"
	"github.com/okian/mjrating/internal/domain/ratingconfig"
)

// ConfigHandler serves configuration scoped reads and recompute requests.
type ConfigHandler struct {
	deps         Dependencies
	maxLimit     int
	shortHashLen int
}

// NewConfigHandler creates a new configuration handler.
func NewConfigHandler(deps Dependencies) *ConfigHandler {
	return &ConfigHandler{deps: deps, maxLimit: defaultMaxLimit, shortHashLen: defaultShortHashLen}
}

type configSummary struct {
	Hash          string                      `json:"hash"`
	ShortHash     string                      `json:"short_hash"`
	Config        *ratingconfig.Configuration `json:"config,omitempty"`
	Computed      bool                        `json:"computed"`
	ComputedAt    *time.Time                  `json:"computed_at,omitempty"`
	SourceHash    string                      `json:"source_hash,omitempty"`
	GamesReplayed int                         `json:"games_replayed"`
	Players       int                         `json:"players"`
	Eligible      int                         `json:"eligible"`
}

func (h *ConfigHandler) summary(hash string, snap *repository.Snapshot) configSummary {
	out := configSummary{Hash: hash, ShortHash: ratingconfig.ShortHash(hash, h.shortHashLen)}
	if snap != nil {
		at := snap.ComputedAt
		out.Computed = true
		out.ComputedAt = &at
		out.SourceHash = snap.SourceHash
		out.GamesReplayed = snap.GamesReplayed
		out.Players = len(snap.States)
		out.Eligible = len(snap.Standings)
	}
	return out
}

// HandleList handles GET /configs.
func (h *ConfigHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	hashes, err := h.deps.Configurations(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]configSummary, 0, len(hashes))
	for _, hash := range hashes {
		snap, _ := h.deps.Snapshot(r.Context(), hash)
		out = append(out, h.summary(hash, snap))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleRegister handles POST /configs with a strict JSON configuration.
func (h *ConfigHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxConfigBodyBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if len(raw) > maxConfigBodyBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", ErrBadRequest)
		return
	}
	cfg, err := ratingconfig.Parse(raw)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	hash, err := h.deps.RegisterConfiguration(r.Context(), cfg)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := h.summary(hash, nil)
	out.Config = &cfg
	writeJSON(w, http.StatusCreated, out)
}

// HandleGet handles GET /configs/{ref}.
func (h *ConfigHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	hash, cfg, err := h.deps.ResolveConfiguration(r.Context(), r.PathValue("ref"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	snap, _ := h.deps.Snapshot(r.Context(), hash)
	out := h.summary(hash, snap)
	out.Config = &cfg
	writeJSON(w, http.StatusOK, out)
}

// HandleLeaderboard handles GET /configs/{ref}/leaderboard?limit=N.
func (h *ConfigHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	n := min(defaultLimit, h.maxLimit)
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest))
			return
		}
		n = v
	}
	if n > h.maxLimit {
		writeDomainError(w, fmt.Errorf("%w: %d > %d", ErrLimitExceeded, n, h.maxLimit))
		return
	}
	entries, err := h.deps.Leaderboard(r.Context(), r.PathValue("ref"), n)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandlePlayer handles GET /configs/{ref}/players/{id}.
func (h *ConfigHandler) HandlePlayer(w http.ResponseWriter, r *http.Request) {
	view, err := h.deps.Player(r.Context(), r.PathValue("ref"), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleRecompute handles POST /configs/{ref}/recompute?force=bool&wait=bool.
// Without wait the request is queued and answered with 202.
func (h *ConfigHandler) HandleRecompute(w http.ResponseWriter, r *http.Request) {
	force, err := boolParam(r, "force")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	wait, err := boolParam(r, "wait")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	ref := r.PathValue("ref")
	if wait {
		snap, err := h.deps.Recompute(r.Context(), ref, force)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, h.summary(snap.ConfigHash, snap))
		return
	}

	job, err := h.deps.RequestRecompute(r.Context(), ref, force)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func boolParam(r *http.Request, name string) (bool, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", ErrBadRequest, name)
	}
	return v, nil
}

package api

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"strconv"

	"github.com/nebulasio/go-nbre/business/domain/window"
	"github.com/nebulasio/go-nbre/entities"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type StatusProvider interface {
	Status() entities.SyncStatus
}

type RankService interface {
	Start(ctx context.Context, start, end, version uint64) (string, error)
	Result(handle string) (entities.NRResult, error)
}

type RewardService interface {
	Reward(height uint64) (entities.DIPResult, error)
	CheckReward(height uint64, to entities.Address, value *big.Int) error
	ParamList() entities.DIPParamList
}

type Handler struct {
	status      StatusProvider
	ranks       RankService
	rewards     RewardService
	rankVersion uint64
	logger      *zap.SugaredLogger
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Err string `json:"err"`
}

type StartRankRequest struct {
	StartHeight uint64 `json:"start_height"`
	EndHeight   uint64 `json:"end_height"`
	// Version falls back to the configured default when zero.
	Version uint64 `json:"version"`
}

type StartRankResponse struct {
	Handle string `json:"handle"`
}

type CheckRewardResponse struct {
	Valid bool `json:"valid"`
}

func NewHandler(status StatusProvider, ranks RankService, rewards RewardService, rankVersion uint64, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		status:      status,
		ranks:       ranks,
		rewards:     rewards,
		rankVersion: rankVersion,
		logger:      logger,
	}
}

func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.GetHealth)
	mux.HandleFunc("GET /v1/status", h.GetStatus)
	mux.HandleFunc("POST /v1/nr", h.StartRank)
	mux.HandleFunc("GET /v1/nr/{handle}", h.GetRankResult)
	mux.HandleFunc("GET /v1/dip/params", h.GetRewardParams)
	mux.HandleFunc("GET /v1/dip/{height}", h.GetReward)
	mux.HandleFunc("GET /v1/dip/{height}/check", h.CheckReward)
	return mux
}

func (h *Handler) GetHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "UP"})
}

func (h *Handler) GetStatus(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.status.Status())
}

func (h *Handler) StartRank(w http.ResponseWriter, r *http.Request) {
	var request StartRankRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, errors.Wrapf(entities.ErrMalformedRecord, "decoding request: %v", err))
		return
	}
	version := request.Version
	if version == 0 {
		version = h.rankVersion
	}

	handle, err := h.ranks.Start(r.Context(), request.StartHeight, request.EndHeight, version)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, StartRankResponse{Handle: handle})
}

func (h *Handler) GetRankResult(w http.ResponseWriter, r *http.Request) {
	result, err := h.ranks.Result(r.PathValue("handle"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) GetRewardParams(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.rewards.ParamList())
}

func (h *Handler) GetReward(w http.ResponseWriter, r *http.Request) {
	height, err := parseHeight(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.rewards.Reward(height)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// CheckReward verifies a reward transfer given as the to and value query
// parameters.
func (h *Handler) CheckReward(w http.ResponseWriter, r *http.Request) {
	height, err := parseHeight(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	to, err := entities.ParseAddress(r.URL.Query().Get("to"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	value, err := entities.ParseWei(r.URL.Query().Get("value"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.rewards.CheckReward(height, to, value); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, CheckRewardResponse{Valid: true})
}

func parseHeight(r *http.Request) (uint64, error) {
	raw := r.PathValue("height")
	height, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(entities.ErrMalformedRecord, "height [%s]", raw)
	}
	return height, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, entities.ErrNotComplete):
		return http.StatusAccepted
	case errors.Is(err, entities.ErrInvalidHeightInterval),
		errors.Is(err, entities.ErrInvalidEndHeight),
		errors.Is(err, entities.ErrUnsupportedVersion),
		errors.Is(err, entities.ErrMalformedRecord),
		errors.Is(err, entities.ErrInvalidAddress),
		errors.Is(err, entities.ErrInvalidReward):
		return http.StatusBadRequest
	case errors.Is(err, window.ErrQueueFull):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := err.Error()
	if errors.Is(err, entities.ErrNotComplete) {
		message = entities.ErrNotComplete.Error()
	}
	if status == http.StatusInternalServerError {
		h.logger.Errorw("Request failed", "error", err)
	}
	h.writeJSON(w, status, ErrorResponse{Err: message})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Errorw("Error encoding response", "error", err)
	}
}

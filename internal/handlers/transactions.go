package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/chesschain/queue-api/internal/intake"
)

// decode reads and parses a bounded JSON body.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
	return json.NewDecoder(r.Body).Decode(dst)
}

func (h *Handler) respondAck(w http.ResponseWriter, ack *intake.Ack, err error) {
	if err != nil {
		var invalid *intake.InvalidRequestError
		if errors.As(err, &invalid) {
			h.errorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Errorw("Intake failed", "error", err)
		h.errorResponse(w, http.StatusInternalServerError, "failed to queue transaction")
		return
	}
	h.jsonResponse(w, http.StatusAccepted, ack)
}

// CreateGame queues a create-game transaction.
func (h *Handler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req intake.CreateGameRequest
	if err := decode(w, r, &req); err != nil {
		h.errorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ack, err := h.intake.CreateGame(r.Context(), &req)
	h.respondAck(w, ack, err)
}

// MakeMove queues a make-move transaction.
func (h *Handler) MakeMove(w http.ResponseWriter, r *http.Request) {
	var req intake.MakeMoveRequest
	if err := decode(w, r, &req); err != nil {
		h.errorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ack, err := h.intake.MakeMove(r.Context(), &req)
	h.respondAck(w, ack, err)
}

// EndGame queues an end-game transaction.
func (h *Handler) EndGame(w http.ResponseWriter, r *http.Request) {
	var req intake.EndGameRequest
	if err := decode(w, r, &req); err != nil {
		h.errorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ack, err := h.intake.EndGame(r.Context(), &req)
	h.respondAck(w, ack, err)
}

// MintNFT queues a badge-mint transaction.
func (h *Handler) MintNFT(w http.ResponseWriter, r *http.Request) {
	var req intake.MintBadgeRequest
	if err := decode(w, r, &req); err != nil {
		h.errorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ack, err := h.intake.MintBadge(r.Context(), &req)
	h.respondAck(w, ack, err)
}

// RequestReward runs the eligibility-gated server-side mint path.
func (h *Handler) RequestReward(w http.ResponseWriter, r *http.Request) {
	var req intake.NFTMintRequest
	if err := decode(w, r, &req); err != nil {
		h.errorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ack, err := h.intake.RequestReward(r.Context(), &req)
	h.respondAck(w, ack, err)
}

// FailedMints lists retained failed badge mints for support tooling.
func (h *Handler) FailedMints(w http.ResponseWriter, r *http.Request) {
	rows, err := h.queue.FailedMintBadges(r.Context(), 100)
	if err != nil {
		h.logger.Errorw("Failed to list failed mints", "error", err)
		h.errorResponse(w, http.StatusInternalServerError, "failed to list failed mints")
		return
	}

	type failedMint struct {
		ID        string `json:"id"`
		Actor     string `json:"actor"`
		Error     string `json:"error,omitempty"`
		Retries   int    `json:"retries"`
		BadgeType string `json:"badge_type,omitempty"`
		UpdatedAt string `json:"updated_at"`
	}
	out := make([]failedMint, 0, len(rows))
	for _, row := range rows {
		fm := failedMint{
			ID:        row.ID,
			Actor:     row.Actor,
			Retries:   row.Retries,
			UpdatedAt: row.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		}
		if row.Error != nil {
			fm.Error = *row.Error
		}
		if p, err := row.BadgePayload(); err == nil {
			fm.BadgeType = p.BadgeType
		}
		out = append(out, fm)
	}
	h.jsonResponse(w, http.StatusOK, map[string]interface{}{"failed": out})
}

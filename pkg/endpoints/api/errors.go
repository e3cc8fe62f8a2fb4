package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mpapenbr/lanerace-service-go/log"
	"github.com/mpapenbr/lanerace-service-go/pkg/auth"
	"github.com/mpapenbr/lanerace-service-go/pkg/game"
)

var errBadRequest = errors.New("bad request")

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var errorMapping = []struct {
	err    error
	status int
	code   string
}{
	{game.ErrOutOfRange, http.StatusBadRequest, "out-of-range"},
	{game.ErrTicketConflict, http.StatusConflict, "ticket-conflict"},
	{game.ErrSalesClosed, http.StatusConflict, "sales-closed"},
	{game.ErrFieldIncomplete, http.StatusPreconditionFailed, "field-incomplete"},
	{game.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
	{game.ErrNotWinner, http.StatusForbidden, "not-winner"},
	{game.ErrAlreadyClaimed, http.StatusConflict, "already-claimed"},
	{game.ErrRaceNotFound, http.StatusNotFound, "race-not-found"},
	{auth.ErrPermissionDenied, http.StatusForbidden, "permission-denied"},
	{errBadRequest, http.StatusBadRequest, "bad-request"},
}

func statusFor(err error) (status int, code string) {
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.l.Error("request failed",
			log.String("method", r.Method),
			log.String("path", r.URL.Path),
			log.ErrorField(err))
		msg = http.StatusText(status)
	} else {
		s.l.Debug("request rejected",
			log.String("path", r.URL.Path),
			log.String("code", code),
			log.ErrorField(err))
	}
	writeJSON(w, status, ErrorResponse{Code: code, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // nothing left to do
	json.NewEncoder(w).Encode(v)
}

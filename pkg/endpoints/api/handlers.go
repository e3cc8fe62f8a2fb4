package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/mpapenbr/lanerace-service-go/pkg/auth"
	"github.com/mpapenbr/lanerace-service-go/pkg/game"
	"github.com/mpapenbr/lanerace-service-go/pkg/permission"
	"github.com/mpapenbr/lanerace-service-go/version"
)

type (
	PlayerResponse struct {
		Address game.Address `json:"address"`
		game.PlayerInfo
	}
	ClaimResponse struct {
		Race    uint64       `json:"race"`
		Player  game.Address `json:"player"`
		Awarded int64        `json:"awarded"`
		Points  int64        `json:"points"`
	}
	VersionResponse struct {
		Version     string `json:"version"`
		FullVersion string `json:"fullVersion"`
	}
)

// caller returns the address of the authenticated principal if it holds perm.
func (s *Server) caller(r *http.Request, perm permission.Permission) (game.Address, error) {
	a := auth.FromContext(r.Context())
	if a == nil || s.pe == nil || !s.pe.HasPermission(a, perm) {
		return game.NoAddress, fmt.Errorf("%w: %s", auth.ErrPermissionDenied, perm)
	}
	return a.Address(), nil
}

func raceID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid race id %q", errBadRequest, r.PathValue("id"))
	}
	return id, nil
}

func (s *Server) buyTicket(w http.ResponseWriter, r *http.Request) {
	caller, err := s.caller(r, permission.PermissionBuyTicket)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req buyTicketRequest
	if err := decodeBody(r, buyTicketSchema, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ticket, err := s.svc.BuyTicket(r.Context(), caller, req.StartNumber)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ticket)
}

func (s *Server) playerInfo(w http.ResponseWriter, r *http.Request) {
	if _, err := s.caller(r, permission.PermissionRead); err != nil {
		s.writeError(w, r, err)
		return
	}
	addr := game.Address(r.PathValue("address"))
	writeJSON(w, http.StatusOK, PlayerResponse{
		Address:    addr,
		PlayerInfo: s.svc.PlayerInfo(r.Context(), addr),
	})
}

func (s *Server) startRace(w http.ResponseWriter, r *http.Request) {
	caller, err := s.caller(r, permission.PermissionStartRace)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req startRaceRequest
	if err := decodeBody(r, startRaceSchema, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	race, err := s.svc.StartRace(r.Context(), caller, req.Seed)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, race)
}

func (s *Server) race(w http.ResponseWriter, r *http.Request) {
	if _, err := s.caller(r, permission.PermissionRead); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := raceID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.svc.Race(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) latestRace(w http.ResponseWriter, r *http.Request) {
	if _, err := s.caller(r, permission.PermissionRead); err != nil {
		s.writeError(w, r, err)
		return
	}
	st := s.svc.Status(r.Context())
	if st.LatestRace == nil {
		s.writeError(w, r, fmt.Errorf("%w: no race yet", game.ErrRaceNotFound))
		return
	}
	view, err := s.svc.Race(r.Context(), *st.LatestRace)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) claim(w http.ResponseWriter, r *http.Request) {
	caller, err := s.caller(r, permission.PermissionClaim)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := raceID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	awarded, err := s.svc.Claim(r.Context(), caller, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ClaimResponse{
		Race:    id,
		Player:  caller,
		Awarded: awarded,
		Points:  s.svc.PlayerInfo(r.Context(), caller).Points,
	})
}

func (s *Server) openSales(w http.ResponseWriter, r *http.Request) {
	caller, err := s.caller(r, permission.PermissionOpenSales)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.OpenSales(r.Context(), caller); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Status(r.Context()))
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	if _, err := s.caller(r, permission.PermissionRead); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Status(r.Context()))
}

func (s *Server) version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{
		Version:     version.Version,
		FullVersion: version.FullVersion,
	})
}

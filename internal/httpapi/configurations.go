package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/contoso-cloud/testexec-controlplane/internal/policy"
)

// handleCreateConfiguration implements POST /configurations: body is a
// YAML UserConfiguration document; identity fields are server-assigned
// from claims, never trusted from the body (§4.3).
func (s *Server) handleCreateConfiguration(w http.ResponseWriter, r *http.Request) {
	claims, err := requireLobTeam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeError(w, r, policy.ErrInvalidRequest("could not read request body"))
		return
	}
	cfg, err := s.policyStore.CreateUserConfigurationFromYaml(r.Context(), claims.LobID, claims.TeamID, claims.UserID, body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeYAML(w, http.StatusCreated, cfg)
}

func (s *Server) handleListConfigurations(w http.ResponseWriter, r *http.Request) {
	claims, err := requireLobTeam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cfgs, err := s.policyStore.ListUserConfigurations(r.Context(), claims.LobID, claims.TeamID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeYAML(w, http.StatusOK, cfgs)
}

func (s *Server) handleGetConfiguration(w http.ResponseWriter, r *http.Request) {
	claims, err := requireLobTeam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID := mux.Vars(r)["userId"]
	cfg, err := s.policyStore.GetUserConfiguration(r.Context(), claims.LobID, claims.TeamID, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeYAML(w, http.StatusOK, cfg)
}

func (s *Server) handleUpdateConfiguration(w http.ResponseWriter, r *http.Request) {
	claims, err := requireLobTeam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID := mux.Vars(r)["userId"]
	body, err := readBody(r)
	if err != nil {
		writeError(w, r, policy.ErrInvalidRequest("could not read request body"))
		return
	}
	cfg, err := s.policyStore.UpdateUserConfigurationFromYaml(r.Context(), claims.LobID, claims.TeamID, userID, body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeYAML(w, http.StatusOK, cfg)
}

func (s *Server) handleDeleteConfiguration(w http.ResponseWriter, r *http.Request) {
	claims, err := requireLobTeam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID := mux.Vars(r)["userId"]
	if err := s.policyStore.DeleteUserConfiguration(r.Context(), claims.LobID, claims.TeamID, userID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/contoso-cloud/testexec-controlplane/internal/policy"
	"github.com/contoso-cloud/testexec-controlplane/internal/schedule"
)

// scheduleDTO is the wire shape for TestJobSchedule: DaysOfWeek/DaysOfMonth
// are JSON int arrays rather than the internal map[int]struct{} sets, and
// TimeOfDay is a single "HH:MM" string.
type scheduleDTO struct {
	ID              string  `json:"id,omitempty"`
	Name            string  `json:"name"`
	LobID           string  `json:"lobId,omitempty"`
	TeamID          string  `json:"teamId,omitempty"`
	RepoURL         string  `json:"repoUrl"`
	TestImageType   string  `json:"testImageType"`
	ScheduleType    string  `json:"scheduleType"`
	IntervalMinutes int     `json:"intervalMinutes,omitempty"`
	DaysOfWeek      []int   `json:"daysOfWeek,omitempty"`
	DaysOfMonth     []int   `json:"daysOfMonth,omitempty"`
	TimeOfDay       string  `json:"timeOfDay,omitempty"`
	ScheduledTime   *string `json:"scheduledTime,omitempty"`
	MaxRuns         *int    `json:"maxRuns,omitempty"`
	RunCount        int     `json:"runCount,omitempty"`
	IsActive        bool    `json:"isActive"`
	LastRunTime     *string `json:"lastRunTime,omitempty"`
}

func daySetToSlice(set map[int]struct{}) []int {
	if len(set) == 0 {
		return nil
	}
	out := make([]int, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	return out
}

func sliceToDaySet(days []int) map[int]struct{} {
	if len(days) == 0 {
		return nil
	}
	set := make(map[int]struct{}, len(days))
	for _, d := range days {
		set[d] = struct{}{}
	}
	return set
}

func parseTimeOfDay(raw string) (*schedule.TimeOfDay, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return nil, policy.ErrInvalidRequest("timeOfDay must be HH:MM")
	}
	return &schedule.TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func formatTimeOfDay(t *schedule.TimeOfDay) string {
	if t == nil {
		return ""
	}
	return time.Date(0, 1, 1, t.Hour, t.Minute, 0, 0, time.UTC).Format("15:04")
}

func toDTO(s schedule.TestJobSchedule) scheduleDTO {
	dto := scheduleDTO{
		ID:              s.ID,
		Name:            s.Name,
		LobID:           s.LobID,
		TeamID:          s.TeamID,
		RepoURL:         s.RepoURL,
		TestImageType:   s.TestImageType,
		ScheduleType:    string(s.ScheduleType),
		IntervalMinutes: s.IntervalMinutes,
		DaysOfWeek:      daySetToSlice(s.DaysOfWeek),
		DaysOfMonth:     daySetToSlice(s.DaysOfMonth),
		TimeOfDay:       formatTimeOfDay(s.TimeOfDay),
		MaxRuns:         s.MaxRuns,
		RunCount:        s.RunCount,
		IsActive:        s.IsActive,
	}
	if s.ScheduledTime != nil {
		v := s.ScheduledTime.UTC().Format(time.RFC3339)
		dto.ScheduledTime = &v
	}
	if s.LastRunTime != nil {
		v := s.LastRunTime.UTC().Format(time.RFC3339)
		dto.LastRunTime = &v
	}
	return dto
}

func (dto scheduleDTO) toModel(claims Claims) (schedule.TestJobSchedule, error) {
	s := schedule.TestJobSchedule{
		ID:              dto.ID,
		Name:            dto.Name,
		LobID:           claims.LobID,
		TeamID:          claims.TeamID,
		RepoURL:         dto.RepoURL,
		TestImageType:   dto.TestImageType,
		ScheduleType:    schedule.Type(dto.ScheduleType),
		IntervalMinutes: dto.IntervalMinutes,
		DaysOfWeek:      sliceToDaySet(dto.DaysOfWeek),
		DaysOfMonth:     sliceToDaySet(dto.DaysOfMonth),
		MaxRuns:         dto.MaxRuns,
		IsActive:        dto.IsActive,
		CreatedBy:       claims.UserID,
	}
	tod, err := parseTimeOfDay(dto.TimeOfDay)
	if err != nil {
		return schedule.TestJobSchedule{}, err
	}
	s.TimeOfDay = tod
	if dto.ScheduledTime != nil && *dto.ScheduledTime != "" {
		t, err := time.Parse(time.RFC3339, *dto.ScheduledTime)
		if err != nil {
			return schedule.TestJobSchedule{}, policy.ErrInvalidRequest("scheduledTime must be RFC3339")
		}
		s.ScheduledTime = &t
	}
	return s, nil
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	claims, err := requireLobTeam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var dto scheduleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, r, policy.ErrInvalidRequest("malformed request body"))
		return
	}
	model, err := dto.toModel(claims)
	if err != nil {
		writeError(w, r, err)
		return
	}
	model.ID = s.newID()
	model.IsActive = true

	if err := schedule.Validate(model); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.scheduleRepo.Create(r.Context(), model); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDTO(model))
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	claims, err := requireLobTeam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	schedules, err := s.scheduleRepo.List(r.Context(), claims.LobID, claims.TeamID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	dtos := make([]scheduleDTO, 0, len(schedules))
	for _, sc := range schedules {
		dtos = append(dtos, toDTO(sc))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	claims, err := requireLob(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id := mux.Vars(r)["id"]
	sc, err := s.scheduleRepo.Get(r.Context(), id, claims.LobID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(sc))
}

func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	claims, err := requireLobTeam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id := mux.Vars(r)["id"]

	existing, err := s.scheduleRepo.Get(r.Context(), id, claims.LobID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var dto scheduleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, r, policy.ErrInvalidRequest("malformed request body"))
		return
	}
	model, err := dto.toModel(claims)
	if err != nil {
		writeError(w, r, err)
		return
	}
	model.ID = existing.ID
	model.CreatedAt = existing.CreatedAt
	model.RunCount = existing.RunCount
	model.LastRunTime = existing.LastRunTime

	if err := schedule.Validate(model); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.scheduleRepo.Update(r.Context(), model); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(model))
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	claims, err := requireLob(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id := mux.Vars(r)["id"]
	if err := s.scheduleRepo.Delete(r.Context(), id, claims.LobID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

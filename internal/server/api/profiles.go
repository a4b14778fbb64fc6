package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ayusman/vigil/internal/config"
	"github.com/ayusman/vigil/internal/store"
)

// ProfileHandler handles HTTP requests for threshold profiles.
type ProfileHandler struct {
	store    *store.Store
	defaults config.Thresholds
}

// NewProfileHandler creates a ProfileHandler. New profiles start from
// defaults and override the fields present in the request.
func NewProfileHandler(s *store.Store, defaults config.Thresholds) *ProfileHandler {
	return &ProfileHandler{store: s, defaults: defaults}
}

// ServeHTTP routes /api/profiles and /api/profiles/{id}.
func (h *ProfileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/profiles")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type profileRequest struct {
	Name       string     `json:"name"`
	Thresholds Thresholds `json:"thresholds"`
}

type profileResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Thresholds Thresholds `json:"thresholds"`
	CreatedAt  string     `json:"created_at"`
	UpdatedAt  string     `json:"updated_at"`
}

type listProfilesResponse struct {
	Profiles []profileResponse `json:"profiles"`
}

func toProfileResponse(p *store.Profile) profileResponse {
	return profileResponse{
		ID:         p.ID,
		Name:       p.Name,
		Thresholds: ThresholdsFrom(p.Thresholds),
		CreatedAt:  p.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:  p.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// writeStoreError maps repository errors to status codes.
func writeStoreError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Profile not found")
	case errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, "Profile name already exists")
	case errors.Is(err, config.ErrInvalidConfiguration):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "Failed to "+action+" profile")
	}
}

// list handles GET /api/profiles.
func (h *ProfileHandler) list(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.store.Profiles().List()
	if err != nil {
		writeStoreError(w, err, "list")
		return
	}

	response := listProfilesResponse{
		Profiles: make([]profileResponse, 0, len(profiles)),
	}
	for _, p := range profiles {
		response.Profiles = append(response.Profiles, toProfileResponse(p))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/profiles/{id}. The id may also be a profile name.
func (h *ProfileHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	p, err := h.lookup(id)
	if err != nil {
		writeStoreError(w, err, "get")
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(p))
}

func (h *ProfileHandler) lookup(idOrName string) (*store.Profile, error) {
	p, err := h.store.Profiles().GetByID(idOrName)
	if errors.Is(err, store.ErrNotFound) {
		return h.store.Profiles().GetByName(idOrName)
	}
	return p, err
}

// create handles POST /api/profiles.
func (h *ProfileHandler) create(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}

	p := &store.Profile{
		ID:         uuid.New().String(),
		Name:       req.Name,
		Thresholds: req.Thresholds.Apply(h.defaults),
	}

	if err := h.store.Profiles().Create(p); err != nil {
		writeStoreError(w, err, "create")
		return
	}

	writeJSON(w, http.StatusCreated, toProfileResponse(p))
}

// update handles PUT /api/profiles/{id}. Absent fields keep their value.
func (h *ProfileHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	p, err := h.store.Profiles().GetByID(id)
	if err != nil {
		writeStoreError(w, err, "get")
		return
	}

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name != "" {
		p.Name = req.Name
	}
	p.Thresholds = req.Thresholds.Apply(p.Thresholds)

	if err := h.store.Profiles().Update(p); err != nil {
		writeStoreError(w, err, "update")
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(p))
}

// delete handles DELETE /api/profiles/{id}.
func (h *ProfileHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Profiles().Delete(id); err != nil {
		writeStoreError(w, err, "delete")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Resolve returns the thresholds of the named profile. An empty name selects
// the default_profile setting, falling back to the handler's defaults.
func (h *ProfileHandler) Resolve(name string) (config.Thresholds, error) {
	if name == "" {
		def, err := h.store.Settings().Get(store.SettingDefaultProfile)
		if errors.Is(err, store.ErrNotFound) || def == "" {
			return h.defaults, nil
		}
		if err != nil {
			return config.Thresholds{}, err
		}
		name = def
	}

	p, err := h.lookup(name)
	if err != nil {
		return config.Thresholds{}, err
	}
	return p.Thresholds, nil
}

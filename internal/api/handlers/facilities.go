package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/Togather-Foundation/trustdirectory/internal/apierror"
	"github.com/Togather-Foundation/trustdirectory/internal/domain/facility"
	"github.com/Togather-Foundation/trustdirectory/internal/search"
	"github.com/Togather-Foundation/trustdirectory/internal/voting"
)

// FacilitiesHandler serves the search, detail, top-picks, and vote endpoints
// (section 6).
type FacilitiesHandler struct {
	Search *search.Service
	Vote   *voting.Service
	Env    string
}

func NewFacilitiesHandler(searchSvc *search.Service, voteSvc *voting.Service, env string) *FacilitiesHandler {
	return &FacilitiesHandler{Search: searchSvc, Vote: voteSvc, Env: env}
}

type facilityResponse struct {
	ID              string  `json:"id"`
	Jurisdiction    string  `json:"jurisdiction"`
	Name            string  `json:"name"`
	StreetAddress   string  `json:"street_address,omitempty"`
	City            string  `json:"city,omitempty"`
	State           string  `json:"state,omitempty"`
	PostalCode      string  `json:"postal_code,omitempty"`
	Latitude        *float64 `json:"latitude,omitempty"`
	Longitude       *float64 `json:"longitude,omitempty"`
	TrustScore      int     `json:"trust_score"`
	Band            string  `json:"band"`
	LastInspectedAt string  `json:"last_inspected_at,omitempty"`
	Likes           int     `json:"likes"`
	Dislikes        int     `json:"dislikes"`
	VoteScore       int     `json:"vote_score"`
}

func toFacilityResponse(f facility.Facility) facilityResponse {
	resp := facilityResponse{
		ID:            f.ID,
		Jurisdiction:  f.Jurisdiction,
		Name:          f.Name,
		StreetAddress: f.StreetAddress,
		City:          f.City,
		State:         f.State,
		PostalCode:    f.PostalCode,
		Latitude:      f.Latitude,
		Longitude:     f.Longitude,
		TrustScore:    f.TrustScore,
		Band:          string(f.Band),
		Likes:         f.Likes,
		Dislikes:      f.Dislikes,
		VoteScore:     f.VoteScore(),
	}
	if f.LastInspectedAt != nil {
		resp.LastInspectedAt = f.LastInspectedAt.Format("2006-01-02")
	}
	return resp
}

type searchResponse struct {
	Items       []facilityResponse `json:"items"`
	TotalCount  int                `json:"total_count"`
	Page        int                `json:"page"`
	PageSize    int                `json:"page_size"`
	SliceCounts map[string]int     `json:"slice_counts"`
}

// List handles GET /api/v1/facilities.
func (h *FacilitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	q, err := h.Search.ParseQuery(r.URL.Query())
	if err != nil {
		apierror.Write(w, r, apierror.KindValidation, "invalid search query", err, h.Env)
		return
	}

	page, err := h.Search.Search(r.Context(), q)
	if err != nil {
		apierror.Write(w, r, apierror.KindRepository, "search failed", err, h.Env)
		return
	}

	items := make([]facilityResponse, 0, len(page.Items))
	for _, f := range page.Items {
		items = append(items, toFacilityResponse(f))
	}
	counts := make(map[string]int, len(page.SliceCounts))
	for slice, count := range page.SliceCounts {
		counts[string(slice)] = count
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Items:       items,
		TotalCount:  page.TotalCount,
		Page:        page.Page,
		PageSize:    page.PageSize,
		SliceCounts: counts,
	})
}

// Get handles GET /api/v1/facilities/{id}.
func (h *FacilitiesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(pathParam(r, "id"))
	if id == "" {
		apierror.Write(w, r, apierror.KindValidation, "missing facility id", nil, h.Env)
		return
	}

	f, err := h.Search.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, facility.ErrNotFound) {
			apierror.Write(w, r, apierror.KindNotFound, "facility not found", err, h.Env)
			return
		}
		apierror.Write(w, r, apierror.KindRepository, "lookup failed", err, h.Env)
		return
	}

	writeJSON(w, http.StatusOK, toFacilityResponse(f))
}

// TopPicks handles GET /api/v1/facilities/top-picks.
func (h *FacilitiesHandler) TopPicks(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			apierror.Write(w, r, apierror.KindValidation, "limit must be an integer", err, h.Env)
			return
		}
		limit = parsed
	}

	picks, err := h.Search.TopPicks(r.Context(), limit)
	if err != nil {
		if errors.Is(err, search.ErrInvalidQuery) {
			apierror.Write(w, r, apierror.KindValidation, "invalid limit", err, h.Env)
			return
		}
		apierror.Write(w, r, apierror.KindRepository, "top picks failed", err, h.Env)
		return
	}

	items := make([]facilityResponse, 0, len(picks))
	for _, f := range picks {
		items = append(items, toFacilityResponse(f))
	}
	writeJSON(w, http.StatusOK, struct {
		Items []facilityResponse `json:"items"`
	}{Items: items})
}

type voteRequest struct {
	Kind string `json:"kind"`
}

// Vote handles POST /api/v1/facilities/{id}/vote. The client identity comes
// from the X-Client-Id header the transport layer assigns (section 4.7: the
// core treats it as an opaque bytestring; this API surface takes it from a
// caller-supplied header value rather than account identity).
func (h *FacilitiesHandler) Vote(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(pathParam(r, "id"))
	if id == "" {
		apierror.Write(w, r, apierror.KindValidation, "missing facility id", nil, h.Env)
		return
	}

	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.Write(w, r, apierror.KindValidation, "malformed request body", err, h.Env)
		return
	}

	clientID := strings.TrimSpace(r.Header.Get("X-Client-Id"))
	if clientID == "" {
		apierror.Write(w, r, apierror.KindValidation, "missing X-Client-Id header", nil, h.Env)
		return
	}

	summary, err := h.Vote.Vote(r.Context(), clientID, id, facility.VoteKind(req.Kind), timeNow())
	if err != nil {
		switch {
		case errors.Is(err, voting.ErrInvalidVote):
			apierror.Write(w, r, apierror.KindValidation, "kind must be like or dislike", err, h.Env)
		case errors.Is(err, voting.ErrRateLimited):
			apierror.Write(w, r, apierror.KindRateLimited, "vote rate limit exceeded", err, h.Env)
		case errors.Is(err, facility.ErrNotFound):
			apierror.Write(w, r, apierror.KindNotFound, "facility not found", err, h.Env)
		default:
			apierror.Write(w, r, apierror.KindRepository, "vote failed", err, h.Env)
		}
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Likes     int `json:"likes"`
		Dislikes  int `json:"dislikes"`
		VoteScore int `json:"vote_score"`
	}{Likes: summary.Likes, Dislikes: summary.Dislikes, VoteScore: summary.VoteScore})
}

package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ewilliams-labs/moodlist/internal/core/domain"
)

type recommendationResponse struct {
	Tier           domain.Tier         `json:"tier"`
	Emotion        domain.EmotionLabel `json:"emotion"`
	MatchedEmotion string              `json:"matched_emotion,omitempty"`
	Languages      []string            `json:"languages"`
	Playlists      []playlistResponse  `json:"playlists"`
	Code           string              `json:"code,omitempty"`
}

func toRecommendationResponse(res domain.RecommendationResult) recommendationResponse {
	out := recommendationResponse{
		Tier:           res.Tier,
		Emotion:        res.Emotion,
		MatchedEmotion: res.MatchedEmotion,
		Languages:      res.Languages,
		Playlists:      toPlaylistResponses(res.Playlists),
	}
	if res.Empty() {
		out.Code = codeNoMatch
	}
	return out
}

// Recommend handles GET /recommendations?emotion=&languages=
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.svc.Recommend(r.Context(), q.Get("emotion"), splitList(q["languages"]))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecommendationResponse(res))
}

// SessionRecommendations handles GET /sessions/{id}/recommendations
func (h *Handler) SessionRecommendations(w http.ResponseWriter, r *http.Request) {
	res, err := h.sessions.Recommend(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecommendationResponse(res))
}

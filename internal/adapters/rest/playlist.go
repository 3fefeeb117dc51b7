package rest

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ewilliams-labs/moodlist/internal/core/domain"
)

type songPayload struct {
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	URL         string `json:"url,omitempty"`
	YouTubeID   string `json:"youtube_id,omitempty"`
	PlaybackURL string `json:"playback_url,omitempty"`
}

func (s songPayload) toDomain() domain.Song {
	return domain.Song{Title: s.Title, Artist: s.Artist, URL: s.URL, YouTubeID: s.YouTubeID}
}

type playlistResponse struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Language  string        `json:"language"`
	Emotion   string        `json:"emotion"`
	Songs     []songPayload `json:"songs"`
	CreatedAt time.Time     `json:"created_at"`
}

func toPlaylistResponse(p domain.Playlist) playlistResponse {
	songs := make([]songPayload, 0, len(p.Songs))
	for _, s := range p.Songs {
		songs = append(songs, songPayload{
			Title:       s.Title,
			Artist:      s.Artist,
			URL:         s.URL,
			YouTubeID:   s.YouTubeID,
			PlaybackURL: s.PlaybackURL(),
		})
	}
	return playlistResponse{
		ID:        p.ID,
		Name:      p.Name,
		Language:  p.Language,
		Emotion:   p.Emotion,
		Songs:     songs,
		CreatedAt: p.CreatedAt,
	}
}

func toPlaylistResponses(pls []domain.Playlist) []playlistResponse {
	out := make([]playlistResponse, 0, len(pls))
	for _, p := range pls {
		out = append(out, toPlaylistResponse(p))
	}
	return out
}

// splitList parses a comma-separated query value. Repeated parameters are
// accepted too: ?languages=English&languages=Hindi.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

type createPlaylistRequest struct {
	Name     string        `json:"name"`
	Language string        `json:"language"`
	Emotion  string        `json:"emotion"`
	Songs    []songPayload `json:"songs"`
}

// CreatePlaylist handles POST /playlists
func (h *Handler) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	// 1. Decode Request
	var req createPlaylistRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	// 2. Call Service
	songs := make([]domain.Song, 0, len(req.Songs))
	for _, s := range req.Songs {
		songs = append(songs, s.toDomain())
	}
	playlist, err := h.svc.CreatePlaylist(r.Context(), req.Name, req.Language, req.Emotion, songs)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// 3. Respond
	w.Header().Set("Location", "/playlists/"+playlist.ID)
	writeJSON(w, http.StatusCreated, toPlaylistResponse(playlist))
}

// GetPlaylist handles GET /playlists/{id}
func (h *Handler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	playlist, err := h.svc.GetPlaylist(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlaylistResponse(playlist))
}

// ListPlaylists handles GET /playlists?emotion=&languages=
func (h *Handler) ListPlaylists(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pls, err := h.svc.QueryPlaylists(r.Context(), q.Get("emotion"), splitList(q["languages"]))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlaylistResponses(pls))
}

// AddSong handles POST /playlists/{id}/songs
func (h *Handler) AddSong(w http.ResponseWriter, r *http.Request) {
	var req songPayload
	if !decodeJSON(w, r, &req) {
		return
	}
	playlist, err := h.svc.AddSongToPlaylist(r.Context(), chi.URLParam(r, "id"), req.toDomain())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlaylistResponse(playlist))
}

// SeedPlaylists handles POST /playlists/seed
func (h *Handler) SeedPlaylists(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.SeedPlaylists(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.logger.Info().Int("count", n).Msg("playlists seeded")
	writeJSON(w, http.StatusOK, map[string]int{"seeded": n})
}

package catalog

import (
	"time"

	"github.com/ewilliams-labs/moodlist/internal/core/domain"
)

type wireSong struct {
	Title     string `json:"title"`
	Artist    string `json:"artist,omitempty"`
	URL       string `json:"url,omitempty"`
	YouTubeID string `json:"youtube_id,omitempty"`
}

type wirePlaylist struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Language  string     `json:"language"`
	Emotion   string     `json:"emotion"`
	Songs     []wireSong `json:"songs"`
	CreatedAt time.Time  `json:"created_at"`
}

func mapPlaylistToDomain(p wirePlaylist) domain.Playlist {
	out := domain.Playlist{
		ID:        p.ID,
		Name:      p.Name,
		Language:  p.Language,
		Emotion:   domain.NormalizeEmotion(p.Emotion),
		CreatedAt: p.CreatedAt,
		Songs:     make([]domain.Song, 0, len(p.Songs)),
	}
	for _, s := range p.Songs {
		out.Songs = append(out.Songs, domain.Song{
			Title:     s.Title,
			Artist:    s.Artist,
			URL:       s.URL,
			YouTubeID: s.YouTubeID,
		})
	}
	return out
}

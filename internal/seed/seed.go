// Package seed provides the bundled sample playlist catalog.
package seed

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/ewilliams-labs/moodlist/internal/core/domain"
)

//go:embed playlists.yaml
var bundled []byte

type songDoc struct {
	Title     string `yaml:"title"`
	Artist    string `yaml:"artist"`
	URL       string `yaml:"url"`
	YouTubeID string `yaml:"youtube_id"`
}

type playlistDoc struct {
	Name     string    `yaml:"name"`
	Language string    `yaml:"language"`
	Emotion  string    `yaml:"emotion"`
	Songs    []songDoc `yaml:"songs"`
}

// Playlists decodes the bundled catalog with fresh IDs.
func Playlists() ([]domain.Playlist, error) {
	return Parse(bundled)
}

// Parse decodes a YAML playlist catalog. Every playlist gets a new UUID and
// a CreatedAt one millisecond after the previous one so catalog order is
// preserved by stores that sort on it.
func Parse(data []byte) ([]domain.Playlist, error) {
	var docs []playlistDoc
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("seed: decode catalog: %w", err)
	}

	base := time.Now().UTC()
	out := make([]domain.Playlist, 0, len(docs))
	for i, d := range docs {
		p, err := domain.NewPlaylist(uuid.NewString(), d.Name, d.Language, d.Emotion)
		if err != nil {
			return nil, fmt.Errorf("seed: playlist %d: %w", i, err)
		}
		for _, s := range d.Songs {
			song := domain.Song{Title: s.Title, Artist: s.Artist, URL: s.URL, YouTubeID: s.YouTubeID}
			if err := p.AddSong(song); err != nil {
				return nil, fmt.Errorf("seed: playlist %q song %q: %w", p.Name, s.Title, err)
			}
		}
		p.CreatedAt = base.Add(time.Duration(i) * time.Millisecond)
		out = append(out, *p)
	}
	return out, nil
}

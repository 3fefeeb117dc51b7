package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrDuplicateSong = errors.New("domain: duplicate song")

// Playlist is a named song list tagged with one language and one emotion.
type Playlist struct {
	ID        string
	Name      string
	Language  string
	Emotion   StoreEmotion
	Songs     []Song
	CreatedAt time.Time
}

func NewPlaylist(id, name, language, emotion string) (*Playlist, error) {
	name = strings.TrimSpace(name)
	language = strings.TrimSpace(language)
	emotion = NormalizeEmotion(emotion)
	if id == "" || name == "" || language == "" || emotion == "" {
		return nil, fmt.Errorf("%w: playlist requires id, name, language and emotion", ErrInvalidInput)
	}
	return &Playlist{
		ID:       id,
		Name:     name,
		Language: language,
		Emotion:  emotion,
		Songs:    []Song{},
	}, nil
}

// AddSong appends a song unless the playlist already holds one with the same
// URL or YouTube ID, in which case it returns ErrDuplicateSong.
func (p *Playlist) AddSong(s Song) error {
	if strings.TrimSpace(s.Title) == "" {
		return fmt.Errorf("%w: song title is required", ErrInvalidInput)
	}
	for _, ex := range p.Songs {
		if s.URL != "" && ex.URL == s.URL {
			return ErrDuplicateSong
		}
		if s.YouTubeID != "" && ex.YouTubeID == s.YouTubeID {
			return ErrDuplicateSong
		}
	}
	p.Songs = append(p.Songs, s)
	return nil
}

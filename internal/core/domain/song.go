package domain

import "strings"

const youTubeWatchURL = "https://www.youtube.com/watch?v="

// Song represents a playable entry of a playlist.
type Song struct {
	Title     string
	Artist    string
	URL       string
	YouTubeID string // optional, used when URL is empty
}

// PlaybackURL returns the URL to open for this song, falling back to a
// YouTube watch URL built from the YouTube ID.
func (s Song) PlaybackURL() string {
	if s.URL != "" {
		return s.URL
	}
	if s.YouTubeID != "" {
		return youTubeWatchURL + s.YouTubeID
	}
	return ""
}

// OnYouTube reports whether the song plays through YouTube.
func (s Song) OnYouTube() bool {
	return s.YouTubeID != "" || strings.Contains(s.URL, "youtube.com")
}

package announcers

import "time"

// Event is the payload announced downstream after an episode is published.
type Event struct {
	Episode     int       `json:"episode"`
	Title       string    `json:"title"`
	PostPath    string    `json:"post_path"`
	AudioPath   string    `json:"audio_path"`
	Duration    string    `json:"duration"`
	PublishedAt time.Time `json:"published_at"`
}

// NewEvent constructs an Event for the given episode post.
func NewEvent(episode int, title, postPath, audioPath, duration string) Event {
	return Event{
		Episode:     episode,
		Title:       title,
		PostPath:    postPath,
		AudioPath:   audioPath,
		Duration:    duration,
		PublishedAt: time.Now().UTC(),
	}
}

package notifiers

import "time"

// Event is the payload sent downstream for every post created on Bluesky.
type Event struct {
	Channel  string    `json:"channel"`
	Title    string    `json:"title"`
	URL      string    `json:"url"`
	PostURI  string    `json:"post_uri"`
	PostedAt time.Time `json:"posted_at"`
}

// NewEvent builds an Event stamped with the current UTC time.
func NewEvent(channel, title, url, postURI string) Event {
	return Event{
		Channel:  channel,
		Title:    title,
		URL:      url,
		PostURI:  postURI,
		PostedAt: time.Now().UTC(),
	}
}

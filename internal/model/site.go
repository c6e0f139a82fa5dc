package model

import "time"

type Site struct {
	ID          int64     `json:"id"`
	ShortName   string    `json:"short_name"`
	Title       string    `json:"title"`
	FeedPINHash string    `json:"-"`
	HasFeedPIN  bool      `json:"has_feed_pin"`
	CreatedAt   time.Time `json:"created_at"`
}

package models

// InvalidateCacheRequest names the session whose cached data is dropped.
type InvalidateCacheRequest struct {
	Year    int    `json:"year"`
	Race    string `json:"race"`
	Session string `json:"session,omitempty"`
}

// InvalidateCacheResponse reports how many cache entries were dropped.
type InvalidateCacheResponse struct {
	Session string `json:"session"`
	Removed int64  `json:"removed"`
}

package model

import "time"

// Hold represents the short-lived exclusive claim a page holds on a set of
// seats.  The backend issues the token; a page keeps at most one active
// token and passes it back as the previous token whenever the selection
// changes so the backend can swap the claim atomically.
//
// Fields:
//  Token      – opaque hold token returned by the backend.
//  ShowtimeID – showtime the seats belong to.
//  SeatIDs    – seats covered by the hold.
//  ExpiresAt  – server-side expiry; the countdown runs against it.
type Hold struct {
	Token      string    `json:"holdToken"`
	ShowtimeID int64     `json:"showtimeId"`
	SeatIDs    []int64   `json:"seatIds,omitempty"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Active reports whether the hold has a token and has not yet expired at now.
func (h Hold) Active(now time.Time) bool {
	return h.Token != "" && now.Before(h.ExpiresAt)
}

// StoredHold is the record persisted between page instances so that a hold
// abandoned by a crashed or killed page can be released on the next mount.
type StoredHold struct {
	ShowtimeID int64  `json:"showtimeId"`
	HoldToken  string `json:"holdToken"`
}

package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// SeatStatus is the backend availability of a seat for one showtime.
type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatHeld      SeatStatus = "HELD"
	SeatSold      SeatStatus = "SOLD"
	SeatDisabled  SeatStatus = "DISABLED"
)

// ParseSeatStatus normalises a status string.  Anything unknown is treated
// as DISABLED so that a seat the client cannot reason about is never
// offered for selection.
func ParseSeatStatus(s string) SeatStatus {
	switch SeatStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case SeatAvailable:
		return SeatAvailable
	case SeatHeld:
		return SeatHeld
	case SeatSold, "BOOKED", "RESERVED":
		return SeatSold
	default:
		return SeatDisabled
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *SeatStatus) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		*s = SeatDisabled
		return nil
	}
	*s = ParseSeatStatus(raw)
	return nil
}

// SeatType is the pricing class of a seat.
type SeatType string

const (
	SeatStandard SeatType = "STANDARD"
	SeatVIP      SeatType = "VIP"
	SeatCouple   SeatType = "COUPLE"
)

// ParseSeatType normalises a seat type name ("Couple", "vip", ...).
// Unknown names fall back to STANDARD.
func ParseSeatType(s string) SeatType {
	switch SeatType(strings.ToUpper(strings.TrimSpace(s))) {
	case SeatVIP:
		return SeatVIP
	case SeatCouple:
		return SeatCouple
	default:
		return SeatStandard
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *SeatType) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		*t = SeatStandard
		return nil
	}
	*t = ParseSeatType(raw)
	return nil
}

// Seat describes one seat of a showtime as reported by the seat-map
// endpoint.  The same shape is used for the snapshot embedded in the page
// at mount time.
//
// Fields:
//  ID            – seat identifier, unique within the auditorium.
//  RowLabel      – row letter.
//  Number        – seat number within the row.
//  Label         – display label such as "F7".
//  Type          – STANDARD, VIP or COUPLE.
//  CoupleGroupID – shared by the members of a couple seat (COUPLE only).
//  Price         – effective price for this showtime.
//  Status        – AVAILABLE, HELD, SOLD or DISABLED.
//  Selectable    – backend's view of whether the seat can be picked.
//  HoldUserID    – holder (or booker) of a HELD seat.
//  Selected      – pre-selected in the mount snapshot (restored hold).
type Seat struct {
	ID            int64      `json:"seatId"`
	RowLabel      string     `json:"rowLabel,omitempty"`
	Number        int        `json:"seatNumber,omitempty"`
	Label         string     `json:"seatLabel"`
	Type          SeatType   `json:"seatType"`
	CoupleGroupID string     `json:"coupleGroupId,omitempty"`
	Price         Amount     `json:"price"`
	Status        SeatStatus `json:"status"`
	Selectable    bool       `json:"selectable"`
	HoldUserID    *int64     `json:"holdUserId,omitempty"`
	Selected      bool       `json:"selected,omitempty"`
}

// DisplayLabel returns Label, or row label plus number when the backend
// omitted it.
func (s Seat) DisplayLabel() string {
	if s.Label != "" {
		return s.Label
	}
	if s.RowLabel != "" && s.Number > 0 {
		return s.RowLabel + strconv.Itoa(s.Number)
	}
	return "#" + strconv.FormatInt(s.ID, 10)
}

// IsCouple reports whether clicks on the seat must toggle its whole group.
func (s Seat) IsCouple() bool {
	return s.Type == SeatCouple && s.CoupleGroupID != ""
}

// HeldBy reports whether the seat is HELD by the given user.
func (s Seat) HeldBy(userID int64) bool {
	return s.Status == SeatHeld && s.HoldUserID != nil && userID != 0 && *s.HoldUserID == userID
}

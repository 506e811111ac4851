package model

// HandEventType classifies how a hand ended from one player's perspective.
type HandEventType int

// Hand outcomes.
const (
	HandUnknown HandEventType = iota
	HandTsumo
	HandRon
	HandDraw
	HandAbortiveDraw
	HandChombo
)

// ParseHandEventType maps the stored event name onto the typed enum.
func ParseHandEventType(s string) HandEventType {
	switch s {
	case "tsumo":
		return HandTsumo
	case "ron":
		return HandRon
	case "draw":
		return HandDraw
	case "abortive_draw":
		return HandAbortiveDraw
	case "chombo":
		return HandChombo
	default:
		return HandUnknown
	}
}

func (t HandEventType) String() string {
	switch t {
	case HandTsumo:
		return "tsumo"
	case HandRon:
		return "ron"
	case HandDraw:
		return "draw"
	case HandAbortiveDraw:
		return "abortive_draw"
	case HandChombo:
		return "chombo"
	default:
		return "unknown"
	}
}

// IsWin reports whether the hand ended with a winner.
func (t HandEventType) IsWin() bool { return t == HandTsumo || t == HandRon }

// HandEvent is one player's row for one hand of a game. WinnerSeat, LoserSeat
// and DealerSeat are nil when the recorder did not capture them.
type HandEvent struct {
	GameID         string        `json:"game_id"`
	HandSeq        int           `json:"hand_seq"`
	Seat           Seat          `json:"seat"`
	Type           HandEventType `json:"type"`
	RiichiDeclared bool          `json:"riichi_declared"`
	PointsDelta    int           `json:"points_delta"`
	WinnerSeat     *Seat         `json:"winner_seat,omitempty"`
	LoserSeat      *Seat         `json:"loser_seat,omitempty"`
	DealerSeat     *Seat         `json:"dealer_seat,omitempty"`
}

// Won reports whether this player won the hand.
func (e *HandEvent) Won() bool {
	return e.Type.IsWin() && e.WinnerSeat != nil && *e.WinnerSeat == e.Seat
}

// DealtIn reports whether this player discarded the winning tile.
func (e *HandEvent) DealtIn() bool {
	return e.Type == HandRon && e.LoserSeat != nil && *e.LoserSeat == e.Seat
}

// IsDealer reports whether this player was dealer for the hand.
func (e *HandEvent) IsDealer() bool {
	return e.DealerSeat != nil && *e.DealerSeat == e.Seat
}

// Package sqlite persists games, hand events and rating configurations in a
// SQLite database. It is the production GameSource and ConfigStore.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/okian/mjrating/internal/domain/model"
	"github.com/okian/mjrating/internal/domain/ratingconfig"
	"github.com/okian/mjrating/pkg/logger"
	"github.com/okian/mjrating/pkg/metrics"
)

// Store is a SQLite backed game and configuration store.
type Store struct {
	db      *sql.DB
	log     logger.Logger
	maxOpen int
}

// Open connects to dsn and creates the schema when missing.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	s := &Store{log: logger.Get().Named("sqlite"), maxOpen: 1}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dsn, err)
	}
	db.SetMaxOpenConns(s.maxOpen)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dsn, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	s.db = db
	s.log.Debug(ctx, "sqlite store opened", logger.String("dsn", dsn))
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// AddGame stores a game together with its hand events in one transaction.
func (s *Store) AddGame(ctx context.Context, g model.GameRecord, hands ...model.HandEvent) (err error) {
	if g.GameID == "" {
		return fmt.Errorf("%w: empty game id", ErrInvalidGame)
	}
	for _, h := range hands {
		if h.GameID != g.GameID {
			return fmt.Errorf("%w: hand event for %q attached to %q", ErrInvalidGame, h.GameID, g.GameID)
		}
	}
	defer observe(time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO games (game_id, played_at) VALUES (?, ?)`,
		g.GameID, g.Date.UTC().UnixNano()); err != nil {
		if isConstraint(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateGame, g.GameID)
		}
		return fmt.Errorf("insert game %s: %w", g.GameID, err)
	}
	for seat, r := range g.Seats {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO seats (game_id, seat, player_id, final_score) VALUES (?, ?, ?, ?)`,
			g.GameID, seat, r.PlayerID, r.FinalScore); err != nil {
			return fmt.Errorf("insert seat %d of %s: %w", seat, g.GameID, err)
		}
	}
	for _, h := range hands {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO hand_events (game_id, hand_seq, seat, event_type, riichi, points_delta, winner_seat, loser_seat, dealer_seat)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			h.GameID, h.HandSeq, int(h.Seat), h.Type.String(), h.RiichiDeclared, h.PointsDelta,
			seatValue(h.WinnerSeat), seatValue(h.LoserSeat), seatValue(h.DealerSeat)); err != nil {
			if isConstraint(err) {
				return fmt.Errorf("%w: hand %d seat %s of %s", ErrInvalidGame, h.HandSeq, h.Seat, h.GameID)
			}
			return fmt.Errorf("insert hand %d of %s: %w", h.HandSeq, g.GameID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", g.GameID, err)
	}
	return nil
}

// CountGames returns the number of stored games.
func (s *Store) CountGames(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM games`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count games: %w", err)
	}
	return n, nil
}

// Games returns the games whose date falls on a day inside tr, ordered by
// date then id.
func (s *Store) Games(ctx context.Context, tr ratingconfig.TimeRange) ([]model.GameRecord, error) {
	lo, hi, err := window(tr)
	if err != nil {
		return nil, err
	}
	defer observe(time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT g.game_id, g.played_at, s.seat, s.player_id, s.final_score
		FROM games g JOIN seats s ON s.game_id = g.game_id
		WHERE g.played_at >= ? AND g.played_at < ?
		ORDER BY g.played_at, g.game_id, s.seat`, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("query games: %w", err)
	}
	defer rows.Close()

	var out []model.GameRecord
	for rows.Next() {
		var (
			id       string
			playedAt int64
			seat     int
			r        model.SeatResult
		)
		if err := rows.Scan(&id, &playedAt, &seat, &r.PlayerID, &r.FinalScore); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		if n := len(out); n == 0 || out[n-1].GameID != id {
			out = append(out, model.GameRecord{GameID: id, Date: time.Unix(0, playedAt).UTC()})
		}
		out[len(out)-1].Seats[seat] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate games: %w", err)
	}
	return out, nil
}

// HandEvents returns the hand rows of the games Games would return.
func (s *Store) HandEvents(ctx context.Context, tr ratingconfig.TimeRange) ([]model.HandEvent, error) {
	lo, hi, err := window(tr)
	if err != nil {
		return nil, err
	}
	defer observe(time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT h.game_id, h.hand_seq, h.seat, h.event_type, h.riichi, h.points_delta,
		       h.winner_seat, h.loser_seat, h.dealer_seat
		FROM hand_events h JOIN games g ON g.game_id = h.game_id
		WHERE g.played_at >= ? AND g.played_at < ?
		ORDER BY g.played_at, h.game_id, h.hand_seq, h.seat`, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("query hand events: %w", err)
	}
	defer rows.Close()

	var out []model.HandEvent
	for rows.Next() {
		var (
			h                     model.HandEvent
			seat                  int
			kind                  string
			winner, loser, dealer sql.NullInt64
		)
		if err := rows.Scan(&h.GameID, &h.HandSeq, &seat, &kind, &h.RiichiDeclared, &h.PointsDelta,
			&winner, &loser, &dealer); err != nil {
			return nil, fmt.Errorf("scan hand event: %w", err)
		}
		h.Seat = model.Seat(seat)
		h.Type = model.ParseHandEventType(kind)
		h.WinnerSeat = seatPtr(winner)
		h.LoserSeat = seatPtr(loser)
		h.DealerSeat = seatPtr(dealer)
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hand events: %w", err)
	}
	return out, nil
}

// Put stores the canonical document of cfg under hash. Existing hashes are
// left untouched.
func (s *Store) Put(ctx context.Context, hash string, cfg ratingconfig.Configuration) error {
	doc := ratingconfig.Encode(cfg.Document())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO configurations (hash, document, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (hash) DO NOTHING`,
		hash, string(doc), time.Now().UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("store configuration %s: %w", hash, err)
	}
	return nil
}

// Get loads and re-validates the configuration stored under hash.
func (s *Store) Get(ctx context.Context, hash string) (ratingconfig.Configuration, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM configurations WHERE hash = ?`, hash).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return ratingconfig.Configuration{}, fmt.Errorf("%w: %s", ratingconfig.ErrUnknownConfiguration, hash)
	}
	if err != nil {
		return ratingconfig.Configuration{}, fmt.Errorf("load configuration %s: %w", hash, err)
	}
	return ratingconfig.Parse([]byte(doc))
}

// List returns every stored hash in ascending order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT hash FROM configurations ORDER BY hash`)
	if err != nil {
		return nil, fmt.Errorf("list configurations: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan configuration: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// window turns tr into a half-open nanosecond interval. The end date is
// inclusive, so the upper bound is the following midnight.
func window(tr ratingconfig.TimeRange) (lo, hi int64, err error) {
	start, end, err := tr.Bounds()
	if err != nil {
		return 0, 0, err
	}
	lo, hi = minUnixNano, maxUnixNano
	if !start.IsZero() {
		lo = start.UnixNano()
	}
	if !end.IsZero() {
		hi = end.AddDate(0, 0, 1).UnixNano()
	}
	return lo, hi, nil
}

const (
	minUnixNano = -1 << 63
	maxUnixNano = 1<<63 - 1
)

func observe(start time.Time) {
	metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
}

func isConstraint(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
}

func seatValue(s *model.Seat) any {
	if s == nil {
		return nil
	}
	return int(*s)
}

func seatPtr(v sql.NullInt64) *model.Seat {
	if !v.Valid {
		return nil
	}
	s := model.Seat(v.Int64)
	return &s
}

package sqlite

const schema = `
CREATE TABLE IF NOT EXISTS games (
	game_id   TEXT PRIMARY KEY,
	played_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS games_played_at ON games (played_at);

CREATE TABLE IF NOT EXISTS seats (
	game_id     TEXT NOT NULL REFERENCES games (game_id) ON DELETE CASCADE,
	seat        INTEGER NOT NULL CHECK (seat BETWEEN 0 AND 3),
	player_id   TEXT NOT NULL,
	final_score INTEGER NOT NULL,
	PRIMARY KEY (game_id, seat)
);

CREATE TABLE IF NOT EXISTS hand_events (
	game_id      TEXT NOT NULL REFERENCES games (game_id) ON DELETE CASCADE,
	hand_seq     INTEGER NOT NULL,
	seat         INTEGER NOT NULL CHECK (seat BETWEEN 0 AND 3),
	event_type   TEXT NOT NULL,
	riichi       INTEGER NOT NULL DEFAULT 0,
	points_delta INTEGER NOT NULL,
	winner_seat  INTEGER,
	loser_seat   INTEGER,
	dealer_seat  INTEGER,
	PRIMARY KEY (game_id, hand_seq, seat)
);

CREATE TABLE IF NOT EXISTS configurations (
	hash       TEXT PRIMARY KEY,
	document   TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
`

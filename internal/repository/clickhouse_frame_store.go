package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"MatchPulse/internal/domain/models"
	applogger "MatchPulse/pkg/logger"
)

// ClickHouseFrameStore reads the rolling compacted views: per-minute odds
// OHLC, per-minute event summaries, the combined match-live frame, and the
// 5-minute stat progression.
type ClickHouseFrameStore struct {
	db     *sql.DB
	dbName string
	logger *applogger.Logger
}

// NewClickHouseFrameStore creates the frame store.
func NewClickHouseFrameStore(db *sql.DB, dbName string, logger *applogger.Logger) *ClickHouseFrameStore {
	return &ClickHouseFrameStore{db: db, dbName: dbName, logger: logger}
}

func (s *ClickHouseFrameStore) table(name string) string {
	return s.dbName + "." + name
}

// RefreshViews re-materializes each rolling view over the trailing window.
// The views are ReplacingMergeTree tables keyed on their bucket, so
// re-inserting the window is idempotent. A failure on one view is logged
// and the remaining views still refresh; the combined view is refreshed
// last so it reads the window just written.
func (s *ClickHouseFrameStore) RefreshViews(ctx context.Context, window time.Duration) error {
	since := time.Now().Add(-window)

	refreshes := []struct {
		view  string
		query string
	}{
		{"mv_odds_1m", fmt.Sprintf(`
            INSERT INTO %s
            SELECT match_id, toStartOfMinute(ts) AS bucket,
                   argMax(home_odds, ts), argMax(draw_odds, ts), argMax(away_odds, ts),
                   argMax(home_odds, ts) - argMin(home_odds, ts),
                   argMax(draw_odds, ts) - argMin(draw_odds, ts),
                   argMax(away_odds, ts) - argMin(away_odds, ts)
            FROM %s WHERE ts >= ? GROUP BY match_id, bucket
        `, s.table("mv_odds_1m"), s.table("odds_ticks"))},
		{"mv_events_1m", fmt.Sprintf(`
            INSERT INTO %s
            SELECT match_id, toStartOfMinute(ts) AS bucket,
                   toInt32(countIf(type = 'goal')),
                   toInt32(countIf(type IN ('yellow_card', 'red_card'))),
                   toInt32(countIf(type = 'corner')),
                   toInt32(count()),
                   max(home_score), max(away_score)
            FROM %s WHERE ts >= ? GROUP BY match_id, bucket
        `, s.table("mv_events_1m"), s.table("event_ticks"))},
		{"mv_stats_5m", fmt.Sprintf(`
            INSERT INTO %s
            SELECT match_id, toStartOfFiveMinutes(ts) AS bucket, team_id,
                   avg(possession), max(shots), max(shots_on_goal), max(corners)
            FROM %s WHERE ts >= ? GROUP BY match_id, bucket, team_id
        `, s.table("mv_stats_5m"), s.table("stat_ticks"))},
		{"mv_match_live_1m", fmt.Sprintf(`
            INSERT INTO %s
            SELECT o.match_id, o.bucket,
                   e.home_score, e.away_score,
                   o.home_odds, o.draw_odds, o.away_odds,
                   o.home_delta, o.draw_delta, o.away_delta,
                   e.goals, e.cards, e.corners, e.events_total
            FROM %s o
            LEFT JOIN %s e ON o.match_id = e.match_id AND o.bucket = e.bucket
            WHERE o.bucket >= ?
        `, s.table("mv_match_live_1m"), s.table("mv_odds_1m"), s.table("mv_events_1m"))},
	}

	var failed int
	for _, r := range refreshes {
		if _, err := s.db.ExecContext(ctx, r.query, since); err != nil {
			failed++
			s.logger.Warn("view refresh failed",
				applogger.String("view", r.view),
				applogger.Any("since", since),
				applogger.Error(err),
			)
		}
	}
	if failed == len(refreshes) {
		return errors.New("all view refreshes failed")
	}
	return nil
}

// LatestFrameRow returns the newest combined per-minute row for a match, or
// nil when the view has none.
func (s *ClickHouseFrameStore) LatestFrameRow(ctx context.Context, matchID int64) (*models.FrameRow, error) {
	q := fmt.Sprintf(`
        SELECT bucket, match_id, home_score, away_score,
               home_odds, draw_odds, away_odds,
               home_delta, draw_delta, away_delta,
               goals, cards, corners, events_total
        FROM %s
        WHERE match_id = ?
        ORDER BY bucket DESC
        LIMIT 1
    `, s.table("mv_match_live_1m"))

	var r models.FrameRow
	err := s.db.QueryRowContext(ctx, q, matchID).Scan(
		&r.Bucket, &r.MatchID, &r.HomeScore, &r.AwayScore,
		&r.Odds.HomeOdds, &r.Odds.DrawOdds, &r.Odds.AwayOdds,
		&r.Odds.HomeDelta, &r.Odds.DrawDelta, &r.Odds.AwayDelta,
		&r.Events.Goals, &r.Events.Cards, &r.Events.Corners, &r.Events.Total,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest frame row: %w", err)
	}
	return &r, nil
}

// LatestTeamStats returns up to n newest per-team stat rows for a match
// from the 5-minute progression view.
func (s *ClickHouseFrameStore) LatestTeamStats(ctx context.Context, matchID int64, n int) ([]models.TeamStatLine, error) {
	q := fmt.Sprintf(`
        SELECT match_id, bucket, team_id, possession, shots, shots_on_goal, corners
        FROM %s
        WHERE match_id = ?
        ORDER BY bucket DESC
        LIMIT ?
    `, s.table("mv_stats_5m"))

	rows, err := s.db.QueryContext(ctx, q, matchID, n)
	if err != nil {
		return nil, fmt.Errorf("latest team stats: %w", err)
	}
	defer rows.Close()

	out := make([]models.TeamStatLine, 0, n)
	for rows.Next() {
		var st models.TeamStatLine
		if err := rows.Scan(&st.MatchID, &st.Timestamp, &st.TeamID, &st.Possession, &st.Shots, &st.ShotsOnGoal, &st.Corners); err != nil {
			return nil, fmt.Errorf("scan stat row: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Schema returns the idempotent DDL for the tick tables and rolling views.
// The storage layer owns the schema; this just makes local bootstrap work.
func Schema(dbName string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", dbName),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.odds_ticks (
            match_id Int64, ts DateTime, bookmaker String, market String,
            home_odds Float64, draw_odds Float64, away_odds Float64
        ) ENGINE=MergeTree ORDER BY (match_id, ts)`, dbName),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.event_ticks (
            match_id Int64, ts DateTime, type String, team_id Int64,
            player String, minute Int32, home_score Int32, away_score Int32
        ) ENGINE=MergeTree ORDER BY (match_id, ts)`, dbName),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.stat_ticks (
            match_id Int64, ts DateTime, team_id Int64, possession Float64,
            shots Int32, shots_on_goal Int32, corners Int32, fouls Int32, cards Int32
        ) ENGINE=MergeTree ORDER BY (match_id, ts)`, dbName),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.mv_odds_1m (
            match_id Int64, bucket DateTime,
            home_odds Float64, draw_odds Float64, away_odds Float64,
            home_delta Float64, draw_delta Float64, away_delta Float64
        ) ENGINE=ReplacingMergeTree ORDER BY (match_id, bucket)`, dbName),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.mv_events_1m (
            match_id Int64, bucket DateTime,
            goals Int32, cards Int32, corners Int32, events_total Int32,
            home_score Int32, away_score Int32
        ) ENGINE=ReplacingMergeTree ORDER BY (match_id, bucket)`, dbName),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.mv_stats_5m (
            match_id Int64, bucket DateTime, team_id Int64,
            possession Float64, shots Int32, shots_on_goal Int32, corners Int32
        ) ENGINE=ReplacingMergeTree ORDER BY (match_id, bucket, team_id)`, dbName),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.mv_match_live_1m (
            match_id Int64, bucket DateTime,
            home_score Int32, away_score Int32,
            home_odds Float64, draw_odds Float64, away_odds Float64,
            home_delta Float64, draw_delta Float64, away_delta Float64,
            goals Int32, cards Int32, corners Int32, events_total Int32
        ) ENGINE=ReplacingMergeTree ORDER BY (match_id, bucket)`, dbName),
	}
}

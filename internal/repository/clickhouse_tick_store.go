package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"MatchPulse/internal/domain/models"
	drepo "MatchPulse/internal/domain/repository"
	applogger "MatchPulse/pkg/logger"
)

// ClickHouseTickStore persists the three append-only tick tables.
type ClickHouseTickStore struct {
	db     *sql.DB
	dbName string
	logger *applogger.Logger
}

// NewClickHouseTickStore creates the tick store. dbName is the ClickHouse
// database holding the tick tables.
func NewClickHouseTickStore(db *sql.DB, dbName string, logger *applogger.Logger) *ClickHouseTickStore {
	return &ClickHouseTickStore{db: db, dbName: dbName, logger: logger}
}

func (s *ClickHouseTickStore) table(name string) string {
	return s.dbName + "." + name
}

// StoreOdds batch-inserts odds ticks.
func (s *ClickHouseTickStore) StoreOdds(ctx context.Context, ticks []models.OddsTick) error {
	if len(ticks) == 0 {
		return nil
	}
	values := make([]string, 0, len(ticks))
	args := make([]interface{}, 0, len(ticks)*7)
	for _, t := range ticks {
		if t.MatchID == 0 || t.Timestamp.IsZero() {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, t.MatchID, t.Timestamp, t.Bookmaker, t.Market, t.HomeOdds, t.DrawOdds, t.AwayOdds)
	}
	if len(values) == 0 {
		return nil
	}
	q := fmt.Sprintf(
		"INSERT INTO %s (match_id, ts, bookmaker, market, home_odds, draw_odds, away_odds) VALUES %s",
		s.table("odds_ticks"), strings.Join(values, ","),
	)
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("insert odds ticks: %w", err)
	}
	return nil
}

// StoreEvents batch-inserts match events.
func (s *ClickHouseTickStore) StoreEvents(ctx context.Context, events []models.MatchEvent) error {
	if len(events) == 0 {
		return nil
	}
	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*8)
	for _, e := range events {
		if e.MatchID == 0 || e.Timestamp.IsZero() {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, e.MatchID, e.Timestamp, e.Type, e.TeamID, e.Player, e.Minute, e.HomeScore, e.AwayScore)
	}
	if len(values) == 0 {
		return nil
	}
	q := fmt.Sprintf(
		"INSERT INTO %s (match_id, ts, type, team_id, player, minute, home_score, away_score) VALUES %s",
		s.table("event_ticks"), strings.Join(values, ","),
	)
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("insert event ticks: %w", err)
	}
	return nil
}

// StoreStats batch-inserts team stat lines.
func (s *ClickHouseTickStore) StoreStats(ctx context.Context, stats []models.TeamStatLine) error {
	if len(stats) == 0 {
		return nil
	}
	values := make([]string, 0, len(stats))
	args := make([]interface{}, 0, len(stats)*9)
	for _, st := range stats {
		if st.MatchID == 0 || st.Timestamp.IsZero() {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, st.MatchID, st.Timestamp, st.TeamID, st.Possession, st.Shots, st.ShotsOnGoal, st.Corners, st.Fouls, st.YellowCards+st.RedCards)
	}
	if len(values) == 0 {
		return nil
	}
	q := fmt.Sprintf(
		"INSERT INTO %s (match_id, ts, team_id, possession, shots, shots_on_goal, corners, fouls, cards) VALUES %s",
		s.table("stat_ticks"), strings.Join(values, ","),
	)
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("insert stat ticks: %w", err)
	}
	return nil
}

// RecentlyActiveMatches unions the three tables for match ids with any tick
// since the cutoff.
func (s *ClickHouseTickStore) RecentlyActiveMatches(ctx context.Context, since time.Time) ([]int64, error) {
	q := fmt.Sprintf(`
        SELECT DISTINCT match_id FROM (
            SELECT match_id FROM %s WHERE ts >= ?
            UNION ALL
            SELECT match_id FROM %s WHERE ts >= ?
            UNION ALL
            SELECT match_id FROM %s WHERE ts >= ?
        )
        ORDER BY match_id
    `, s.table("odds_ticks"), s.table("event_ticks"), s.table("stat_ticks"))

	rows, err := s.db.QueryContext(ctx, q, since, since, since)
	if err != nil {
		return nil, fmt.Errorf("recently active: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan match id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// OddsHistory reads odds ticks for a match inside [from, to), newest last.
func (s *ClickHouseTickStore) OddsHistory(ctx context.Context, matchID int64, from, to time.Time, limit int) ([]models.OddsTick, error) {
	q := fmt.Sprintf(`
        SELECT match_id, ts, bookmaker, market, home_odds, draw_odds, away_odds
        FROM %s
        WHERE match_id = ? AND ts >= ? AND ts < ?
        ORDER BY ts
        LIMIT ?
    `, s.table("odds_ticks"))

	rows, err := s.db.QueryContext(ctx, q, matchID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("odds history: %w", err)
	}
	defer rows.Close()

	var ticks []models.OddsTick
	for rows.Next() {
		var t models.OddsTick
		if err := rows.Scan(&t.MatchID, &t.Timestamp, &t.Bookmaker, &t.Market, &t.HomeOdds, &t.DrawOdds, &t.AwayOdds); err != nil {
			return nil, fmt.Errorf("scan odds tick: %w", err)
		}
		ticks = append(ticks, t)
	}
	return ticks, rows.Err()
}

// Cleanup deletes ticks past their per-category retention and returns the
// deleted-row counts keyed by table. A failure on one table is logged and
// the remaining tables are still cleaned.
func (s *ClickHouseTickStore) Cleanup(ctx context.Context, retention map[drepo.Category]time.Duration) (map[string]int64, error) {
	tables := map[drepo.Category]string{
		drepo.CategoryOdds:   "odds_ticks",
		drepo.CategoryEvents: "event_ticks",
		drepo.CategoryStats:  "stat_ticks",
	}

	deleted := make(map[string]int64, len(tables))
	for _, cat := range drepo.Categories() {
		keep, ok := retention[cat]
		if !ok {
			continue
		}
		table := tables[cat]
		cutoff := time.Now().Add(-keep)

		var count int64
		countQ := fmt.Sprintf("SELECT count() FROM %s WHERE ts < ?", s.table(table))
		if err := s.db.QueryRowContext(ctx, countQ, cutoff).Scan(&count); err != nil {
			s.logger.Warn("cleanup count failed",
				applogger.String("table", table),
				applogger.Error(err),
			)
			continue
		}

		delQ := fmt.Sprintf("ALTER TABLE %s DELETE WHERE ts < ?", s.table(table))
		if _, err := s.db.ExecContext(ctx, delQ, cutoff); err != nil {
			s.logger.Warn("cleanup delete failed",
				applogger.String("table", table),
				applogger.Error(err),
			)
			continue
		}
		deleted[table] = count
	}
	return deleted, nil
}

// Health pings the pool.
func (s *ClickHouseTickStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

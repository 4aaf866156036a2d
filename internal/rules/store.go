package rules

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a rule or assignment does not exist.
var ErrNotFound = errors.New("rule not found")

// Store persists rules and series assignments.
type Store struct {
	db *sql.DB
}

// NewStore creates a rule store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const ruleColumns = `name, get_type, get_count, keep_type, keep_count,
	grace_watched_days, grace_unwatched_days, dormant_days,
	monitor_watched, action, dry_run, created_at, updated_at`

// Save inserts or updates a rule by name.
func (s *Store) Save(ctx context.Context, rule *Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rules (name, get_type, get_count, keep_type, keep_count,
			grace_watched_days, grace_unwatched_days, dormant_days,
			monitor_watched, action, dry_run, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			get_type = excluded.get_type,
			get_count = excluded.get_count,
			keep_type = excluded.keep_type,
			keep_count = excluded.keep_count,
			grace_watched_days = excluded.grace_watched_days,
			grace_unwatched_days = excluded.grace_unwatched_days,
			dormant_days = excluded.dormant_days,
			monitor_watched = excluded.monitor_watched,
			action = excluded.action,
			dry_run = excluded.dry_run,
			updated_at = excluded.updated_at`,
		rule.Name,
		string(rule.Get.Type), rule.Get.Count,
		string(rule.Keep.Type), rule.Keep.Count,
		nullableInt(rule.GraceWatchedDays),
		nullableInt(rule.GraceUnwatchedDays),
		nullableInt(rule.DormantDays),
		rule.MonitorWatched, string(rule.Action), rule.DryRun,
		now, now)
	if err != nil {
		return fmt.Errorf("failed to save rule %q: %w", rule.Name, err)
	}
	return nil
}

// Get returns the rule with the given name.
func (s *Store) Get(ctx context.Context, name string) (*Rule, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM rules WHERE name = ?`, name)
	return scanRule(row)
}

// List returns all rules ordered by name.
func (s *Store) List(ctx context.Context) ([]Rule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM rules ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rule)
	}
	return out, rows.Err()
}

// Delete removes a rule and, via the foreign key, its assignments.
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete rule %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignSeries binds a series to a rule, replacing any prior assignment.
func (s *Store) AssignSeries(ctx context.Context, seriesID int64, ruleName string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rule_series (series_id, rule_name)
		VALUES (?, ?)
		ON CONFLICT(series_id) DO UPDATE SET rule_name = excluded.rule_name`,
		seriesID, ruleName)
	if err != nil {
		return fmt.Errorf("failed to assign series %d to rule %q: %w", seriesID, ruleName, err)
	}
	return nil
}

// UnassignSeries removes a series' rule assignment if one exists.
func (s *Store) UnassignSeries(ctx context.Context, seriesID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM rule_series WHERE series_id = ?`, seriesID)
	if err != nil {
		return fmt.Errorf("failed to unassign series %d: %w", seriesID, err)
	}
	return nil
}

// RuleForSeries returns the rule assigned to a series, or ErrNotFound
// when the series has no assignment.
func (s *Store) RuleForSeries(ctx context.Context, seriesID int64) (*Rule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+ruleColumns+`
		FROM rules
		JOIN rule_series ON rule_series.rule_name = rules.name
		WHERE rule_series.series_id = ?`, seriesID)
	return scanRule(row)
}

// SeriesForRule returns the series IDs assigned to a rule.
func (s *Store) SeriesForRule(ctx context.Context, ruleName string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT series_id FROM rule_series WHERE rule_name = ? ORDER BY series_id`, ruleName)
	if err != nil {
		return nil, fmt.Errorf("failed to list series for rule %q: %w", ruleName, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Assignments returns the full series-to-rule mapping.
func (s *Store) Assignments(ctx context.Context) (map[int64]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT series_id, rule_name FROM rule_series`)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]string)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = name
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*Rule, error) {
	var (
		rule                 Rule
		getType, keepType    string
		getCount, keepCount  int
		graceW, graceU, dorm sql.NullInt64
		action               string
	)

	err := row.Scan(&rule.Name, &getType, &getCount, &keepType, &keepCount,
		&graceW, &graceU, &dorm,
		&rule.MonitorWatched, &action, &rule.DryRun,
		&rule.CreatedAt, &rule.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan rule: %w", err)
	}

	if rule.Get, err = ParseSelector(getType, getCount); err != nil {
		return nil, fmt.Errorf("rule %q: %w", rule.Name, err)
	}
	if rule.Keep, err = ParseSelector(keepType, keepCount); err != nil {
		return nil, fmt.Errorf("rule %q: %w", rule.Name, err)
	}
	rule.Action = Action(action)
	rule.GraceWatchedDays = intPtr(graceW)
	rule.GraceUnwatchedDays = intPtr(graceU)
	rule.DormantDays = intPtr(dorm)
	return &rule, nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/contentpilot/contentpilot/models"
)

type Store struct {
	DB *sql.DB
}

// NewWithDSN constructs the Store using an explicit Postgres DSN
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// User operations
func (s *Store) CreateUser(ctx context.Context, email, hash string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users (email, password_hash) VALUES ($1,$2)`, email, hash)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	return
}

// Profile operations
func (s *Store) GetProfile(ctx context.Context, userID string) (models.BusinessProfile, bool, error) {
	var p models.BusinessProfile
	err := s.DB.QueryRowContext(ctx,
		`SELECT name, description, ideal_customer, tone, keywords, website_url FROM profiles WHERE user_id=$1`, userID).
		Scan(&p.Name, &p.Description, &p.IdealCustomer, &p.Tone, &p.Keywords, &p.WebsiteURL)
	if err == sql.ErrNoRows {
		return models.BusinessProfile{}, false, nil
	}
	if err != nil {
		return models.BusinessProfile{}, false, err
	}
	return p, true, nil
}

func (s *Store) SaveProfile(ctx context.Context, userID string, p models.BusinessProfile) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO profiles (user_id, name, description, ideal_customer, tone, keywords, website_url, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())
ON CONFLICT (user_id) DO UPDATE SET name=$2, description=$3, ideal_customer=$4, tone=$5, keywords=$6, website_url=$7, updated_at=NOW()`,
		userID, p.Name, p.Description, p.IdealCustomer, p.Tone, p.Keywords, p.WebsiteURL)
	return err
}

// Topic operations

// ReplaceTopics swaps the user's topic roadmap for a freshly generated
// one, preserving the provider's ranking order.
func (s *Store) ReplaceTopics(ctx context.Context, userID string, topics []models.Topic) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM topics WHERE user_id=$1`, userID); err != nil {
		return err
	}
	for i, t := range topics {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO topics (id, user_id, title, angle, audience, keywords, score, position) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			t.ID, userID, t.Title, t.Angle, t.Audience, pq.Array(t.Keywords), t.Score, i); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) ListTopics(ctx context.Context, userID string) ([]models.Topic, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, title, angle, audience, keywords, score FROM topics WHERE user_id=$1 ORDER BY position`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Topic
	for rows.Next() {
		var t models.Topic
		if err := rows.Scan(&t.ID, &t.Title, &t.Angle, &t.Audience, pq.Array(&t.Keywords), &t.Score); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) GetTopicByID(ctx context.Context, userID, id string) (models.Topic, error) {
	var t models.Topic
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, title, angle, audience, keywords, score FROM topics WHERE id=$1 AND user_id=$2`, id, userID).
		Scan(&t.ID, &t.Title, &t.Angle, &t.Audience, pq.Array(&t.Keywords), &t.Score)
	if err == sql.ErrNoRows {
		return models.Topic{}, models.ErrTopicNotFound
	}
	return t, err
}

// SelectedTopic returns the topic the agent should publish next: the
// explicitly selected one, or the first of the roadmap when none is
// selected. ok is false when the user has no topics at all.
func (s *Store) SelectedTopic(ctx context.Context, userID string) (models.Topic, bool, error) {
	var t models.Topic
	err := s.DB.QueryRowContext(ctx, `
SELECT t.id, t.title, t.angle, t.audience, t.keywords, t.score
FROM topics t
LEFT JOIN schedules s ON s.user_id = t.user_id
WHERE t.user_id=$1
ORDER BY (t.id = s.selected_topic_id) DESC NULLS LAST, t.position
LIMIT 1`, userID).
		Scan(&t.ID, &t.Title, &t.Angle, &t.Audience, pq.Array(&t.Keywords), &t.Score)
	if err == sql.ErrNoRows {
		return models.Topic{}, false, nil
	}
	if err != nil {
		return models.Topic{}, false, err
	}
	return t, true, nil
}

// Channel operations
func (s *Store) GetChannel(ctx context.Context, userID string) (models.Channel, bool, error) {
	var ch models.Channel
	var headersB []byte
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, type, name, endpoint_url, username, app_password, headers FROM channels WHERE user_id=$1`, userID).
		Scan(&ch.ID, &ch.Type, &ch.Name, &ch.EndpointURL, &ch.Username, &ch.AppPassword, &headersB)
	if err == sql.ErrNoRows {
		return models.Channel{}, false, nil
	}
	if err != nil {
		return models.Channel{}, false, err
	}
	if len(headersB) > 0 {
		if err := json.Unmarshal(headersB, &ch.Headers); err != nil {
			return models.Channel{}, false, fmt.Errorf("decode channel headers: %w", err)
		}
	}
	return ch, true, nil
}

func (s *Store) SaveChannel(ctx context.Context, userID string, ch models.Channel) error {
	headersB, err := json.Marshal(ch.Headers)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `INSERT INTO channels (user_id, id, type, name, endpoint_url, username, app_password, headers, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())
ON CONFLICT (user_id) DO UPDATE SET id=$2, type=$3, name=$4, endpoint_url=$5, username=$6, app_password=$7, headers=$8, updated_at=NOW()`,
		userID, ch.ID, ch.Type, ch.Name, ch.EndpointURL, ch.Username, ch.AppPassword, headersB)
	return err
}

// Schedule operations
func (s *Store) GetSchedule(ctx context.Context, userID string) (models.Schedule, bool, error) {
	var sc models.Schedule
	err := s.DB.QueryRowContext(ctx,
		`SELECT cadence, publish_hour, timezone, next_run_at, selected_topic_id FROM schedules WHERE user_id=$1`, userID).
		Scan(&sc.Cadence, &sc.PublishHour, &sc.Timezone, &sc.NextRunAt, &sc.SelectedTopicID)
	if err == sql.ErrNoRows {
		return models.Schedule{}, false, nil
	}
	if err != nil {
		return models.Schedule{}, false, err
	}
	return sc, true, nil
}

func (s *Store) SaveSchedule(ctx context.Context, userID string, sc models.Schedule) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO schedules (user_id, cadence, publish_hour, timezone, next_run_at, selected_topic_id, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW())
ON CONFLICT (user_id) DO UPDATE SET cadence=$2, publish_hour=$3, timezone=$4, next_run_at=$5, selected_topic_id=$6, updated_at=NOW()`,
		userID, sc.Cadence, sc.PublishHour, sc.Timezone, sc.NextRunAt, sc.SelectedTopicID)
	return err
}

func (s *Store) SetNextRun(ctx context.Context, userID string, at time.Time) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE schedules SET next_run_at=$2, updated_at=NOW() WHERE user_id=$1`, userID, at)
	return err
}

func (s *Store) SetSelectedTopic(ctx context.Context, userID, topicID string) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE schedules SET selected_topic_id=$2, updated_at=NOW() WHERE user_id=$1`, userID, topicID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no schedule for user %s", userID)
	}
	return nil
}

// DueSchedule pairs a user with their elapsed automation policy.
type DueSchedule struct {
	UserID   string
	Schedule models.Schedule
}

// DueSchedules returns every schedule whose next_run_at has elapsed.
func (s *Store) DueSchedules(ctx context.Context, now time.Time) ([]DueSchedule, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT user_id, cadence, publish_hour, timezone, next_run_at, selected_topic_id FROM schedules WHERE next_run_at IS NOT NULL AND next_run_at <= $1`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DueSchedule
	for rows.Next() {
		var d DueSchedule
		if err := rows.Scan(&d.UserID, &d.Schedule.Cadence, &d.Schedule.PublishHour, &d.Schedule.Timezone, &d.Schedule.NextRunAt, &d.Schedule.SelectedTopicID); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Run operations

// CreateRun appends a run record. The id is allocated by the caller at
// trigger time so the orchestrator can hand it out before the insert.
func (s *Store) CreateRun(ctx context.Context, userID string, run models.Run) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO runs (id, user_id, topic_id, topic_title, status, started_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		run.ID, userID, run.TopicID, run.TopicTitle, run.Status, run.StartedAt)
	return err
}

// FinishRun moves a run into a terminal state. Summary, destination and
// errMsg may be nil; finished_at is always stamped.
func (s *Store) FinishRun(ctx context.Context, runID string, status string, summary, destination, errMsg *string) error {
	if runID == "" {
		return fmt.Errorf("run_id must be provided")
	}
	_, err := s.DB.ExecContext(ctx,
		`UPDATE runs SET status=$1, finished_at=NOW(), summary=$2, destination=$3, error=$4 WHERE id=$5`,
		status, summary, destination, errMsg, runID)
	return err
}

// RunBelongsTo reports whether the run exists and is owned by the user.
func (s *Store) RunBelongsTo(ctx context.Context, userID, runID string) (bool, error) {
	var one int
	err := s.DB.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id=$1 AND user_id=$2`, runID, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) ListRuns(ctx context.Context, userID string, limit int) ([]models.Run, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, topic_id, topic_title, status, started_at, finished_at, summary, destination, error FROM runs WHERE user_id=$1 ORDER BY started_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Run
	for rows.Next() {
		var r models.Run
		if err := rows.Scan(&r.ID, &r.TopicID, &r.TopicTitle, &r.Status, &r.StartedAt, &r.FinishedAt, &r.Summary, &r.Destination, &r.Error); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PruneRuns drops everything beyond the most recent keep runs.
func (s *Store) PruneRuns(ctx context.Context, userID string, keep int) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM runs WHERE user_id=$1 AND id NOT IN (
SELECT id FROM runs WHERE user_id=$1 ORDER BY started_at DESC LIMIT $2)`, userID, keep)
	return err
}

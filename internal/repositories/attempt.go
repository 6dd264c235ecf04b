package repositories

import (
	"context"
	"github.com/medcircle/medresident/internal/errors"
	"github.com/medcircle/medresident/internal/models"
	"github.com/medcircle/medresident/internal/sqlite"
	"log/slog"
)

type AttemptRepository struct {
	db     *sqlite.Database
	logger *slog.Logger
}

func NewAttemptRepository(db *sqlite.Database, logger *slog.Logger) *AttemptRepository {
	return &AttemptRepository{
		db:     db,
		logger: logger.With("source", "AttemptRepository"),
	}
}

// Create stores a completed attempt.
func (r *AttemptRepository) Create(ctx context.Context, attempt models.Attempt) error {
	stmt := `INSERT INTO attempts (id, learner_id, scenario_id, scenario_title, score, perfect, performance, decisions,
                      correct_decisions, timed_out, stable, complications, started_at, completed_at)
VALUES (:id, :learner_id, :scenario_id, :scenario_title, :score, :perfect, :performance, :decisions,
        :correct_decisions, :timed_out, :stable, :complications, :started_at, :completed_at)`
	attempt.StartedAt = attempt.StartedAt.UTC()
	attempt.CompletedAt = attempt.CompletedAt.UTC()
	if _, err := r.db.ReadWrite.NamedExecContext(ctx, stmt, attempt); err != nil {
		return errors.Wrap(err, "insert attempt", slog.String("scenario_id", attempt.ScenarioID))
	}
	return nil
}

// ListByLearner returns up to limit attempts of the learner, newest first.
func (r *AttemptRepository) ListByLearner(ctx context.Context, learnerID string, limit int) ([]models.Attempt, error) {
	stmt := `SELECT id, learner_id, scenario_id, scenario_title, score, perfect, performance, decisions,
       correct_decisions, timed_out, stable, complications, started_at, completed_at
FROM attempts
WHERE learner_id = ?
ORDER BY completed_at DESC, id
LIMIT ?`
	attempts := []models.Attempt{}
	if err := r.db.ReadOnly.SelectContext(ctx, &attempts, stmt, learnerID, limit); err != nil {
		return nil, errors.Wrap(err, "select attempts")
	}
	return attempts, nil
}

// Summary aggregates the attempts of the learner per scenario.
func (r *AttemptRepository) Summary(ctx context.Context, learnerID string) ([]models.ScenarioSummary, error) {
	stmt := `SELECT scenario_id,
       MAX(scenario_title) AS scenario_title,
       COUNT(*)            AS attempts,
       MAX(score)          AS best_score,
       AVG(score)          AS average_score,
       SUM(timed_out)      AS timed_out
FROM attempts
WHERE learner_id = ?
GROUP BY scenario_id
ORDER BY scenario_id`
	summaries := []models.ScenarioSummary{}
	if err := r.db.ReadOnly.SelectContext(ctx, &summaries, stmt, learnerID); err != nil {
		return nil, errors.Wrap(err, "select attempt summary")
	}
	return summaries, nil
}

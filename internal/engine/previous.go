package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meltforce/liftlog/internal/models"
)

// DefaultHistoryWindow caps how many finished instances the resolver scans
// per lookup, bounding cost to exercise count × window.
const DefaultHistoryWindow = 50

// HistorySource provides finished workout instances, most recent first.
// *storage.DB satisfies it.
type HistorySource interface {
	RecentFinishedInstances(ctx context.Context, ownerID, limit int) ([]models.WorkoutInstance, error)
}

// PerformedSet is one completed set's actual values.
type PerformedSet struct {
	Number   int      `json:"number"`
	Reps     *int     `json:"reps,omitempty"`
	WeightKg *float64 `json:"weight_kg,omitempty"`
	TimeSec  *int     `json:"time_sec,omitempty"`
}

// PreviousPerformance is the most recent completed values for one exercise,
// stamped with the source workout it came from.
type PreviousPerformance struct {
	ExerciseName string         `json:"exercise_name"`
	WorkoutID    uuid.UUID      `json:"workout_id"`
	PerformedAt  time.Time      `json:"performed_at"`
	Sets         []PerformedSet `json:"sets"`
}

// ResolvePreviousPerformance returns, per requested exercise name, the most
// recent completed values across the owner's finished workouts. The scan
// stops at the first (most recent) instance containing a matching exercise
// with at least one completed set; lookups are independent across names, so
// two results may come from two different workouts. Names with no match in
// the scan window are absent from the returned map, which is keyed by
// lowercased name.
func ResolvePreviousPerformance(ctx context.Context, src HistorySource, ownerID int, names []string) (map[string]PreviousPerformance, error) {
	instances, err := src.RecentFinishedInstances(ctx, ownerID, DefaultHistoryWindow)
	if err != nil {
		return nil, fmt.Errorf("loading workout history: %w", err)
	}

	result := make(map[string]PreviousPerformance, len(names))
	for _, name := range names {
		key := models.NameKey(name)
		if key == "" {
			continue
		}
		if _, done := result[key]; done {
			continue
		}
		for _, inst := range instances {
			perf, ok := extractPerformance(&inst, key)
			if ok {
				result[key] = perf
				break
			}
		}
	}
	return result, nil
}

// extractPerformance pulls every completed set's actuals, in order, for the
// named exercise within one instance.
func extractPerformance(inst *models.WorkoutInstance, nameKey string) (PreviousPerformance, bool) {
	for _, ex := range inst.Exercises {
		if models.NameKey(ex.Name) != nameKey {
			continue
		}
		var sets []PerformedSet
		for _, s := range ex.Sets {
			if !s.Completed {
				continue
			}
			sets = append(sets, PerformedSet{
				Number:   s.Number,
				Reps:     s.ActualReps,
				WeightKg: s.ActualWeightKg,
				TimeSec:  s.ActualTimeSec,
			})
		}
		if len(sets) == 0 {
			continue
		}
		performedAt := inst.StartedAt
		if inst.FinishedAt != nil {
			performedAt = *inst.FinishedAt
		}
		return PreviousPerformance{
			ExerciseName: ex.Name,
			WorkoutID:    inst.ID,
			PerformedAt:  performedAt,
			Sets:         sets,
		}, true
	}
	return PreviousPerformance{}, false
}

package engine

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/meltforce/liftlog/internal/models"
)

// stubHistory serves a canned, most-recent-first instance list.
type stubHistory struct {
	instances []models.WorkoutInstance
	lastLimit int
}

func (s *stubHistory) RecentFinishedInstances(_ context.Context, _ int, limit int) ([]models.WorkoutInstance, error) {
	s.lastLimit = limit
	if limit < len(s.instances) {
		return s.instances[:limit], nil
	}
	return s.instances, nil
}

func finishedInstance(finished time.Time, exercises ...models.Exercise) models.WorkoutInstance {
	return models.WorkoutInstance{
		ID:         uuid.New(),
		OwnerID:    1,
		StartedAt:  finished.Add(-time.Hour),
		FinishedAt: &finished,
		Exercises:  exercises,
	}
}

func performedExercise(name string, sets ...models.Set) models.Exercise {
	return models.Exercise{ID: uuid.New(), Name: name, Type: models.ExerciseStrength, Sets: sets}
}

func TestResolveMostRecentWins(t *testing.T) {
	jan1 := time.Date(2026, 1, 1, 18, 0, 0, 0, time.UTC)
	jan10 := time.Date(2026, 1, 10, 18, 0, 0, 0, time.UTC)

	src := &stubHistory{instances: []models.WorkoutInstance{
		finishedInstance(jan10, performedExercise("Bench Press", doneSet(1, 5, 185, 5, 190))),
		finishedInstance(jan1, performedExercise("Bench Press", doneSet(1, 5, 185, 5, 185))),
	}}

	got, err := ResolvePreviousPerformance(context.Background(), src, 1, []string{"Bench Press"})
	if err != nil {
		t.Fatal(err)
	}
	perf, ok := got["bench press"]
	if !ok {
		t.Fatalf("no result for bench press: %v", got)
	}
	if !perf.PerformedAt.Equal(jan10) {
		t.Errorf("performed at = %v, want %v (most recent)", perf.PerformedAt, jan10)
	}
	if len(perf.Sets) != 1 || *perf.Sets[0].WeightKg != 190 {
		t.Errorf("sets = %+v, want one set at 190", perf.Sets)
	}
}

// TestResolveIndependentAcrossExercises: two exercises may resolve from two
// different historical workouts.
func TestResolveIndependentAcrossExercises(t *testing.T) {
	jan5 := time.Date(2026, 1, 5, 18, 0, 0, 0, time.UTC)
	jan8 := time.Date(2026, 1, 8, 18, 0, 0, 0, time.UTC)

	src := &stubHistory{instances: []models.WorkoutInstance{
		finishedInstance(jan8, performedExercise("Squat", doneSet(1, 5, 140, 5, 145))),
		finishedInstance(jan5, performedExercise("Bench Press", doneSet(1, 5, 185, 5, 185))),
	}}

	got, err := ResolvePreviousPerformance(context.Background(), src, 1, []string{"Squat", "Bench Press"})
	if err != nil {
		t.Fatal(err)
	}
	if !got["squat"].PerformedAt.Equal(jan8) {
		t.Errorf("squat from %v, want %v", got["squat"].PerformedAt, jan8)
	}
	if !got["bench press"].PerformedAt.Equal(jan5) {
		t.Errorf("bench press from %v, want %v", got["bench press"].PerformedAt, jan5)
	}
}

// TestResolveSkipsInstancesWithoutCompletedSets: an instance where the
// exercise exists but nothing was completed does not satisfy the lookup.
func TestResolveSkipsInstancesWithoutCompletedSets(t *testing.T) {
	jan5 := time.Date(2026, 1, 5, 18, 0, 0, 0, time.UTC)
	jan8 := time.Date(2026, 1, 8, 18, 0, 0, 0, time.UTC)

	src := &stubHistory{instances: []models.WorkoutInstance{
		finishedInstance(jan8, performedExercise("Bench Press", targetSet(1, 5, 185))), // skipped that day
		finishedInstance(jan5, performedExercise("Bench Press", doneSet(1, 5, 185, 5, 185))),
	}}

	got, err := ResolvePreviousPerformance(context.Background(), src, 1, []string{"bench press"})
	if err != nil {
		t.Fatal(err)
	}
	if !got["bench press"].PerformedAt.Equal(jan5) {
		t.Errorf("performed at = %v, want %v (older instance with completed sets)", got["bench press"].PerformedAt, jan5)
	}
}

func TestResolveMissingNameAbsent(t *testing.T) {
	src := &stubHistory{instances: []models.WorkoutInstance{
		finishedInstance(time.Now(), performedExercise("Bench Press", doneSet(1, 5, 185, 5, 185))),
	}}

	got, err := ResolvePreviousPerformance(context.Background(), src, 1, []string{"Deadlift"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got["deadlift"]; ok {
		t.Error("expected deadlift to be absent from the result map")
	}
	if src.lastLimit != DefaultHistoryWindow {
		t.Errorf("scan window = %d, want %d", src.lastLimit, DefaultHistoryWindow)
	}
}

// TestResolveOnlyCompletedSetsExtracted: uncompleted sets in the matched
// instance are not part of the returned values.
func TestResolveOnlyCompletedSetsExtracted(t *testing.T) {
	src := &stubHistory{instances: []models.WorkoutInstance{
		finishedInstance(time.Now(), performedExercise("Bench Press",
			doneSet(1, 5, 185, 5, 185),
			targetSet(2, 5, 185), // never completed
			doneSet(3, 5, 185, 4, 185),
		)),
	}}

	got, err := ResolvePreviousPerformance(context.Background(), src, 1, []string{"Bench Press"})
	if err != nil {
		t.Fatal(err)
	}
	sets := got["bench press"].Sets
	if len(sets) != 2 {
		t.Fatalf("set count = %d, want 2 (completed only)", len(sets))
	}
	if sets[0].Number != 1 || sets[1].Number != 3 {
		t.Errorf("set numbers = %d,%d, want 1,3", sets[0].Number, sets[1].Number)
	}
}

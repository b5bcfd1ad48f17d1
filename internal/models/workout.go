package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ExerciseType tags how an exercise is measured.
type ExerciseType string

const (
	ExerciseStrength   ExerciseType = "strength"
	ExerciseCardio     ExerciseType = "cardio"
	ExerciseBodyweight ExerciseType = "bodyweight"
	ExerciseTimed      ExerciseType = "timed"
)

// Set is one planned or performed unit of work. Target values come from the
// template; actual values are entered during a session. All four dimensions
// are optional and not mutually exclusive.
type Set struct {
	ID     uuid.UUID `json:"id"`
	Number int       `json:"number"` // 1-based ordinal within the exercise

	TargetReps      *int     `json:"target_reps,omitempty"`
	TargetWeightKg  *float64 `json:"target_weight_kg,omitempty"`
	TargetTimeSec   *int     `json:"target_time_sec,omitempty"`
	TargetDistanceM *float64 `json:"target_distance_m,omitempty"`

	ActualReps      *int     `json:"actual_reps,omitempty"`
	ActualWeightKg  *float64 `json:"actual_weight_kg,omitempty"`
	ActualTimeSec   *int     `json:"actual_time_sec,omitempty"`
	ActualDistanceM *float64 `json:"actual_distance_m,omitempty"`

	Completed bool `json:"completed"`
	Skipped   bool `json:"skipped"`
}

// HasActuals reports whether any actual value has been entered on the set.
func (s *Set) HasActuals() bool {
	return s.ActualReps != nil || s.ActualWeightKg != nil ||
		s.ActualTimeSec != nil || s.ActualDistanceM != nil
}

// Exercise is a named movement with an ordered sequence of sets. The name is
// free text, not a foreign key into any exercise catalog.
type Exercise struct {
	ID uuid.UUID `json:"id"`

	// TemplateExerciseID is the stable identity carried from the template
	// exercise into its instance copy. Zero for exercises added mid-session
	// and for legacy data, where matching falls back to the name.
	TemplateExerciseID uuid.UUID `json:"template_exercise_id"`

	Name     string       `json:"name"`
	Type     ExerciseType `json:"type"`
	RestSec  *int         `json:"rest_sec,omitempty"`
	Position int          `json:"position"` // 1-based ordinal within the workout
	Sets     []Set        `json:"sets"`
}

// NameKey returns the case-insensitive matching key for the exercise name.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// WorkoutTemplate is a reusable plan. Its sets carry only target values.
type WorkoutTemplate struct {
	ID          uuid.UUID  `json:"id"`
	OwnerID     int        `json:"owner_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Exercises   []Exercise `json:"exercises"`
	Tags        []string   `json:"tags,omitempty"`
	Archived    bool       `json:"archived"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// WorkoutInstance is one point-in-time execution of a template. It is created
// by deep-copying the template's exercises and is immutable once finished.
type WorkoutInstance struct {
	ID           uuid.UUID         `json:"id"`
	OwnerID      int               `json:"owner_id"`
	TemplateID   uuid.UUID         `json:"template_id"`
	TemplateName string            `json:"template_name"`
	StartedAt    time.Time         `json:"started_at"`
	FinishedAt   *time.Time        `json:"finished_at,omitempty"`
	IsActive     bool              `json:"is_active"`
	Exercises    []Exercise        `json:"exercises"`
	Changes      *WorkoutChangeSet `json:"changes,omitempty"`
}

// NewInstanceFromTemplate materializes a draft instance from a template:
// owned deep copies of every exercise and set, fresh instance-side IDs,
// TemplateExerciseID preserved for matching, and all actual values cleared.
func NewInstanceFromTemplate(t *WorkoutTemplate, now time.Time) *WorkoutInstance {
	inst := &WorkoutInstance{
		ID:           uuid.New(),
		OwnerID:      t.OwnerID,
		TemplateID:   t.ID,
		TemplateName: t.Name,
		StartedAt:    now,
		IsActive:     true,
		Exercises:    make([]Exercise, len(t.Exercises)),
	}
	for i, ex := range t.Exercises {
		copied := ex.Clone()
		copied.ID = uuid.New()
		copied.TemplateExerciseID = ex.ID
		for j := range copied.Sets {
			copied.Sets[j].ID = uuid.New()
			copied.Sets[j].ActualReps = nil
			copied.Sets[j].ActualWeightKg = nil
			copied.Sets[j].ActualTimeSec = nil
			copied.Sets[j].ActualDistanceM = nil
			copied.Sets[j].Completed = false
			copied.Sets[j].Skipped = false
		}
		inst.Exercises[i] = copied
	}
	return inst
}

// Clone returns a deep copy of the exercise. Pointer-valued fields are
// re-allocated so the copy shares no memory with the original.
func (e Exercise) Clone() Exercise {
	out := e
	out.RestSec = clonePtr(e.RestSec)
	out.Sets = make([]Set, len(e.Sets))
	for i, s := range e.Sets {
		out.Sets[i] = s.Clone()
	}
	return out
}

// Clone returns a deep copy of the set.
func (s Set) Clone() Set {
	out := s
	out.TargetReps = clonePtr(s.TargetReps)
	out.TargetWeightKg = clonePtr(s.TargetWeightKg)
	out.TargetTimeSec = clonePtr(s.TargetTimeSec)
	out.TargetDistanceM = clonePtr(s.TargetDistanceM)
	out.ActualReps = clonePtr(s.ActualReps)
	out.ActualWeightKg = clonePtr(s.ActualWeightKg)
	out.ActualTimeSec = clonePtr(s.ActualTimeSec)
	out.ActualDistanceM = clonePtr(s.ActualDistanceM)
	return out
}

// Clone returns a deep copy of the template.
func (t WorkoutTemplate) Clone() WorkoutTemplate {
	out := t
	out.Exercises = make([]Exercise, len(t.Exercises))
	for i, ex := range t.Exercises {
		out.Exercises[i] = ex.Clone()
	}
	out.Tags = append([]string(nil), t.Tags...)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

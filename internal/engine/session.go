package engine

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/meltforce/liftlog/internal/models"
)

// CommandKind names a session edit.
type CommandKind string

const (
	CmdRecordSet      CommandKind = "record_set"
	CmdToggleComplete CommandKind = "toggle_complete"
	CmdToggleSkipped  CommandKind = "toggle_skipped"
	CmdAddSet         CommandKind = "add_set"
	CmdRemoveSet      CommandKind = "remove_set"
	CmdAddExercise    CommandKind = "add_exercise"
	CmdRemoveExercise CommandKind = "remove_exercise"
	CmdSetRest        CommandKind = "set_rest"
)

// Command is one in-session edit. Commands are plain data so an edit sequence
// can be journaled and replayed deterministically.
type Command struct {
	Kind     CommandKind `json:"kind"`
	Exercise int         `json:"exercise"`      // 0-based index into the instance's exercises
	Set      int         `json:"set,omitempty"` // 0-based set index where applicable

	Reps      *int     `json:"reps,omitempty"`
	WeightKg  *float64 `json:"weight_kg,omitempty"`
	TimeSec   *int     `json:"time_sec,omitempty"`
	DistanceM *float64 `json:"distance_m,omitempty"`
	RestSec   *int     `json:"rest_sec,omitempty"`

	Name string              `json:"name,omitempty"` // add_exercise only
	Type models.ExerciseType `json:"type,omitempty"` // add_exercise only
}

// Session holds one in-progress workout: the mutable instance, its clock, and
// the append-only log of every edit applied so far.
type Session struct {
	Instance *models.WorkoutInstance
	Clock    *SessionClock

	log []Command
}

// NewSession materializes a draft instance from the template and starts the
// clock.
func NewSession(tpl *models.WorkoutTemplate) *Session {
	clock := NewSessionClock()
	return &Session{
		Instance: models.NewInstanceFromTemplate(tpl, timeNow()),
		Clock:    clock,
	}
}

// ResumeSession rebuilds a session from a journaled instance snapshot and its
// command log. The clock restarts; pre-crash elapsed time is not recovered.
func ResumeSession(inst *models.WorkoutInstance, log []Command) (*Session, error) {
	s := &Session{
		Instance: inst,
		Clock:    NewSessionClock(),
	}
	for i, cmd := range log {
		if err := s.Apply(cmd); err != nil {
			return nil, fmt.Errorf("replaying command %d: %w", i, err)
		}
	}
	return s, nil
}

// Log returns a copy of the applied command log.
func (s *Session) Log() []Command {
	return append([]Command(nil), s.log...)
}

// Apply validates and applies one command to the instance, recording it in
// the log. Applying the same sequence of commands to the same starting
// instance always yields the same result.
func (s *Session) Apply(cmd Command) error {
	var err error
	switch cmd.Kind {
	case CmdRecordSet:
		err = s.recordSet(cmd)
	case CmdToggleComplete:
		err = s.toggleComplete(cmd)
	case CmdToggleSkipped:
		err = s.toggleSkipped(cmd)
	case CmdAddSet:
		err = s.addSet(cmd)
	case CmdRemoveSet:
		err = s.removeSet(cmd)
	case CmdAddExercise:
		err = s.addExercise(cmd)
	case CmdRemoveExercise:
		err = s.removeExercise(cmd)
	case CmdSetRest:
		err = s.setRest(cmd)
	default:
		err = fmt.Errorf("unknown command kind %q", cmd.Kind)
	}
	if err != nil {
		return err
	}
	s.log = append(s.log, cmd)
	return nil
}

func (s *Session) exercise(idx int) (*models.Exercise, error) {
	if idx < 0 || idx >= len(s.Instance.Exercises) {
		return nil, fmt.Errorf("exercise index %d out of range (have %d)", idx, len(s.Instance.Exercises))
	}
	return &s.Instance.Exercises[idx], nil
}

func (s *Session) set(cmd Command) (*models.Set, error) {
	ex, err := s.exercise(cmd.Exercise)
	if err != nil {
		return nil, err
	}
	if cmd.Set < 0 || cmd.Set >= len(ex.Sets) {
		return nil, fmt.Errorf("set index %d out of range for %q (have %d)", cmd.Set, ex.Name, len(ex.Sets))
	}
	return &ex.Sets[cmd.Set], nil
}

func (s *Session) recordSet(cmd Command) error {
	set, err := s.set(cmd)
	if err != nil {
		return err
	}
	if cmd.Reps != nil {
		set.ActualReps = intPtr(*cmd.Reps)
	}
	if cmd.WeightKg != nil {
		set.ActualWeightKg = floatPtr(*cmd.WeightKg)
	}
	if cmd.TimeSec != nil {
		set.ActualTimeSec = intPtr(*cmd.TimeSec)
	}
	if cmd.DistanceM != nil {
		set.ActualDistanceM = floatPtr(*cmd.DistanceM)
	}
	return nil
}

// toggleComplete flips a set's completed flag. Completing a set with no
// entered actuals copies its targets into the actuals, preserving the
// invariant that a completed set carries at least one actual value.
func (s *Session) toggleComplete(cmd Command) error {
	set, err := s.set(cmd)
	if err != nil {
		return err
	}
	set.Completed = !set.Completed
	if set.Completed {
		set.Skipped = false
		if !set.HasActuals() {
			if set.TargetReps != nil {
				set.ActualReps = intPtr(*set.TargetReps)
			}
			if set.TargetWeightKg != nil {
				set.ActualWeightKg = floatPtr(*set.TargetWeightKg)
			}
			if set.TargetTimeSec != nil {
				set.ActualTimeSec = intPtr(*set.TargetTimeSec)
			}
			if set.TargetDistanceM != nil {
				set.ActualDistanceM = floatPtr(*set.TargetDistanceM)
			}
		}
	}
	return nil
}

func (s *Session) toggleSkipped(cmd Command) error {
	set, err := s.set(cmd)
	if err != nil {
		return err
	}
	set.Skipped = !set.Skipped
	if set.Skipped {
		set.Completed = false
	}
	return nil
}

// addSet appends a set to an exercise, seeding its targets from the last
// existing set.
func (s *Session) addSet(cmd Command) error {
	ex, err := s.exercise(cmd.Exercise)
	if err != nil {
		return err
	}
	ns := models.Set{ID: uuid.New(), Number: len(ex.Sets) + 1}
	if n := len(ex.Sets); n > 0 {
		last := ex.Sets[n-1]
		ns.TargetReps = last.TargetReps
		ns.TargetWeightKg = last.TargetWeightKg
		ns.TargetTimeSec = last.TargetTimeSec
		ns.TargetDistanceM = last.TargetDistanceM
		ns = ns.Clone()
		ns.Number = n + 1
	}
	ex.Sets = append(ex.Sets, ns)
	return nil
}

func (s *Session) removeSet(cmd Command) error {
	ex, err := s.exercise(cmd.Exercise)
	if err != nil {
		return err
	}
	if cmd.Set < 0 || cmd.Set >= len(ex.Sets) {
		return fmt.Errorf("set index %d out of range for %q (have %d)", cmd.Set, ex.Name, len(ex.Sets))
	}
	ex.Sets = append(ex.Sets[:cmd.Set], ex.Sets[cmd.Set+1:]...)
	for i := range ex.Sets {
		ex.Sets[i].Number = i + 1
	}
	return nil
}

func (s *Session) addExercise(cmd Command) error {
	if cmd.Name == "" {
		return fmt.Errorf("add_exercise requires a name")
	}
	typ := cmd.Type
	if typ == "" {
		typ = models.ExerciseStrength
	}
	s.Instance.Exercises = append(s.Instance.Exercises, models.Exercise{
		ID:       uuid.New(),
		Name:     cmd.Name,
		Type:     typ,
		RestSec:  cmd.RestSec,
		Position: len(s.Instance.Exercises) + 1,
	})
	return nil
}

func (s *Session) removeExercise(cmd Command) error {
	if _, err := s.exercise(cmd.Exercise); err != nil {
		return err
	}
	s.Instance.Exercises = append(s.Instance.Exercises[:cmd.Exercise], s.Instance.Exercises[cmd.Exercise+1:]...)
	for i := range s.Instance.Exercises {
		s.Instance.Exercises[i].Position = i + 1
	}
	return nil
}

func (s *Session) setRest(cmd Command) error {
	ex, err := s.exercise(cmd.Exercise)
	if err != nil {
		return err
	}
	ex.RestSec = cmd.RestSec
	return nil
}

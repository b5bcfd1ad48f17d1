package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/meltforce/liftlog/internal/models"
)

// Overridable in tests for deterministic output.
var (
	timeNow = time.Now
	newID   = uuid.New
)

// ApplyTemplateUpdate applies the chosen merge strategy and returns the
// rewritten template, or nil meaning "no template mutation". Pure: the inputs
// are never modified. An unknown strategy behaves like keep_original. The
// changeset rides along for callers that log or persist it; the merge itself
// re-derives exercise state from the instance, which stays unambiguous when
// names repeat.
func ApplyTemplateUpdate(tpl *models.WorkoutTemplate, inst *models.WorkoutInstance, cs models.WorkoutChangeSet, strategy models.MergeStrategy) *models.WorkoutTemplate {
	switch strategy {
	case models.StrategyValuesOnly:
		return applyValuesOnly(tpl, inst)
	case models.StrategyTemplateAndValues:
		return applyTemplateAndValues(tpl, inst)
	case models.StrategySaveAsNew:
		return applySaveAsNew(tpl, inst)
	default:
		return nil
	}
}

// applyValuesOnly overwrites targets with completed actuals, index by index.
// Structure is frozen: no sets or exercises are ever added or removed, and
// deleted or skipped exercises are left exactly as they were.
func applyValuesOnly(tpl *models.WorkoutTemplate, inst *models.WorkoutInstance) *models.WorkoutTemplate {
	out := tpl.Clone()
	out.UpdatedAt = timeNow()

	m := matchExercises(inst, tpl)
	for _, p := range m.pairs {
		instEx := inst.Exercises[p.instIdx]
		tplEx := &out.Exercises[p.tplIdx]
		for i := range tplEx.Sets {
			if i >= len(instEx.Sets) || !instEx.Sets[i].Completed {
				continue
			}
			s := instEx.Sets[i]
			if s.ActualReps != nil {
				tplEx.Sets[i].TargetReps = intPtr(*s.ActualReps)
			}
			if s.ActualWeightKg != nil {
				tplEx.Sets[i].TargetWeightKg = floatPtr(*s.ActualWeightKg)
			}
			if s.ActualTimeSec != nil {
				tplEx.Sets[i].TargetTimeSec = intPtr(*s.ActualTimeSec)
			}
		}
	}
	return &out
}

// applyTemplateAndValues rewrites the template to mirror the finished
// instance: deleted exercises are dropped, skipped ones copied through
// unchanged, everything else rebuilt from the instance (added exercises
// appended last, in instance order). Skipped status is decided per matched
// pair, not per name, so a modified exercise is never mistaken for its
// skipped same-named twin.
func applyTemplateAndValues(tpl *models.WorkoutTemplate, inst *models.WorkoutInstance) *models.WorkoutTemplate {
	m := matchExercises(inst, tpl)
	pairByTpl := make(map[int]int, len(m.pairs))
	for _, p := range m.pairs {
		pairByTpl[p.tplIdx] = p.instIdx
	}

	out := tpl.Clone()
	out.UpdatedAt = timeNow()
	out.Exercises = out.Exercises[:0]

	for j, tplEx := range tpl.Exercises {
		instIdx, matched := pairByTpl[j]
		if !matched {
			continue // deleted mid-session, dropped from the template
		}
		if isSkippedExercise(inst.Exercises[instIdx]) {
			out.Exercises = append(out.Exercises, tplEx.Clone())
			continue
		}
		out.Exercises = append(out.Exercises, rebuildExercise(inst.Exercises[instIdx], &tplEx))
	}

	for _, i := range m.unmatchedInst {
		out.Exercises = append(out.Exercises, rebuildExercise(inst.Exercises[i], nil))
	}

	renumberExercises(out.Exercises)
	return &out
}

// applySaveAsNew builds a fresh template from the instance alone, suffixing
// the name with a short date so the copy is recognizable in a list.
func applySaveAsNew(tpl *models.WorkoutTemplate, inst *models.WorkoutInstance) *models.WorkoutTemplate {
	now := timeNow()
	out := &models.WorkoutTemplate{
		ID:          newID(),
		OwnerID:     tpl.OwnerID,
		Name:        tpl.Name + " (" + now.Format("Jan 2") + ")",
		Description: tpl.Description,
		Tags:        append([]string(nil), tpl.Tags...),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, instEx := range inst.Exercises {
		out.Exercises = append(out.Exercises, rebuildExercise(instEx, nil))
	}
	renumberExercises(out.Exercises)
	return out
}

// rebuildExercise reconstructs a template exercise from its instance copy:
// every instance set becomes a target set using completed actuals where
// present (falling back per dimension to the carried-over target), renumbered
// sequentially. The rest interval comes from the instance, capturing any
// in-session rest-timer edits. tplEx, when non-nil, supplies stable exercise
// and set identifiers so repeated reconciliation does not churn IDs.
func rebuildExercise(instEx models.Exercise, tplEx *models.Exercise) models.Exercise {
	out := models.Exercise{
		Name:    instEx.Name,
		Type:    instEx.Type,
		RestSec: clonePtrInt(instEx.RestSec),
	}
	if tplEx != nil {
		out.ID = tplEx.ID
	} else {
		out.ID = newID()
	}

	for i, s := range instEx.Sets {
		ns := models.Set{Number: i + 1}
		if tplEx != nil && i < len(tplEx.Sets) {
			ns.ID = tplEx.Sets[i].ID
		} else {
			ns.ID = newID()
		}
		ns.TargetReps = pickInt(s.Completed, s.ActualReps, s.TargetReps)
		ns.TargetWeightKg = pickFloat(s.Completed, s.ActualWeightKg, s.TargetWeightKg)
		ns.TargetTimeSec = pickInt(s.Completed, s.ActualTimeSec, s.TargetTimeSec)
		ns.TargetDistanceM = pickFloat(s.Completed, s.ActualDistanceM, s.TargetDistanceM)
		out.Sets = append(out.Sets, ns)
	}
	return out
}

func renumberExercises(exs []models.Exercise) {
	for i := range exs {
		exs[i].Position = i + 1
	}
}

// pickInt returns the actual value when the set was completed and a value was
// entered, else the previous target.
func pickInt(completed bool, actual, target *int) *int {
	if completed && actual != nil {
		return intPtr(*actual)
	}
	if target == nil {
		return nil
	}
	return intPtr(*target)
}

func pickFloat(completed bool, actual, target *float64) *float64 {
	if completed && actual != nil {
		return floatPtr(*actual)
	}
	if target == nil {
		return nil
	}
	return floatPtr(*target)
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func clonePtrInt(p *int) *int {
	if p == nil {
		return nil
	}
	return intPtr(*p)
}

package engine

import (
	"github.com/google/uuid"

	"github.com/meltforce/liftlog/internal/models"
)

// exercisePair links an instance exercise to the template exercise it was
// materialized from.
type exercisePair struct {
	instIdx int
	tplIdx  int
}

// matchResult is the outcome of pairing an instance's exercises against a
// template's.
type matchResult struct {
	pairs         []exercisePair
	unmatchedInst []int // instance exercises with no template counterpart
	unmatchedTpl  []int // template exercises with no instance counterpart
}

// matchExercises pairs instance exercises with template exercises. The stable
// TemplateExerciseID wins when present; otherwise the first unconsumed
// template exercise with the same case-insensitive name matches, in position
// order. Each template exercise is consumed at most once, so the result is
// deterministic even with duplicate names.
func matchExercises(inst *models.WorkoutInstance, tpl *models.WorkoutTemplate) matchResult {
	byID := make(map[uuid.UUID]int, len(tpl.Exercises))
	byName := make(map[string][]int, len(tpl.Exercises))
	for i, ex := range tpl.Exercises {
		byID[ex.ID] = i
		key := models.NameKey(ex.Name)
		byName[key] = append(byName[key], i)
	}

	consumed := make([]bool, len(tpl.Exercises))
	var res matchResult

	for i, ex := range inst.Exercises {
		if ex.TemplateExerciseID != uuid.Nil {
			if j, ok := byID[ex.TemplateExerciseID]; ok && !consumed[j] {
				consumed[j] = true
				res.pairs = append(res.pairs, exercisePair{instIdx: i, tplIdx: j})
				continue
			}
		}
		matched := false
		for _, j := range byName[models.NameKey(ex.Name)] {
			if !consumed[j] {
				consumed[j] = true
				res.pairs = append(res.pairs, exercisePair{instIdx: i, tplIdx: j})
				matched = true
				break
			}
		}
		if !matched {
			res.unmatchedInst = append(res.unmatchedInst, i)
		}
	}

	for j := range tpl.Exercises {
		if !consumed[j] {
			res.unmatchedTpl = append(res.unmatchedTpl, j)
		}
	}
	return res
}

// DetectChanges compares a finished instance against its originating template
// and classifies every exercise into exactly one of: modified, deleted,
// skipped, added, or (implicitly) unchanged. Pure and deterministic.
func DetectChanges(inst *models.WorkoutInstance, tpl *models.WorkoutTemplate) models.WorkoutChangeSet {
	var cs models.WorkoutChangeSet
	m := matchExercises(inst, tpl)

	// Skipped status is decided per matched pair but reported by name, so
	// with duplicate names a modified twin suppresses the skipped entry to
	// keep the four lists disjoint.
	modified := make(map[string]bool)
	var skipCandidates []string

	for _, p := range m.pairs {
		instEx := inst.Exercises[p.instIdx]
		tplEx := tpl.Exercises[p.tplIdx]

		if isSkippedExercise(instEx) {
			skipCandidates = append(skipCandidates, instEx.Name)
			continue
		}
		if mod, ok := diffExercise(instEx, tplEx); ok {
			cs.Modified = append(cs.Modified, mod)
			modified[models.NameKey(instEx.Name)] = true
		}
	}

	seen := make(map[string]bool, len(skipCandidates))
	for _, name := range skipCandidates {
		key := models.NameKey(name)
		if modified[key] || seen[key] {
			continue
		}
		seen[key] = true
		cs.Skipped = append(cs.Skipped, name)
	}

	for _, i := range m.unmatchedInst {
		cs.Added = append(cs.Added, inst.Exercises[i].Name)
	}

	for _, j := range m.unmatchedTpl {
		tplEx := tpl.Exercises[j]
		del := models.DeletedExercise{Name: tplEx.Name}
		for _, s := range tplEx.Sets {
			del.Sets = append(del.Sets, models.SetSnapshot{
				Number:         s.Number,
				TargetReps:     s.TargetReps,
				TargetWeightKg: s.TargetWeightKg,
				TargetTimeSec:  s.TargetTimeSec,
			})
		}
		cs.Deleted = append(cs.Deleted, del)
	}

	return cs
}

// isSkippedExercise reports whether the user entered nothing at all: no set
// carries an actual value and none is marked completed.
func isSkippedExercise(ex models.Exercise) bool {
	for _, s := range ex.Sets {
		if s.Completed || s.HasActuals() {
			return false
		}
	}
	return true
}

// diffExercise computes the per-exercise modification record. The second
// return is false when no change was detected: absence signals "no change",
// not an empty record.
func diffExercise(instEx, tplEx models.Exercise) (models.ModifiedExercise, bool) {
	mod := models.ModifiedExercise{Name: instEx.Name}

	switch {
	case len(instEx.Sets) > len(tplEx.Sets):
		mod.SetsAdded = len(instEx.Sets) - len(tplEx.Sets)
	case len(instEx.Sets) < len(tplEx.Sets):
		mod.SetsRemoved = len(tplEx.Sets) - len(instEx.Sets)
	}
	structureChanged := mod.SetsAdded > 0 || mod.SetsRemoved > 0

	overlap := min(len(instEx.Sets), len(tplEx.Sets))
	for i := 0; i < overlap; i++ {
		s := instEx.Sets[i]
		if !s.Completed {
			continue
		}
		t := tplEx.Sets[i]
		if actualDiffersInt(s.ActualReps, t.TargetReps) ||
			actualDiffersFloat(s.ActualWeightKg, t.TargetWeightKg) ||
			actualDiffersInt(s.ActualTimeSec, t.TargetTimeSec) {
			mod.ValuesChanged = true
			break
		}
	}

	switch {
	case structureChanged && mod.ValuesChanged:
		mod.ChangeType = models.ChangeBoth
	case structureChanged:
		mod.ChangeType = models.ChangeStructure
	case mod.ValuesChanged:
		mod.ChangeType = models.ChangeValues
	default:
		return models.ModifiedExercise{}, false
	}
	return mod, true
}

// actualDiffersInt reports whether an entered actual deviates from the target.
// A nil actual means the user entered nothing and never counts as a change.
func actualDiffersInt(actual, target *int) bool {
	if actual == nil {
		return false
	}
	return target == nil || *actual != *target
}

func actualDiffersFloat(actual, target *float64) bool {
	if actual == nil {
		return false
	}
	return target == nil || *actual != *target
}

// ClassifySet classifies a single performed set against its template
// counterpart. Improvement and regression are evaluated only for completed
// sets; weight comparisons dominate rep comparisons, so reps only count as an
// improvement when the accompanying weight did not decrease.
func ClassifySet(performed models.Set, target *models.Set) models.SetChange {
	if target == nil {
		return models.SetAdded
	}
	if !performed.Completed {
		if !performed.HasActuals() {
			return models.SetSkipped
		}
		return models.SetUnchanged
	}

	if performed.ActualWeightKg != nil && target.TargetWeightKg != nil {
		switch {
		case *performed.ActualWeightKg > *target.TargetWeightKg:
			return models.SetImproved
		case *performed.ActualWeightKg < *target.TargetWeightKg:
			return models.SetDecreased
		}
	}
	if performed.ActualReps != nil && target.TargetReps != nil {
		switch {
		case *performed.ActualReps > *target.TargetReps:
			return models.SetImproved
		case *performed.ActualReps < *target.TargetReps:
			return models.SetDecreased
		}
	}
	if performed.ActualTimeSec != nil && target.TargetTimeSec != nil {
		if *performed.ActualTimeSec > *target.TargetTimeSec {
			return models.SetImproved
		}
	}
	return models.SetUnchanged
}

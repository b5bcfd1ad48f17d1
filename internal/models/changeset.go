package models

// ChangeType classifies how a matched exercise diverged from its template.
type ChangeType string

const (
	ChangeValues    ChangeType = "values"
	ChangeStructure ChangeType = "structure"
	ChangeBoth      ChangeType = "both"
)

// MergeStrategy selects how a finished workout is folded back into its
// template. The four values are the complete, closed enumeration.
type MergeStrategy string

const (
	StrategyValuesOnly        MergeStrategy = "values_only"
	StrategyTemplateAndValues MergeStrategy = "template_and_values"
	StrategySaveAsNew         MergeStrategy = "save_as_new"
	StrategyKeepOriginal      MergeStrategy = "keep_original"
)

// Valid reports whether s is one of the four defined strategies.
func (s MergeStrategy) Valid() bool {
	switch s {
	case StrategyValuesOnly, StrategyTemplateAndValues, StrategySaveAsNew, StrategyKeepOriginal:
		return true
	}
	return false
}

// ModifiedExercise records a matched exercise whose values or structure
// diverged from the template.
type ModifiedExercise struct {
	Name          string     `json:"name"`
	ChangeType    ChangeType `json:"change_type"`
	SetsAdded     int        `json:"sets_added"`
	SetsRemoved   int        `json:"sets_removed"`
	ValuesChanged bool       `json:"values_changed"`
}

// SetSnapshot preserves a deleted exercise's original targets for display and
// undo.
type SetSnapshot struct {
	Number         int      `json:"number"`
	TargetReps     *int     `json:"target_reps,omitempty"`
	TargetWeightKg *float64 `json:"target_weight_kg,omitempty"`
	TargetTimeSec  *int     `json:"target_time_sec,omitempty"`
}

// DeletedExercise records a template exercise absent from the instance.
type DeletedExercise struct {
	Name string        `json:"name"`
	Sets []SetSnapshot `json:"sets"`
}

// WorkoutChangeSet is the change detector's output: four disjoint lists that,
// together with the unchanged exercises, account for every exercise in the
// union of template and instance.
type WorkoutChangeSet struct {
	Modified []ModifiedExercise `json:"modified"`
	Deleted  []DeletedExercise  `json:"deleted"`
	Skipped  []string           `json:"skipped"`
	Added    []string           `json:"added"`
}

// HasChanges reports whether the changeset records any divergence.
func (c *WorkoutChangeSet) HasChanges() bool {
	return len(c.Modified) > 0 || len(c.Deleted) > 0 || len(c.Added) > 0
}

// SetChange classifies a single performed set against its template
// counterpart.
type SetChange string

const (
	SetUnchanged SetChange = "none"
	SetImproved  SetChange = "improved"
	SetDecreased SetChange = "decreased"
	SetAdded     SetChange = "added"
	SetSkipped   SetChange = "skipped"
)

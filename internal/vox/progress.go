package vox

// Step identifies a phase of a packaging or restore run. Steps are emitted
// in order; a run that fails stops emitting at the failing step.
type Step string

const (
	StepCollectingState Step = "collecting_state"
	StepExportingDB     Step = "exporting_db"
	StepCollectingFiles Step = "collecting_files"
	StepZipping         Step = "zipping"

	StepRestoringDB    Step = "restoring_db"
	StepRestoringPrefs Step = "restoring_prefs"
	StepRestoringFiles Step = "restoring_files"
	StepFinalizing     Step = "finalizing"
)

// ProgressFunc receives step transitions during packaging and restore.
// It is called from the operation's goroutine and must not block.
type ProgressFunc func(step Step)

package logging

const (
	// FieldComponent identifies the package or subsystem emitting the record.
	FieldComponent = "component"
	// FieldStage names the compile or playback stage.
	FieldStage = "stage"
	// FieldArchive is the archive path being produced or played.
	FieldArchive = "archive"
	// FieldSessionID correlates every record produced by one CLI invocation.
	FieldSessionID = "session_id"
	// FieldEventType is a stable machine-readable event name.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to try next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"

	FieldProgressStage   = "progress_stage"
	FieldProgressPercent = "progress_percent"
	FieldProgressMessage = "progress_message"
)

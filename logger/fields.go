package logger

// Standard field key constants for structured logging.
const (
	FieldComponent = "component"
	FieldPipeline  = "pipeline"
	FieldRunID     = "run_id"
	FieldStage     = "stage"
	FieldStatus    = "status"
	FieldDuration  = "duration"
	FieldError     = "error"
	FieldSchedule  = "schedule"
	FieldQueued    = "queued"
)

package domain

// Notification templates sent to the email dispatcher.
const (
	TemplateReportCreated          = "report_created"
	TemplateReportStatusChanged    = "report_status_changed"
	TemplateQuarterlyStatusChanged = "quarterly_status_changed"
)

// Notification is a fire-and-forget email request.
type Notification struct {
	Recipients []string       `json:"recipients"`
	Template   string         `json:"template"`
	Variables  map[string]any `json:"variables"`
}

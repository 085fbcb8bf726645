package heroku

import "fmt"

// Setup statuses reported by the app-setups API
const (
	SetupPending   = "pending"
	SetupSucceeded = "succeeded"
	SetupFailed    = "failed"
)

// AppRef identifies an app
type AppRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// BuildRef is the build embedded in an app setup
type BuildRef struct {
	ID              string `json:"id"`
	Status          string `json:"status,omitempty"`
	OutputStreamURL string `json:"output_stream_url,omitempty"`
}

// AppSetup is the provisioning job created by POST /app-setups
type AppSetup struct {
	ID             string    `json:"id"`
	Status         string    `json:"status"`
	FailureMessage string    `json:"failure_message,omitempty"`
	App            AppRef    `json:"app"`
	Build          *BuildRef `json:"build"`
	ResolvedURL    string    `json:"resolved_success_url,omitempty"`
	CreatedAt      string    `json:"created_at,omitempty"`
	UpdatedAt      string    `json:"updated_at,omitempty"`
}

// SourceBlob points at the tarball to deploy
type SourceBlob struct {
	URL string `json:"url"`
}

// SetupOverrides carries config vars for the new app
type SetupOverrides struct {
	Env map[string]string `json:"env,omitempty"`
}

// AppSetupRequest is the body of POST /app-setups
type AppSetupRequest struct {
	App        AppRef         `json:"app"`
	SourceBlob SourceBlob     `json:"source_blob"`
	Overrides  SetupOverrides `json:"overrides"`
}

// Build is a Heroku slug build
type Build struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	OutputStreamURL string `json:"output_stream_url,omitempty"`
	App             AppRef `json:"app"`
	CreatedAt       string `json:"created_at,omitempty"`
}

// Formation is one process type's scale and size
type Formation struct {
	Type     string `json:"type"`
	Quantity int    `json:"quantity"`
	Size     string `json:"size,omitempty"`
}

// FormationUpdate changes one process type. Zero-value fields are left alone.
type FormationUpdate struct {
	Type     string `json:"type"`
	Quantity *int   `json:"quantity,omitempty"`
	Size     string `json:"size,omitempty"`
}

// APIError is returned for non-success Heroku responses
type APIError struct {
	StatusCode int    `json:"-"`
	ID         string `json:"id"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	switch {
	case e.Message == "":
		return fmt.Sprintf("Heroku API error (status %d)", e.StatusCode)
	case e.ID == "":
		return fmt.Sprintf("Heroku API error (status %d): %s", e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("Heroku API error (status %d, %s): %s", e.StatusCode, e.ID, e.Message)
	}
}

package models

import "time"

// BuildStatus is the lifecycle state reported by the server for a build
type BuildStatus string

const (
	BuildStatusQueued     BuildStatus = "queued"
	BuildStatusWaiting    BuildStatus = "waiting"
	BuildStatusRunning    BuildStatus = "running"
	BuildStatusInProgress BuildStatus = "in_progress"
	BuildStatusSuccess    BuildStatus = "success"
	BuildStatusFail       BuildStatus = "fail"
	BuildStatusFailed     BuildStatus = "failed"
	BuildStatusError      BuildStatus = "error"
)

// BuildStatuses lists the values accepted by build list --status
var BuildStatuses = []BuildStatus{
	BuildStatusQueued,
	BuildStatusWaiting,
	BuildStatusRunning,
	BuildStatusInProgress,
	BuildStatusSuccess,
	BuildStatusFail,
	BuildStatusFailed,
	BuildStatusError,
}

// TriggerType controls when a plan starts builds
type TriggerType string

const (
	TriggerCommit TriggerType = "commit"
	TriggerTag    TriggerType = "tag"
	TriggerManual TriggerType = "manual"
)

// Page is the envelope for every list response
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// Repository is a source repository registered with MetaCI
type Repository struct {
	ID     int    `json:"id,omitempty"`
	Owner  string `json:"owner"`
	Name   string `json:"name"`
	URL    string `json:"url"`
	Public bool   `json:"public"`
}

// FullName returns the Owner/Name qualifier
func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// Branch is a branch of a Repository known to MetaCI
type Branch struct {
	ID     int         `json:"id,omitempty"`
	Name   string      `json:"name"`
	Repo   *Repository `json:"repo,omitempty"`
	RepoID int         `json:"repo_id,omitempty"`
}

// Plan is a named, triggerable build configuration
type Plan struct {
	ID          int          `json:"id,omitempty"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Org         string       `json:"org"`
	Flows       string       `json:"flows"`
	Type        TriggerType  `json:"type"`
	Regex       string       `json:"regex,omitempty"`
	Context     *string      `json:"context,omitempty"`
	Active      bool         `json:"active"`
	Public      bool         `json:"public"`
	Repos       []Repository `json:"repos,omitempty"`
}

// PlanRepo links a Plan to a Repository
type PlanRepo struct {
	ID     int         `json:"id,omitempty"`
	Plan   *Plan       `json:"plan,omitempty"`
	Repo   *Repository `json:"repo,omitempty"`
	PlanID int         `json:"plan_id,omitempty"`
	RepoID int         `json:"repo_id,omitempty"`
}

// Org is a target execution environment builds run against
type Org struct {
	ID      int         `json:"id,omitempty"`
	Name    string      `json:"name"`
	Repo    *Repository `json:"repo,omitempty"`
	RepoID  int         `json:"repo_id,omitempty"`
	Scratch bool        `json:"scratch"`
	JSON    string      `json:"json,omitempty"`
}

// Build is one execution of a Plan against a commit
type Build struct {
	ID        int         `json:"id,omitempty"`
	Status    BuildStatus `json:"status,omitempty"`
	Repo      *Repository `json:"repo,omitempty"`
	Plan      *Plan       `json:"plan,omitempty"`
	Branch    *Branch     `json:"branch,omitempty"`
	Org       *Org        `json:"org,omitempty"`
	Commit    string      `json:"commit"`
	Log       string      `json:"log,omitempty"`
	TimeQueue *time.Time  `json:"time_queue,omitempty"`
	TimeStart *time.Time  `json:"time_start,omitempty"`
	TimeEnd   *time.Time  `json:"time_end,omitempty"`
}

// BuildRequest is the payload for starting a build
type BuildRequest struct {
	RepoID   int    `json:"repo_id"`
	PlanID   int    `json:"plan_id"`
	BranchID int    `json:"branch_id"`
	OrgID    int    `json:"org_id,omitempty"`
	Commit   string `json:"commit"`
}

// Service is a named credential configuration stored on the server
type Service struct {
	ID   int    `json:"id,omitempty"`
	Name string `json:"name"`
	JSON string `json:"json,omitempty"`
}

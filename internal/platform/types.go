package platform

import "time"

// CombinedStatus is the aggregate of every commit status on a ref.
type CombinedStatus struct {
	State      string
	SHA        string
	TotalCount int
	Statuses   []CommitStatus
}

// CommitStatus is one context reporting on a commit.
type CommitStatus struct {
	Context     string
	State       string
	Description string
	TargetURL   string
}

// DeploymentSpec is the body of a create-deployment call.
type DeploymentSpec struct {
	Ref         string
	Environment string
	Task        string
	Description string
	AutoMerge   bool
	// RequiredContexts nil lets the platform check every context; a
	// non-nil empty slice bypasses status checks.
	RequiredContexts []string
}

// CreatedDeployment is the platform's answer to a create call.
type CreatedDeployment struct {
	// ID is zero when the platform answered 202 without creating a record.
	ID      int64
	SHA     string
	Ref     string
	Message string
}

// DeploymentRecord is an existing deployment.
type DeploymentRecord struct {
	ID          int64
	SHA         string
	Ref         string
	Environment string
	CreatedAt   time.Time
}

// DeploymentState is one status entry of a deployment, newest first.
type DeploymentState struct {
	State          string
	Description    string
	LogURL         string
	EnvironmentURL string
	CreatedAt      time.Time
}

// Release is a published release.
type Release struct {
	TagName string
	Name    string
	Body    string
	Assets  []Asset
}

// Asset is a file attached to a release.
type Asset struct {
	ID          int64
	Name        string
	DownloadURL string
	Size        int64
}

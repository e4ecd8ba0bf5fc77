package broker

const (
	JobFinished = "job_finished"
	RunFinished = "run_finished"
)

type Message struct {
	EventType string `json:"event_type"`
	MachineID string `json:"machine_id"`
	CreatedAt string `json:"created_at"`

	// For job_finished.
	Job     string         `json:"job,omitempty"`
	Volumes []VolumeStatus `json:"volumes,omitempty"`

	Succeeded     bool   `json:"succeeded"`
	Elapsed       string `json:"elapsed"`
	FailureReason string `json:"failure_reason,omitempty"`

	// For run_finished.
	Jobs     uint64 `json:"jobs,omitempty"`
	Failures uint64 `json:"failures,omitempty"`
}

type VolumeStatus struct {
	Volume        string `json:"volume"`
	Succeeded     bool   `json:"succeeded"`
	Elapsed       string `json:"elapsed"`
	FailureReason string `json:"failure_reason,omitempty"`
}

package constants

// TaskStatus is the lifecycle state of a batch task.
type TaskStatus string

// Stable values (store these exact strings in DB).
const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusStarted TaskStatus = "started"
	TaskStatusSuccess TaskStatus = "success"
	TaskStatusFailure TaskStatus = "failure"
	TaskStatusRetry   TaskStatus = "retry"
)

// Terminal reports whether no further progress updates are expected.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusSuccess || s == TaskStatusFailure
}

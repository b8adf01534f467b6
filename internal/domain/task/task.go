package task

import "errors"

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

var ErrInvalidStatus = errors.New("invalid task status")

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", ErrInvalidStatus
	}
	return st, nil
}

func (s Status) IsValid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	default:
		return false
	}
}

// Label is the short badge text shown next to a task.
func (s Status) Label() string {
	switch s {
	case StatusTodo:
		return "todo"
	case StatusInProgress:
		return "in progress"
	case StatusDone:
		return "done"
	default:
		return "unknown"
	}
}

// Color is the timeline bar color for the status.
func (s Status) Color() string {
	switch s {
	case StatusTodo:
		return "indigo"
	case StatusInProgress:
		return "blue"
	case StatusDone:
		return "green"
	default:
		return "gray"
	}
}

type Task struct {
	ID          string `json:"id"`
	ProjectID   string `json:"projectId"`
	ProjectName string `json:"projectName"`
	Title       string `json:"title"`
	OwnerID     string `json:"ownerId"`
	OwnerName   string `json:"ownerName"`
	Client      string `json:"client"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Notes       string `json:"notes"`
	Status      Status `json:"status"`
}

type CreateTaskRequest struct {
	Title     string `json:"title" binding:"required,max=200"`
	StartDate string `json:"startDate" binding:"required,datetime=2006-01-02"`
	EndDate   string `json:"endDate" binding:"required,datetime=2006-01-02"`
	Notes     string `json:"notes" binding:"omitempty,max=2000"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=todo in-progress done"`
}

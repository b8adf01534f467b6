package project

type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	OwnerID     string `json:"ownerId"`
	OwnerName   string `json:"ownerName"`
	Client      string `json:"client"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Description string `json:"description,omitempty"`
}

type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required,max=120"`
	Client      string `json:"client" binding:"required,max=120"`
	StartDate   string `json:"startDate" binding:"required,datetime=2006-01-02"`
	EndDate     string `json:"endDate" binding:"required,datetime=2006-01-02"`
	Description string `json:"description" binding:"omitempty,max=1000"`
}

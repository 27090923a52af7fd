package request

type CreateApplicationRequest struct {
	FullName       string `json:"fullName" binding:"required"`
	Phone          string `json:"phone" binding:"required"`
	Age            int    `json:"age"`
	City           string `json:"city" binding:"required"`
	Category       string `json:"category" binding:"required"`
	Experience     string `json:"experience"`
	Transport      string `json:"transport"`
	LoadCapacity   string `json:"loadCapacity"`
	AdditionalInfo string `json:"additionalInfo"`
}

type WorkItemActionRequest struct {
	WorkItemUuid string `json:"workItemUuid" binding:"required"`
	Action       string `json:"action" binding:"required"`
	Notes        string `json:"notes"`
}

package respond

type ApplicationItem struct {
	Uuid           string `json:"uuid"`
	WorkItemUuid   string `json:"workItemUuid"`
	FullName       string `json:"fullName"`
	Phone          string `json:"phone"`
	Age            int    `json:"age,omitempty"`
	City           string `json:"city"`
	Category       string `json:"category"`
	Experience     string `json:"experience,omitempty"`
	Transport      string `json:"transport,omitempty"`
	LoadCapacity   string `json:"loadCapacity,omitempty"`
	AdditionalInfo string `json:"additionalInfo,omitempty"`
	Notes          string `json:"notes,omitempty"`
	Status         string `json:"status"`
	CreatedAt      string `json:"createdAt"`
}

type WorkItemItem struct {
	Uuid                 string `json:"uuid"`
	Kind                 string `json:"kind"`
	Status               string `json:"status"`
	AssignedOperatorUuid string `json:"assignedOperatorUuid,omitempty"`
	SessionID            string `json:"sessionId,omitempty"`
	CreatedAt            string `json:"createdAt"`
	AssignedAt           string `json:"assignedAt,omitempty"`
	CompletedAt          string `json:"completedAt,omitempty"`
}

package respond

type LoginRespond struct {
	Uuid      string `json:"uuid"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	IsAdmin   bool   `json:"isAdmin"`
	Token     string `json:"token"`
}

type OperatorItem struct {
	Uuid                   string `json:"uuid"`
	Username               string `json:"username"`
	FirstName              string `json:"firstName"`
	LastName               string `json:"lastName"`
	Status                 string `json:"status"`
	ActiveConversations    int    `json:"activeConversations"`
	MaxActiveConversations int    `json:"maxActiveConversations"`
	TotalHandled           int    `json:"totalHandled"`
	LastSeen               string `json:"lastSeen"`
}

type OperatorStats struct {
	Uuid                string  `json:"uuid"`
	Status              string  `json:"status"`
	ActiveConversations int     `json:"activeConversations"`
	TotalHandled        int     `json:"totalHandled"`
	AvgResponseSeconds  int     `json:"avgResponseSeconds"`
	WeekOnDutyHours     float64 `json:"weekOnDutyHours"`
}

package types

// AccessRequest is what a kiosk sends when a member presents their ID.
type AccessRequest struct {
	Identifier string `json:"identifier"`
}

type AccessResponse struct {
	Allowed    bool               `json:"allowed"`
	ReasonCode *string            `json:"reason_code"`
	Membership *MembershipSummary `json:"membership"`
	AccessID   string             `json:"access_id,omitempty"`
	ServerTime string             `json:"server_time"`
}

// MembershipSummary is shown on the kiosk next to the decision.
type MembershipSummary struct {
	MemberID          string  `json:"member_id"`
	Identifier        string  `json:"identifier"`
	Name              string  `json:"name"`
	LastName          string  `json:"last_name"`
	BirthDate         *string `json:"birth_date,omitempty"`
	Modality          *string `json:"modality"`
	StartDate         *string `json:"start_date"`
	EndDate           *string `json:"end_date"`
	WeeklyAccesses    int     `json:"weekly_accesses"`
	RemainingAccesses *int    `json:"remaining_accesses"`
}

type WeeklyUsageResponse struct {
	Identifier        string  `json:"identifier"`
	Modality          *string `json:"modality"`
	WeeklyAccesses    int     `json:"weekly_accesses"`
	Capacity          *int    `json:"capacity"`
	RemainingAccesses *int    `json:"remaining_accesses"`
	WeekStart         string  `json:"week_start"`
}

type AccessRecordView struct {
	AccessID   string  `json:"access_id"`
	AccessedAt string  `json:"accessed_at"`
	Allowed    bool    `json:"allowed"`
	ReasonCode *string `json:"reason_code"`
}

type AccessHistoryResponse struct {
	Identifier string             `json:"identifier"`
	Items      []AccessRecordView `json:"items"`
}

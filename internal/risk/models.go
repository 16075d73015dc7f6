package risk

import "time"

type Status string

const (
	StatusOpen       Status = "open"
	StatusMitigating Status = "mitigating"
	StatusMonitoring Status = "monitoring"
	StatusClosed     Status = "closed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusMitigating, StatusMonitoring, StatusClosed:
		return true
	}
	return false
}

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Risk is a register entry. RiskScore is always Likelihood*Impact and is
// never accepted from callers.
type Risk struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Category       string         `json:"category"`
	Likelihood     int            `json:"likelihood"`
	Impact         int            `json:"impact"`
	RiskScore      int            `json:"risk_score"`
	Band           Band           `json:"band"`
	Status         Status         `json:"status"`
	ApprovalStatus ApprovalStatus `json:"approval_status"`
	ApprovedBy     *string        `json:"approved_by"`
	ApprovedAt     *time.Time     `json:"approved_at"`
	MitigationPlan string         `json:"mitigation_plan"`
	ObjectiveID    *string        `json:"objective_id"`
	OwnerID        *string        `json:"owner_id"`
	RiskChampionID *string        `json:"risk_champion_id"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

type CreateRequest struct {
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Category       string  `json:"category"`
	Likelihood     int     `json:"likelihood"`
	Impact         int     `json:"impact"`
	MitigationPlan string  `json:"mitigation_plan"`
	ObjectiveID    *string `json:"objective_id"`
	// OwnerID defaults to the submitter.
	OwnerID        *string `json:"owner_id"`
	RiskChampionID *string `json:"risk_champion_id"`
}

// UpdateRequest is a partial update; nil fields are left unchanged.
type UpdateRequest struct {
	Title          *string `json:"title"`
	Description    *string `json:"description"`
	Category       *string `json:"category"`
	Likelihood     *int    `json:"likelihood"`
	Impact         *int    `json:"impact"`
	MitigationPlan *string `json:"mitigation_plan"`
	ObjectiveID    *string `json:"objective_id"`
	OwnerID        *string `json:"owner_id"`
	RiskChampionID *string `json:"risk_champion_id"`
}

type ListFilter struct {
	Status         Status
	ApprovalStatus ApprovalStatus
	Category       string
	OwnerID        string
	Limit          int
}

// Decision is an approval outcome applied exactly once to a pending risk.
type Decision struct {
	Status    ApprovalStatus
	DecidedBy string
	DecidedAt time.Time
}

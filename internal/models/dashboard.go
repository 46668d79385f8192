package models

// ── Dashboard Metrics ────────────────────────────────────────────

// DashboardMetrics holds the main dashboard statistics, computed inside
// the caller's current company scope.
type DashboardMetrics struct {
	TotalProjects        int     `json:"totalProjects"`
	ActiveProjects       int     `json:"activeProjects"`
	TotalUsers           int     `json:"totalUsers"`
	PendingRequisitions  int     `json:"pendingRequisitions"`
	ApprovedRequisitions int     `json:"approvedRequisitions"`
	RejectedRequisitions int     `json:"rejectedRequisitions"`
	ApprovedAmount       float64 `json:"approvedAmount"`
	PendingAmount        float64 `json:"pendingAmount"`
}

// CompanySummary includes project and requisition counts per company.
type CompanySummary struct {
	ID                  string  `json:"id"`
	Name                string  `json:"name"`
	ProjectCount        int     `json:"projectCount"`
	UserCount           int     `json:"userCount"`
	PendingRequisitions int     `json:"pendingRequisitions"`
	ApprovedAmount      float64 `json:"approvedAmount"`
}

// ProjectSpend is per-project requisition spend for the dashboard chart.
type ProjectSpend struct {
	ProjectID      string  `json:"projectId"`
	ProjectName    string  `json:"projectName"`
	CompanyName    string  `json:"companyName"`
	ApprovedAmount float64 `json:"approvedAmount"`
	PendingAmount  float64 `json:"pendingAmount"`
	PendingCount   int     `json:"pendingCount"`
}

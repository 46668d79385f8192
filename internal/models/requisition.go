package models

// Requisition business statuses.
const (
	RequisitionPending  = "pending_approval"
	RequisitionApproved = "approved"
	RequisitionRejected = "rejected"
)

// Requisition is a purchase request raised inside a project. Whether it
// starts life approved or pending depends on the creator's per-project
// approval requirement.
type Requisition struct {
	ID             string  `json:"id"`
	InternalFolio  string  `json:"internalFolio"`
	CompanyID      string  `json:"companyId"`
	ProjectID      string  `json:"projectId"`
	CreatedBy      string  `json:"createdBy"`
	ApprovedBy     *string `json:"approvedBy,omitempty"`
	TotalAmount    float64 `json:"totalAmount"`
	BusinessStatus string  `json:"businessStatus"`
	Notes          *string `json:"notes,omitempty"`
	CreatedAt      string  `json:"createdAt"`
	UpdatedAt      string  `json:"updatedAt"`
}

// CreateRequisitionRequest holds the fields needed to raise a requisition.
type CreateRequisitionRequest struct {
	ProjectID   string  `json:"projectId"`
	TotalAmount float64 `json:"totalAmount"`
	Notes       *string `json:"notes,omitempty"`
}

// Validate checks required requisition fields.
func (r *CreateRequisitionRequest) Validate() map[string]string {
	errors := map[string]string{}
	if r.ProjectID == "" {
		errors["projectId"] = "Project is required"
	}
	if r.TotalAmount < 0 {
		errors["totalAmount"] = "Total amount cannot be negative"
	}
	return errors
}

// UpdateRequisitionStatusRequest approves or rejects a pending requisition.
type UpdateRequisitionStatusRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes,omitempty"`
}

// Validate checks the target status.
func (r *UpdateRequisitionStatusRequest) Validate() map[string]string {
	errors := map[string]string{}
	if r.Status != RequisitionApproved && r.Status != RequisitionRejected {
		errors["status"] = "Status must be 'approved' or 'rejected'"
	}
	return errors
}

package models

// Project is a mid-level grouping inside a company. It owns a membership
// list and has a single supervisor.
type Project struct {
	ID           string  `json:"id"`
	CompanyID    string  `json:"companyId"`
	Name         string  `json:"name"`
	Description  *string `json:"description,omitempty"`
	Status       string  `json:"status"` // active, on_hold, completed, archived
	SupervisorID *string `json:"supervisorId,omitempty"`
	CreatedAt    string  `json:"createdAt"`
	UpdatedAt    string  `json:"updatedAt"`
}

// ProjectMembership links a user to a project. RequiresApproval is
// tri-state in the database: NULL means the flag was never set, which the
// engine treats as "approval required".
type ProjectMembership struct {
	ProjectID        string `json:"projectId"`
	UserID           string `json:"userId"`
	RequiresApproval *bool  `json:"requiresApproval,omitempty"`
}

// ProjectMember is a membership row joined with user details for display.
type ProjectMember struct {
	ProjectID        string `json:"projectId"`
	UserID           string `json:"userId"`
	UserName         string `json:"userName"`
	UserEmail        string `json:"userEmail"`
	RequiresApproval *bool  `json:"requiresApproval,omitempty"`
}

// CreateProjectRequest holds the fields needed to create or update a project.
type CreateProjectRequest struct {
	CompanyID    string  `json:"companyId"`
	Name         string  `json:"name"`
	Description  *string `json:"description,omitempty"`
	Status       string  `json:"status,omitempty"`
	SupervisorID *string `json:"supervisorId,omitempty"`
}

// Validate checks required project fields.
func (r *CreateProjectRequest) Validate() map[string]string {
	errors := map[string]string{}
	if r.Name == "" {
		errors["name"] = "Project name is required"
	}
	if r.CompanyID == "" {
		errors["companyId"] = "Company is required"
	}
	if r.Status != "" {
		valid := map[string]bool{"active": true, "on_hold": true, "completed": true, "archived": true}
		if !valid[r.Status] {
			errors["status"] = "Status must be 'active', 'on_hold', 'completed', or 'archived'"
		}
	}
	return errors
}

// AddMemberRequest adds a user to a project. A nil RequiresApproval keeps
// the database column NULL, which the access engine reads as true.
type AddMemberRequest struct {
	UserID           string `json:"userId"`
	RequiresApproval *bool  `json:"requiresApproval,omitempty"`
}

// Validate checks required membership fields.
func (r *AddMemberRequest) Validate() map[string]string {
	errors := map[string]string{}
	if r.UserID == "" {
		errors["userId"] = "User is required"
	}
	return errors
}

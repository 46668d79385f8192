package models

// Company is the top-level tenant boundary. Every project, requisition,
// and non-dev user belongs to exactly one company.
//
// BindLocationID and BindPriceListID tie the company to its counterparts in
// the external ERP; two company rows sharing both bindings represent the
// same physical tenant onboarded twice.
type Company struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	BindLocationID  *string `json:"bindLocationId,omitempty"`
	BindPriceListID *string `json:"bindPriceListId,omitempty"`
	CreatedAt       string  `json:"createdAt"`
	UpdatedAt       string  `json:"updatedAt"`
}

// CreateCompanyRequest defines the accepted fields for company creation/update.
type CreateCompanyRequest struct {
	Name            string  `json:"name"`
	BindLocationID  *string `json:"bindLocationId,omitempty"`
	BindPriceListID *string `json:"bindPriceListId,omitempty"`
}

// Validate checks that required company fields are present.
func (r *CreateCompanyRequest) Validate() map[string]string {
	errors := map[string]string{}
	if r.Name == "" {
		errors["name"] = "Company name is required"
	}
	return errors
}

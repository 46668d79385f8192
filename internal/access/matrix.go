package access

import "procurement-backend/internal/models"

// BuildApprovalMap turns membership rows into a nested
// projectID -> userID -> requiresApproval map. Rows missing a project or
// user ID are dropped. A NULL requires_approval column defaults to true:
// approval is required unless explicitly waived.
//
// The result is deterministic and order-independent: shuffling the input
// rows yields an identical map.
func BuildApprovalMap(rows []models.ProjectMembership) map[string]map[string]bool {
	out := make(map[string]map[string]bool)

	for _, row := range rows {
		if row.ProjectID == "" || row.UserID == "" {
			continue
		}
		inner, ok := out[row.ProjectID]
		if !ok {
			inner = make(map[string]bool)
			out[row.ProjectID] = inner
		}
		inner[row.UserID] = row.RequiresApproval == nil || *row.RequiresApproval
	}

	return out
}

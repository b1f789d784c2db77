package users

import (
	"fmt"

	"github.com/splax/umd/internal/domain"
)

// RoleCount is the number of users holding one role.
type RoleCount struct {
	Role  domain.Role `json:"role"`
	Count int         `json:"count"`
}

// Stats summarizes a user collection.
type Stats struct {
	Total  int         `json:"total"`
	ByRole []RoleCount `json:"by_role"`
}

// Count returns the tally for role, or 0 when role was not requested.
func (s Stats) Count(role domain.Role) int {
	for _, rc := range s.ByRole {
		if rc.Role == role {
			return rc.Count
		}
	}
	return 0
}

// ComputeStats counts users in total and for each of roles, in the order given.
func ComputeStats(list []domain.User, roles []domain.Role) Stats {
	stats := Stats{Total: len(list), ByRole: make([]RoleCount, 0, len(roles))}
	for _, role := range roles {
		count := 0
		for _, u := range list {
			if u.Role == role {
				count++
			}
		}
		stats.ByRole = append(stats.ByRole, RoleCount{Role: role, Count: count})
	}
	return stats
}

// ParseStatRoles converts configured role names, rejecting unknown ones.
func ParseStatRoles(names []string) ([]domain.Role, error) {
	roles := make([]domain.Role, 0, len(names))
	for _, name := range names {
		role, ok := domain.ParseRole(name)
		if !ok {
			return nil, fmt.Errorf("unknown role %q", name)
		}
		roles = append(roles, role)
	}
	return roles, nil
}

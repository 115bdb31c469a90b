package service

import (
	"context"
	"sort"

	"github.com/authentic/backend/internal/model"
)

const securityAuditLimit = 20

// SecurityAudit reconstructs a security timeline from the user's refresh
// session history. There is no separate write path: every session mutation
// is itself the audit record.
func (s *TokenService) SecurityAudit(ctx context.Context, userID string) ([]model.SecurityEvent, error) {
	sessions, err := s.repo.ListRefreshSessionsByUser(ctx, userID, securityAuditLimit)
	if err != nil {
		return nil, err
	}

	events := make([]model.SecurityEvent, 0, len(sessions)*2)
	for _, session := range sessions {
		events = append(events, model.SecurityEvent{
			Type:       "Refresh token issued",
			At:         session.CreatedAt,
			DeviceInfo: session.DeviceInfo,
			IP:         session.IPAddress,
		})
		if session.IsValid {
			events = append(events, model.SecurityEvent{
				Type:       "Session is valid",
				At:         session.UpdatedAt,
				DeviceInfo: session.DeviceInfo,
				IP:         session.IPAddress,
			})
		}
		if session.ReplacedByHash != "" {
			events = append(events, model.SecurityEvent{
				Type:       "Token rotated",
				At:         session.UpdatedAt,
				DeviceInfo: session.DeviceInfo,
				IP:         session.IPAddress,
			})
		}
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].At.After(events[j].At)
	})
	if len(events) > securityAuditLimit {
		events = events[:securityAuditLimit]
	}
	return events, nil
}

package service

import (
	"context"
	"encoding/json"
	"fmt"

	"civil-erp/internal/model"
	"civil-erp/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type AuditLogResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	UserName   string `json:"user_name"`
	Action     string `json:"action"`
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name"`
	Details    string `json:"details"`
	CreatedAt  string `json:"created_at"`
}

type AuditService interface {
	// Record is best-effort: a failed write is logged and never fails the caller.
	Record(ctx context.Context, actorID *uuid.UUID, action, entityID, entityName string, details interface{})
	GetAuditLogs(ctx context.Context, page, limit int) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	repo repository.AuditRepository
	log  logrus.FieldLogger
}

// NewAuditService creates a new AuditService instance
func NewAuditService(repo repository.AuditRepository, log logrus.FieldLogger) AuditService {
	return &auditService{repo: repo, log: log}
}

func (s *auditService) Record(ctx context.Context, actorID *uuid.UUID, action, entityID, entityName string, details interface{}) {
	payload := ""
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			s.log.WithError(err).WithField("action", action).Warn("audit details not serializable")
		} else {
			payload = string(raw)
		}
	}

	entry := &model.AuditLog{
		UserID:     actorID,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    payload,
	}
	if err := s.repo.Log(ctx, entry); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"action":    action,
			"entity_id": entityID,
		}).Error("failed to write audit log")
	}
}

// GetAuditLogs returns newest first with the acting user preloaded.
func (s *auditService) GetAuditLogs(ctx context.Context, page, limit int) ([]AuditLogResponse, int64, error) {
	logs, total, err := s.repo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch audit logs: %w", err)
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		userName := "System"
		userID := ""
		if l.User != nil {
			userName = l.User.Name
		}
		if l.UserID != nil {
			userID = l.UserID.String()
		}

		res = append(res, AuditLogResponse{
			ID:         l.ID.String(),
			UserID:     userID,
			UserName:   userName,
			Action:     l.Action,
			EntityID:   l.EntityID,
			EntityName: l.EntityName,
			Details:    l.Details,
			CreatedAt:  l.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	return res, total, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"civil-erp/internal/metrics"
	"civil-erp/internal/model"
	"civil-erp/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CredentialProvider holds the active tax-authority credential set in memory.
// Secrets stay encrypted; the portal client decrypts them per call.
type CredentialProvider interface {
	// Current returns a copy of the loaded record, or nil when none is configured.
	Current() *model.GSTCredential
	Reload(ctx context.Context) error
}

type credentialProvider struct {
	repo    repository.GSTCredentialRepository
	metrics *metrics.Metrics
	log     logrus.FieldLogger

	mu      sync.RWMutex
	current *model.GSTCredential
}

func NewCredentialProvider(repo repository.GSTCredentialRepository, m *metrics.Metrics, log logrus.FieldLogger) CredentialProvider {
	return &credentialProvider{repo: repo, metrics: m, log: log}
}

func (p *credentialProvider) Current() *model.GSTCredential {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == nil {
		return nil
	}
	c := *p.current
	return &c
}

// Reload replaces the in-memory record. On a store error the previous record is kept.
func (p *credentialProvider) Reload(ctx context.Context) error {
	cred, err := p.repo.Get(ctx)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		p.metrics.RecordCredentialReload("error")
		return fmt.Errorf("failed to reload GST credentials: %w", err)
	}
	if err != nil {
		cred = nil
	}

	p.mu.Lock()
	changed := (p.current == nil) != (cred == nil) ||
		(cred != nil && p.current != nil && !cred.UpdatedAt.Equal(p.current.UpdatedAt))
	p.current = cred
	p.mu.Unlock()

	p.metrics.RecordCredentialReload("ok")
	if changed {
		p.log.WithField("configured", cred != nil).Info("GST credentials reloaded")
	}
	return nil
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/glyphlab/moji/internal/common"
	"github.com/glyphlab/moji/internal/dbx"
	"github.com/glyphlab/moji/internal/logging"
	"github.com/glyphlab/moji/internal/server/authz"
	"github.com/glyphlab/moji/internal/server/config"
	"github.com/glyphlab/moji/internal/server/models"
	"github.com/glyphlab/moji/internal/server/repositories/repomanager"
)

// Explainer produces an explanation for a key that has no stored
// interpretation yet. The real engine is an external collaborator; the
// default implementation just marks the entry as machine-generated.
type Explainer interface {
	Explain(ctx context.Context, key string) (string, error)
}

// StaticExplainer is the fallback Explainer used when no engine is wired in.
type StaticExplainer struct{}

func (StaticExplainer) Explain(_ context.Context, key string) (string, error) {
	return fmt.Sprintf("Generated interpretation of %s", key), nil
}

// RegistryService curates the uniquely-keyed interpretation registry.
// Creation and the uniqueness check are one transaction with the audit
// write, so two concurrent creates with the same key leave exactly one
// winner and one typed failure.
type RegistryService struct {
	db        *sql.DB
	repos     repomanager.RepositoryManager
	audit     *AuditService
	explainer Explainer
	logger    logging.Logger
	timeout   time.Duration
}

// NewRegistryService constructs a RegistryService. A nil explainer falls
// back to StaticExplainer.
func NewRegistryService(db *sql.DB, m repomanager.RepositoryManager, audit *AuditService, explainer Explainer, logger logging.Logger, cfg *config.Config) *RegistryService {
	if explainer == nil {
		explainer = StaticExplainer{}
	}
	return &RegistryService{
		db:        db,
		repos:     m,
		audit:     audit,
		explainer: explainer,
		logger:    logger.With("component", "registry"),
		timeout:   cfg.StorageTimeout,
	}
}

// Create inserts a new interpretation owned by the actor.
func (s *RegistryService) Create(ctx context.Context, actor *models.User, key, explanation string) (*models.Interpretation, error) {
	if !authz.Authorize(actor.Role, authz.ActionCreateInterpretation) {
		return nil, common.ErrForbidden
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	return s.createAudited(ctx, actor.ID, key, explanation, models.ActionInterpCreate)
}

// Update replaces the explanation for an existing key.
func (s *RegistryService) Update(ctx context.Context, actor *models.User, key, newExplanation string) (*models.Interpretation, error) {
	if !authz.Authorize(actor.Role, authz.ActionUpdateInterpretation) {
		return nil, common.ErrForbidden
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var interp *models.Interpretation
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		updated, err := s.repos.Interpretations(tx).UpdateExplanation(ctx, key, newExplanation)
		if err != nil {
			return err
		}
		interp = updated
		_, err = s.audit.Record(ctx, tx, actor.ID, models.ActionInterpUpdate)
		return err
	})
	if err != nil {
		return nil, err
	}
	return interp, nil
}

// Delete removes the interpretation for key.
func (s *RegistryService) Delete(ctx context.Context, actor *models.User, key string) error {
	if !authz.Authorize(actor.Role, authz.ActionDeleteInterpretation) {
		return common.ErrForbidden
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Interpretations(tx).Delete(ctx, key); err != nil {
			return err
		}
		_, err := s.audit.Record(ctx, tx, actor.ID, models.ActionInterpDelete)
		return err
	})
}

// Lookup returns the interpretation for key. Reads are authenticated but
// open to every role.
func (s *RegistryService) Lookup(ctx context.Context, actor *models.User, key string) (*models.Interpretation, error) {
	if !authz.Authorize(actor.Role, authz.ActionReadInterpretation) {
		return nil, common.ErrForbidden
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	return s.repos.Interpretations(s.db).GetByKey(ctx, key)
}

// Interpret resolves a key for any authenticated role: a stored entry wins;
// otherwise the explainer produces one and the result is stored attributed
// to the actor. Losing a concurrent create race falls back to the winner's
// row. Only the store path is audited; a cached hit is a plain read.
func (s *RegistryService) Interpret(ctx context.Context, actor *models.User, key string) (*models.Interpretation, error) {
	if !authz.Authorize(actor.Role, authz.ActionReadInterpretation) {
		return nil, common.ErrForbidden
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	interp, err := s.repos.Interpretations(s.db).GetByKey(ctx, key)
	if err == nil {
		return interp, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	explanation, err := s.explainer.Explain(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("explaining %q: %w", key, err)
	}

	created, err := s.createAudited(ctx, actor.ID, key, explanation, models.ActionInterpResolve)
	if err != nil {
		if errors.Is(err, common.ErrDuplicateKey) {
			// Lost the race; the winner's row is the answer.
			return s.repos.Interpretations(s.db).GetByKey(ctx, key)
		}
		return nil, err
	}
	return created, nil
}

func (s *RegistryService) createAudited(ctx context.Context, actorID int64, key, explanation, action string) (*models.Interpretation, error) {
	interp := &models.Interpretation{Key: key, Explanation: explanation, CreatedBy: actorID}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		created, err := s.repos.Interpretations(tx).Create(ctx, interp)
		if err != nil {
			return err
		}
		interp = created
		_, err = s.audit.Record(ctx, tx, actorID, action)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "interpretation stored", "key", key, "created_by", actorID)
	return interp, nil
}

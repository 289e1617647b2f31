package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/policyhub-service/internal/domain"
	"github.com/policyhub-service/internal/domain/repository"
	"github.com/policyhub-service/internal/metrics"
	"github.com/policyhub-service/internal/pkg/errors"
)

// TransitionRequest - запрос на выполнение действия над выбором
type TransitionRequest struct {
	Action      domain.Action
	Selection   domain.Selection
	ActivePhase domain.Phase
	Confirmed   bool
}

// TransitionUseCase - движок переходов фаз. Локальное состояние не меняется
// до подтверждения репозиторием; после успеха справочник перечитывается.
type TransitionUseCase struct {
	repo   repository.HubRepository
	guard  *inFlightGuard
	logger *zap.Logger
}

func NewTransitionUseCase(repo repository.HubRepository, logger *zap.Logger) *TransitionUseCase {
	return &TransitionUseCase{
		repo:   repo,
		guard:  newInFlightGuard(),
		logger: logger,
	}
}

// Execute выполняет одно действие жизненного цикла
func (uc *TransitionUseCase) Execute(ctx context.Context, dir *HubDirectory, req TransitionRequest) error {
	if !req.Selection.HasSelection() {
		return errors.ErrEmptySelection
	}

	call, ok := uc.repositoryCall(req.Action)
	if !ok {
		return errors.ErrActionNotEligible.WithMessage("%s is not a phase transition", req.Action)
	}

	if dir.IsStale() {
		if err := dir.Refresh(ctx); err != nil {
			return err
		}
	}
	hubs := dir.Snapshot()

	// Проверка допустимости по последнему известному состоянию справочника
	actions := domain.EligibleActions(req.Selection, hubs, req.ActivePhase, 0)
	if !actions.Allows(req.Action) {
		metrics.TransitionsTotal.WithLabelValues(string(req.Action), "rejected").Inc()
		return errors.ErrActionNotEligible.WithDetails(map[string]interface{}{
			"action":  string(req.Action),
			"allowed": actions.Actions(),
		})
	}

	if req.Action.RequiresConfirmation() && !req.Confirmed {
		return errors.ErrConfirmationRequired.WithDetails(map[string]interface{}{"action": string(req.Action)})
	}

	geographyIDs := selectedGeographyIDs(req.Selection, hubs)
	if !uc.guard.acquire(geographyIDs) {
		metrics.TransitionsTotal.WithLabelValues(string(req.Action), "in_flight").Inc()
		return errors.ErrActionInFlight.WithDetails(map[string]interface{}{"geography_ids": geographyIDs})
	}
	defer uc.guard.release(geographyIDs)

	start := time.Now()
	err := call(ctx, geographyIDs)
	metrics.TransitionDurationMs.WithLabelValues(string(req.Action)).Observe(elapsedMs(start))
	if err != nil {
		metrics.TransitionsTotal.WithLabelValues(string(req.Action), "failed").Inc()
		uc.logger.Error("Transition failed",
			zap.String("action", string(req.Action)),
			zap.String("municipality", dir.Municipality()),
			zap.Strings("geography_ids", geographyIDs),
			zap.Error(err))
		return err
	}

	metrics.TransitionsTotal.WithLabelValues(string(req.Action), "succeeded").Inc()
	uc.logger.Info("Transition succeeded",
		zap.String("action", string(req.Action)),
		zap.String("municipality", dir.Municipality()),
		zap.Strings("geography_ids", geographyIDs))

	dir.invalidateAndRefetch(ctx)
	return nil
}

func (uc *TransitionUseCase) repositoryCall(a domain.Action) (func(context.Context, []string) error, bool) {
	switch a {
	case domain.ActionCommit:
		return uc.repo.Commit, true
	case domain.ActionRevert:
		return uc.repo.MakeConcept, true
	case domain.ActionDeriveNewConcept:
		return uc.repo.DeriveConcept, true
	case domain.ActionProposeRetirement:
		return uc.repo.ProposeRetirement, true
	}
	return nil, false
}

func selectedGeographyIDs(sel domain.Selection, hubs []domain.Hub) []string {
	index := domain.IndexHubs(hubs)
	selected := make([]*domain.Hub, 0, len(sel.IDs()))
	for _, id := range sel.IDs() {
		if h, ok := index[id]; ok {
			selected = append(selected, h)
		}
	}
	return domain.GeographyIDs(selected)
}

// inFlightGuard допускает не больше одного мутирующего запроса на geography_id
type inFlightGuard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func newInFlightGuard() *inFlightGuard {
	return &inFlightGuard{inFlight: make(map[string]struct{})}
}

// acquire захватывает все id либо ни одного
func (g *inFlightGuard) acquire(ids []string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, id := range ids {
		if _, busy := g.inFlight[id]; busy {
			return false
		}
	}
	for _, id := range ids {
		g.inFlight[id] = struct{}{}
	}
	return true
}

func (g *inFlightGuard) release(ids []string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, id := range ids {
		delete(g.inFlight, id)
	}
}

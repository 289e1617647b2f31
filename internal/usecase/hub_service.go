package usecase

import (
	"context"
	stderrors "errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/policyhub-service/internal/domain"
	"github.com/policyhub-service/internal/domain/repository"
	"github.com/policyhub-service/internal/metrics"
	"github.com/policyhub-service/internal/pkg/errors"
	"github.com/policyhub-service/internal/pkg/geo"
)

// HubService - авторитетная реализация HubRepository поверх PostGIS.
// Сервер сериализует конфликтующие записи; клиентская часть движка работает
// через тот же интерфейс.
type HubService struct {
	store      repository.HubStore
	borders    repository.BorderRepository
	streamRepo repository.StreamRepository
	logger     *zap.Logger
}

var _ repository.HubRepository = (*HubService)(nil)

// NewHubService создаёт HubService. streamRepo может быть nil -
// тогда события изменений не публикуются.
func NewHubService(
	store repository.HubStore,
	borders repository.BorderRepository,
	streamRepo repository.StreamRepository,
	logger *zap.Logger,
) *HubService {
	return &HubService{
		store:      store,
		borders:    borders,
		streamRepo: streamRepo,
		logger:     logger,
	}
}

func (s *HubService) FetchHubs(ctx context.Context, municipality string) ([]domain.Hub, error) {
	if municipality == "" {
		return nil, errors.ErrInvalidRequest.WithMessage("municipality is required")
	}
	return s.store.ListByMunicipality(ctx, municipality)
}

// Commit переводит черновики в committed-фазы. Все geography_id проверяются
// до записи: одна недопустимая зона отклоняет весь пакет.
func (s *HubService) Commit(ctx context.Context, geographyIDs []string) error {
	if len(geographyIDs) == 0 {
		return errors.ErrEmptySelection
	}

	groups, err := s.loadGroups(ctx, geographyIDs)
	if err != nil {
		return err
	}

	var changes []repository.PhaseChange
	var touched []*domain.Hub
	for _, id := range geographyIDs {
		h, err := groups.single(id, domain.PhaseConcept, domain.PhaseRetirementConcept)
		if err != nil {
			return err
		}
		if !h.GeographyType.InWorkflow() {
			return errors.ErrMonitoringHubNotAllowed.WithDetails(map[string]interface{}{
				"geography_id": id,
				"zone_id":      h.ZoneID,
			})
		}
		to, _ := h.Phase.CommitTarget()
		changes = append(changes, repository.PhaseChange{ZoneID: h.ZoneID, From: h.Phase, To: to})
		touched = append(touched, h)
	}

	if err := s.store.UpdatePhases(ctx, changes, ActorFromContext(ctx)); err != nil {
		s.logger.Error("Failed to commit hubs", zap.Strings("geography_ids", geographyIDs), zap.Error(err))
		return err
	}

	s.logger.Info("Hubs committed",
		zap.Strings("geography_ids", geographyIDs),
		zap.Int("changes", len(changes)))
	s.publishChanged(ctx, string(domain.ActionCommit), touched)
	return nil
}

// MakeConcept возвращает committed_concept и committed_retirement_concept
// в черновую фазу. Хабы в других фазах не затрагиваются: geography_id без
// committed-черновика отклоняет весь пакет.
func (s *HubService) MakeConcept(ctx context.Context, geographyIDs []string) error {
	if len(geographyIDs) == 0 {
		return errors.ErrEmptySelection
	}

	groups, err := s.loadGroups(ctx, geographyIDs)
	if err != nil {
		return err
	}

	var reverts []repository.PhaseChange
	var touched []*domain.Hub
	for _, id := range geographyIDs {
		h, err := groups.single(id, domain.PhaseCommittedConcept, domain.PhaseCommittedRetirementConcept)
		if err != nil {
			return err
		}
		to, _ := h.Phase.RevertTarget()
		reverts = append(reverts, repository.PhaseChange{ZoneID: h.ZoneID, From: h.Phase, To: to})
		touched = append(touched, h)
	}

	if err := s.store.UpdatePhases(ctx, reverts, ActorFromContext(ctx)); err != nil {
		s.logger.Error("Failed to revert hubs to concept", zap.Strings("geography_ids", geographyIDs), zap.Error(err))
		return err
	}

	s.logger.Info("Hubs reverted to concept", zap.Strings("geography_ids", geographyIDs))
	s.publishChanged(ctx, string(domain.ActionRevert), touched)
	return nil
}

// DeriveConcept создаёт новый концепт из live-хаба. Источник не изменяется;
// если для geography_id уже есть любой черновик, запрос отклоняется.
func (s *HubService) DeriveConcept(ctx context.Context, geographyIDs []string) error {
	if len(geographyIDs) == 0 {
		return errors.ErrEmptySelection
	}

	groups, err := s.loadGroups(ctx, geographyIDs)
	if err != nil {
		return err
	}

	sources := make([]*domain.Hub, 0, len(geographyIDs))
	for _, id := range geographyIDs {
		source := groups.live(id)
		if source == nil {
			return errors.ErrInvalidTransition.WithDetails(map[string]interface{}{
				"geography_id": id,
				"reason":       "no published or active hub",
			})
		}
		if groups.hasDraft(id) {
			return errors.ErrDraftAlreadyExists.WithDetails(map[string]interface{}{"geography_id": id})
		}
		sources = append(sources, source)
	}

	actor := ActorFromContext(ctx)
	touched := make([]*domain.Hub, 0, len(sources))
	for _, source := range sources {
		created, err := s.store.Create(ctx, domain.DraftFrom(source, domain.PhaseConcept, actor))
		if err != nil {
			s.logger.Error("Failed to derive concept",
				zap.String("geography_id", source.GeographyID),
				zap.Int64("source_zone_id", source.ZoneID),
				zap.Error(err))
			return err
		}
		touched = append(touched, created)
	}

	s.logger.Info("Concepts derived", zap.Strings("geography_ids", geographyIDs))
	s.publishChanged(ctx, string(domain.ActionDeriveNewConcept), touched)
	return nil
}

// ProposeRetirement создаёт retirement_concept рядом с live-хабом
func (s *HubService) ProposeRetirement(ctx context.Context, geographyIDs []string) error {
	if len(geographyIDs) == 0 {
		return errors.ErrEmptySelection
	}

	groups, err := s.loadGroups(ctx, geographyIDs)
	if err != nil {
		return err
	}

	sources := make([]*domain.Hub, 0, len(geographyIDs))
	for _, id := range geographyIDs {
		source := groups.live(id)
		if source == nil {
			return errors.ErrInvalidTransition.WithDetails(map[string]interface{}{
				"geography_id": id,
				"reason":       "no published or active hub",
			})
		}
		if !source.GeographyType.InWorkflow() {
			return errors.ErrMonitoringHubNotAllowed.WithDetails(map[string]interface{}{"geography_id": id})
		}
		if groups.hasDraft(id) {
			return errors.ErrDraftAlreadyExists.WithDetails(map[string]interface{}{"geography_id": id})
		}
		sources = append(sources, source)
	}

	actor := ActorFromContext(ctx)
	touched := make([]*domain.Hub, 0, len(sources))
	for _, source := range sources {
		created, err := s.store.Create(ctx, domain.DraftFrom(source, domain.PhaseRetirementConcept, actor))
		if err != nil {
			s.logger.Error("Failed to create retirement proposal",
				zap.String("geography_id", source.GeographyID),
				zap.Error(err))
			return err
		}
		touched = append(touched, created)
	}

	s.logger.Info("Retirement proposed", zap.Strings("geography_ids", geographyIDs))
	s.publishChanged(ctx, string(domain.ActionProposeRetirement), touched)
	return nil
}

// SaveHub создаёт нарисованный хаб (всегда concept) либо обновляет концепт
func (s *HubService) SaveHub(ctx context.Context, hub domain.Hub) (*domain.Hub, error) {
	if hub.Municipality == "" || hub.Name == "" {
		return nil, errors.ErrInvalidRequest.WithMessage("municipality and name are required")
	}
	if _, err := domain.ParseGeographyType(string(hub.GeographyType)); err != nil {
		return nil, errors.ErrInvalidRequest.WithMessage("%v", err)
	}
	area, err := geo.NormalizeArea(hub.Geometry())
	if err != nil {
		return nil, errors.ErrInvalidGeometry
	}
	hub.Area = geojson.NewGeometry(area)

	actor := ActorFromContext(ctx)
	hub.LastModifiedBy = actor

	var saved *domain.Hub
	if hub.ZoneID == 0 {
		hub.Phase = domain.PhaseConcept
		hub.CreatedBy = actor
		hub.PrevGeographies = nil
		if hub.GeographyID == "" {
			hub.GeographyID = uuid.NewString()
		} else {
			groups, loadErr := s.loadGroups(ctx, []string{hub.GeographyID})
			if loadErr != nil {
				return nil, loadErr
			}
			if groups.hasDraft(hub.GeographyID) {
				return nil, errors.ErrDraftAlreadyExists.WithDetails(map[string]interface{}{"geography_id": hub.GeographyID})
			}
		}
		saved, err = s.store.Create(ctx, hub)
	} else {
		existing, getErr := s.store.GetByZoneID(ctx, hub.ZoneID)
		if getErr != nil {
			return nil, getErr
		}
		if existing.Phase != domain.PhaseConcept {
			return nil, errors.ErrInvalidTransition.WithMessage("only concept hubs can be edited, hub %d is %s", existing.ZoneID, existing.Phase)
		}
		existing.Name = hub.Name
		existing.GeographyType = hub.GeographyType
		existing.Area = hub.Area
		existing.Stop = hub.Stop
		existing.LastModifiedBy = actor
		saved, err = s.store.Update(ctx, *existing)
	}
	if err != nil {
		s.logger.Error("Failed to save hub", zap.Int64("zone_id", hub.ZoneID), zap.Error(err))
		return nil, err
	}

	s.publishChanged(ctx, "save", []*domain.Hub{saved})
	return saved, nil
}

// PreprocessGeometryPackage разбирает пакет и помечает каждую зону
// флагом is_within_borders_municipality. Ничего не записывает.
func (s *HubService) PreprocessGeometryPackage(ctx context.Context, municipality string, file []byte) ([]domain.DraftImportZone, error) {
	if municipality == "" {
		return nil, errors.ErrInvalidRequest.WithMessage("municipality is required")
	}

	features, err := geo.ParsePackage(file)
	if err != nil {
		metrics.MalformedPackagesTotal.Inc()
		s.logger.Warn("Rejected malformed geometry package",
			zap.String("municipality", municipality),
			zap.Error(err))
		return nil, errors.ErrMalformedPackage.WithMessage("%v", err)
	}

	border, err := s.borders.GetBorder(ctx, municipality)
	if err != nil {
		return nil, err
	}

	drafts := make([]domain.DraftImportZone, 0, len(features))
	for _, f := range features {
		gt, err := domain.ParseGeographyType(f.GeographyType)
		if err != nil {
			gt = domain.GeographyTypeStop
		}
		drafts = append(drafts, domain.DraftImportZone{
			Zone: domain.DraftZone{
				GeographyID:   f.GeographyID,
				Name:          f.Name,
				GeographyType: gt,
				Municipality:  municipality,
				Area:          geojson.NewGeometry(f.Geometry),
			},
			IsWithinBordersMunicipality: geo.WithinBorders(f.Geometry, border.Area),
		})
	}

	s.logger.Info("Geometry package preprocessed",
		zap.String("municipality", municipality),
		zap.Int("zones", len(drafts)))
	return drafts, nil
}

// ImportGeometryPackage сливает зоны с концептами муниципалитета по
// geography_id. Хабы вне фазы concept никогда не затрагиваются. Ошибка одной
// зоны попадает в раздел error и не прерывает импорт остальных.
func (s *HubService) ImportGeometryPackage(ctx context.Context, municipality string, zones []domain.DraftZone) (*domain.ImportResult, error) {
	if municipality == "" {
		return nil, errors.ErrInvalidRequest.WithMessage("municipality is required")
	}

	border, err := s.borders.GetBorder(ctx, municipality)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.ListByMunicipality(ctx, municipality)
	if err != nil {
		return nil, err
	}
	concepts, locked := s.draftIndex(municipality, existing)

	actor := ActorFromContext(ctx)
	result := domain.NewImportResult()
	for _, zone := range zones {
		zone.Municipality = municipality

		if zone.Area == nil {
			result.Error = append(result.Error, domain.ImportError{Zone: zone, Reason: errors.ErrInvalidGeometry.Message})
			continue
		}
		area, err := geo.NormalizeArea(zone.Area.Geometry())
		if err != nil {
			result.Error = append(result.Error, domain.ImportError{Zone: zone, Reason: errors.ErrInvalidGeometry.Message})
			continue
		}
		if !geo.WithinBorders(area, border.Area) {
			result.Error = append(result.Error, domain.ImportError{Zone: zone, Reason: errors.ErrZoneOutsideBorders.Message})
			continue
		}
		if zone.GeographyID == "" {
			zone.GeographyID = uuid.NewString()
		}

		if phase, ok := locked[zone.GeographyID]; ok {
			result.Error = append(result.Error, domain.ImportError{
				Zone:   zone,
				Reason: errors.ErrDraftAlreadyExists.Message + ": " + phase.String(),
			})
			continue
		}

		if target, ok := concepts[zone.GeographyID]; ok {
			update := *target
			update.Name = zone.Name
			update.Area = geojson.NewGeometry(area)
			update.LastModifiedBy = actor
			saved, err := s.store.Update(ctx, update)
			if err != nil {
				s.logger.Error("Failed to update concept hub from import",
					zap.String("geography_id", zone.GeographyID),
					zap.Error(err))
				result.Error = append(result.Error, domain.ImportError{Zone: zone, Reason: importFailureReason(err)})
				continue
			}
			concepts[zone.GeographyID] = saved
			result.Modified = append(result.Modified, *saved)
			continue
		}

		gt := zone.GeographyType
		if gt == "" {
			gt = domain.GeographyTypeStop
		}
		saved, err := s.store.Create(ctx, domain.Hub{
			GeographyID:    zone.GeographyID,
			Name:           zone.Name,
			GeographyType:  gt,
			Phase:          domain.PhaseConcept,
			Municipality:   municipality,
			Area:           geojson.NewGeometry(area),
			CreatedBy:      actor,
			LastModifiedBy: actor,
		})
		if err != nil {
			s.logger.Error("Failed to create concept hub from import",
				zap.String("geography_id", zone.GeographyID),
				zap.Error(err))
			result.Error = append(result.Error, domain.ImportError{Zone: zone, Reason: importFailureReason(err)})
			continue
		}
		concepts[zone.GeographyID] = saved
		result.Created = append(result.Created, *saved)
	}

	metrics.ImportZonesTotal.WithLabelValues("created").Add(float64(len(result.Created)))
	metrics.ImportZonesTotal.WithLabelValues("modified").Add(float64(len(result.Modified)))
	metrics.ImportZonesTotal.WithLabelValues("error").Add(float64(len(result.Error)))

	s.logger.Info("Geometry package imported",
		zap.String("municipality", municipality),
		zap.Int("created", len(result.Created)),
		zap.Int("modified", len(result.Modified)),
		zap.Int("errors", len(result.Error)))

	if len(result.Created)+len(result.Modified) > 0 {
		touched := make([]*domain.Hub, 0, len(result.Created)+len(result.Modified))
		for i := range result.Created {
			touched = append(touched, &result.Created[i])
		}
		for i := range result.Modified {
			touched = append(touched, &result.Modified[i])
		}
		s.publishChanged(ctx, "import", touched)
	}

	return result, nil
}

// draftIndex индексирует концепты муниципалитета по geography_id. При
// нескольких совпадениях побеждает последний (наибольший zone_id). Вторая
// карта содержит geography_id с черновиком в другой фазе: импорт их не трогает.
func (s *HubService) draftIndex(municipality string, hubs []domain.Hub) (map[string]*domain.Hub, map[string]domain.Phase) {
	sort.SliceStable(hubs, func(i, j int) bool { return hubs[i].ZoneID < hubs[j].ZoneID })

	concepts := make(map[string]*domain.Hub)
	locked := make(map[string]domain.Phase)
	for i := range hubs {
		h := &hubs[i]
		if h.Municipality != municipality || !h.Phase.IsDraft() {
			continue
		}
		if h.Phase != domain.PhaseConcept {
			locked[h.GeographyID] = h.Phase
			continue
		}
		if prev, ok := concepts[h.GeographyID]; ok {
			s.logger.Warn("Multiple concept hubs share a geography_id, last match wins",
				zap.String("geography_id", h.GeographyID),
				zap.Int64("ignored_zone_id", prev.ZoneID),
				zap.Int64("zone_id", h.ZoneID))
		}
		concepts[h.GeographyID] = h
	}
	return concepts, locked
}

func importFailureReason(err error) string {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

func (s *HubService) loadGroups(ctx context.Context, geographyIDs []string) (geographyGroups, error) {
	hubs, err := s.store.ListByGeographyIDs(ctx, geographyIDs)
	if err != nil {
		return nil, err
	}
	groups := make(geographyGroups, len(geographyIDs))
	for i := range hubs {
		h := &hubs[i]
		groups[h.GeographyID] = append(groups[h.GeographyID], h)
	}
	return groups, nil
}

func (s *HubService) publishChanged(ctx context.Context, action string, hubs []*domain.Hub) {
	if s.streamRepo == nil || len(hubs) == 0 {
		return
	}

	byMunicipality := make(map[string][]*domain.Hub)
	for _, h := range hubs {
		byMunicipality[h.Municipality] = append(byMunicipality[h.Municipality], h)
	}

	for municipality, group := range byMunicipality {
		event := domain.NewHubsChangedEvent(municipality, action, domain.GeographyIDs(group))
		if err := s.streamRepo.PublishToStream(ctx, domain.StreamHubsChanged, event); err != nil {
			// Мутация уже применена: потеря события только задерживает инвалидацию
			s.logger.Error("Failed to publish hubs changed event",
				zap.String("municipality", municipality),
				zap.String("action", action),
				zap.Error(err))
		}
	}
}

// geographyGroups - хабы, сгруппированные по geography_id
type geographyGroups map[string][]*domain.Hub

func (g geographyGroups) withPhase(geographyID string, phases ...domain.Phase) []*domain.Hub {
	var out []*domain.Hub
	for _, h := range g[geographyID] {
		for _, p := range phases {
			if h.Phase == p {
				out = append(out, h)
				break
			}
		}
	}
	return out
}

// live возвращает live-хаб geography_id; published предпочтительнее active
func (g geographyGroups) live(geographyID string) *domain.Hub {
	var best *domain.Hub
	for _, h := range g[geographyID] {
		if !h.Phase.IsLive() {
			continue
		}
		if best == nil || (h.Phase == domain.PhasePublished && best.Phase != domain.PhasePublished) ||
			(h.Phase == best.Phase && h.ZoneID > best.ZoneID) {
			best = h
		}
	}
	return best
}

// single возвращает единственный хаб geography_id в одной из фаз. Ни одного
// или несколько совпадений - недопустимый переход.
func (g geographyGroups) single(geographyID string, phases ...domain.Phase) (*domain.Hub, error) {
	candidates := g.withPhase(geographyID, phases...)
	switch len(candidates) {
	case 1:
		return candidates[0], nil
	case 0:
		return nil, errors.ErrInvalidTransition.WithDetails(map[string]interface{}{
			"geography_id": geographyID,
			"reason":       "no hub in " + phaseList(phases),
		})
	}
	zoneIDs := make([]int64, 0, len(candidates))
	for _, h := range candidates {
		zoneIDs = append(zoneIDs, h.ZoneID)
	}
	return nil, errors.ErrInvalidTransition.WithDetails(map[string]interface{}{
		"geography_id": geographyID,
		"zone_ids":     zoneIDs,
		"reason":       "several drafts share the geography_id",
	})
}

func phaseList(phases []domain.Phase) string {
	names := make([]string, 0, len(phases))
	for _, p := range phases {
		names = append(names, p.String())
	}
	return strings.Join(names, " or ")
}

func (g geographyGroups) hasDraft(geographyID string) bool {
	for _, h := range g[geographyID] {
		if h.Phase.IsDraft() {
			return true
		}
	}
	return false
}

// actorKey - ключ контекста с именем пользователя, выполняющего действие
type actorKey struct{}

const defaultActor = "system"

// ContextWithActor сохраняет пользователя в контексте
func ContextWithActor(ctx context.Context, actor string) context.Context {
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext возвращает пользователя из контекста
func ActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return defaultActor
}

// elapsedMs - длительность в миллисекундах для гистограмм
func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/policyhub-service/internal/domain"
	"github.com/policyhub-service/internal/domain/repository"
	"github.com/policyhub-service/internal/pkg/errors"
)

// ImportUseCase - клиентская часть конвейера импорта геометрий
type ImportUseCase struct {
	repo   repository.HubRepository
	logger *zap.Logger
}

func NewImportUseCase(repo repository.HubRepository, logger *zap.Logger) *ImportUseCase {
	return &ImportUseCase{
		repo:   repo,
		logger: logger,
	}
}

// Preprocess разбирает пакет и возвращает черновые зоны с флагом границ.
// Неразбираемый пакет прерывает импорт целиком.
func (uc *ImportUseCase) Preprocess(ctx context.Context, municipality string, file []byte) ([]domain.DraftImportZone, error) {
	if len(file) == 0 {
		return nil, errors.ErrMalformedPackage.WithMessage("geometry package is empty")
	}

	drafts, err := uc.repo.PreprocessGeometryPackage(ctx, municipality, file)
	if err != nil {
		uc.logger.Warn("Geometry package preprocessing failed",
			zap.String("municipality", municipality),
			zap.Error(err))
		return nil, err
	}

	selectable := 0
	for _, d := range drafts {
		if d.Selectable() {
			selectable++
		}
	}
	uc.logger.Info("Draft zones ready for review",
		zap.String("municipality", municipality),
		zap.Int("zones", len(drafts)),
		zap.Int("selectable", selectable))

	return drafts, nil
}

// Confirm импортирует выбранные черновые зоны. Зоны вне границ
// муниципалитета отклоняются независимо от выбора оператора - в этом случае
// ничего не записывается.
func (uc *ImportUseCase) Confirm(
	ctx context.Context,
	dir *HubDirectory,
	drafts []domain.DraftImportZone,
	selectedGeographyIDs []string,
) (*domain.ImportResult, error) {
	if len(selectedGeographyIDs) == 0 {
		return nil, errors.ErrEmptySelection
	}

	byID := make(map[string]domain.DraftImportZone, len(drafts))
	for _, d := range drafts {
		byID[d.Zone.GeographyID] = d
	}

	zones := make([]domain.DraftZone, 0, len(selectedGeographyIDs))
	seen := make(map[string]struct{}, len(selectedGeographyIDs))
	for _, id := range selectedGeographyIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		draft, ok := byID[id]
		if !ok {
			return nil, errors.ErrInvalidRequest.WithMessage("draft zone %q is not part of the preprocessed package", id)
		}
		if !draft.Selectable() {
			return nil, errors.ErrZoneOutsideBorders.WithDetails(map[string]interface{}{
				"geography_id": id,
				"name":         draft.Zone.Name,
			})
		}
		zones = append(zones, draft.Zone)
	}

	result, err := uc.repo.ImportGeometryPackage(ctx, dir.Municipality(), zones)
	if err != nil {
		uc.logger.Error("Geometry import failed",
			zap.String("municipality", dir.Municipality()),
			zap.Int("zones", len(zones)),
			zap.Error(err))
		return nil, err
	}

	if len(result.Error) > 0 {
		uc.logger.Warn("Some zones failed to import",
			zap.String("municipality", dir.Municipality()),
			zap.Int("errors", len(result.Error)))
	}

	dir.invalidateAndRefetch(ctx)
	return result, nil
}

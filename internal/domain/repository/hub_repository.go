package repository

import (
	"context"

	"github.com/policyhub-service/internal/domain"
)

// HubRepository - граница репозитория хабов. Единственный источник истины:
// реализации либо работают с PostGIS напрямую, либо обращаются к удалённому API.
type HubRepository interface {
	// FetchHubs возвращает все хабы муниципалитета
	FetchHubs(ctx context.Context, municipality string) ([]domain.Hub, error)

	// Commit переводит concept -> committed_concept и
	// retirement_concept -> committed_retirement_concept
	Commit(ctx context.Context, geographyIDs []string) error

	// MakeConcept возвращает committed-варианты в концепт
	MakeConcept(ctx context.Context, geographyIDs []string) error

	// DeriveConcept создаёт новый концепт из live-хаба, не изменяя источник
	DeriveConcept(ctx context.Context, geographyIDs []string) error

	// ProposeRetirement создаёт предложение на вывод live-хабов
	ProposeRetirement(ctx context.Context, geographyIDs []string) error

	// SaveHub создаёт нарисованный концепт или обновляет геометрию концепта
	SaveHub(ctx context.Context, hub domain.Hub) (*domain.Hub, error)

	// PreprocessGeometryPackage разбирает пакет и помечает зоны вне границ
	PreprocessGeometryPackage(ctx context.Context, municipality string, file []byte) ([]domain.DraftImportZone, error)

	// ImportGeometryPackage сливает выбранные зоны с концептами по geography_id
	ImportGeometryPackage(ctx context.Context, municipality string, zones []domain.DraftZone) (*domain.ImportResult, error)
}

// HubStore - хранилище хабов (PostGIS), на котором построена серверная
// реализация HubRepository
type HubStore interface {
	// ListByMunicipality возвращает хабы муниципалитета, упорядоченные по zone_id
	ListByMunicipality(ctx context.Context, municipality string) ([]domain.Hub, error)

	// ListByGeographyIDs возвращает все хабы с указанными geography_id
	ListByGeographyIDs(ctx context.Context, geographyIDs []string) ([]domain.Hub, error)

	// GetByZoneID возвращает хаб по zone_id
	GetByZoneID(ctx context.Context, zoneID int64) (*domain.Hub, error)

	// Create сохраняет новый хаб и возвращает его с присвоенным zone_id
	Create(ctx context.Context, hub domain.Hub) (*domain.Hub, error)

	// Update обновляет имя, геометрию и конфигурацию хаба
	Update(ctx context.Context, hub domain.Hub) (*domain.Hub, error)

	// UpdatePhases атомарно меняет фазы нескольких хабов
	UpdatePhases(ctx context.Context, changes []PhaseChange, actor string) error
}

// PhaseChange - смена фазы одного хаба
type PhaseChange struct {
	ZoneID int64
	From   domain.Phase
	To     domain.Phase
}

// BorderRepository - авторитетные границы муниципалитетов
type BorderRepository interface {
	// GetBorder возвращает границу муниципалитета
	GetBorder(ctx context.Context, municipality string) (*domain.MunicipalityBorder, error)

	// SaveBorder создаёт или заменяет границу муниципалитета
	SaveBorder(ctx context.Context, border domain.MunicipalityBorder) error
}

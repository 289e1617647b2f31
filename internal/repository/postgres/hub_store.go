package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/policyhub-service/internal/domain"
	"github.com/policyhub-service/internal/domain/repository"
	"github.com/policyhub-service/internal/pkg/errors"
)

const hubColumns = `
	zone_id, geography_id, name, geography_type, phase, municipality,
	ST_AsGeoJSON(area) AS area_json, stop, prev_geographies,
	created_by, last_modified_by, created_at, modified_at`

// hubRow - строка таблицы hubs; геометрия читается как GeoJSON
type hubRow struct {
	ZoneID          int64          `db:"zone_id"`
	GeographyID     string         `db:"geography_id"`
	Name            string         `db:"name"`
	GeographyType   string         `db:"geography_type"`
	Phase           domain.Phase   `db:"phase"`
	Municipality    string         `db:"municipality"`
	AreaJSON        string         `db:"area_json"`
	Stop            []byte         `db:"stop"`
	PrevGeographies pq.StringArray `db:"prev_geographies"`
	CreatedBy       string         `db:"created_by"`
	LastModifiedBy  string         `db:"last_modified_by"`
	CreatedAt       time.Time      `db:"created_at"`
	ModifiedAt      time.Time      `db:"modified_at"`
}

func (r hubRow) toDomain() (domain.Hub, error) {
	hub := domain.Hub{
		ZoneID:          r.ZoneID,
		GeographyID:     r.GeographyID,
		Name:            r.Name,
		GeographyType:   domain.GeographyType(r.GeographyType),
		Phase:           r.Phase,
		Municipality:    r.Municipality,
		PrevGeographies: []string(r.PrevGeographies),
		CreatedBy:       r.CreatedBy,
		LastModifiedBy:  r.LastModifiedBy,
		CreatedAt:       r.CreatedAt,
		ModifiedAt:      r.ModifiedAt,
	}

	area, err := geojson.UnmarshalGeometry([]byte(r.AreaJSON))
	if err != nil {
		return domain.Hub{}, err
	}
	hub.Area = area

	if len(r.Stop) > 0 {
		var stop domain.StopConfig
		if err := json.Unmarshal(r.Stop, &stop); err != nil {
			return domain.Hub{}, err
		}
		hub.Stop = &stop
	}
	return hub, nil
}

type hubStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewHubStore создаёт PostGIS-хранилище хабов
func NewHubStore(db *DB) repository.HubStore {
	return &hubStore{
		db:     db.DB,
		logger: db.logger,
	}
}

func (s *hubStore) ListByMunicipality(ctx context.Context, municipality string) ([]domain.Hub, error) {
	query := `SELECT` + hubColumns + `
		FROM hubs
		WHERE municipality = $1
		ORDER BY zone_id`

	var rows []hubRow
	if err := s.db.SelectContext(ctx, &rows, query, municipality); err != nil {
		s.logger.Error("Failed to list hubs", zap.String("municipality", municipality), zap.Error(err))
		return nil, errors.ErrDatabaseError
	}
	return s.toHubs(rows)
}

func (s *hubStore) ListByGeographyIDs(ctx context.Context, geographyIDs []string) ([]domain.Hub, error) {
	if len(geographyIDs) == 0 {
		return []domain.Hub{}, nil
	}

	query := `SELECT` + hubColumns + `
		FROM hubs
		WHERE geography_id = ANY($1)
		ORDER BY zone_id`

	var rows []hubRow
	if err := s.db.SelectContext(ctx, &rows, query, pq.Array(geographyIDs)); err != nil {
		s.logger.Error("Failed to list hubs by geography ids", zap.Strings("geography_ids", geographyIDs), zap.Error(err))
		return nil, errors.ErrDatabaseError
	}
	return s.toHubs(rows)
}

func (s *hubStore) GetByZoneID(ctx context.Context, zoneID int64) (*domain.Hub, error) {
	query := `SELECT` + hubColumns + `
		FROM hubs
		WHERE zone_id = $1`

	var row hubRow
	err := s.db.GetContext(ctx, &row, query, zoneID)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.ErrHubNotFound
	}
	if err != nil {
		s.logger.Error("Failed to get hub", zap.Int64("zone_id", zoneID), zap.Error(err))
		return nil, errors.ErrDatabaseError
	}
	return s.toHub(row)
}

func (s *hubStore) Create(ctx context.Context, hub domain.Hub) (*domain.Hub, error) {
	areaJSON, stopJSON, err := encodeHub(hub)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO hubs (
			geography_id, name, geography_type, phase, municipality,
			area, stop, prev_geographies, created_by, last_modified_by
		) VALUES (
			$1, $2, $3, $4, $5,
			ST_SetSRID(ST_GeomFromGeoJSON($6), 4326), $7, $8, $9, $10
		)
		RETURNING` + hubColumns

	var row hubRow
	err = s.db.QueryRowxContext(ctx, query,
		hub.GeographyID, hub.Name, string(hub.GeographyType), hub.Phase.String(), hub.Municipality,
		areaJSON, stopJSON, pq.Array(prevGeographies(hub)), hub.CreatedBy, hub.LastModifiedBy,
	).StructScan(&row)
	if isUniqueViolation(err) {
		return nil, errors.ErrDraftAlreadyExists.WithDetails(map[string]interface{}{"geography_id": hub.GeographyID})
	}
	if err != nil {
		s.logger.Error("Failed to create hub",
			zap.String("geography_id", hub.GeographyID),
			zap.String("phase", hub.Phase.String()),
			zap.Error(err))
		return nil, errors.ErrDatabaseError
	}
	return s.toHub(row)
}

// Update меняет содержимое хаба только в фазе concept. Строка, которую
// успели закоммитить, не перезаписывается.
func (s *hubStore) Update(ctx context.Context, hub domain.Hub) (*domain.Hub, error) {
	areaJSON, stopJSON, err := encodeHub(hub)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE hubs SET
			name = $2,
			geography_type = $3,
			area = ST_SetSRID(ST_GeomFromGeoJSON($4), 4326),
			stop = $5,
			last_modified_by = $6,
			modified_at = NOW()
		WHERE zone_id = $1 AND phase = $7
		RETURNING` + hubColumns

	var row hubRow
	err = s.db.QueryRowxContext(ctx, query,
		hub.ZoneID, hub.Name, string(hub.GeographyType), areaJSON, stopJSON, hub.LastModifiedBy,
		domain.PhaseConcept.String(),
	).StructScan(&row)
	if stderrors.Is(err, sql.ErrNoRows) {
		current, getErr := s.GetByZoneID(ctx, hub.ZoneID)
		if getErr != nil {
			return nil, getErr
		}
		return nil, errors.ErrInvalidTransition.WithDetails(map[string]interface{}{
			"zone_id": hub.ZoneID,
			"phase":   current.Phase.String(),
			"reason":  "only concept hubs can be edited",
		})
	}
	if err != nil {
		s.logger.Error("Failed to update hub", zap.Int64("zone_id", hub.ZoneID), zap.Error(err))
		return nil, errors.ErrDatabaseError
	}
	return s.toHub(row)
}

// UpdatePhases меняет фазы в одной транзакции. Каждая строка обновляется
// только из ожидаемой фазы: конкурентное изменение откатывает весь пакет.
func (s *hubStore) UpdatePhases(ctx context.Context, changes []repository.PhaseChange, actor string) error {
	if len(changes) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.Error("Failed to begin transaction", zap.Error(err))
		return errors.ErrDatabaseError
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		UPDATE hubs SET
			phase = $2,
			last_modified_by = $3,
			modified_at = NOW()
		WHERE zone_id = $1 AND phase = $4`

	for _, c := range changes {
		res, err := tx.ExecContext(ctx, query, c.ZoneID, c.To.String(), actor, c.From.String())
		if err != nil {
			s.logger.Error("Failed to update hub phase",
				zap.Int64("zone_id", c.ZoneID),
				zap.String("from", c.From.String()),
				zap.String("to", c.To.String()),
				zap.Error(err))
			return errors.ErrDatabaseError
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return errors.ErrDatabaseError
		}
		if affected != 1 {
			return errors.ErrInvalidTransition.WithDetails(map[string]interface{}{
				"zone_id": c.ZoneID,
				"reason":  "hub changed phase concurrently",
			})
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("Failed to commit phase changes", zap.Error(err))
		return errors.ErrDatabaseError
	}
	return nil
}

// isUniqueViolation распознаёт 23505 от pgx и от lib/pq
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var pqErr *pq.Error
	return stderrors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (s *hubStore) toHubs(rows []hubRow) ([]domain.Hub, error) {
	hubs := make([]domain.Hub, 0, len(rows))
	for _, row := range rows {
		hub, err := row.toDomain()
		if err != nil {
			s.logger.Error("Failed to decode hub row", zap.Int64("zone_id", row.ZoneID), zap.Error(err))
			return nil, errors.ErrDatabaseError
		}
		hubs = append(hubs, hub)
	}
	return hubs, nil
}

func (s *hubStore) toHub(row hubRow) (*domain.Hub, error) {
	hub, err := row.toDomain()
	if err != nil {
		s.logger.Error("Failed to decode hub row", zap.Int64("zone_id", row.ZoneID), zap.Error(err))
		return nil, errors.ErrDatabaseError
	}
	return &hub, nil
}

// encodeHub готовит GeoJSON геометрии и jsonb конфигурации stop (nil -> NULL)
func encodeHub(hub domain.Hub) (string, interface{}, error) {
	if hub.Area == nil {
		return "", nil, errors.ErrInvalidGeometry
	}
	area, err := hub.Area.MarshalJSON()
	if err != nil {
		return "", nil, errors.ErrInvalidGeometry
	}

	var stop interface{}
	if hub.Stop != nil {
		data, err := json.Marshal(hub.Stop)
		if err != nil {
			return "", nil, errors.ErrInvalidRequest.WithMessage("invalid stop configuration: %v", err)
		}
		stop = string(data)
	}
	return string(area), stop, nil
}

func prevGeographies(hub domain.Hub) []string {
	if hub.PrevGeographies == nil {
		return []string{}
	}
	return hub.PrevGeographies
}

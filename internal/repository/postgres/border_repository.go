package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/jmoiron/sqlx"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/policyhub-service/internal/domain"
	"github.com/policyhub-service/internal/domain/repository"
	"github.com/policyhub-service/internal/pkg/errors"
	"github.com/policyhub-service/internal/pkg/geo"
)

type borderRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewBorderRepository создаёт репозиторий границ муниципалитетов
func NewBorderRepository(db *DB) repository.BorderRepository {
	return &borderRepository{
		db:     db.DB,
		logger: db.logger,
	}
}

// GetBorder возвращает границу муниципалитета как MultiPolygon
func (r *borderRepository) GetBorder(ctx context.Context, municipality string) (*domain.MunicipalityBorder, error) {
	query := `
		SELECT municipality, name, ST_AsGeoJSON(ST_Multi(area)) AS area_json
		FROM municipality_borders
		WHERE municipality = $1
	`

	var border domain.MunicipalityBorder
	var areaJSON string
	err := r.db.QueryRowContext(ctx, query, municipality).Scan(&border.Municipality, &border.Name, &areaJSON)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.ErrBorderNotFound.WithDetails(map[string]interface{}{"municipality": municipality})
	}
	if err != nil {
		r.logger.Error("Failed to get municipality border", zap.String("municipality", municipality), zap.Error(err))
		return nil, errors.ErrDatabaseError
	}

	g, err := geojson.UnmarshalGeometry([]byte(areaJSON))
	if err != nil {
		r.logger.Error("Failed to decode municipality border", zap.String("municipality", municipality), zap.Error(err))
		return nil, errors.ErrDatabaseError
	}
	border.Area, err = geo.AsMultiPolygon(g.Geometry())
	if err != nil {
		r.logger.Error("Municipality border is not areal", zap.String("municipality", municipality), zap.Error(err))
		return nil, errors.ErrDatabaseError
	}

	return &border, nil
}

// SaveBorder создаёт или заменяет границу муниципалитета
func (r *borderRepository) SaveBorder(ctx context.Context, border domain.MunicipalityBorder) error {
	if border.Municipality == "" || len(border.Area) == 0 {
		return errors.ErrInvalidRequest.WithMessage("municipality and border area are required")
	}

	area, err := geojson.NewGeometry(border.Area).MarshalJSON()
	if err != nil {
		return errors.ErrInvalidGeometry
	}

	query := `
		INSERT INTO municipality_borders (municipality, name, area)
		VALUES ($1, $2, ST_Multi(ST_SetSRID(ST_GeomFromGeoJSON($3), 4326)))
		ON CONFLICT (municipality) DO UPDATE SET
			name = EXCLUDED.name,
			area = EXCLUDED.area,
			updated_at = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query, border.Municipality, border.Name, string(area)); err != nil {
		r.logger.Error("Failed to save municipality border", zap.String("municipality", border.Municipality), zap.Error(err))
		return errors.ErrDatabaseError
	}

	r.logger.Info("Municipality border saved",
		zap.String("municipality", border.Municipality),
		zap.Int("polygons", len(border.Area)))
	return nil
}

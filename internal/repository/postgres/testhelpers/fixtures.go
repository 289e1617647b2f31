package testhelpers

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SeedSquareBorder создаёт квадратную границу муниципалитета
func SeedSquareBorder(ctx context.Context, db *sqlx.DB, municipality string, minX, minY, maxX, maxY float64) error {
	wkt := fmt.Sprintf("MULTIPOLYGON(((%[1]f %[2]f, %[3]f %[2]f, %[3]f %[4]f, %[1]f %[4]f, %[1]f %[2]f)))",
		minX, minY, maxX, maxY)

	_, err := db.ExecContext(ctx, `
		INSERT INTO municipality_borders (municipality, name, area)
		VALUES ($1, $1, ST_GeomFromText($2, 4326))
		ON CONFLICT (municipality) DO UPDATE SET area = EXCLUDED.area`,
		municipality, wkt)
	if err != nil {
		return fmt.Errorf("seed border %s: %w", municipality, err)
	}
	return nil
}

package repositories

import (
	"context"
	"errors"

	"opsboard-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LocationRepository struct {
	DB *pgxpool.Pool
}

func NewLocationRepository(db *pgxpool.Pool) *LocationRepository {
	return &LocationRepository{DB: db}
}

const locationColumns = `id, project_id, location_name, location_code, location_type, address, is_active, created_at`

func scanLocation(row pgx.Row) (*models.Location, error) {
	var l models.Location
	err := row.Scan(&l.ID, &l.ProjectID, &l.LocationName, &l.LocationCode, &l.LocationType,
		&l.Address, &l.IsActive, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

func (r *LocationRepository) GetLocation(ctx context.Context, id int) (*models.Location, error) {
	return scanLocation(r.DB.QueryRow(ctx, `SELECT `+locationColumns+` FROM locations WHERE id = $1`, id))
}

func (r *LocationRepository) ListLocations(ctx context.Context, f models.LocationFilter) ([]models.Location, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+locationColumns+` FROM locations
		 WHERE ($1::int IS NULL OR project_id = $1)
		   AND (NOT $2 OR is_active)
		   AND ($3 = '' OR location_type = $3)
		 ORDER BY location_name`,
		f.ProjectID, f.ActiveOnly, string(f.Type))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	locations := []models.Location{}
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		locations = append(locations, *l)
	}
	return locations, rows.Err()
}

func (r *LocationRepository) CreateLocation(ctx context.Context, l *models.Location) error {
	err := r.DB.QueryRow(ctx,
		`INSERT INTO locations(project_id, location_name, location_code, location_type, address, is_active)
		 VALUES($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		l.ProjectID, l.LocationName, l.LocationCode, l.LocationType, l.Address, l.IsActive,
	).Scan(&l.ID, &l.CreatedAt)
	return mapPgError(err)
}

// SetLocationActive toggles availability for new transfers.
func (r *LocationRepository) SetLocationActive(ctx context.Context, id int, active bool) error {
	tag, err := r.DB.Exec(ctx, `UPDATE locations SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

package repositories

import (
	"context"
	"errors"

	"opsboard-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProductRepository struct {
	DB *pgxpool.Pool
}

func NewProductRepository(db *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{DB: db}
}

const productColumns = `id, project_id, product_name, product_code, unit, is_active, created_at`

func scanProduct(row pgx.Row) (*models.Product, error) {
	var p models.Product
	err := row.Scan(&p.ID, &p.ProjectID, &p.ProductName, &p.ProductCode, &p.Unit, &p.IsActive, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepository) GetProduct(ctx context.Context, id int) (*models.Product, error) {
	return scanProduct(r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}

func (r *ProductRepository) ListProducts(ctx context.Context, f models.ProductFilter) ([]models.Product, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+productColumns+` FROM products
		 WHERE is_active
		   AND ($1::int IS NULL OR project_id = $1 OR project_id IS NULL)
		   AND ($2 = '' OR product_name ILIKE '%' || $2 || '%' OR product_code ILIKE '%' || $2 || '%')
		 ORDER BY product_name
		 LIMIT 200`,
		f.ProjectID, f.Search)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (r *ProductRepository) CreateProduct(ctx context.Context, p *models.Product) error {
	err := r.DB.QueryRow(ctx,
		`INSERT INTO products(project_id, product_name, product_code, unit, is_active)
		 VALUES($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		p.ProjectID, p.ProductName, p.ProductCode, p.Unit, p.IsActive,
	).Scan(&p.ID, &p.CreatedAt)
	return mapPgError(err)
}

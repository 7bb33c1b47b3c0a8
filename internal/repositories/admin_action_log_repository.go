package repositories

import (
	"context"

	"opsboard-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

type AdminActionLogRepository struct {
	DB *pgxpool.Pool
}

func NewAdminActionLogRepository(db *pgxpool.Pool) *AdminActionLogRepository {
	return &AdminActionLogRepository{DB: db}
}

// CreateActionLog records a reference data change
func (r *AdminActionLogRepository) CreateActionLog(ctx context.Context, log *models.AdminActionLog) error {
	query := `
		INSERT INTO admin_action_logs (
			admin_user_id, action_type, target_type, target_id, description, ip_address, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, created_at
	`
	return r.DB.QueryRow(ctx, query,
		log.AdminUserID, log.ActionType, log.TargetType, log.TargetID, log.Description, log.IPAddress,
	).Scan(&log.ID, &log.CreatedAt)
}

// ListActionLogs returns the most recent entries first
func (r *AdminActionLogRepository) ListActionLogs(ctx context.Context, limit int) ([]models.AdminActionLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.DB.Query(ctx, `
		SELECT id, admin_user_id, action_type, target_type, target_id, description, ip_address, created_at
		FROM admin_action_logs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []models.AdminActionLog{}
	for rows.Next() {
		var l models.AdminActionLog
		if err := rows.Scan(&l.ID, &l.AdminUserID, &l.ActionType, &l.TargetType, &l.TargetID,
			&l.Description, &l.IPAddress, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

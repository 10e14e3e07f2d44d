package repository

import (
	"context"
	"database/sql"

	"github.com/garyjia/doc-lifecycle/internal/application/port"
	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
	"github.com/garyjia/doc-lifecycle/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// CarrierRuleRepository implements port.CarrierRuleRepository
type CarrierRuleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCarrierRuleRepository creates a new carrier rule repository
func NewCarrierRuleRepository(db *sql.DB, logger *zap.Logger) port.CarrierRuleRepository {
	return &CarrierRuleRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new carrier rule
func (r *CarrierRuleRepository) Create(ctx context.Context, rule *entity.CarrierRule) error {
	query := `
		INSERT INTO carrier_rules (carrier_name, keyword, priority, enabled, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	stamp(&rule.CreatedAt, nil)
	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		rule.CarrierName,
		rule.Keyword,
		rule.Priority,
		rule.Enabled,
		rule.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create carrier rule", zap.String("keyword", rule.Keyword), zap.Error(err))
		return storageError("create carrier rule", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return storageError("create carrier rule", err)
	}

	rule.ID = id
	return nil
}

// ListEnabled returns enabled rules by priority descending, then creation order
func (r *CarrierRuleRepository) ListEnabled(ctx context.Context) ([]*entity.CarrierRule, error) {
	query := `
		SELECT id, carrier_name, keyword, priority, enabled, created_at
		FROM carrier_rules
		WHERE enabled = 1
		ORDER BY priority DESC, id ASC
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list carrier rules", zap.Error(err))
		return nil, storageError("list carrier rules", err)
	}
	defer rows.Close()

	rules := []*entity.CarrierRule{}
	for rows.Next() {
		var rule entity.CarrierRule
		if err := rows.Scan(
			&rule.ID,
			&rule.CarrierName,
			&rule.Keyword,
			&rule.Priority,
			&rule.Enabled,
			&rule.CreatedAt,
		); err != nil {
			return nil, storageError("scan carrier rule", err)
		}
		rules = append(rules, &rule)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("list carrier rules", err)
	}
	return rules, nil
}

// Verify interface compliance
var _ port.CarrierRuleRepository = (*CarrierRuleRepository)(nil)

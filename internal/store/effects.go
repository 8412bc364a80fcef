package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/feral-file/ff-marketplace/internal/domain"
	"github.com/feral-file/ff-marketplace/internal/store/schema"
)

// CreateHistory appends a history entry
func (s *pgStore) CreateHistory(ctx context.Context, history *schema.History) error {
	if err := s.db.WithContext(ctx).Create(history).Error; err != nil {
		return fmt.Errorf("failed to create history: %w", err)
	}
	return nil
}

// CreateNotification stores a notification
func (s *pgStore) CreateNotification(ctx context.Context, notification *schema.Notification) error {
	if err := s.db.WithContext(ctx).Create(notification).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// CreateTransaction records a debit or credit
func (s *pgStore) CreateTransaction(ctx context.Context, transaction *schema.Transaction) error {
	if err := s.db.WithContext(ctx).Create(transaction).Error; err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// IncrementStats atomically increments a user's stats.
// Every counter is updated with a single UPDATE ... SET col = col + ? so concurrent
// writers for the same user never lose an increment.
func (s *pgStore) IncrementStats(ctx context.Context, input StatsIncrementInput) error {
	var values map[string]any
	switch input.Update {
	case domain.StatsUpdateOwnedArts:
		values = map[string]any{
			"owned_arts": gorm.Expr("owned_arts + ?", 1),
		}
	case domain.StatsUpdatePurchasedArts:
		values = map[string]any{
			"purchased_arts":         gorm.Expr("purchased_arts + ?", 1),
			"owned_arts":             gorm.Expr("owned_arts + ?", 1),
			"total_purchases_amount": gorm.Expr("total_purchases_amount + ?", input.Amount),
			"biggest_purchase":       gorm.Expr("CASE WHEN biggest_purchase < ? THEN ? ELSE biggest_purchase END", input.Amount, input.Amount),
		}
	case domain.StatsUpdateSoldArts:
		values = map[string]any{
			"sold_arts":         gorm.Expr("sold_arts + ?", 1),
			"owned_arts":        gorm.Expr("CASE WHEN owned_arts > 0 THEN owned_arts - 1 ELSE 0 END"),
			"total_sold_amount": gorm.Expr("total_sold_amount + ?", input.Amount),
		}
	default:
		return fmt.Errorf("unknown stats update: %s", input.Update)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Users registered before stats existed get their row lazily
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).Create(&schema.Stats{UserID: input.UserID}).Error; err != nil {
			return fmt.Errorf("failed to ensure stats: %w", err)
		}

		if err := tx.Model(&schema.Stats{}).
			Where("user_id = ?", input.UserID).
			Updates(values).Error; err != nil {
			return fmt.Errorf("failed to increment stats: %w", err)
		}

		return nil
	})
}

package repo

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"takas-go/internal/domain"
)

// AdminStore 跑在特权连接上（db.admin_dsn）
type AdminStore struct{ db *gorm.DB }

func NewAdminStore(db *gorm.DB) *AdminStore { return &AdminStore{db: db} }

func (s *AdminStore) Stats(ctx context.Context) (domain.DashboardStats, error) {
	var st domain.DashboardStats
	g, gctx := errgroup.WithContext(ctx)
	count := func(dst *int64, model any, where ...any) {
		g.Go(func() error {
			q := s.db.WithContext(gctx).Model(model)
			if len(where) > 0 {
				q = q.Where(where[0], where[1:]...)
			}
			return q.Count(dst).Error
		})
	}
	count(&st.Users, &domain.User{})
	count(&st.Items, &domain.Item{})
	count(&st.ActiveItems, &domain.Item{}, "is_deal = ?", true)
	count(&st.Conversations, &domain.Conversation{})
	count(&st.Messages, &domain.Message{})
	if err := g.Wait(); err != nil {
		return domain.DashboardStats{}, err
	}
	return st, nil
}

func (s *AdminStore) RecentUsers(ctx context.Context, limit int) ([]domain.User, error) {
	var out []domain.User
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(clampLimit(limit, 5, 50)).Find(&out).Error
	return out, err
}

func (s *AdminStore) RecentItems(ctx context.Context, limit int) ([]domain.Item, error) {
	var out []domain.Item
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(clampLimit(limit, 5, 50)).Find(&out).Error
	return out, err
}

func (s *AdminStore) ListItems(ctx context.Context, q string, offset, limit int) ([]domain.Item, int64, error) {
	tx := s.db.WithContext(ctx).Model(&domain.Item{})
	if v := strings.ToLower(strings.TrimSpace(q)); v != "" {
		tx = tx.Where("LOWER(title) LIKE ? ESCAPE '!'", containsPattern(v))
	}
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []domain.Item
	err := tx.Order("created_at DESC").Offset(offset).Limit(clampLimit(limit, 20, 100)).Find(&items).Error
	return items, total, err
}

func (s *AdminStore) Audit(ctx context.Context, entry *domain.AuditLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

func (s *AdminStore) AuditLogs(ctx context.Context, offset, limit int) ([]domain.AuditLog, int64, error) {
	tx := s.db.WithContext(ctx).Model(&domain.AuditLog{})
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []domain.AuditLog
	err := tx.Order("id DESC").Offset(offset).Limit(clampLimit(limit, 20, 100)).Find(&out).Error
	return out, total, err
}

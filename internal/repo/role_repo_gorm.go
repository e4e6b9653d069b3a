package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"takas-go/internal/domain"
)

type RoleRepo struct{ db *gorm.DB }

func NewRoleRepo(db *gorm.DB) *RoleRepo { return &RoleRepo{db: db} }

// Lookup 每次都查库，不做缓存
func (r *RoleRepo) Lookup(ctx context.Context, userID string) (domain.Role, error) {
	var ra domain.RoleAssignment
	err := r.db.WithContext(ctx).First(&ra, "user_id = ?", userID).Error
	if isNotFound(err) {
		return domain.RoleUser, nil
	}
	if err != nil {
		return "", err
	}
	return ra.Role, nil
}

func (r *RoleRepo) Assign(ctx context.Context, userID string, role domain.Role, grantedBy string) error {
	if !role.Valid() {
		return domain.E(domain.KindInvalid, "role.assign", "unknown role")
	}
	ra := domain.RoleAssignment{UserID: userID, Role: role, GrantedBy: grantedBy}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "granted_by", "updated_at"}),
	}).Create(&ra).Error
}

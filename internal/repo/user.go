package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/Skotchmaster/taskvault/internal/models"
)

var publicUserColumns = []string{"id", "name", "email", "role", "created_at", "updated_at"}

func (r *GormRepo) CreateUser(ctx context.Context, u *models.User) error {
	return translate(r.DB.WithContext(ctx).Create(u).Error)
}

func (r *GormRepo) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *GormRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("email = ?", email).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormRepo) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// FindPublicUserByID loads only the public columns.
func (r *GormRepo) FindPublicUserByID(ctx context.Context, id string) (*models.PublicUser, error) {
	var u models.PublicUser
	res := r.DB.WithContext(ctx).Model(&models.User{}).
		Select(publicUserColumns).
		Where("id = ?", id).
		Limit(1).
		Scan(&u)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &u, nil
}

// SetRefreshToken overwrites the stored digest unconditionally. A nil digest clears the session.
func (r *GormRepo) SetRefreshToken(ctx context.Context, userID string, digest *string) error {
	res := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("refresh_token", digest)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RotateRefreshToken replaces oldDigest with newDigest only if oldDigest is still stored.
// It returns false when another rotation or a logout got there first.
func (r *GormRepo) RotateRefreshToken(ctx context.Context, userID, oldDigest, newDigest string) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND refresh_token = ?", userID, oldDigest).
		Update("refresh_token", newDigest)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormRepo) ListUsersWithTaskCounts(ctx context.Context) ([]models.UserWithTaskCount, error) {
	out := make([]models.UserWithTaskCount, 0)
	err := r.DB.WithContext(ctx).Model(&models.User{}).
		Select("users.id, users.name, users.email, users.role, users.created_at, users.updated_at, COUNT(tasks.id) AS task_count").
		Joins("LEFT JOIN tasks ON tasks.user_id = users.id").
		Group("users.id, users.name, users.email, users.role, users.created_at, users.updated_at").
		Order("users.created_at DESC").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepo) GetUserWithTasks(ctx context.Context, id string) (*models.UserDetail, error) {
	u, err := r.FindPublicUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	tasks := make([]models.TaskSummary, 0)
	if err := r.DB.WithContext(ctx).Model(&models.Task{}).
		Select("id, title, status, created_at").
		Where("user_id = ?", id).
		Order("created_at DESC").
		Scan(&tasks).Error; err != nil {
		return nil, err
	}
	return &models.UserDetail{PublicUser: *u, Tasks: tasks}, nil
}

// DeleteUserCascade removes the user and their tasks in one transaction.
func (r *GormRepo) DeleteUserCascade(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.Task{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.User{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *GormRepo) UserStats(ctx context.Context) (models.UserStats, error) {
	var rows []struct {
		Role  models.Role
		Count int64
	}
	if err := r.DB.WithContext(ctx).Model(&models.User{}).
		Select("role, COUNT(*) AS count").
		Group("role").
		Scan(&rows).Error; err != nil {
		return models.UserStats{}, err
	}

	var stats models.UserStats
	for _, row := range rows {
		stats.TotalUsers += row.Count
		switch row.Role {
		case models.RoleAdmin:
			stats.AdminCount = row.Count
		case models.RoleUser:
			stats.UserCount = row.Count
		}
	}
	return stats, nil
}

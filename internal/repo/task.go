package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/Skotchmaster/taskvault/internal/models"
)

// TaskFilter scopes task queries. An empty OwnerID means every owner.
type TaskFilter struct {
	OwnerID string
	Status  models.TaskStatus
}

func (f TaskFilter) apply(db *gorm.DB) *gorm.DB {
	if f.OwnerID != "" {
		db = db.Where("user_id = ?", f.OwnerID)
	}
	if f.Status != "" {
		db = db.Where("status = ?", f.Status)
	}
	return db
}

func (r *GormRepo) CreateTask(ctx context.Context, t *models.Task) error {
	if err := r.DB.WithContext(ctx).Create(t).Error; err != nil {
		return translate(err)
	}
	return r.attachOwners(ctx, []*models.Task{t})
}

func (r *GormRepo) FindTaskByID(ctx context.Context, id string) (*models.Task, error) {
	var t models.Task
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, translate(err)
	}
	if err := r.attachOwners(ctx, []*models.Task{&t}); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTasks returns tasks newest first.
func (r *GormRepo) ListTasks(ctx context.Context, f TaskFilter) ([]models.Task, error) {
	tasks := make([]models.Task, 0)
	if err := f.apply(r.DB.WithContext(ctx).Model(&models.Task{})).
		Order("created_at DESC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	if err := r.attachOwners(ctx, taskPtrs(tasks)); err != nil {
		return nil, err
	}
	return tasks, nil
}

// UpdateTask writes only the mutable fields. The owner is never changed.
func (r *GormRepo) UpdateTask(ctx context.Context, id string, u models.TaskUpdate) (*models.Task, error) {
	values := map[string]any{}
	if u.Title != nil {
		values["title"] = *u.Title
	}
	if u.Description != nil {
		values["description"] = *u.Description
	}
	if u.Status != nil {
		values["status"] = *u.Status
	}

	if len(values) > 0 {
		res := r.DB.WithContext(ctx).Model(&models.Task{}).Where("id = ?", id).Updates(values)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return r.FindTaskByID(ctx, id)
}

func (r *GormRepo) DeleteTask(ctx context.Context, id string) error {
	res := r.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.Task{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepo) TaskStats(ctx context.Context, ownerID string) (models.TaskStats, error) {
	var rows []struct {
		Status models.TaskStatus
		Count  int64
	}
	if err := (TaskFilter{OwnerID: ownerID}).apply(r.DB.WithContext(ctx).Model(&models.Task{})).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return models.TaskStats{}, err
	}

	var stats models.TaskStats
	for _, row := range rows {
		stats.Total += row.Count
		switch row.Status {
		case models.StatusTodo:
			stats.Todo = row.Count
		case models.StatusInProgress:
			stats.InProgress = row.Count
		case models.StatusDone:
			stats.Done = row.Count
		}
	}
	return stats, nil
}

// SearchTasks matches title or description case-insensitively.
func (r *GormRepo) SearchTasks(ctx context.Context, ownerID, query string, offset, limit int) (int64, []models.Task, error) {
	q := strings.TrimSpace(query)
	tasks := make([]models.Task, 0, limit)
	if q == "" {
		return 0, tasks, nil
	}

	pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
	base := func() *gorm.DB {
		return (TaskFilter{OwnerID: ownerID}).apply(r.DB.WithContext(ctx).Model(&models.Task{})).
			Where(`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`, pattern, pattern)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return 0, nil, err
	}
	if err := base().
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&tasks).Error; err != nil {
		return 0, nil, err
	}
	if err := r.attachOwners(ctx, taskPtrs(tasks)); err != nil {
		return 0, nil, err
	}
	return total, tasks, nil
}

// FindTasksByIDs keeps the order of ids and skips ids that no longer exist.
func (r *GormRepo) FindTasksByIDs(ctx context.Context, ids []string) ([]models.Task, error) {
	out := make([]models.Task, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var found []models.Task
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]models.Task, len(found))
	for _, t := range found {
		byID[t.ID] = t
	}
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			out = append(out, t)
		}
	}
	if err := r.attachOwners(ctx, taskPtrs(out)); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepo) attachOwners(ctx context.Context, tasks []*models.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	ids := make([]string, 0, len(tasks))
	seen := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		if _, ok := seen[t.UserID]; !ok {
			seen[t.UserID] = struct{}{}
			ids = append(ids, t.UserID)
		}
	}

	var owners []models.TaskOwner
	if err := r.DB.WithContext(ctx).Model(&models.User{}).
		Select("id, name, email").
		Where("id IN ?", ids).
		Scan(&owners).Error; err != nil {
		return err
	}
	byID := make(map[string]models.TaskOwner, len(owners))
	for _, o := range owners {
		byID[o.ID] = o
	}
	for _, t := range tasks {
		if o, ok := byID[t.UserID]; ok {
			owner := o
			t.User = &owner
		}
	}
	return nil
}

func taskPtrs(tasks []models.Task) []*models.Task {
	out := make([]*models.Task, len(tasks))
	for i := range tasks {
		out[i] = &tasks[i]
	}
	return out
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

package repository

import (
	"time"

	"github.com/calder-wren/pagepermsbackend/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GormAssignmentRepository struct {
	db *gorm.DB
}

func NewGormAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &GormAssignmentRepository{db: db}
}

func (r *GormAssignmentRepository) ListAssignments(pageID uint, role string) ([]uint, error) {
	ids := []uint{}
	err := r.db.Model(&models.PageRoleAssignment{}).
		Where("page_id = ? AND role = ?", pageID, role).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *GormAssignmentRepository) ListByPage(pageID uint) ([]models.PageRoleAssignment, error) {
	var assignments []models.PageRoleAssignment
	err := r.db.Where("page_id = ?", pageID).
		Order("role ASC, user_id ASC").
		Find(&assignments).Error
	return assignments, err
}

// ReplaceAssignments is delete-all-then-insert-all inside one transaction, so
// readers observe either the prior set or the new set in full. Duplicate
// (role, user) pairs collapse, and a user listed under several roles keeps
// only the first: first-listed-role-wins is the documented resolution for
// conflicting submissions, and the (page_id, user_id) unique index enforces
// it at the schema level too.
func (r *GormAssignmentRepository) ReplaceAssignments(pageID, actorID uint, sets []RoleAssignmentSet) error {
	now := time.Now()
	rows := make([]models.PageRoleAssignment, 0)
	assigned := make(map[uint]struct{})
	journal := make(map[string][]uint)

	for _, set := range sets {
		for _, userID := range set.UserIDs {
			if _, taken := assigned[userID]; taken {
				continue
			}
			assigned[userID] = struct{}{}
			rows = append(rows, models.PageRoleAssignment{
				PageID:     pageID,
				Role:       set.Role,
				UserID:     userID,
				AssignedAt: now,
			})
			journal[set.Role] = append(journal[set.Role], userID)
		}
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("page_id = ?", pageID).Delete(&models.PageRoleAssignment{}).Error; err != nil {
			return err
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		entry := models.PermissionChangeLog{
			ID:          uuid.NewString(),
			PageID:      pageID,
			ActorID:     actorID,
			Assignments: journal,
		}
		return tx.Create(&entry).Error
	})
}

func (r *GormAssignmentRepository) DeleteAllForPage(pageID uint) error {
	return r.db.Where("page_id = ?", pageID).Delete(&models.PageRoleAssignment{}).Error
}

type GormChangeLogRepository struct {
	db *gorm.DB
}

func NewGormChangeLogRepository(db *gorm.DB) ChangeLogRepository {
	return &GormChangeLogRepository{db: db}
}

func (r *GormChangeLogRepository) ListByPage(pageID uint) ([]models.PermissionChangeLog, error) {
	var entries []models.PermissionChangeLog
	err := r.db.Where("page_id = ?", pageID).
		Order("created_at DESC").
		Find(&entries).Error
	return entries, err
}

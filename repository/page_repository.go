package repository

import (
	"github.com/calder-wren/pagepermsbackend/models"
	"gorm.io/gorm"
)

type GormPageRepository struct {
	db *gorm.DB
}

func NewGormPageRepository(db *gorm.DB) PageRepository {
	return &GormPageRepository{db: db}
}

func (r *GormPageRepository) Create(page *models.Page) error {
	return r.db.Create(page).Error
}

func (r *GormPageRepository) GetByID(id uint) (*models.Page, error) {
	var page models.Page
	err := r.db.First(&page, id).Error
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func (r *GormPageRepository) Delete(id uint) error {
	return r.db.Delete(&models.Page{}, id).Error
}

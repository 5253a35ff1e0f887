package repository

import (
	"context"

	"trackly/internal/model"

	"gorm.io/gorm"
)

type CategoryRepository interface {
	List(ctx context.Context) ([]model.Category, error)
	GetByName(ctx context.Context, name string) (*model.Category, error)
	Upsert(ctx context.Context, category *model.Category) error
}

type categoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) List(ctx context.Context) ([]model.Category, error) {
	var cats []model.Category
	err := GetDB(ctx, r.db).Order("name asc").Find(&cats).Error
	return cats, err
}

func (r *categoryRepository) GetByName(ctx context.Context, name string) (*model.Category, error) {
	var cat model.Category
	if err := GetDB(ctx, r.db).First(&cat, "name = ?", name).Error; err != nil {
		return nil, err
	}
	return &cat, nil
}

func (r *categoryRepository) Upsert(ctx context.Context, category *model.Category) error {
	return GetDB(ctx, r.db).Save(category).Error
}

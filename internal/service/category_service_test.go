package service

import (
	"context"
	"sort"
	"strings"
	"testing"

	"trackly/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fakeCategoryRepo struct {
	cats map[string]model.Category
}

func newFakeCategoryRepo() *fakeCategoryRepo {
	return &fakeCategoryRepo{cats: make(map[string]model.Category)}
}

func (r *fakeCategoryRepo) List(_ context.Context) ([]model.Category, error) {
	var out []model.Category
	for _, c := range r.cats {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakeCategoryRepo) GetByName(_ context.Context, name string) (*model.Category, error) {
	c, ok := r.cats[name]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := c
	return &copied, nil
}

func (r *fakeCategoryRepo) Upsert(_ context.Context, category *model.Category) error {
	if category.ID == uuid.Nil {
		category.ID = uuid.New()
	}
	r.cats[category.Name] = *category
	return nil
}

func TestBulkUploadCategoriesUpserts(t *testing.T) {
	repo := newFakeCategoryRepo()
	svc := NewCategoryService(repo, fakeTxManager{})

	first := "name,gl_code\nMeals,6400\nTravel,6300"
	count, err := svc.BulkUploadCategories(context.Background(), strings.NewReader(first))
	if err != nil {
		t.Fatalf("bulk upload: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	// Re-upload replaces the GL code for an existing name.
	second := "name,gl_code\nMeals,6499"
	if _, err := svc.BulkUploadCategories(context.Background(), strings.NewReader(second)); err != nil {
		t.Fatalf("bulk upload: %v", err)
	}

	code, err := svc.ResolveGLCode(context.Background(), "Meals")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if code != "6499" {
		t.Errorf("gl code = %s, want 6499", code)
	}

	cats, err := svc.ListCategories(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(cats) != 2 {
		t.Errorf("categories = %d, want 2", len(cats))
	}
}

func TestBulkUploadCategoriesRequiresColumns(t *testing.T) {
	svc := NewCategoryService(newFakeCategoryRepo(), fakeTxManager{})

	if _, err := svc.BulkUploadCategories(context.Background(), strings.NewReader("name\nMeals")); err == nil {
		t.Fatal("expected missing gl_code column to fail")
	}
}

func TestResolveGLCodeUnknownCategory(t *testing.T) {
	svc := NewCategoryService(newFakeCategoryRepo(), fakeTxManager{})

	code, err := svc.ResolveGLCode(context.Background(), "Unknown")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if code != "" {
		t.Errorf("expected empty gl code, got %s", code)
	}
}

package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"trackly/internal/model"
	"trackly/internal/repository"
)

type CategoryResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	GLCode string `json:"gl_code"`
}

// CategoryService manages the category-to-GL-code reference table. Lookups
// feed draft creation; the table itself is maintained by finance via CSV.
type CategoryService interface {
	ListCategories(ctx context.Context) ([]CategoryResponse, error)
	ResolveGLCode(ctx context.Context, name string) (string, error)
	BulkUploadCategories(ctx context.Context, r io.Reader) (int, error)
}

type categoryService struct {
	categoryRepo repository.CategoryRepository
	txManager    repository.TransactionManager
}

func NewCategoryService(categoryRepo repository.CategoryRepository, txManager repository.TransactionManager) CategoryService {
	return &categoryService{categoryRepo: categoryRepo, txManager: txManager}
}

func (s *categoryService) ListCategories(ctx context.Context) ([]CategoryResponse, error) {
	cats, err := s.categoryRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	res := make([]CategoryResponse, 0, len(cats))
	for _, c := range cats {
		res = append(res, CategoryResponse{ID: c.ID.String(), Name: c.Name, GLCode: c.GLCode})
	}
	return res, nil
}

// ResolveGLCode returns the GL code for a category name, or "" when the
// category is not in the reference table.
func (s *categoryService) ResolveGLCode(ctx context.Context, name string) (string, error) {
	cat, err := s.categoryRepo.GetByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return "", nil
	}
	return cat.GLCode, nil
}

// BulkUploadCategories ingests a CSV with name and gl_code columns. Existing
// names get their GL code replaced. All-or-nothing.
func (s *categoryService) BulkUploadCategories(ctx context.Context, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("could not parse file: %w", err)
	}
	if len(records) < 2 {
		return 0, errors.New("file has no data rows")
	}

	cols := make(map[string]int)
	for i, name := range records[0] {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"name", "gl_code"} {
		if _, ok := cols[required]; !ok {
			return 0, fmt.Errorf("missing column: %s", required)
		}
	}

	count := 0
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		for i, row := range records[1:] {
			name := strings.TrimSpace(row[cols["name"]])
			glCode := strings.TrimSpace(row[cols["gl_code"]])
			if name == "" || glCode == "" {
				return fmt.Errorf("missing name or gl_code in row %d", i+2)
			}

			cat, findErr := s.categoryRepo.GetByName(txCtx, name)
			if findErr != nil {
				cat = &model.Category{Name: name}
			}
			cat.GLCode = glCode
			if upsertErr := s.categoryRepo.Upsert(txCtx, cat); upsertErr != nil {
				return fmt.Errorf("failed to save category %s: %w", name, upsertErr)
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}

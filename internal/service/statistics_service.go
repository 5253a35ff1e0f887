package service

import (
	"context"
	"time"

	"trackly/internal/model"

	"gorm.io/gorm"
)

type StatisticsService interface {
	GetStatistics(ctx context.Context, startDate, endDate time.Time) (model.StatisticsResponse, error)
}

type statisticsService struct {
	db *gorm.DB
}

func NewStatisticsService(db *gorm.DB) StatisticsService {
	return &statisticsService{db: db}
}

// GetStatistics aggregated spend metrics over expenses created inside the time bracket
func (s *statisticsService) GetStatistics(ctx context.Context, startDate, endDate time.Time) (model.StatisticsResponse, error) {
	var response model.StatisticsResponse
	response.TimeRangeStartDate = startDate
	response.TimeRangeEndDate = endDate

	type bucket struct {
		Value float64
		Count int
	}

	sumByStatus := func(status string) bucket {
		var b bucket
		s.db.WithContext(ctx).Table("expenses").
			Select("COALESCE(SUM(amount), 0) as value, COUNT(*) as count").
			Where("status = ? AND created_at >= ? AND created_at <= ?", status, startDate, endDate).
			Scan(&b)
		return b
	}

	approved := sumByStatus(model.StatusApproved)
	response.TotalApprovedValue = approved.Value
	response.ApprovedCount = approved.Count

	rejected := sumByStatus(model.StatusRejected)
	response.TotalRejectedValue = rejected.Value
	response.RejectedCount = rejected.Count

	pending := sumByStatus(model.StatusSubmitted)
	response.TotalPendingValue = pending.Value
	response.PendingCount = pending.Count

	// Top spend categories among approved expenses
	var topCategories []model.CategoryRanking
	s.db.WithContext(ctx).Table("expenses").
		Select("category, COUNT(*) as items_count, SUM(amount) as total_amount").
		Where("status = ? AND created_at >= ? AND created_at <= ?", model.StatusApproved, startDate, endDate).
		Group("category").
		Order("total_amount DESC").
		Limit(5).
		Scan(&topCategories)
	response.TopCategories = topCategories

	return response, nil
}

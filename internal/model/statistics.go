package model

import "time"

type CategoryRanking struct {
	Category    string  `json:"category"`
	ItemsCount  int     `json:"items_count"`
	TotalAmount float64 `json:"total_amount"`
}

type StatisticsResponse struct {
	TimeRangeStartDate time.Time         `json:"time_range_start_date"`
	TimeRangeEndDate   time.Time         `json:"time_range_end_date"`
	TotalApprovedValue float64           `json:"total_approved_value"`
	TotalRejectedValue float64           `json:"total_rejected_value"`
	TotalPendingValue  float64           `json:"total_pending_value"`
	ApprovedCount      int               `json:"approved_count"`
	RejectedCount      int               `json:"rejected_count"`
	PendingCount       int               `json:"pending_count"`
	TopCategories      []CategoryRanking `json:"top_categories"`
}

package timeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// PagingInfo carries simple pagination metadata.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
}

// Result bundles timeline rows with paging information. Storage order is
// chronological ascending; presentation layers reverse for most-recent-first.
type Result struct {
	Entries []Entry    `json:"entries"`
	Paging  PagingInfo `json:"paging"`
}

// Service coordinates timeline reads.
type Service struct {
	repo Repository
}

// NewService returns a timeline read service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns one page of a project's audit trail.
func (s *Service) List(ctx context.Context, projectID uuid.UUID, page, pageSize int) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("timeline: repository not configured")
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	entries, err := s.repo.ListWindow(ctx, projectID, offset, pageSize+1)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(entries) > pageSize
	if hasNext {
		entries = entries[:pageSize]
	}
	return Result{
		Entries: entries,
		Paging:  PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext},
	}, nil
}

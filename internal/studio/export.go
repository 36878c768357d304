package studio

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/manash/olive/internal/estimate"
	"github.com/manash/olive/pkg/models"
)

// Search queries the shopping collaborator. Results are not stored.
func (s *Service) Search(ctx context.Context, q models.SearchQuery) (*models.SearchResult, error) {
	if s.search == nil {
		return nil, ErrSearchDisabled
	}
	if strings.TrimSpace(q.Query) == "" {
		return nil, ErrEmptyQuery
	}

	var res *models.SearchResult
	err := s.call(OpSearch, func() (err error) {
		res, err = s.search.Search(ctx, q)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// AddSearchItem appends a search hit to the estimate as a single unit.
func (s *Service) AddSearchItem(ctx context.Context, item models.ShopItem) (models.EstimateRow, error) {
	row := estimate.FromSearchItem(item)
	return row, s.AddEstimateRow(ctx, row)
}

func (s *Service) AddEstimateRow(ctx context.Context, row models.EstimateRow) error {
	row = normalizeRow(row)
	return s.update(ctx, func(sess *models.Session) error {
		sess.EstimateRows = append(sess.EstimateRows, row)
		return nil
	})
}

// UpdateEstimateRow replaces the row at index. The price keeps digits only
// and a quantity below 1 becomes 1.
func (s *Service) UpdateEstimateRow(ctx context.Context, index int, row models.EstimateRow) error {
	row = normalizeRow(row)
	return s.update(ctx, func(sess *models.Session) error {
		if index < 0 || index >= len(sess.EstimateRows) {
			return fmt.Errorf("%w: row %d", ErrInvalidIndex, index+1)
		}
		sess.EstimateRows[index] = row
		return nil
	})
}

func (s *Service) RemoveEstimateRow(ctx context.Context, index int) error {
	return s.update(ctx, func(sess *models.Session) error {
		if index < 0 || index >= len(sess.EstimateRows) {
			return fmt.Errorf("%w: row %d", ErrInvalidIndex, index+1)
		}
		sess.EstimateRows = slices.Delete(sess.EstimateRows, index, index+1)
		return nil
	})
}

func normalizeRow(row models.EstimateRow) models.EstimateRow {
	row.Price = estimate.NormalizePrice(row.Price)
	if row.Qty < 1 {
		row.Qty = 1
	}
	return row
}

// ExportEstimate writes the estimate document and returns its file name.
func (s *Service) ExportEstimate(w io.Writer) (string, error) {
	sess := s.Snapshot()
	if len(sess.EstimateRows) == 0 {
		return "", ErrEmptyEstimate
	}
	now := s.now()
	err := estimate.RenderEstimate(w, estimate.Sheet{
		Customer: sess.CustomerName,
		Date:     now,
		Rows:     sess.EstimateRows,
	})
	if err != nil {
		return "", fmt.Errorf("render estimate: %w", err)
	}
	return estimate.Filename(estimate.EstimatePrefix, sess.CustomerName, now), nil
}

// ExportConstruction writes the construction plan and returns its file
// name.
func (s *Service) ExportConstruction(w io.Writer) (string, error) {
	sess := s.Snapshot()
	now := s.now()
	c, err := estimate.NewConstruction(sess, now)
	if err != nil {
		return "", err
	}
	if err := estimate.RenderConstruction(w, c); err != nil {
		return "", fmt.Errorf("render construction plan: %w", err)
	}
	return estimate.Filename(estimate.ConstructionPrefix, sess.CustomerName, now), nil
}

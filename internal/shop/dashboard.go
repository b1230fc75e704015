package shop

import (
	"context"

	"github.com/safar/boutique-store/internal/auth"
	"github.com/safar/boutique-store/internal/database"
	"github.com/safar/boutique-store/internal/models"
	"github.com/safar/boutique-store/internal/stats"
	"github.com/safar/boutique-store/internal/store"
)

const (
	lowRatingBelow   = 3
	lowRatingsShown  = 5
	topCategoriesMax = 5
	newUserWindow    = 30
)

type AdminDashboard struct {
	stats.AdminStats
	Rating        models.RatingSummary  `json:"rating"`
	LowRatings    []models.Rating       `json:"low_ratings"`
	TopCategories []store.CategorySales `json:"top_categories"`
	NewUsers      int64                 `json:"new_users"`
}

func (s *Service) AgentDashboard(ctx context.Context, id auth.Identity) (*stats.AgentStats, error) {
	if err := auth.Authorize(id, auth.ActionAgentDashboard); err != nil {
		return nil, err
	}

	var st stats.AgentStats
	err := s.db.InTx(ctx, database.ReadOnlyTxOptions(), func(tx store.Tx) error {
		agentID := id.UserID
		orders, err := tx.OrdersInScope(ctx, store.Scope{AgentID: &agentID})
		if err != nil {
			return err
		}
		pending, err := tx.CountOrders(ctx, models.OrderStatusPending)
		if err != nil {
			return err
		}
		st = s.stats.Agent(orders, pending)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// AdminDashboard reads everything from one snapshot so the figures agree
// with each other.
func (s *Service) AdminDashboard(ctx context.Context, id auth.Identity) (*AdminDashboard, error) {
	if err := auth.Authorize(id, auth.ActionAdminDashboard); err != nil {
		return nil, err
	}

	var d AdminDashboard
	err := s.db.InTx(ctx, database.ReadOnlyTxOptions(), func(tx store.Tx) error {
		orders, err := tx.OrdersInScope(ctx, store.Scope{})
		if err != nil {
			return err
		}
		d.AdminStats = s.stats.Admin(orders)

		if d.Rating, err = tx.RatingOverview(ctx); err != nil {
			return err
		}
		if d.LowRatings, err = tx.ListLowRatings(ctx, lowRatingBelow, lowRatingsShown); err != nil {
			return err
		}
		if d.TopCategories, err = tx.TopCategories(ctx, topCategoriesMax); err != nil {
			return err
		}
		d.NewUsers, err = tx.CountUsersSince(ctx, s.now().AddDate(0, 0, -newUserWindow))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

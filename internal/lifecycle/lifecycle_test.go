package lifecycle

import (
	"testing"
	"time"

	"github.com/safar/boutique-store/internal/auth"
	"github.com/safar/boutique-store/internal/database"
	"github.com/safar/boutique-store/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	customer = auth.User(10, models.RoleClient)
	agentA   = auth.User(20, models.RoleAgent)
	agentB   = auth.User(21, models.RoleAgent)
	staff    = auth.User(30, models.RoleStaff)
)

func pendingOrder() *models.Order {
	return &models.Order{ID: 1, UserID: customer.UserID, Status: models.OrderStatusPending}
}

func TestNext(t *testing.T) {
	tests := []struct {
		from  models.OrderStatus
		event Event
		to    models.OrderStatus
		ok    bool
	}{
		{models.OrderStatusPending, EventAccept, models.OrderStatusInProgress, true},
		{models.OrderStatusPending, EventCancel, models.OrderStatusCancelled, true},
		{models.OrderStatusPending, EventComplete, models.OrderStatusPending, false},
		{models.OrderStatusInProgress, EventComplete, models.OrderStatusDelivered, true},
		{models.OrderStatusInProgress, EventCancel, models.OrderStatusCancelled, true},
		{models.OrderStatusInProgress, EventAccept, models.OrderStatusInProgress, false},
		{models.OrderStatusDelivered, EventCancel, models.OrderStatusDelivered, false},
		{models.OrderStatusCancelled, EventAccept, models.OrderStatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.event), func(t *testing.T) {
			got, err := Next(tt.from, tt.event)
			assert.Equal(t, tt.to, got)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, database.ErrInvalidTransition)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(models.OrderStatusPending, models.OrderStatusInProgress))
	assert.False(t, CanTransition(models.OrderStatusPending, models.OrderStatusDelivered))
	assert.False(t, CanTransition(models.OrderStatusDelivered, models.OrderStatusCancelled))
}

func TestAcceptAssignsAgent(t *testing.T) {
	o := pendingOrder()

	res, err := Accept(o, agentA)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, models.OrderStatusPending, res.Previous)
	assert.Equal(t, models.OrderStatusInProgress, o.Status)
	require.NotNil(t, o.AgentID)
	assert.Equal(t, agentA.UserID, *o.AgentID)
}

func TestAcceptTwiceBySameAgentIsNoop(t *testing.T) {
	o := pendingOrder()
	_, err := Accept(o, agentA)
	require.NoError(t, err)

	res, err := Accept(o, agentA)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, models.OrderStatusInProgress, o.Status)
}

func TestAcceptByRacingAgentFails(t *testing.T) {
	o := pendingOrder()
	_, err := Accept(o, agentA)
	require.NoError(t, err)

	_, err = Accept(o, agentB)
	assert.ErrorIs(t, err, database.ErrInvalidTransition)
	assert.Equal(t, agentA.UserID, *o.AgentID)
}

func TestAcceptByStaffLeavesAgentUnassigned(t *testing.T) {
	o := pendingOrder()
	res, err := Accept(o, staff)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Nil(t, o.AgentID)

	res, err = Accept(o, staff)
	require.NoError(t, err)
	assert.False(t, res.Changed)
}

func TestAcceptTerminalFails(t *testing.T) {
	for _, s := range []models.OrderStatus{models.OrderStatusDelivered, models.OrderStatusCancelled} {
		o := pendingOrder()
		o.Status = s
		_, err := Accept(o, agentA)
		assert.ErrorIs(t, err, database.ErrInvalidTransition)
		assert.Equal(t, s, o.Status)
	}
}

func TestCompleteSkippingInProgressFails(t *testing.T) {
	o := pendingOrder()
	_, err := Complete(o, agentA)
	assert.ErrorIs(t, err, database.ErrInvalidTransition)
	assert.Equal(t, models.OrderStatusPending, o.Status)
}

func TestComplete(t *testing.T) {
	o := pendingOrder()
	_, err := Accept(o, agentA)
	require.NoError(t, err)

	_, err = Complete(o, agentB)
	assert.ErrorIs(t, err, database.ErrForbidden)
	assert.Equal(t, models.OrderStatusInProgress, o.Status)

	res, err := Complete(o, agentA)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, models.OrderStatusDelivered, o.Status)

	_, err = Complete(o, agentA)
	assert.ErrorIs(t, err, database.ErrInvalidTransition)
}

func TestCompleteStaffAcceptedOrderByAgent(t *testing.T) {
	o := pendingOrder()
	_, err := Accept(o, staff)
	require.NoError(t, err)

	_, err = Complete(o, agentB)
	require.NoError(t, err)
	assert.Equal(t, agentB.UserID, *o.AgentID)
}

func TestCancel(t *testing.T) {
	t.Run("customer cancels pending", func(t *testing.T) {
		o := pendingOrder()
		_, err := Cancel(o, customer)
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusCancelled, o.Status)
	})

	t.Run("customer cannot cancel in progress", func(t *testing.T) {
		o := pendingOrder()
		_, _ = Accept(o, agentA)
		_, err := Cancel(o, customer)
		assert.ErrorIs(t, err, database.ErrForbidden)
	})

	t.Run("other customer", func(t *testing.T) {
		o := pendingOrder()
		_, err := Cancel(o, auth.User(99, models.RoleClient))
		assert.ErrorIs(t, err, database.ErrForbidden)
	})

	t.Run("assigned agent cancels", func(t *testing.T) {
		o := pendingOrder()
		_, _ = Accept(o, agentA)
		_, err := Cancel(o, agentB)
		assert.ErrorIs(t, err, database.ErrForbidden)
		_, err = Cancel(o, agentA)
		require.NoError(t, err)
	})

	t.Run("staff cannot cancel delivered", func(t *testing.T) {
		o := pendingOrder()
		o.Status = models.OrderStatusDelivered
		_, err := Cancel(o, staff)
		assert.ErrorIs(t, err, database.ErrInvalidTransition)
	})
}

func TestUpdatePosition(t *testing.T) {
	lat := decimal.RequireFromString("14.716677")
	lng := decimal.RequireFromString("-17.467686")
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	o := pendingOrder()
	err := UpdatePosition(o, agentA, lat, lng, at)
	assert.ErrorIs(t, err, database.ErrInvalidTransition)

	_, err = Accept(o, agentA)
	require.NoError(t, err)

	err = UpdatePosition(o, agentB, lat, lng, at)
	assert.ErrorIs(t, err, database.ErrForbidden)
	assert.Nil(t, o.AgentPosition)

	require.NoError(t, UpdatePosition(o, agentA, lat, lng, at))
	require.NotNil(t, o.AgentPosition)
	assert.True(t, lat.Equal(o.AgentPosition.Latitude))
	assert.Equal(t, at, o.AgentPosition.UpdatedAt)
	assert.Equal(t, models.OrderStatusInProgress, o.Status)
}

func TestCanView(t *testing.T) {
	o := pendingOrder()
	assert.True(t, CanView(o, customer))
	assert.True(t, CanView(o, staff))
	assert.True(t, CanView(o, agentB))
	assert.False(t, CanView(o, auth.User(99, models.RoleClient)))
	assert.False(t, CanView(o, auth.Anonymous("s")))

	_, _ = Accept(o, agentA)
	assert.True(t, CanView(o, agentA))
	assert.False(t, CanView(o, agentB))

	staffAccepted := pendingOrder()
	_, _ = Accept(staffAccepted, staff)
	assert.True(t, CanView(staffAccepted, agentB))

	staffAccepted.Status = models.OrderStatusCancelled
	assert.False(t, CanView(staffAccepted, agentB))
}

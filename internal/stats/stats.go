// Package stats turns committed orders into dashboard figures. Everything is
// computed from the order slice handed in; nothing is cached between calls.
package stats

import (
	"time"

	"github.com/safar/boutique-store/internal/models"
	"github.com/shopspring/decimal"
)

// Aggregator carries the shop-wide constants the figures depend on.
type Aggregator struct {
	// Fee is what an agent earns per delivered order.
	Fee  decimal.Decimal
	Days int
	Loc  *time.Location
	Now  func() time.Time
}

func New(fee decimal.Decimal, days int, loc *time.Location) Aggregator {
	if loc == nil {
		loc = time.Local
	}
	return Aggregator{Fee: fee, Days: days, Loc: loc, Now: time.Now}
}

type Bucket struct {
	Label     string          `json:"label"`
	Start     time.Time       `json:"start"`
	Delivered int             `json:"delivered"`
	Revenue   decimal.Decimal `json:"revenue"`
}

type AgentStats struct {
	Counts         map[models.OrderStatus]int `json:"counts"`
	Revenue        decimal.Decimal            `json:"revenue"`
	DeliveredToday int                        `json:"delivered_today"`
	RevenueToday   decimal.Decimal            `json:"revenue_today"`
	RevenueMonth   decimal.Decimal            `json:"revenue_month"`
	Monthly        []Bucket                   `json:"monthly"`
	PendingPool    int64                      `json:"pending_pool"`
}

type AdminStats struct {
	Counts     map[models.OrderStatus]int `json:"counts"`
	Revenue    decimal.Decimal            `json:"revenue"`
	OpenOrders int                        `json:"open_orders"`
	InProgress int                        `json:"in_progress"`
	Daily      []Bucket                   `json:"daily"`
	Monthly    []Bucket                   `json:"monthly"`
	Recent     []models.Order             `json:"recent"`
}

const (
	monthsShown  = 12
	recentOrders = 10
)

// CountByStatus always reports every status, zero when absent.
func CountByStatus(orders []models.Order) map[models.OrderStatus]int {
	counts := make(map[models.OrderStatus]int, len(models.OrderStatuses))
	for _, s := range models.OrderStatuses {
		counts[s] = 0
	}
	for _, o := range orders {
		counts[o.Status]++
	}
	return counts
}

// AgentRevenue pays the flat fee for each delivered order.
func (a Aggregator) AgentRevenue(orders []models.Order) decimal.Decimal {
	return sum(orders, a.agentValue)
}

// AdminRevenue is the total of all delivered orders.
func AdminRevenue(orders []models.Order) decimal.Decimal {
	return sum(orders, orderTotal)
}

func (a Aggregator) agentValue(models.Order) decimal.Decimal { return a.Fee }

func orderTotal(o models.Order) decimal.Decimal { return o.TotalAmount }

func sum(orders []models.Order, value func(models.Order) decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, o := range orders {
		if o.Status == models.OrderStatusDelivered {
			total = total.Add(value(o))
		}
	}
	return total
}

func (a Aggregator) now() time.Time {
	if a.Now == nil {
		return time.Now().In(a.loc())
	}
	return a.Now().In(a.loc())
}

func (a Aggregator) loc() *time.Location {
	if a.Loc == nil {
		return time.Local
	}
	return a.Loc
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func startOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

// Daily buckets delivered orders by creation day over the last Days days,
// oldest first. Days without deliveries are present with zero values.
func (a Aggregator) Daily(orders []models.Order, value func(models.Order) decimal.Decimal) []Bucket {
	days := a.Days
	if days < 1 {
		days = 1
	}
	today := startOfDay(a.now())

	buckets := make([]Bucket, days)
	index := make(map[time.Time]int, days)
	for i := range buckets {
		start := today.AddDate(0, 0, i-days+1)
		buckets[i] = Bucket{Label: start.Format("2006-01-02"), Start: start, Revenue: decimal.Zero}
		index[start] = i
	}

	for _, o := range orders {
		if o.Status != models.OrderStatusDelivered {
			continue
		}
		if i, ok := index[startOfDay(o.CreatedAt.In(a.loc()))]; ok {
			buckets[i].Delivered++
			buckets[i].Revenue = buckets[i].Revenue.Add(value(o))
		}
	}
	return buckets
}

// Monthly is Daily at month granularity over the last twelve months.
func (a Aggregator) Monthly(orders []models.Order, value func(models.Order) decimal.Decimal) []Bucket {
	month := startOfMonth(a.now())

	buckets := make([]Bucket, monthsShown)
	index := make(map[time.Time]int, monthsShown)
	for i := range buckets {
		start := month.AddDate(0, i-monthsShown+1, 0)
		buckets[i] = Bucket{Label: start.Format("2006-01"), Start: start, Revenue: decimal.Zero}
		index[start] = i
	}

	for _, o := range orders {
		if o.Status != models.OrderStatusDelivered {
			continue
		}
		if i, ok := index[startOfMonth(o.CreatedAt.In(a.loc()))]; ok {
			buckets[i].Delivered++
			buckets[i].Revenue = buckets[i].Revenue.Add(value(o))
		}
	}
	return buckets
}

// Agent computes an agent's dashboard from the orders assigned to them.
// pendingPool is the shop-wide number of orders waiting for an agent.
func (a Aggregator) Agent(orders []models.Order, pendingPool int64) AgentStats {
	now := a.now()
	today := startOfDay(now)
	month := startOfMonth(now)

	st := AgentStats{
		Counts:       CountByStatus(orders),
		Revenue:      a.AgentRevenue(orders),
		RevenueToday: decimal.Zero,
		RevenueMonth: decimal.Zero,
		Monthly:      a.Monthly(orders, a.agentValue),
		PendingPool:  pendingPool,
	}

	for _, o := range orders {
		if o.Status != models.OrderStatusDelivered {
			continue
		}
		created := o.CreatedAt.In(a.loc())
		if !created.Before(today) {
			st.DeliveredToday++
			st.RevenueToday = st.RevenueToday.Add(a.Fee)
		}
		if !created.Before(month) {
			st.RevenueMonth = st.RevenueMonth.Add(a.Fee)
		}
	}
	return st
}

// Admin computes the shop-wide order figures. orders must be newest first,
// as the store returns them.
func (a Aggregator) Admin(orders []models.Order) AdminStats {
	counts := CountByStatus(orders)

	recent := orders
	if len(recent) > recentOrders {
		recent = recent[:recentOrders]
	}

	return AdminStats{
		Counts:     counts,
		Revenue:    AdminRevenue(orders),
		OpenOrders: counts[models.OrderStatusPending] + counts[models.OrderStatusInProgress],
		InProgress: counts[models.OrderStatusInProgress],
		Daily:      a.Daily(orders, orderTotal),
		Monthly:    a.Monthly(orders, orderTotal),
		Recent:     recent,
	}
}

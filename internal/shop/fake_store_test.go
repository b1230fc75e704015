package shop

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/safar/boutique-store/internal/database"
	"github.com/safar/boutique-store/internal/models"
	"github.com/safar/boutique-store/internal/store"
	"github.com/shopspring/decimal"
)

// memData is the whole fake database. Transactions work on a clone and swap
// it in on commit, so a failed unit of work leaves nothing behind.
type memData struct {
	users      map[int64]models.User
	products   map[int64]models.Product
	categories map[int64]models.Category
	ratings    []models.Rating
	cart       []models.CartLine
	orders     map[int64]models.Order
	items      []models.OrderItem
	seq        int64
}

func newMemData() *memData {
	return &memData{
		users:      map[int64]models.User{},
		products:   map[int64]models.Product{},
		categories: map[int64]models.Category{},
		orders:     map[int64]models.Order{},
	}
}

func (d *memData) clone() *memData {
	return &memData{
		users:      maps.Clone(d.users),
		products:   maps.Clone(d.products),
		categories: maps.Clone(d.categories),
		ratings:    slices.Clone(d.ratings),
		cart:       slices.Clone(d.cart),
		orders:     maps.Clone(d.orders),
		items:      slices.Clone(d.items),
		seq:        d.seq,
	}
}

func (d *memData) nextID() int64 {
	d.seq++
	return d.seq
}

// fakeStore serializes every transaction behind one mutex, which is the
// strongest form of the row locks the real store takes.
type fakeStore struct {
	mu   sync.Mutex
	data *memData
	fail map[string]error
	now  time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		data: newMemData(),
		fail: map[string]error{},
		now:  time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeStore) Reader() store.Tx {
	return &memTx{f: f}
}

func (f *fakeStore) InTx(_ context.Context, _ database.TxOptions, fn func(store.Tx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	work := f.data.clone()
	if err := fn(&memTx{f: f, d: work}); err != nil {
		return err
	}
	f.data = work
	return nil
}

// memTx embeds store.Tx so any method the tests never reach panics loudly.
type memTx struct {
	store.Tx
	f *fakeStore
	d *memData
}

func (t *memTx) with(op string, fn func(d *memData) error) error {
	if t.d != nil {
		if err := t.f.fail[op]; err != nil {
			return err
		}
		return fn(t.d)
	}
	t.f.mu.Lock()
	defer t.f.mu.Unlock()
	if err := t.f.fail[op]; err != nil {
		return err
	}
	return fn(t.f.data)
}

func (t *memTx) GetUser(_ context.Context, id int64) (*models.User, error) {
	var out *models.User
	err := t.with("GetUser", func(d *memData) error {
		u, ok := d.users[id]
		if !ok {
			return database.ErrUserNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (t *memTx) CountUsersSince(_ context.Context, since time.Time) (int64, error) {
	var n int64
	err := t.with("CountUsersSince", func(d *memData) error {
		for _, u := range d.users {
			if !u.CreatedAt.Before(since) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (d *memData) product(id int64) (models.Product, bool) {
	p, ok := d.products[id]
	if !ok {
		return p, false
	}
	sum, n := 0, 0
	for _, r := range d.ratings {
		if r.ProductID == id {
			sum += r.Value
			n++
		}
	}
	p.Rating = models.RatingSummary{Average: decimal.Zero}
	if n > 0 {
		p.Rating.Average = decimal.NewFromInt(int64(sum)).Div(decimal.NewFromInt(int64(n))).Round(2)
		p.Rating.Count = n
	}
	return p, true
}

func (t *memTx) GetProduct(_ context.Context, id int64) (*models.Product, error) {
	var out *models.Product
	err := t.with("GetProduct", func(d *memData) error {
		p, ok := d.product(id)
		if !ok {
			return database.ErrProductNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (t *memTx) GetProductsByID(_ context.Context, ids []int64) (map[int64]*models.Product, error) {
	out := map[int64]*models.Product{}
	err := t.with("GetProductsByID", func(d *memData) error {
		for _, id := range ids {
			if p, ok := d.product(id); ok {
				out[id] = &p
			}
		}
		return nil
	})
	return out, err
}

func (t *memTx) ListProducts(_ context.Context, filter store.ProductFilter) (*store.OffsetPage, error) {
	var items []models.Product
	err := t.with("ListProducts", func(d *memData) error {
		for id := range d.products {
			p, _ := d.product(id)
			if filter.CategoryID > 0 && !slices.Contains(p.CategoryIDs, filter.CategoryID) {
				continue
			}
			items = append(items, p)
		}
		return nil
	})
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return &store.OffsetPage{Items: items, Total: int64(len(items)), Page: 1, PageSize: len(items), TotalPages: 1}, err
}

func (t *memTx) CreateProduct(_ context.Context, p *models.Product) error {
	return t.with("CreateProduct", func(d *memData) error {
		for _, c := range p.CategoryIDs {
			if _, ok := d.categories[c]; !ok {
				return database.ErrCategoryNotFound
			}
		}
		p.ID = d.nextID()
		p.Version = 1
		p.CreatedAt, p.UpdatedAt = t.f.now, t.f.now
		d.products[p.ID] = *p
		return nil
	})
}

func (t *memTx) UpdateProductPrice(_ context.Context, id int64, price decimal.Decimal, promo *decimal.Decimal, version int) error {
	return t.with("UpdateProductPrice", func(d *memData) error {
		p, ok := d.products[id]
		if !ok || p.Version != version {
			return database.ErrOptimisticLockFailed
		}
		p.Price, p.PromoPrice = price, promo
		p.Version++
		d.products[id] = p
		return nil
	})
}

func (t *memTx) UpsertRating(_ context.Context, r *models.Rating) error {
	return t.with("UpsertRating", func(d *memData) error {
		if _, ok := d.products[r.ProductID]; !ok {
			return database.ErrProductNotFound
		}
		r.CreatedAt = t.f.now
		for i := range d.ratings {
			if d.ratings[i].ProductID == r.ProductID && d.ratings[i].UserID == r.UserID {
				d.ratings[i] = *r
				return nil
			}
		}
		d.ratings = append(d.ratings, *r)
		return nil
	})
}

func (t *memTx) RatingOverview(context.Context) (models.RatingSummary, error) {
	var out models.RatingSummary
	err := t.with("RatingOverview", func(d *memData) error {
		sum := 0
		for _, r := range d.ratings {
			sum += r.Value
		}
		out.Count = len(d.ratings)
		out.Average = decimal.Zero
		if out.Count > 0 {
			out.Average = decimal.NewFromInt(int64(sum)).Div(decimal.NewFromInt(int64(out.Count))).Round(2)
		}
		return nil
	})
	return out, err
}

func (t *memTx) ListLowRatings(_ context.Context, below, limit int) ([]models.Rating, error) {
	out := []models.Rating{}
	err := t.with("ListLowRatings", func(d *memData) error {
		for i := len(d.ratings) - 1; i >= 0 && len(out) < limit; i-- {
			if d.ratings[i].Value < below {
				out = append(out, d.ratings[i])
			}
		}
		return nil
	})
	return out, err
}

func (t *memTx) TopCategories(_ context.Context, limit int) ([]store.CategorySales, error) {
	out := []store.CategorySales{}
	err := t.with("TopCategories", func(d *memData) error {
		for _, c := range d.categories {
			cs := store.CategorySales{CategoryID: c.ID, Name: c.Name}
			for _, it := range d.items {
				if p, ok := d.products[it.ProductID]; ok && slices.Contains(p.CategoryIDs, c.ID) {
					cs.Quantity += int64(it.Quantity)
				}
			}
			out = append(out, cs)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (t *memTx) CreateCategory(_ context.Context, c *models.Category) error {
	return t.with("CreateCategory", func(d *memData) error {
		for _, existing := range d.categories {
			if existing.Name == c.Name {
				return database.ErrDuplicateName
			}
		}
		if c.ParentID != nil {
			if _, ok := d.categories[*c.ParentID]; !ok {
				return database.ErrCategoryNotFound
			}
		}
		c.ID = d.nextID()
		c.CreatedAt = t.f.now
		d.categories[c.ID] = *c
		return nil
	})
}

func (t *memTx) UpdateCategory(_ context.Context, c *models.Category) error {
	return t.with("UpdateCategory", func(d *memData) error {
		if _, ok := d.categories[c.ID]; !ok {
			return database.ErrCategoryNotFound
		}
		d.categories[c.ID] = *c
		return nil
	})
}

func (t *memTx) DeleteCategory(_ context.Context, id int64) error {
	return t.with("DeleteCategory", func(d *memData) error {
		if _, ok := d.categories[id]; !ok {
			return database.ErrCategoryNotFound
		}
		delete(d.categories, id)
		return nil
	})
}

func (t *memTx) ListCategories(context.Context) ([]models.Category, error) {
	var out []models.Category
	err := t.with("ListCategories", func(d *memData) error {
		out = slices.Collect(maps.Values(d.categories))
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

func (t *memTx) CategoryAncestors(_ context.Context, id int64) ([]int64, error) {
	var out []int64
	err := t.with("CategoryAncestors", func(d *memData) error {
		c, ok := d.categories[id]
		for depth := 0; ok && c.ParentID != nil && depth < 64; depth++ {
			out = append(out, *c.ParentID)
			c, ok = d.categories[*c.ParentID]
		}
		return nil
	})
	return out, err
}

func (t *memTx) FindCartLine(_ context.Context, ownerID, productID int64) (*models.CartLine, error) {
	var out *models.CartLine
	err := t.with("FindCartLine", func(d *memData) error {
		for _, l := range d.cart {
			if l.OwnerID == ownerID && l.ProductID == productID {
				out = &l
				return nil
			}
		}
		return database.ErrCartLineNotFound
	})
	return out, err
}

func (t *memTx) GetCartLine(_ context.Context, ownerID, lineID int64) (*models.CartLine, error) {
	var out *models.CartLine
	err := t.with("GetCartLine", func(d *memData) error {
		for _, l := range d.cart {
			if l.OwnerID == ownerID && l.ID == lineID {
				out = &l
				return nil
			}
		}
		return database.ErrCartLineNotFound
	})
	return out, err
}

func (t *memTx) AddCartLine(_ context.Context, ownerID, productID int64, qty int) (*models.CartLine, error) {
	var out *models.CartLine
	err := t.with("AddCartLine", func(d *memData) error {
		if qty < 1 {
			return database.ErrInvalidQuantity
		}
		for i := range d.cart {
			if d.cart[i].OwnerID == ownerID && d.cart[i].ProductID == productID {
				d.cart[i].Quantity += qty
				l := d.cart[i]
				out = &l
				return nil
			}
		}
		line := models.CartLine{ID: d.nextID(), OwnerID: ownerID, ProductID: productID, Quantity: qty, AddedAt: t.f.now}
		d.cart = append(d.cart, line)
		out = &line
		return nil
	})
	return out, err
}

func (t *memTx) UpdateCartLineQuantity(_ context.Context, ownerID, lineID int64, qty int) error {
	return t.with("UpdateCartLineQuantity", func(d *memData) error {
		if qty < 1 {
			return database.ErrInvalidQuantity
		}
		for i := range d.cart {
			if d.cart[i].OwnerID == ownerID && d.cart[i].ID == lineID {
				d.cart[i].Quantity = qty
				return nil
			}
		}
		return database.ErrCartLineNotFound
	})
}

func (t *memTx) DeleteCartLine(_ context.Context, ownerID, lineID int64) error {
	return t.with("DeleteCartLine", func(d *memData) error {
		for i := range d.cart {
			if d.cart[i].OwnerID == ownerID && d.cart[i].ID == lineID {
				d.cart = slices.Delete(d.cart, i, i+1)
				return nil
			}
		}
		return database.ErrCartLineNotFound
	})
}

func (t *memTx) ListCartLines(_ context.Context, ownerID int64, _ bool) ([]models.CartLine, error) {
	out := []models.CartLine{}
	err := t.with("ListCartLines", func(d *memData) error {
		for _, l := range d.cart {
			if l.OwnerID == ownerID {
				out = append(out, l)
			}
		}
		return nil
	})
	return out, err
}

func (t *memTx) ClearCart(_ context.Context, ownerID int64) (int64, error) {
	var n int64
	err := t.with("ClearCart", func(d *memData) error {
		kept := d.cart[:0:0]
		for _, l := range d.cart {
			if l.OwnerID == ownerID {
				n++
				continue
			}
			kept = append(kept, l)
		}
		d.cart = kept
		return nil
	})
	return n, err
}

func (t *memTx) InsertOrder(_ context.Context, o *models.Order) error {
	return t.with("InsertOrder", func(d *memData) error {
		o.ID = d.nextID()
		o.OrderNumber = "ORD-TEST-" + decimal.NewFromInt(o.ID).String()
		o.Version = 1
		o.CreatedAt, o.UpdatedAt = t.f.now, t.f.now
		d.orders[o.ID] = *o
		return nil
	})
}

func (t *memTx) InsertOrderItem(_ context.Context, it *models.OrderItem) error {
	return t.with("InsertOrderItem", func(d *memData) error {
		it.ID = d.nextID()
		it.CreatedAt = t.f.now
		d.items = append(d.items, *it)
		return nil
	})
}

func (d *memData) order(id int64, withItems bool) (*models.Order, error) {
	o, ok := d.orders[id]
	if !ok {
		return nil, database.ErrOrderNotFound
	}
	o.Items = nil
	if withItems {
		for _, it := range d.items {
			if it.OrderID == id {
				o.Items = append(o.Items, it)
			}
		}
	}
	return &o, nil
}

func (t *memTx) GetOrder(_ context.Context, id int64) (*models.Order, error) {
	var out *models.Order
	err := t.with("GetOrder", func(d *memData) (err error) {
		out, err = d.order(id, true)
		return err
	})
	return out, err
}

func (t *memTx) LockOrder(_ context.Context, id int64) (*models.Order, error) {
	var out *models.Order
	err := t.with("LockOrder", func(d *memData) (err error) {
		out, err = d.order(id, false)
		return err
	})
	return out, err
}

func (t *memTx) LockNextPendingOrder(context.Context) (*models.Order, error) {
	var out *models.Order
	err := t.with("LockNextPendingOrder", func(d *memData) error {
		for _, id := range slices.Sorted(maps.Keys(d.orders)) {
			if d.orders[id].Status == models.OrderStatusPending {
				out, _ = d.order(id, false)
				return nil
			}
		}
		return database.ErrOrderNotFound
	})
	return out, err
}

func (t *memTx) SaveFulfillment(_ context.Context, o *models.Order, expected models.OrderStatus) error {
	return t.with("SaveFulfillment", func(d *memData) error {
		cur, ok := d.orders[o.ID]
		if !ok || cur.Status != expected || cur.Version != o.Version {
			return database.ErrInvalidTransition
		}
		cur.Status, cur.AgentID, cur.AgentPosition = o.Status, o.AgentID, o.AgentPosition
		cur.Version++
		cur.UpdatedAt = t.f.now
		d.orders[o.ID] = cur
		o.Version, o.UpdatedAt = cur.Version, cur.UpdatedAt
		return nil
	})
}

func (t *memTx) ListOrdersCursor(_ context.Context, userID int64, _ string, limit int) (*store.CursorPage, error) {
	out := []models.Order{}
	err := t.with("ListOrdersCursor", func(d *memData) error {
		for _, id := range slices.Backward(slices.Sorted(maps.Keys(d.orders))) {
			if d.orders[id].UserID == userID && len(out) < limit {
				o, _ := d.order(id, true)
				out = append(out, *o)
			}
		}
		return nil
	})
	return &store.CursorPage{Items: out}, err
}

func (t *memTx) ListOrders(_ context.Context, filter store.OrderFilter) (*store.OffsetPage, error) {
	out := []models.Order{}
	err := t.with("ListOrders", func(d *memData) error {
		for _, id := range slices.Sorted(maps.Keys(d.orders)) {
			o := d.orders[id]
			if filter.Status != "" && o.Status != filter.Status {
				continue
			}
			if filter.AgentID != nil {
				mine := o.AssignedTo(*filter.AgentID)
				pool := filter.WithPending && o.Status == models.OrderStatusPending
				if !mine && !pool {
					continue
				}
			}
			out = append(out, o)
		}
		return nil
	})
	return &store.OffsetPage{Items: out, Total: int64(len(out)), Page: 1, PageSize: 20, TotalPages: 1}, err
}

func (t *memTx) OrdersInScope(_ context.Context, scope store.Scope) ([]models.Order, error) {
	out := []models.Order{}
	err := t.with("OrdersInScope", func(d *memData) error {
		for _, id := range slices.Backward(slices.Sorted(maps.Keys(d.orders))) {
			o := d.orders[id]
			if scope.AgentID == nil || o.AssignedTo(*scope.AgentID) {
				out = append(out, o)
			}
		}
		return nil
	})
	return out, err
}

func (t *memTx) CountOrders(_ context.Context, status models.OrderStatus) (int64, error) {
	var n int64
	err := t.with("CountOrders", func(d *memData) error {
		for _, o := range d.orders {
			if o.Status == status {
				n++
			}
		}
		return nil
	})
	return n, err
}

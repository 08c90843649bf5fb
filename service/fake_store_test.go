package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"storefront-svc/models"
	"storefront-svc/store"

	"github.com/shopspring/decimal"
)

// memState is everything memStore holds. It is copied wholesale on InTx so a
// failed unit of work can be rolled back.
type memState struct {
	products map[string]models.Product
	cart     []models.CartItem
	coupons  map[string]models.Coupon
	usages   []models.CouponUsage
	orders   map[string]models.Order
	payments map[string]models.Payment // keyed by order id
	returns  []models.OrderReturn
	refunds  []models.Refund
}

func (s memState) clone() memState {
	cp := memState{
		products: make(map[string]models.Product, len(s.products)),
		cart:     append([]models.CartItem(nil), s.cart...),
		coupons:  make(map[string]models.Coupon, len(s.coupons)),
		usages:   append([]models.CouponUsage(nil), s.usages...),
		orders:   make(map[string]models.Order, len(s.orders)),
		payments: make(map[string]models.Payment, len(s.payments)),
		returns:  append([]models.OrderReturn(nil), s.returns...),
		refunds:  append([]models.Refund(nil), s.refunds...),
	}
	for k, v := range s.products {
		cp.products[k] = v
	}
	for k, v := range s.coupons {
		cp.coupons[k] = v
	}
	for k, v := range s.orders {
		v.Items = append([]models.OrderItem(nil), v.Items...)
		cp.orders[k] = v
	}
	for k, v := range s.payments {
		cp.payments[k] = v
	}
	return cp
}

// memStore is an in-memory store.Store. Transactions are serialised and
// restored from a snapshot when fn fails.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   memState
	seq  int
	// stockErr, when set, is returned by AdjustStock for that product id.
	stockErr map[string]error
}

var _ store.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		st: memState{
			products: map[string]models.Product{},
			coupons:  map[string]models.Coupon{},
			orders:   map[string]models.Order{},
			payments: map[string]models.Payment{},
		},
		stockErr: map[string]error{},
	}
}

func (m *memStore) InTx(ctx context.Context, fn func(store.Repository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.st.clone()
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.st = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

// Seeding helpers used by tests.

func (m *memStore) addProduct(id string, price string, stock int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.products[id] = models.Product{ID: id, Name: "Product " + id, Price: decimal.RequireFromString(price), Stock: stock}
}

func (m *memStore) stock(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.products[id].Stock
}

func (m *memStore) addCoupon(c models.Coupon) models.Coupon {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = m.nextID("coupon")
	}
	m.st.coupons[c.ID] = c
	return c
}

func (m *memStore) coupon(id string) models.Coupon {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.coupons[id]
}

func (m *memStore) cartLen(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, it := range m.st.cart {
		if it.UserID == userID {
			n++
		}
	}
	return n
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.st.orders)
}

func (m *memStore) refundCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.st.refunds)
}

func (m *memStore) GetProduct(ctx context.Context, id string) (models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.st.products[id]
	if !ok {
		return models.Product{}, store.ErrNotFound
	}
	return p, nil
}

func (m *memStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Product, 0, len(m.st.products))
	for _, p := range m.st.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) AdjustStock(ctx context.Context, productID string, delta int, floorGuard bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.stockErr[productID]; err != nil {
		return err
	}
	p, ok := m.st.products[productID]
	if !ok {
		return store.ErrNotFound
	}
	if floorGuard && delta < 0 && p.Stock+delta < 0 {
		return store.ErrInsufficientStock
	}
	p.Stock += delta
	m.st.products[productID] = p
	return nil
}

func (m *memStore) GetCart(ctx context.Context, userID string) ([]models.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CartItem
	for _, it := range m.st.cart {
		if it.UserID == userID {
			it.Price = m.st.products[it.ProductID].Price
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *memStore) AddCartItem(ctx context.Context, item *models.CartItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.products[item.ProductID]; !ok {
		return store.ErrNotFound
	}
	for i, it := range m.st.cart {
		if it.UserID == item.UserID && it.ProductID == item.ProductID {
			m.st.cart[i].Quantity += item.Quantity
			item.ID = it.ID
			item.Quantity = m.st.cart[i].Quantity
			return nil
		}
	}
	if item.ID == "" {
		item.ID = m.nextID("cart")
	}
	m.st.cart = append(m.st.cart, *item)
	return nil
}

func (m *memStore) UpdateCartItem(ctx context.Context, userID, itemID string, quantity int) (models.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, it := range m.st.cart {
		if it.ID == itemID && it.UserID == userID {
			m.st.cart[i].Quantity = quantity
			return m.st.cart[i], nil
		}
	}
	return models.CartItem{}, store.ErrNotFound
}

func (m *memStore) DeleteCartItem(ctx context.Context, userID, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, it := range m.st.cart {
		if it.ID == itemID && it.UserID == userID {
			m.st.cart = append(m.st.cart[:i:i], m.st.cart[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memStore) ClearCart(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.st.cart[:0:0]
	for _, it := range m.st.cart {
		if it.UserID != userID {
			kept = append(kept, it)
		}
	}
	m.st.cart = kept
	return nil
}

func (m *memStore) CreateCoupon(ctx context.Context, c *models.Coupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.st.coupons {
		if existing.Code == c.Code {
			return store.ErrDuplicate
		}
	}
	if c.ID == "" {
		c.ID = m.nextID("coupon")
	}
	m.st.coupons[c.ID] = *c
	return nil
}

func (m *memStore) ListCoupons(ctx context.Context) ([]models.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Coupon, 0, len(m.st.coupons))
	for _, c := range m.st.coupons {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *memStore) DeleteCoupon(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.coupons[id]; !ok {
		return store.ErrNotFound
	}
	for _, u := range m.st.usages {
		if u.CouponID == id {
			return store.ErrReferenced
		}
	}
	delete(m.st.coupons, id)
	return nil
}

func (m *memStore) GetCouponByCode(ctx context.Context, code string) (models.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.st.coupons {
		if c.Code == code {
			return c, nil
		}
	}
	return models.Coupon{}, store.ErrNotFound
}

func (m *memStore) LockCouponByCode(ctx context.Context, code string) (models.Coupon, error) {
	return m.GetCouponByCode(ctx, code)
}

func (m *memStore) IncrementCouponUsage(ctx context.Context, couponID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.st.coupons[couponID]
	if !ok {
		return store.ErrNotFound
	}
	c.CurrentUsage++
	m.st.coupons[couponID] = c
	return nil
}

func (m *memStore) CreateCouponUsage(ctx context.Context, u *models.CouponUsage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == "" {
		u.ID = m.nextID("usage")
	}
	m.st.usages = append(m.st.usages, *u)
	return nil
}

func (m *memStore) CreateOrder(ctx context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == "" {
		o.ID = m.nextID("order")
	}
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
		if o.Items[i].ID == "" {
			o.Items[i].ID = m.nextID("item")
		}
	}
	stored := *o
	stored.Items = append([]models.OrderItem(nil), o.Items...)
	stored.Payment = nil
	stored.Returns = nil
	m.st.orders[o.ID] = stored
	return nil
}

// withRelations attaches items, payment and returns the way the
// Postgres store does. Callers hold mu.
func (m *memStore) withRelations(o models.Order) models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	if p, ok := m.st.payments[o.ID]; ok {
		o.Payment = &p
	}
	o.Returns = nil
	for _, r := range m.st.returns {
		if r.OrderID == o.ID {
			o.Returns = append(o.Returns, r)
		}
	}
	return o
}

func (m *memStore) GetOrder(ctx context.Context, id string) (models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.st.orders[id]
	if !ok {
		return models.Order{}, store.ErrNotFound
	}
	return m.withRelations(o), nil
}

func (m *memStore) LockOrder(ctx context.Context, id string) (models.Order, error) {
	return m.GetOrder(ctx, id)
}

func (m *memStore) ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	all, _ := m.ListOrders(ctx, 0)
	var out []models.Order
	for _, o := range all {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memStore) ListOrders(ctx context.Context, limit int) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Order, 0, len(m.st.orders))
	for _, o := range m.st.orders {
		out = append(out, m.withRelations(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) UpdateOrder(ctx context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.orders[o.ID]; !ok {
		return store.ErrNotFound
	}
	stored := *o
	stored.Items = append([]models.OrderItem(nil), o.Items...)
	stored.Payment = nil
	stored.Returns = nil
	m.st.orders[o.ID] = stored
	return nil
}

func (m *memStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.payments[p.OrderID]; ok {
		return store.ErrDuplicate
	}
	if p.ID == "" {
		p.ID = m.nextID("payment")
	}
	m.st.payments[p.OrderID] = *p
	return nil
}

func (m *memStore) LockPaymentByGatewayOrderID(ctx context.Context, gatewayOrderID string) (models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.st.payments {
		if p.GatewayOrderID == gatewayOrderID {
			return p, nil
		}
	}
	return models.Payment{}, store.ErrNotFound
}

func (m *memStore) UpdatePayment(ctx context.Context, p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.payments[p.OrderID]; !ok {
		return store.ErrNotFound
	}
	m.st.payments[p.OrderID] = *p
	return nil
}

func (m *memStore) CreateReturn(ctx context.Context, r *models.OrderReturn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.st.returns {
		if existing.OrderID == r.OrderID {
			return store.ErrDuplicate
		}
	}
	if r.ID == "" {
		r.ID = m.nextID("return")
	}
	m.st.returns = append(m.st.returns, *r)
	return nil
}

func (m *memStore) LockReturn(ctx context.Context, id string) (models.OrderReturn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.st.returns {
		if r.ID == id {
			return r, nil
		}
	}
	return models.OrderReturn{}, store.ErrNotFound
}

func (m *memStore) UpdateReturn(ctx context.Context, r *models.OrderReturn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.st.returns {
		if m.st.returns[i].ID == r.ID {
			m.st.returns[i] = *r
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memStore) ListReturns(ctx context.Context) ([]models.OrderReturn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.OrderReturn(nil), m.st.returns...), nil
}

func (m *memStore) CreateRefund(ctx context.Context, r *models.Refund) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = m.nextID("refund")
	}
	m.st.refunds = append(m.st.refunds, *r)
	return nil
}

func (m *memStore) LockRefund(ctx context.Context, id string) (models.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.st.refunds {
		if r.ID == id {
			return r, nil
		}
	}
	return models.Refund{}, store.ErrNotFound
}

func (m *memStore) UpdateRefund(ctx context.Context, r *models.Refund) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.st.refunds {
		if m.st.refunds[i].ID == r.ID {
			m.st.refunds[i] = *r
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memStore) ListRefunds(ctx context.Context) ([]models.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Refund(nil), m.st.refunds...), nil
}

func (m *memStore) CountOrders(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.st.orders)), nil
}

func (m *memStore) SumRevenue(ctx context.Context) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for _, o := range m.st.orders {
		if o.Status != models.OrderStatusCancelled {
			total = total.Add(o.TotalAmount)
		}
	}
	return total, nil
}

func (m *memStore) CountProducts(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.st.products)), nil
}

func (m *memStore) CountReturnsByStatus(ctx context.Context, status models.ReturnStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.st.returns {
		if r.Status == status {
			n++
		}
	}
	return n, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event models.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

type recordingCache struct {
	mu          sync.Mutex
	products    map[string]models.Product
	invalidated []string
}

func (c *recordingCache) GetProduct(ctx context.Context, id string) (models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return models.Product{}, fmt.Errorf("cache miss for %s", id)
	}
	return p, nil
}

func (c *recordingCache) SetProduct(ctx context.Context, p models.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.products == nil {
		c.products = map[string]models.Product{}
	}
	c.products[p.ID] = p
	return nil
}

func (c *recordingCache) InvalidateProducts(ctx context.Context, ids ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, ids...)
	for _, id := range ids {
		delete(c.products, id)
	}
	return nil
}

type fakeGateway struct {
	calls    int
	amount   int64
	currency string
	receipt  string
	err      error
	// during, when set, runs once inside the next CreateOrder call before it
	// returns, standing in for work that races the gateway round trip.
	during func()
}

func (g *fakeGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (models.GatewayOrder, error) {
	g.calls++
	g.amount, g.currency, g.receipt = amount, currency, receipt
	id := fmt.Sprintf("order_gw%d", g.calls)
	if during := g.during; during != nil {
		g.during = nil
		during()
	}
	if g.err != nil {
		return models.GatewayOrder{}, g.err
	}
	return models.GatewayOrder{
		ID:       id,
		Entity:   "order",
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}, nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

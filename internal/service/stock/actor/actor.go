// internal/service/stock/actor/actor.go
//
// 每个商品一个逻辑 actor：该商品所有影响预占的操作都投递到同一个
// mailbox，由唯一的 worker goroutine 串行处理。这样"预占总量不超过
// 在库数量"的判断-写入不会与并发请求交织，也就不需要数据库事务或锁。
// 不同商品的 worker 完全并行。
package actor

import (
	"context"
	"sync"
	"time"

	"atlas/internal/pkg/apperr"
	"atlas/internal/service/stock/domain"
)

const mailboxSize = 128 // mailbox 有界，后端卡死时对上游形成背压而不是无限堆积

type opKind int

const (
	opReserve opKind = iota
	opRelease
	opReduce
	opRestore
	opStatus
	opCleanup
)

type request struct {
	kind     opKind
	ctx      context.Context
	orderID  string
	quantity int
	ttl      time.Duration
	reply    chan response
}

type response struct {
	snap domain.Snapshot
	err  error
}

// Manager 管理所有商品的 actor 实例，worker 按需创建、进程生命周期内常驻。
type Manager struct {
	ledger domain.Ledger
	now    func() time.Time

	mu      sync.RWMutex
	workers map[string]*worker

	quit     chan struct{}
	quitOnce sync.Once
}

// NewManager 创建一个 actor 管理器。
func NewManager(ledger domain.Ledger) *Manager {
	return &Manager{
		ledger:  ledger,
		now:     time.Now,
		workers: make(map[string]*worker),
		quit:    make(chan struct{}),
	}
}

// Reserve 为 (productID, orderID) 创建一笔 TTL 有界的预占。
// 可用量不足时返回 ConflictError；同一 (productID, orderID) 重复调用是幂等的，
// 活跃预占会被替换而不是叠加。
func (m *Manager) Reserve(ctx context.Context, productID, orderID string, quantity int, ttl time.Duration) error {
	_, err := m.send(ctx, productID, request{kind: opReserve, orderID: orderID, quantity: quantity, ttl: ttl})
	return err
}

// Release 移除 orderID 的预占；不存在时为 no-op 而不是错误，
// 补偿步骤必须可以在部分预占甚至零预占之后安全调用。
func (m *Manager) Release(ctx context.Context, productID, orderID string) error {
	_, err := m.send(ctx, productID, request{kind: opRelease, orderID: orderID})
	return err
}

// Reduce 把预占转化为永久扣减。找不到匹配的活跃预占时返回
// ReservationExpiredError。此时资金可能已扣，必须暴露给调用方而不是静默扣库存。
func (m *Manager) Reduce(ctx context.Context, productID, orderID string, quantity int) error {
	_, err := m.send(ctx, productID, request{kind: opReduce, orderID: orderID, quantity: quantity})
	return err
}

// Restore 回补在库数量，是 Reduce 的补偿操作。
func (m *Manager) Restore(ctx context.Context, productID string, quantity int) error {
	_, err := m.send(ctx, productID, request{kind: opRestore, quantity: quantity})
	return err
}

// Status 返回商品的只读库存快照。
func (m *Manager) Status(ctx context.Context, productID string) (domain.Snapshot, error) {
	return m.send(ctx, productID, request{kind: opStatus})
}

// CleanupExpired 移除该商品所有已过期的预占。
func (m *Manager) CleanupExpired(ctx context.Context, productID string) error {
	_, err := m.send(ctx, productID, request{kind: opCleanup})
	return err
}

// SweepExpired 对所有活跃 worker 执行一次过期清理。
func (m *Manager) SweepExpired(ctx context.Context) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.workers))
	for id := range m.workers {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		if err := m.CleanupExpired(ctx, id); err != nil {
			return // ctx 已取消
		}
	}
}

// Close 停止所有 worker。仅用于测试和进程退出。
func (m *Manager) Close() {
	m.quitOnce.Do(func() { close(m.quit) })
}

func (m *Manager) send(ctx context.Context, productID string, req request) (domain.Snapshot, error) {
	w := m.workerFor(productID)
	req.ctx = ctx
	req.reply = make(chan response, 1)

	select {
	case w.mailbox <- req:
	case <-ctx.Done():
		return domain.Snapshot{}, ctx.Err()
	case <-m.quit:
		return domain.Snapshot{}, apperr.External("stock actor manager is shut down")
	}

	select {
	case resp := <-req.reply:
		return resp.snap, resp.err
	case <-ctx.Done():
		return domain.Snapshot{}, ctx.Err()
	}
}

func (m *Manager) workerFor(productID string) *worker {
	m.mu.RLock()
	w, ok := m.workers[productID]
	m.mu.RUnlock()
	if ok {
		return w
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok = m.workers[productID]; ok {
		return w
	}
	w = &worker{
		productID:    productID,
		ledger:       m.ledger,
		now:          m.now,
		mailbox:      make(chan request, mailboxSize),
		reservations: make(map[string]domain.Reservation),
	}
	m.workers[productID] = w
	go w.run(m.quit)
	return w
}

// worker 独占一个商品的全部可变状态，消息之外没有任何访问路径。
type worker struct {
	productID    string
	ledger       domain.Ledger
	now          func() time.Time
	mailbox      chan request
	reservations map[string]domain.Reservation // keyed by orderID
}

func (w *worker) run(quit <-chan struct{}) {
	for {
		select {
		case req := <-w.mailbox:
			req.reply <- w.handle(req)
		case <-quit:
			return
		}
	}
}

func (w *worker) handle(req request) response {
	switch req.kind {
	case opReserve:
		return response{err: w.reserve(req)}
	case opRelease:
		delete(w.reservations, req.orderID)
		return response{}
	case opReduce:
		return response{err: w.reduce(req)}
	case opRestore:
		return response{err: w.ledger.Increment(req.ctx, w.productID, req.quantity)}
	case opStatus:
		snap, err := w.snapshot(req.ctx)
		return response{snap: snap, err: err}
	case opCleanup:
		w.cleanupExpired()
		return response{}
	default:
		return response{err: apperr.Validation("unknown stock operation %d", req.kind)}
	}
}

func (w *worker) reserve(req request) error {
	// 过期的持有不应挡住合法请求，检查可用量之前先清理
	w.cleanupExpired()

	onHand, err := w.ledger.OnHand(req.ctx, w.productID)
	if err != nil {
		return apperr.External("stock ledger read failed for %s: %v", w.productID, err)
	}

	// 重复预占按替换处理：计算可用量时先排除同一订单的旧持有
	available := onHand - w.reservedQuantity(req.orderID)
	if available < 0 {
		available = 0
	}
	if req.quantity > available {
		return apperr.Conflict("insufficient stock for product %s: requested %d, available %d (short %d)",
			w.productID, req.quantity, available, req.quantity-available)
	}

	w.reservations[req.orderID] = domain.Reservation{
		OrderID:   req.orderID,
		Quantity:  req.quantity,
		ExpiresAt: w.now().Add(req.ttl),
	}
	return nil
}

func (w *worker) reduce(req request) error {
	res, ok := w.reservations[req.orderID]
	if !ok || res.Expired(w.now()) {
		if ok {
			delete(w.reservations, req.orderID)
		}
		return apperr.ReservationExpired("no active reservation for product %s order %s", w.productID, req.orderID)
	}

	if err := w.ledger.Decrement(req.ctx, w.productID, req.quantity); err != nil {
		return apperr.External("stock ledger decrement failed for %s: %v", w.productID, err)
	}
	delete(w.reservations, req.orderID)
	return nil
}

func (w *worker) snapshot(ctx context.Context) (domain.Snapshot, error) {
	w.cleanupExpired()

	onHand, err := w.ledger.OnHand(ctx, w.productID)
	if err != nil {
		return domain.Snapshot{}, apperr.External("stock ledger read failed for %s: %v", w.productID, err)
	}
	reserved := w.reservedQuantity("")
	available := onHand - reserved
	if available < 0 {
		available = 0
	}
	return domain.Snapshot{OnHand: onHand, Reserved: reserved, Available: available}, nil
}

// reservedQuantity 统计所有活跃预占的数量之和，excludeOrder 非空时排除该订单。
func (w *worker) reservedQuantity(excludeOrder string) int {
	now := w.now()
	total := 0
	for orderID, res := range w.reservations {
		if orderID == excludeOrder || res.Expired(now) {
			continue
		}
		total += res.Quantity
	}
	return total
}

func (w *worker) cleanupExpired() {
	now := w.now()
	for orderID, res := range w.reservations {
		if res.Expired(now) {
			delete(w.reservations, orderID)
		}
	}
}

package stock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/odyssey-erp/odyssey-supplies/internal/catalog"
	"github.com/odyssey-erp/odyssey-supplies/internal/shared"
)

// memoryRepo mimics the PostgreSQL repository: LockItem blocks like FOR UPDATE
// until the holding transaction ends, and writes only become visible on commit.
type memoryRepo struct {
	mu           sync.Mutex
	seq          int64
	items        map[int64]catalog.Item
	centers      map[int64]catalog.Center
	workers      map[int64]catalog.Worker
	purchases    []PurchaseEvent
	consumptions []ConsumptionEvent
	rowLocks     map[int64]*sync.Mutex
	conflicts    int
}

type memoryTx struct {
	repo         *memoryRepo
	held         []*sync.Mutex
	purchases    []PurchaseEvent
	consumptions []ConsumptionEvent
	deleted      []int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		items:    make(map[int64]catalog.Item),
		centers:  make(map[int64]catalog.Center),
		workers:  make(map[int64]catalog.Worker),
		rowLocks: make(map[int64]*sync.Mutex),
	}
}

func (r *memoryRepo) addItem(it catalog.Item) catalog.Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	it.ID = r.seq
	r.items[it.ID] = it
	return it
}

func (r *memoryRepo) addCenter(name string) catalog.Center {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	c := catalog.Center{ID: r.seq, Name: name, Active: true}
	r.centers[c.ID] = c
	return c
}

func (r *memoryRepo) addWorker(code string, centerID int64) catalog.Worker {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	w := catalog.Worker{ID: r.seq, Code: code, Name: code, CenterID: centerID, Active: true}
	r.workers[w.ID] = w
	return w
}

func (r *memoryRepo) consumptionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.consumptions)
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	if r.conflicts > 0 {
		r.conflicts--
		r.mu.Unlock()
		return fmt.Errorf("%w: could not serialize access", ErrConcurrencyConflict)
	}
	r.mu.Unlock()

	tx := &memoryTx{repo: r}
	defer tx.release()
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (r *memoryRepo) WithReadTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{repo: r}
	return fn(ctx, tx)
}

func (r *memoryRepo) ListPurchases(_ context.Context, filter LedgerFilter) ([]PurchaseEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []PurchaseEvent{}
	for i := len(r.purchases) - 1; i >= 0 && len(out) < filter.Limit; i-- {
		p := r.purchases[i]
		if filter.ItemID != 0 && p.ItemID != filter.ItemID {
			continue
		}
		out = append(out, withPurchaseFigures(p, r.items[p.ItemID].ContainerSize))
	}
	return out, nil
}

func (r *memoryRepo) ListConsumptions(_ context.Context, filter LedgerFilter) ([]ConsumptionEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []ConsumptionEvent{}
	for i := len(r.consumptions) - 1; i >= 0 && len(out) < filter.Limit; i-- {
		c := r.consumptions[i]
		if filter.ItemID != 0 && c.ItemID != filter.ItemID {
			continue
		}
		it := r.items[c.ItemID]
		out = append(out, withConsumptionFigures(c, it.ContainerSize, it.UnitPrice))
	}
	return out, nil
}

func (tx *memoryTx) release() {
	for _, l := range tx.held {
		l.Unlock()
	}
	tx.held = nil
}

func (tx *memoryTx) commit() {
	r := tx.repo
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purchases = append(r.purchases, tx.purchases...)
	r.consumptions = append(r.consumptions, tx.consumptions...)
	for _, id := range tx.deleted {
		delete(r.items, id)
		r.purchases = dropPurchases(r.purchases, id)
		r.consumptions = dropConsumptions(r.consumptions, id)
	}
}

func (tx *memoryTx) GetItem(_ context.Context, id int64) (catalog.Item, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	it, ok := tx.repo.items[id]
	if !ok {
		return catalog.Item{}, notFound(EntityItem, id)
	}
	return it, nil
}

func (tx *memoryTx) LockItem(ctx context.Context, id int64) (catalog.Item, error) {
	tx.repo.mu.Lock()
	l, ok := tx.repo.rowLocks[id]
	if !ok {
		l = &sync.Mutex{}
		tx.repo.rowLocks[id] = l
	}
	tx.repo.mu.Unlock()

	l.Lock()
	tx.held = append(tx.held, l)
	return tx.GetItem(ctx, id)
}

func (tx *memoryTx) GetCenter(_ context.Context, id int64) (catalog.Center, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	c, ok := tx.repo.centers[id]
	if !ok {
		return catalog.Center{}, notFound(EntityCenter, id)
	}
	return c, nil
}

func (tx *memoryTx) GetWorker(_ context.Context, id int64) (catalog.Worker, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	w, ok := tx.repo.workers[id]
	if !ok {
		return catalog.Worker{}, notFound(EntityWorker, id)
	}
	return w, nil
}

func (tx *memoryTx) ItemTotals(_ context.Context, itemID int64) (Totals, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	t := tx.repo.totalsLocked(itemID)
	for _, p := range tx.purchases {
		if p.ItemID == itemID {
			t.PurchasedContainers += p.Containers
		}
	}
	for _, c := range tx.consumptions {
		if c.ItemID == itemID {
			t.ConsumedUnits += c.Units
		}
	}
	return t, nil
}

func (tx *memoryTx) AllTotals(_ context.Context) ([]ItemTotals, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	out := make([]ItemTotals, 0, len(tx.repo.items))
	for _, it := range tx.repo.items {
		out = append(out, ItemTotals{Item: it, Totals: tx.repo.totalsLocked(it.ID)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item.ID < out[j].Item.ID })
	return out, nil
}

func (tx *memoryTx) InsertPurchase(_ context.Context, p PurchaseEvent) (int64, error) {
	tx.repo.mu.Lock()
	tx.repo.seq++
	p.ID = tx.repo.seq
	tx.repo.mu.Unlock()
	tx.purchases = append(tx.purchases, p)
	return p.ID, nil
}

func (tx *memoryTx) InsertConsumption(_ context.Context, c ConsumptionEvent) (int64, error) {
	tx.repo.mu.Lock()
	tx.repo.seq++
	c.ID = tx.repo.seq
	tx.repo.mu.Unlock()
	tx.consumptions = append(tx.consumptions, c)
	return c.ID, nil
}

func (tx *memoryTx) DeleteItem(_ context.Context, id int64) error {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	if _, ok := tx.repo.items[id]; !ok {
		return notFound(EntityItem, id)
	}
	tx.deleted = append(tx.deleted, id)
	return nil
}

func (r *memoryRepo) totalsLocked(itemID int64) Totals {
	var t Totals
	for _, p := range r.purchases {
		if p.ItemID == itemID {
			t.PurchasedContainers += p.Containers
		}
	}
	for _, c := range r.consumptions {
		if c.ItemID == itemID {
			t.ConsumedUnits += c.Units
		}
	}
	return t
}

func dropPurchases(in []PurchaseEvent, itemID int64) []PurchaseEvent {
	out := in[:0]
	for _, p := range in {
		if p.ItemID != itemID {
			out = append(out, p)
		}
	}
	return out
}

func dropConsumptions(in []ConsumptionEvent, itemID int64) []ConsumptionEvent {
	out := in[:0]
	for _, c := range in {
		if c.ItemID != itemID {
			out = append(out, c)
		}
	}
	return out
}

type memoryAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (a *memoryAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]time.Time
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{keys: make(map[string]time.Time)}
}

func (m *memoryIdempotency) CheckAndInsert(_ context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = time.Now()
	return nil
}

// Delete fails on a done context the same way a pgx query would.
func (m *memoryIdempotency) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	items []int64
}

func (n *recordingNotifier) NotifyCritical(_ context.Context, itemID int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, itemID)
	return nil
}

type countingRecorder struct {
	mu        sync.Mutex
	outcomes  map[string]int
	purchases int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{outcomes: make(map[string]int)}
}

func (c *countingRecorder) ObserveConsumption(outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes[outcome]++
}

func (c *countingRecorder) ObservePurchase() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purchases++
}

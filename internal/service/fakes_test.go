package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stock-ledger-service/internal/models"
)

// fakeStore is an in-memory Store. A single mutex stands in for the
// database's row-level isolation, so the conditional updates have the
// same atomicity the real store provides.
type fakeStore struct {
	mu           sync.Mutex
	stock        map[string]*models.StockRecord
	reservations map[string]models.Reservation
	moves        []models.InventoryMove
	productNames map[int64]string

	failCreateReservation bool
	failReleaseStock      bool
	failCommitAfter       int
	commitCalls           int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		stock:           make(map[string]*models.StockRecord),
		reservations:    make(map[string]models.Reservation),
		productNames:    make(map[int64]string),
		failCommitAfter: -1,
	}
}

func key(productID int64, size string) string {
	return fmt.Sprintf("%d:%s", productID, size)
}

func (f *fakeStore) setStock(productID int64, size string, quantity, reserved int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stock[key(productID, size)] = &models.StockRecord{
		ProductID:        productID,
		Size:             size,
		Quantity:         quantity,
		ReservedQuantity: reserved,
		UpdatedAt:        time.Now(),
	}
}

func (f *fakeStore) addReservation(r models.Reservation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reservations[r.ID] = r
}

func (f *fakeStore) stockAt(productID int64, size string) models.StockRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.stock[key(productID, size)]
	if rec == nil {
		return models.StockRecord{ProductID: productID, Size: size}
	}
	return *rec
}

func (f *fakeStore) reservationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reservations)
}

func (f *fakeStore) movesOfType(mt models.MoveType) []models.InventoryMove {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.InventoryMove
	for _, m := range f.moves {
		if m.MoveType == mt {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeStore) GetStockRecord(_ context.Context, productID int64, size string) (*models.StockRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.stock[key(productID, size)]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeStore) GetStockRecordsByProducts(_ context.Context, productIDs []int64) ([]models.StockRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := make(map[int64]bool, len(productIDs))
	for _, id := range productIDs {
		want[id] = true
	}
	var out []models.StockRecord
	for _, rec := range f.stock {
		if want[rec.ProductID] {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (f *fakeStore) ReserveStockAtomic(_ context.Context, productID int64, size string, qty int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.stock[key(productID, size)]
	if !ok || rec.Quantity-rec.ReservedQuantity < qty {
		return false, nil
	}
	rec.ReservedQuantity += qty
	return true, nil
}

func (f *fakeStore) ReleaseStockAtomic(_ context.Context, productID int64, size string, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReleaseStock {
		return fmt.Errorf("simulated release failure")
	}
	rec, ok := f.stock[key(productID, size)]
	if !ok {
		return nil
	}
	rec.ReservedQuantity -= qty
	if rec.ReservedQuantity < 0 {
		rec.ReservedQuantity = 0
	}
	return nil
}

func (f *fakeStore) CommitStockAtomic(_ context.Context, productID int64, size string, qty int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commitCalls++
	if f.failCommitAfter >= 0 && f.commitCalls > f.failCommitAfter {
		return false, nil
	}
	rec, ok := f.stock[key(productID, size)]
	if !ok || rec.ReservedQuantity < qty || rec.Quantity < qty {
		return false, nil
	}
	rec.Quantity -= qty
	rec.ReservedQuantity -= qty
	return true, nil
}

func (f *fakeStore) RestockAtomic(_ context.Context, productID int64, size string, qty int) (*models.StockRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.stock[key(productID, size)]
	if !ok {
		rec = &models.StockRecord{ProductID: productID, Size: size}
		f.stock[key(productID, size)] = rec
	}
	rec.Quantity += qty
	rec.UpdatedAt = time.Now()
	cp := *rec
	return &cp, nil
}

func (f *fakeStore) AdjustStockAtomic(_ context.Context, productID int64, size string, delta int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.stock[key(productID, size)]
	if !ok || rec.Quantity+delta < rec.ReservedQuantity {
		return false, nil
	}
	rec.Quantity += delta
	return true, nil
}

func (f *fakeStore) GetLowStockItems(_ context.Context, threshold int) ([]models.LowStockItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.LowStockItem
	for _, rec := range f.stock {
		available := rec.Quantity - rec.ReservedQuantity
		if available <= threshold {
			out = append(out, models.LowStockItem{
				ProductID:         rec.ProductID,
				Size:              rec.Size,
				ProductName:       f.productNames[rec.ProductID],
				Quantity:          rec.Quantity,
				ReservedQuantity:  rec.ReservedQuantity,
				AvailableQuantity: available,
			})
		}
	}
	return out, nil
}

func (f *fakeStore) CreateReservation(_ context.Context, r *models.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreateReservation {
		return fmt.Errorf("simulated insert failure")
	}
	r.CreatedAt = time.Now()
	f.reservations[r.ID] = *r
	return nil
}

func (f *fakeStore) GetReservationsByIDs(_ context.Context, ids []string) ([]models.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Reservation
	for _, id := range ids {
		if r, ok := f.reservations[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) ClaimReservation(_ context.Context, id string) (*models.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok {
		return nil, nil
	}
	delete(f.reservations, id)
	return &r, nil
}

func (f *fakeStore) GetExpiredReservationIDs(_ context.Context, now time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, r := range f.reservations {
		if now.After(r.ExpiresAt) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeStore) GetActiveReservationsBySession(_ context.Context, sessionID string, now time.Time) ([]models.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Reservation
	for _, r := range f.reservations {
		if r.SessionID != nil && *r.SessionID == sessionID && !now.After(r.ExpiresAt) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) GetActiveReservationsByUser(_ context.Context, userID int64, now time.Time) ([]models.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Reservation
	for _, r := range f.reservations {
		if r.UserID != nil && *r.UserID == userID && !now.After(r.ExpiresAt) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) AppendMove(_ context.Context, m *models.InventoryMove) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.CreatedAt = time.Now()
	f.moves = append(f.moves, *m)
	return nil
}

func (f *fakeStore) GetMoves(_ context.Context, productID int64, size string, limit int) ([]models.InventoryMove, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.InventoryMove
	for i := len(f.moves) - 1; i >= 0 && len(out) < limit; i-- {
		if f.moves[i].ProductID == productID && f.moves[i].Size == size {
			out = append(out, f.moves[i])
		}
	}
	return out, nil
}

func (f *fakeStore) SumOutstandingReserveDeltas(_ context.Context, productID int64, size string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lastCommit := -1
	for i, m := range f.moves {
		if m.ProductID == productID && m.Size == size && m.MoveType == models.MoveTypeCommit {
			lastCommit = i
		}
	}
	sum := 0
	for i := lastCommit + 1; i < len(f.moves); i++ {
		m := f.moves[i]
		if m.ProductID != productID || m.Size != size {
			continue
		}
		if m.MoveType == models.MoveTypeReserve || m.MoveType == models.MoveTypeRelease {
			sum += m.QuantityDelta
		}
	}
	return sum, nil
}

// fakeCache is an in-memory StockCache covering the mirror, idempotency,
// and lock paths.
type fakeCache struct {
	mu          sync.Mutex
	stock       map[string][2]int
	idempotency map[string][]byte
	locks       map[string]bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		stock:       make(map[string][2]int),
		idempotency: make(map[string][]byte),
		locks:       make(map[string]bool),
	}
}

func (f *fakeCache) SetStock(_ context.Context, productID int64, size string, quantity, reserved int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stock[key(productID, size)] = [2]int{quantity, reserved}
	return nil
}

func (f *fakeCache) GetStock(_ context.Context, productID int64, size string) (int, int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.stock[key(productID, size)]
	return v[0], v[1], ok, nil
}

func (f *fakeCache) MirrorReserve(_ context.Context, productID int64, size string, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.stock[key(productID, size)]; ok {
		f.stock[key(productID, size)] = [2]int{v[0], v[1] + qty}
	}
	return nil
}

func (f *fakeCache) MirrorRelease(_ context.Context, productID int64, size string, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.stock[key(productID, size)]; ok {
		reserved := v[1] - qty
		if reserved < 0 {
			reserved = 0
		}
		f.stock[key(productID, size)] = [2]int{v[0], reserved}
	}
	return nil
}

func (f *fakeCache) MirrorCommit(_ context.Context, productID int64, size string, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.stock[key(productID, size)]; ok {
		f.stock[key(productID, size)] = [2]int{v[0] - qty, v[1] - qty}
	}
	return nil
}

func (f *fakeCache) SetIdempotencyResult(_ context.Context, idemKey string, payload []byte, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.idempotency[idemKey]; exists {
		return false, nil
	}
	f.idempotency[idemKey] = payload
	return true, nil
}

func (f *fakeCache) GetIdempotencyResult(_ context.Context, idemKey string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.idempotency[idemKey], nil
}

func (f *fakeCache) AcquireLock(_ context.Context, lockKey string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locks[lockKey] {
		return false, nil
	}
	f.locks[lockKey] = true
	return true, nil
}

func (f *fakeCache) ReleaseLock(_ context.Context, lockKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.locks, lockKey)
	return nil
}

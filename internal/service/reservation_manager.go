package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"stock-ledger-service/internal/models"
	"stock-ledger-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultExpirationMinutes = 15

// ReservationManager creates, commits, and releases time-bounded holds.
// Each per-row mutation goes through the store's atomic conditional
// update; batches spanning multiple rows are made atomic at the
// application level with compensating releases.
type ReservationManager struct {
	store             Store
	cache             StockCache
	publisher         Publisher
	logger            *zap.Logger
	expirationMinutes int
}

// NewReservationManager creates a new reservation manager
func NewReservationManager(store Store, cache StockCache, publisher Publisher, expirationMinutes int) *ReservationManager {
	if expirationMinutes <= 0 {
		expirationMinutes = defaultExpirationMinutes
	}
	return &ReservationManager{
		store:             store,
		cache:             cache,
		publisher:         publisher,
		logger:            util.GetLogger(),
		expirationMinutes: expirationMinutes,
	}
}

// ReserveOptions controls a reservation batch
type ReserveOptions struct {
	Requester         models.Requester
	ExpirationMinutes int
	IdempotencyKey    string
}

// ReserveStock holds every item in the batch or none of them. Each item
// is granted by a single conditional write (increment reserved only
// where quantity - reserved >= qty); on the first item that fails the
// predicate, every earlier hold from the same batch is released before
// returning. Insufficient stock is reported on the result with per-item
// shortfalls, not as an error.
func (rm *ReservationManager) ReserveStock(ctx context.Context, items []models.ItemRequest, opts ReserveOptions) (*models.ReservationBatchResult, error) {
	ctx, span := util.StartSpan(ctx, "ReservationManager.ReserveStock")
	defer span.End()

	start := time.Now()
	defer func() {
		util.ReserveLatency.Observe(time.Since(start).Seconds())
	}()

	if len(items) == 0 {
		return nil, fmt.Errorf("reservation batch is empty")
	}
	if opts.Requester.IsZero() {
		return nil, fmt.Errorf("reservation requires a session or user requester")
	}
	if opts.Requester.SessionID != "" && opts.Requester.UserID != 0 {
		return nil, fmt.Errorf("reservation requester must be a session or a user, not both")
	}

	if opts.IdempotencyKey != "" {
		if result, ok := rm.replayIdempotentResult(ctx, opts.IdempotencyKey); ok {
			return result, nil
		}
	}

	expirationMinutes := opts.ExpirationMinutes
	if expirationMinutes <= 0 {
		expirationMinutes = rm.expirationMinutes
	}
	expiresAt := time.Now().Add(time.Duration(expirationMinutes) * time.Minute)

	reserved := make([]models.Reservation, 0, len(items))
	for i, item := range items {
		ok, err := rm.store.ReserveStockAtomic(ctx, item.ProductID, item.Size, item.Quantity)
		if err != nil {
			rm.compensate(ctx, reserved)
			util.ReservationsFailedTotal.WithLabelValues("storage_error").Inc()
			return nil, fmt.Errorf("failed to reserve product %d size %s: %w", item.ProductID, item.Size, err)
		}
		if !ok {
			util.ConditionalWriteConflicts.Inc()
			util.ReservationsFailedTotal.WithLabelValues("insufficient_stock").Inc()
			rm.compensate(ctx, reserved)

			failures, ferr := rm.collectShortfalls(ctx, items[i:])
			if ferr != nil {
				return nil, ferr
			}
			rm.logger.Info("Reservation batch rejected",
				zap.String("requester", opts.Requester.String()),
				zap.Int("failed_items", len(failures)))
			return &models.ReservationBatchResult{Success: false, Failures: failures}, nil
		}

		reservation := models.Reservation{
			ID:        uuid.New().String(),
			ProductID: item.ProductID,
			Size:      item.Size,
			Quantity:  item.Quantity,
			ExpiresAt: expiresAt,
		}
		if opts.Requester.SessionID != "" {
			sessionID := opts.Requester.SessionID
			reservation.SessionID = &sessionID
		} else {
			userID := opts.Requester.UserID
			reservation.UserID = &userID
		}

		if err := rm.store.CreateReservation(ctx, &reservation); err != nil {
			// The hold is already applied to the row; undo it before
			// failing, or the units stay stuck until drift correction.
			rm.undoHold(ctx, item.ProductID, item.Size, item.Quantity, reservation.ID)
			rm.compensate(ctx, reserved)
			util.ReservationsFailedTotal.WithLabelValues("storage_error").Inc()
			return nil, fmt.Errorf("failed to persist reservation: %w", err)
		}

		move := &models.InventoryMove{
			ID:            uuid.New().String(),
			ProductID:     item.ProductID,
			Size:          item.Size,
			MoveType:      models.MoveTypeReserve,
			QuantityDelta: -item.Quantity,
			ReferenceID:   reservation.ID,
			ReferenceType: models.ReferenceTypeReservation,
			Requester:     opts.Requester.String(),
		}
		if err := rm.store.AppendMove(ctx, move); err != nil {
			rm.logger.Error("Failed to append reserve move",
				zap.String("reservation_id", reservation.ID),
				zap.Error(err))
		} else {
			util.LedgerMovesTotal.WithLabelValues(string(models.MoveTypeReserve)).Inc()
		}

		rm.mirrorReserve(ctx, item.ProductID, item.Size, item.Quantity)
		reserved = append(reserved, reservation)
	}

	util.ReservationsCreatedTotal.Inc()
	rm.logger.Info("Reservation batch held",
		zap.String("requester", opts.Requester.String()),
		zap.Int("items", len(reserved)),
		zap.Time("expires_at", expiresAt))

	result := &models.ReservationBatchResult{
		Success:      true,
		Reservations: reserved,
		ExpiresAt:    expiresAt,
	}

	if opts.IdempotencyKey != "" {
		rm.storeIdempotentResult(ctx, opts.IdempotencyKey, result, expiresAt)
	}

	rm.publishReserved(ctx, result, opts.Requester)

	return result, nil
}

// CommitReservedStock permanently converts the named holds into a sale
// against orderID. Any hold that is missing or past its deadline fails
// the whole call with ReservationExpiredError before anything mutates;
// the caller must re-reserve. A failure after the first hold has been
// committed is a fatal inconsistency: committed units are final once
// written, so the half-state is surfaced for operator reconciliation
// instead of being silently rolled back.
func (rm *ReservationManager) CommitReservedStock(ctx context.Context, reservationIDs []string, orderID int64) error {
	ctx, span := util.StartSpan(ctx, "ReservationManager.CommitReservedStock")
	defer span.End()

	if len(reservationIDs) == 0 {
		return fmt.Errorf("no reservations to commit")
	}

	reservations, err := rm.store.GetReservationsByIDs(ctx, reservationIDs)
	if err != nil {
		return fmt.Errorf("failed to load reservations: %w", err)
	}

	now := time.Now()
	found := make(map[string]bool, len(reservations))
	var gone []string
	for i := range reservations {
		found[reservations[i].ID] = true
		if reservations[i].Expired(now) {
			gone = append(gone, reservations[i].ID)
		}
	}
	for _, id := range reservationIDs {
		if !found[id] {
			gone = append(gone, id)
		}
	}
	if len(gone) > 0 {
		return &models.ReservationExpiredError{ReservationIDs: gone}
	}

	items := make([]models.StockItemData, 0, len(reservations))
	committed := 0
	for _, r := range reservations {
		claimed, err := rm.store.ClaimReservation(ctx, r.ID)
		if err != nil {
			return rm.commitFailure(ctx, r, committed, fmt.Errorf("failed to claim reservation %s: %w", r.ID, err))
		}
		if claimed == nil {
			// Lost the race to a release between load and claim.
			return rm.commitFailure(ctx, r, committed, &models.ReservationExpiredError{ReservationIDs: []string{r.ID}})
		}
		if claimed.Expired(time.Now()) {
			// Deadline passed between load and claim: give the hold
			// back instead of honoring a sale the customer may believe
			// was abandoned.
			if rerr := rm.releaseClaimed(ctx, claimed, "expired"); rerr != nil {
				rm.logger.Error("Failed to return expired hold",
					zap.String("reservation_id", r.ID),
					zap.Error(rerr))
			}
			return rm.commitFailure(ctx, r, committed, &models.ReservationExpiredError{ReservationIDs: []string{r.ID}})
		}

		ok, err := rm.store.CommitStockAtomic(ctx, claimed.ProductID, claimed.Size, claimed.Quantity)
		if err != nil {
			return rm.commitFailure(ctx, r, committed, fmt.Errorf("failed to commit stock for reservation %s: %w", r.ID, err))
		}
		if !ok {
			util.InvariantViolationsTotal.Inc()
			violation := &models.InvariantViolationError{
				ProductID: claimed.ProductID,
				Size:      claimed.Size,
				Detail:    fmt.Sprintf("row no longer holds %d reserved units for reservation %s", claimed.Quantity, r.ID),
			}
			rm.logger.Error("Stock invariant violated during commit",
				zap.String("reservation_id", r.ID),
				zap.Int64("order_id", orderID),
				zap.Error(violation))
			return rm.commitFailure(ctx, r, committed, violation)
		}

		move := &models.InventoryMove{
			ID:            uuid.New().String(),
			ProductID:     claimed.ProductID,
			Size:          claimed.Size,
			MoveType:      models.MoveTypeCommit,
			QuantityDelta: -claimed.Quantity,
			ReferenceID:   strconv.FormatInt(orderID, 10),
			ReferenceType: models.ReferenceTypeOrder,
		}
		if err := rm.store.AppendMove(ctx, move); err != nil {
			rm.logger.Error("Failed to append commit move",
				zap.String("reservation_id", r.ID),
				zap.Error(err))
		} else {
			util.LedgerMovesTotal.WithLabelValues(string(models.MoveTypeCommit)).Inc()
		}

		rm.mirrorCommit(ctx, claimed.ProductID, claimed.Size, claimed.Quantity)
		items = append(items, models.StockItemData{
			ProductID: claimed.ProductID,
			Size:      claimed.Size,
			Quantity:  claimed.Quantity,
		})
		committed++
		util.ReservationsCommittedTotal.Inc()
	}

	rm.logger.Info("Reservations committed",
		zap.Int64("order_id", orderID),
		zap.Int("count", committed))

	if rm.publisher != nil {
		event := &models.StockCommittedEvent{
			BaseEvent:      newBaseEvent(models.EventTypeStockCommitted),
			OrderID:        orderID,
			ReservationIDs: reservationIDs,
			Items:          items,
		}
		if err := rm.publisher.PublishStockCommitted(ctx, event); err != nil {
			rm.logger.Error("Failed to publish StockCommitted event", zap.Error(err))
		}
	}

	return nil
}

// ReleaseReservations releases the named holds and returns how many
// were actually released. Idempotent: an id that no longer exists is a
// no-op, never an error, so user cancels, sweeps, and retries may race
// freely over the same ids.
func (rm *ReservationManager) ReleaseReservations(ctx context.Context, reservationIDs []string, trigger string) (int, error) {
	ctx, span := util.StartSpan(ctx, "ReservationManager.ReleaseReservations")
	defer span.End()

	released := 0
	items := make([]models.StockItemData, 0, len(reservationIDs))
	releasedIDs := make([]string, 0, len(reservationIDs))
	for _, id := range reservationIDs {
		claimed, err := rm.store.ClaimReservation(ctx, id)
		if err != nil {
			return released, fmt.Errorf("failed to claim reservation %s: %w", id, err)
		}
		if claimed == nil {
			continue
		}

		if err := rm.releaseClaimed(ctx, claimed, trigger); err != nil {
			rm.logger.Error("Release left units held",
				zap.String("reservation_id", id),
				zap.String("trigger", trigger),
				zap.Error(err))
			return released, err
		}
		released++
		releasedIDs = append(releasedIDs, id)
		items = append(items, models.StockItemData{
			ProductID: claimed.ProductID,
			Size:      claimed.Size,
			Quantity:  claimed.Quantity,
		})
	}

	if released > 0 {
		util.ReservationsReleasedTotal.WithLabelValues(trigger).Add(float64(released))
		rm.logger.Info("Reservations released",
			zap.String("trigger", trigger),
			zap.Int("count", released))

		if rm.publisher != nil {
			event := &models.StockReleasedEvent{
				BaseEvent:      newBaseEvent(models.EventTypeStockReleased),
				ReservationIDs: releasedIDs,
				Items:          items,
				Reason:         trigger,
			}
			if err := rm.publisher.PublishStockReleased(ctx, event); err != nil {
				rm.logger.Error("Failed to publish StockReleased event", zap.Error(err))
			}
		}
	}

	return released, nil
}

// releaseClaimed returns an already-claimed hold's units to
// availability and records the release move. The claim has already
// deleted the reservation row, so a failed decrement leaves the units
// held with nothing left to retry against; it must reach the caller as
// a hard failure, never be reported as a successful release.
func (rm *ReservationManager) releaseClaimed(ctx context.Context, r *models.Reservation, trigger string) error {
	if err := rm.store.ReleaseStockAtomic(ctx, r.ProductID, r.Size, r.Quantity); err != nil {
		return fmt.Errorf("failed to release reserved stock for reservation %s: %w", r.ID, err)
	}

	move := &models.InventoryMove{
		ID:            uuid.New().String(),
		ProductID:     r.ProductID,
		Size:          r.Size,
		MoveType:      models.MoveTypeRelease,
		QuantityDelta: r.Quantity,
		ReferenceID:   r.ID,
		ReferenceType: models.ReferenceTypeReservation,
		Reason:        trigger,
	}
	if err := rm.store.AppendMove(ctx, move); err != nil {
		rm.logger.Error("Failed to append release move",
			zap.String("reservation_id", r.ID),
			zap.Error(err))
	} else {
		util.LedgerMovesTotal.WithLabelValues(string(models.MoveTypeRelease)).Inc()
	}

	rm.mirrorRelease(ctx, r.ProductID, r.Size, r.Quantity)
	return nil
}

// compensate rolls back every hold granted earlier in a failed batch
func (rm *ReservationManager) compensate(ctx context.Context, reserved []models.Reservation) {
	for i := range reserved {
		r := &reserved[i]
		claimed, err := rm.store.ClaimReservation(ctx, r.ID)
		if err != nil {
			rm.logger.Error("Failed to compensate reservation",
				zap.String("reservation_id", r.ID),
				zap.Error(err))
			continue
		}
		if claimed == nil {
			continue
		}
		if err := rm.releaseClaimed(ctx, claimed, "compensation"); err != nil {
			rm.logger.Error("Compensating release left units held",
				zap.String("reservation_id", r.ID),
				zap.Error(err))
			continue
		}
		util.CompensatingReleasesTotal.Inc()
	}
}

// undoHold reverses a conditional reserve whose reservation row never
// made it to storage.
func (rm *ReservationManager) undoHold(ctx context.Context, productID int64, size string, qty int, reservationID string) {
	if err := rm.store.ReleaseStockAtomic(ctx, productID, size, qty); err != nil {
		rm.logger.Error("Failed to undo orphaned hold",
			zap.String("reservation_id", reservationID),
			zap.Error(err))
		return
	}
	util.CompensatingReleasesTotal.Inc()
}

// collectShortfalls reads current availability for the items that were
// not granted and reports the deficit for each one that cannot be met.
func (rm *ReservationManager) collectShortfalls(ctx context.Context, items []models.ItemRequest) ([]models.ItemShortfall, error) {
	failures := make([]models.ItemShortfall, 0, len(items))
	for _, item := range items {
		rec, err := rm.store.GetStockRecord(ctx, item.ProductID, item.Size)
		if err != nil {
			return nil, fmt.Errorf("failed to read stock for shortfall report: %w", err)
		}
		available := 0
		if rec != nil {
			available = rec.Available()
		}
		if available < item.Quantity {
			failures = append(failures, models.ItemShortfall{
				ProductID:         item.ProductID,
				Size:              item.Size,
				RequestedQuantity: item.Quantity,
				AvailableQuantity: available,
				Shortfall:         item.Quantity - available,
			})
		}
	}
	return failures, nil
}

// commitFailure wraps a commit error. With nothing committed yet the
// caller sees a clean failure; after the first commit the half-state is
// final and surfaced as a fatal inconsistency.
func (rm *ReservationManager) commitFailure(ctx context.Context, r models.Reservation, committed int, cause error) error {
	if committed == 0 {
		return cause
	}

	util.InvariantViolationsTotal.Inc()
	violation := &models.InvariantViolationError{
		ProductID: r.ProductID,
		Size:      r.Size,
		Detail: fmt.Sprintf("commit batch failed after %d reservations were already committed: %v; operator reconciliation required",
			committed, cause),
	}
	rm.logger.Error("Commit batch left a partial state", zap.Error(violation))
	return violation
}

func (rm *ReservationManager) replayIdempotentResult(ctx context.Context, key string) (*models.ReservationBatchResult, bool) {
	if rm.cache == nil {
		return nil, false
	}
	payload, err := rm.cache.GetIdempotencyResult(ctx, key)
	if err != nil {
		rm.logger.Warn("Idempotency lookup failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if payload == nil {
		return nil, false
	}

	var result models.ReservationBatchResult
	if err := json.Unmarshal(payload, &result); err != nil {
		rm.logger.Warn("Stored idempotency payload is unreadable", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	rm.logger.Info("Duplicate reservation batch replayed", zap.String("key", key))
	return &result, true
}

func (rm *ReservationManager) storeIdempotentResult(ctx context.Context, key string, result *models.ReservationBatchResult, expiresAt time.Time) {
	if rm.cache == nil {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return
	}
	if _, err := rm.cache.SetIdempotencyResult(ctx, key, payload, ttl); err != nil {
		rm.logger.Warn("Failed to store idempotency result", zap.String("key", key), zap.Error(err))
	}
}

func (rm *ReservationManager) publishReserved(ctx context.Context, result *models.ReservationBatchResult, requester models.Requester) {
	if rm.publisher == nil {
		return
	}

	ids := make([]string, 0, len(result.Reservations))
	items := make([]models.StockItemData, 0, len(result.Reservations))
	for _, r := range result.Reservations {
		ids = append(ids, r.ID)
		items = append(items, models.StockItemData{ProductID: r.ProductID, Size: r.Size, Quantity: r.Quantity})
	}

	event := &models.StockReservedEvent{
		BaseEvent:      newBaseEvent(models.EventTypeStockReserved),
		ReservationIDs: ids,
		Requester:      requester.String(),
		Items:          items,
		ExpiresAt:      result.ExpiresAt,
	}
	if err := rm.publisher.PublishStockReserved(ctx, event); err != nil {
		rm.logger.Error("Failed to publish StockReserved event", zap.Error(err))
	}
}

func (rm *ReservationManager) mirrorReserve(ctx context.Context, productID int64, size string, qty int) {
	if rm.cache == nil {
		return
	}
	if err := rm.cache.MirrorReserve(ctx, productID, size, qty); err != nil {
		rm.logger.Warn("Failed to mirror reserve to cache", zap.Error(err))
	}
}

func (rm *ReservationManager) mirrorRelease(ctx context.Context, productID int64, size string, qty int) {
	if rm.cache == nil {
		return
	}
	if err := rm.cache.MirrorRelease(ctx, productID, size, qty); err != nil {
		rm.logger.Warn("Failed to mirror release to cache", zap.Error(err))
	}
}

func (rm *ReservationManager) mirrorCommit(ctx context.Context, productID int64, size string, qty int) {
	if rm.cache == nil {
		return
	}
	if err := rm.cache.MirrorCommit(ctx, productID, size, qty); err != nil {
		rm.logger.Warn("Failed to mirror commit to cache", zap.Error(err))
	}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

package flashsale

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/events"
	"github.com/noah-isme/storefront-api/internal/obs"
	"github.com/noah-isme/storefront-api/internal/pubsub"
	"github.com/noah-isme/storefront-api/internal/repo"
)

// Task types processed by the worker.
const (
	TaskStarted = "flashsale:started"
	TaskEnded   = "flashsale:ended"
)

// WindowPayload identifies the sale and the instant the task was planned for.
// A task whose instant no longer matches the sale is stale and skipped.
type WindowPayload struct {
	FlashSaleID string    `json:"flash_sale_id"`
	StoreID     string    `json:"store_id"`
	At          time.Time `json:"at"`
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskScheduler schedules start/end tasks with asynq.
type TaskScheduler struct {
	Client Enqueuer
	Queue  string
	Now    func() time.Time
}

// ScheduleWindow enqueues the start task (immediately when the sale already
// started) and the end task. Task ids embed the instant so a rescheduled
// window gets fresh tasks while duplicates collapse.
func (s TaskScheduler) ScheduleWindow(ctx context.Context, sale db.FlashSale) error {
	if s.Client == nil {
		return errors.New("flashsale: task client not configured")
	}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	end := sale.EndDate.Time
	if !end.After(now) {
		return nil
	}
	start := sale.StartDate.Time
	var errs error
	startAt := start
	if startAt.Before(now) {
		startAt = now
	}
	if err := s.enqueue(ctx, TaskStarted, sale, start, startAt); err != nil {
		errs = errors.Join(errs, err)
	}
	if err := s.enqueue(ctx, TaskEnded, sale, end, end); err != nil {
		errs = errors.Join(errs, err)
	}
	return errs
}

func (s TaskScheduler) enqueue(ctx context.Context, kind string, sale db.FlashSale, at, processAt time.Time) error {
	payload, err := json.Marshal(WindowPayload{
		FlashSaleID: repo.String(sale.ID),
		StoreID:     repo.String(sale.StoreID),
		At:          at.UTC(),
	})
	if err != nil {
		return err
	}
	opts := []asynq.Option{
		asynq.ProcessAt(processAt),
		asynq.TaskID(fmt.Sprintf("%s:%s:%d", kind, repo.String(sale.ID), at.Unix())),
		asynq.MaxRetry(5),
	}
	if s.Queue != "" {
		opts = append(opts, asynq.Queue(s.Queue))
	}
	if _, err := s.Client.EnqueueContext(ctx, asynq.NewTask(kind, payload), opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			return nil
		}
		return fmt.Errorf("flashsale: enqueue %s: %w", kind, err)
	}
	return nil
}

// TaskQuerier is what the worker needs from the database.
type TaskQuerier interface {
	GetFlashSale(ctx context.Context, id pgtype.UUID) (db.FlashSale, error)
	ListFlashSaleProducts(ctx context.Context, flashSaleID pgtype.UUID) ([]db.FlashSaleProduct, error)
}

// Emitter records domain events.
type Emitter interface {
	Emit(ctx context.Context, topic string, aggregateID pgtype.UUID, payload any) (db.DomainEvent, error)
}

// TaskHandler reacts to a sale starting or ending: cached rules of its
// products are dropped and shoppers are told to recompute their carts.
type TaskHandler struct {
	Q      TaskQuerier
	Cache  Invalidator
	Broker pubsub.Broker
	Events Emitter
	Log    zerolog.Logger
}

// WindowNotice is the realtime payload broadcast on the storefront topic.
type WindowNotice struct {
	FlashSaleID string    `json:"flash_sale_id"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	ProductIDs  []string  `json:"product_ids"`
}

// Register binds the handlers on mux.
func (h *TaskHandler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskStarted, h.HandleStarted)
	mux.HandleFunc(TaskEnded, h.HandleEnded)
}

func (h *TaskHandler) HandleStarted(ctx context.Context, t *asynq.Task) error {
	return h.handle(ctx, t, TaskStarted)
}

func (h *TaskHandler) HandleEnded(ctx context.Context, t *asynq.Task) error {
	return h.handle(ctx, t, TaskEnded)
}

func (h *TaskHandler) handle(ctx context.Context, t *asynq.Task, kind string) error {
	err := h.process(ctx, t, kind)
	result := "ok"
	switch {
	case errors.Is(err, errStaleTask):
		result = "stale"
		err = nil
	case err != nil:
		result = "error"
	}
	obs.Inc(obs.JobsProcessed, kind, result)
	return err
}

var errStaleTask = errors.New("stale flash sale task")

func (h *TaskHandler) process(ctx context.Context, t *asynq.Task, kind string) error {
	var p WindowPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", kind, err, asynq.SkipRetry)
	}
	id, err := repo.UUID(p.FlashSaleID)
	if err != nil {
		return fmt.Errorf("%s payload: %v: %w", kind, err, asynq.SkipRetry)
	}
	sale, err := h.Q.GetFlashSale(ctx, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return errStaleTask
		}
		return fmt.Errorf("load flash sale: %w", err)
	}
	planned := sale.StartDate.Time
	status, topic, envType := StatusActive, events.TopicFlashSaleStarted, pubsub.TypeFlashSaleStarted
	if kind == TaskEnded {
		planned = sale.EndDate.Time
		status, topic, envType = StatusEnded, events.TopicFlashSaleEnded, pubsub.TypeFlashSaleEnded
	}
	if !planned.Equal(p.At) || (kind == TaskStarted && !sale.IsActive) {
		h.Log.Debug().Str("flash_sale_id", p.FlashSaleID).Str("task", kind).Msg("skip stale flash sale task")
		return errStaleTask
	}

	products, err := h.Q.ListFlashSaleProducts(ctx, sale.ID)
	if err != nil {
		return fmt.Errorf("list flash sale products: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(products))
	productIDs := make([]string, 0, len(products))
	for _, fp := range products {
		ids = append(ids, uuid.UUID(fp.ProductID.Bytes))
		productIDs = append(productIDs, repo.String(fp.ProductID))
	}
	if h.Cache != nil && len(ids) > 0 {
		if err := h.Cache.Invalidate(ctx, ids...); err != nil {
			return err
		}
	}

	storeID := repo.String(sale.StoreID)
	notice := WindowNotice{
		FlashSaleID: p.FlashSaleID,
		Name:        sale.Name,
		Status:      status,
		StartDate:   sale.StartDate.Time,
		EndDate:     sale.EndDate.Time,
		ProductIDs:  productIDs,
	}
	if err := pubsub.Publish(ctx, h.Broker, pubsub.StorefrontTopic(storeID), envType, notice); err != nil {
		h.Log.Warn().Err(err).Str("flash_sale_id", p.FlashSaleID).Msg("broadcast flash sale window")
	}
	if h.Events != nil {
		if _, err := h.Events.Emit(ctx, topic, sale.ID, events.FlashSaleWindow{
			FlashSaleID: p.FlashSaleID,
			StoreID:     storeID,
			Name:        sale.Name,
			StartDate:   sale.StartDate.Time,
			EndDate:     sale.EndDate.Time,
		}); err != nil {
			h.Log.Warn().Err(err).Str("flash_sale_id", p.FlashSaleID).Msg("emit flash sale event")
		}
	}
	h.Log.Info().Str("flash_sale_id", p.FlashSaleID).Str("status", status).Int("products", len(ids)).Msg("flash sale window")
	return nil
}

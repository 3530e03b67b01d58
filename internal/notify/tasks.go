package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/salusa-dev/backend-klinik/internal/common"
	"github.com/salusa-dev/backend-klinik/internal/events"
	"github.com/salusa-dev/backend-klinik/internal/obs"
)

// TypeOrderSubmitted is the asynq task type for receipt generation.
const TypeOrderSubmitted = "order:submitted"

// QueueReceipts is the asynq queue receipt tasks are routed to.
const QueueReceipts = "receipts"

type orderSubmittedTask struct {
	EventID    string          `json:"eventId"`
	Data       json.RawMessage `json:"data"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// NewOrderSubmittedTask wraps an emitted event into a receipt task.
func NewOrderSubmittedTask(ev events.Event) (*asynq.Task, error) {
	body, err := json.Marshal(orderSubmittedTask{
		EventID:    ev.ID,
		Data:       ev.Payload,
		OccurredAt: ev.OccurredAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encode receipt task: %w", err)
	}
	return asynq.NewTask(TypeOrderSubmitted, body,
		asynq.MaxRetry(5),
		asynq.Queue(QueueReceipts),
		asynq.Timeout(30*time.Second),
	), nil
}

// TaskEnqueuer hands submitted-order events to the background worker. It
// implements events.Notifier.
type TaskEnqueuer struct {
	Client *asynq.Client
}

// Notify enqueues a receipt task for order.submitted events and ignores the rest.
func (e *TaskEnqueuer) Notify(ctx context.Context, ev events.Event) error {
	if e == nil || e.Client == nil || ev.Topic != events.TopicOrderSubmitted {
		return nil
	}
	task, err := NewOrderSubmittedTask(ev)
	if err != nil {
		recordReceiptTask("encode_error")
		return err
	}
	if _, err := e.Client.EnqueueContext(ctx, task); err != nil {
		recordReceiptTask("error")
		return fmt.Errorf("enqueue receipt task: %w", err)
	}
	recordReceiptTask("enqueued")
	return nil
}

// ReceiptWorker turns receipt tasks into back-office emails.
type ReceiptWorker struct {
	Email common.EmailSender
	From  string
	To    string
	Log   zerolog.Logger
}

type receiptData struct {
	OrderID    string `json:"orderId"`
	Flow       string `json:"flow"`
	GrandTotal int64  `json:"grandTotal"`
	Currency   string `json:"currency"`
	Payer      string `json:"payer"`
	ItemCount  int    `json:"itemCount"`
}

// HandleOrderSubmitted processes one receipt task. Malformed payloads are
// dropped rather than retried.
func (w *ReceiptWorker) HandleOrderSubmitted(_ context.Context, t *asynq.Task) error {
	var task orderSubmittedTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		w.Log.Error().Err(err).Msg("receipt task payload is malformed")
		return fmt.Errorf("decode receipt task: %v: %w", err, asynq.SkipRetry)
	}
	var data receiptData
	if err := json.Unmarshal(task.Data, &data); err != nil {
		w.Log.Error().Err(err).Str("event_id", task.EventID).Msg("receipt event data is malformed")
		return fmt.Errorf("decode receipt data: %v: %w", err, asynq.SkipRetry)
	}
	if w.Email == nil || w.To == "" {
		return nil
	}

	subject := fmt.Sprintf("Order %s submitted", data.OrderID)
	html := fmt.Sprintf(
		"<p>Order <strong>%s</strong> (%s flow) was submitted by %s.</p><p>%d items, total %s.</p>",
		data.OrderID, data.Flow, data.Payer, data.ItemCount, FormatAmount(data.Currency, data.GrandTotal),
	)
	if err := w.Email.Send(w.To, subject, html); err != nil {
		return fmt.Errorf("send receipt email: %w", err)
	}
	w.Log.Info().Str("order_id", data.OrderID).Str("event_id", task.EventID).Msg("receipt email sent")
	return nil
}

// FormatAmount renders a minor-unit amount as a human readable string.
func FormatAmount(currency string, minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s %s%d.%02d", currency, sign, minor/100, minor%100)
}

func recordReceiptTask(result string) {
	if obs.ReceiptTasksTotal != nil {
		obs.ReceiptTasksTotal.WithLabelValues(result).Inc()
	}
}

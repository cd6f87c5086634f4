package dispatch

import (
	"context"
	"encoding/json"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"nox-relay/internal/models"
	"nox-relay/internal/observability"
	"nox-relay/internal/repositories"
	"nox-relay/internal/telemetry"
)

const defaultInboxSize = 256

// Broadcaster delivers outbound events and tracks which connections listen
// on which chat. *ws.Hub satisfies it.
type Broadcaster interface {
	SendTo(connID string, event models.Event)
	Publish(topic string, event models.Event, exceptConnID string)
	BroadcastExcept(exceptConnID string, event models.Event)
	Subscribe(topic, connID string)
	Unsubscribe(topic, connID string)
	UnsubscribeAll(connID string)
	CloseTopic(topic string)
}

// Job is a unit of work executed on the dispatcher goroutine.
type Job func(ctx context.Context)

// Dispatcher routes inbound events to the directory, room store and ledger.
// All state mutation happens on the goroutine running Run, one job at a
// time, so a handler never observes another handler's partial work.
type Dispatcher struct {
	users    repositories.UserRepository
	chats    repositories.ChatRepository
	messages repositories.MessageRepository
	hub      Broadcaster
	audit    *telemetry.AuditEmitter
	tracer   trace.Tracer
	handlers map[string]handlerFunc

	inbox chan Job
	done  chan struct{}
}

func NewDispatcher(users repositories.UserRepository, chats repositories.ChatRepository, messages repositories.MessageRepository, hub Broadcaster, audit *telemetry.AuditEmitter, inboxSize int) *Dispatcher {
	if inboxSize <= 0 {
		inboxSize = defaultInboxSize
	}
	d := &Dispatcher{
		users:    users,
		chats:    chats,
		messages: messages,
		hub:      hub,
		audit:    audit,
		tracer:   otel.Tracer("nox-relay/dispatch"),
		inbox:    make(chan Job, inboxSize),
		done:     make(chan struct{}),
	}
	d.handlers = d.routes()
	return d
}

// Run executes queued jobs until ctx is cancelled. Jobs still queued at that
// point are discarded.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	log.Printf("dispatcher started inbox_size=%d", cap(d.inbox))

	for {
		select {
		case <-ctx.Done():
			log.Printf("dispatcher stopped pending_jobs=%d", len(d.inbox))
			return
		case job := <-d.inbox:
			job(ctx)
		}
	}
}

// Done is closed once Run has returned.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// Enqueue hands job to the dispatcher goroutine, waiting for inbox space.
// It reports false when ctx ends or the dispatcher has stopped first.
func (d *Dispatcher) Enqueue(ctx context.Context, job Job) bool {
	select {
	case <-d.done:
		return false
	case <-ctx.Done():
		return false
	case d.inbox <- job:
		return true
	}
}

// Submit queues a raw inbound frame from connID.
func (d *Dispatcher) Submit(ctx context.Context, connID string, frame []byte) bool {
	return d.Enqueue(ctx, func(ctx context.Context) {
		d.HandleFrame(ctx, connID, frame)
	})
}

// SubmitDisconnect queues the transport-level disconnect of connID.
func (d *Dispatcher) SubmitDisconnect(ctx context.Context, connID string) bool {
	return d.Enqueue(ctx, func(ctx context.Context) {
		d.Disconnect(ctx, connID)
	})
}

type inboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// HandleFrame decodes and routes one inbound frame. It must only be called
// from the dispatcher goroutine, or from tests that do not run one.
func (d *Dispatcher) HandleFrame(ctx context.Context, connID string, raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Type == "" {
		d.drop(ctx, connID, "invalid", "decode_error", err)
		return
	}

	ctx, span := d.tracer.Start(ctx, "relay "+frame.Type, trace.WithAttributes(
		attribute.String("relay.event", frame.Type),
		attribute.String("relay.conn_id", connID),
	))
	defer span.End()

	if frame.Type == models.EventUserConnect {
		observability.IncEventHandled(frame.Type)
		d.register(ctx, connID, frame.Data)
		return
	}

	handler, ok := d.handlers[frame.Type]
	if !ok {
		d.drop(ctx, connID, frame.Type, "unknown_event", nil)
		return
	}

	actor, err := d.users.ResolveUser(ctx, connID)
	if err != nil {
		d.drop(ctx, connID, frame.Type, "unresolved_actor", err)
		return
	}
	span.SetAttributes(attribute.String("relay.user_id", actor.ID))

	observability.IncEventHandled(frame.Type)
	handler(ctx, connID, actor, frame.Data)
}

type handlerFunc func(ctx context.Context, connID string, actor models.User, data json.RawMessage)

func (d *Dispatcher) routes() map[string]handlerFunc {
	return map[string]handlerFunc{
		models.EventUserSearch:     d.search,
		models.EventUserRandom:     d.random,
		models.EventChatCreate:     d.createChat,
		models.EventGroupCreate:    d.createGroup,
		models.EventChatJoin:       d.join,
		models.EventMessageSend:    d.send,
		models.EventMessageRead:    d.markRead,
		models.EventUserTyping:     d.typing,
		models.EventChatLeave:      d.leave,
		models.EventSessionBurn:    d.burn,
		models.EventSessionCleanup: d.burn,
	}
}

// Disconnect marks the user bound to connID offline and tells everyone else.
// Chat membership is left untouched.
func (d *Dispatcher) Disconnect(ctx context.Context, connID string) {
	ctx, span := d.tracer.Start(ctx, "relay disconnect", trace.WithAttributes(
		attribute.String("relay.conn_id", connID),
	))
	defer span.End()

	d.hub.UnsubscribeAll(connID)

	user, err := d.users.MarkOffline(ctx, connID)
	if err != nil {
		return
	}
	log.Printf("user offline user_id=%s conn_id=%s", user.ID, connID)
	d.hub.BroadcastExcept(connID, models.Event{Type: models.EventUserOffline, Data: user})
}

// MessageExpired notifies a chat's current subscribers that msg was swept.
func (d *Dispatcher) MessageExpired(ctx context.Context, chatID string, msg models.Message) {
	d.hub.Publish(chatID, models.Event{
		Type: models.EventMessageExpired,
		Data: models.MessageExpiredEvent{ChatID: chatID, MessageID: msg.ID},
	}, "")
}

func (d *Dispatcher) drop(ctx context.Context, connID, event, reason string, err error) {
	if err != nil {
		log.Printf("relay event dropped: event=%s reason=%s conn_id=%s err=%v", event, reason, connID, err)
	} else {
		log.Printf("relay event dropped: event=%s reason=%s conn_id=%s", event, reason, connID)
	}
	observability.IncEventDropped(reason)
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("relay.dropped", reason))
}

package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Workflow event types.
const (
	EventCourseProposed       = "course.proposed"
	EventCourseDecided        = "course.decided"
	EventCourseDeleted        = "course.deleted"
	EventEnrollmentTransition = "enrollment.transitioned"
	EventRosterImported       = "roster.imported"
)

// WorkflowEvent announces a committed workflow change.
type WorkflowEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Source     string    `json:"source"`
	ActorID    string    `json:"actor_id"`
	CourseID   string    `json:"course_id,omitempty"`
	EntityIDs  []string  `json:"entity_ids,omitempty"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to,omitempty"`
	Count      int       `json:"count"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher fans workflow events out to Redis pub/sub and NATS. Either
// transport may be nil. Delivery is best effort: failures are logged and never
// surface to the operation that committed the change.
type EventPublisher struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       *zap.Logger
	nodeID       string
}

// NewEventPublisher derives "<base>:events" for Redis and "<base>.events" for NATS.
func NewEventPublisher(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	channelBase = strings.TrimSpace(channelBase)
	if channelBase == "" {
		channelBase = "course-workflow"
	}
	return &EventPublisher{
		redis:        redisClient,
		redisChannel: channelBase + ":events",
		nats:         natsConn,
		natsSubject:  strings.ReplaceAll(channelBase, ":", ".") + ".events",
		logger:       logger,
		nodeID:       uuid.NewString(),
	}
}

// RedisChannel is the pub/sub channel events are published on.
func (p *EventPublisher) RedisChannel() string {
	if p == nil {
		return ""
	}
	return p.redisChannel
}

// Publish stamps and sends the event.
func (p *EventPublisher) Publish(ctx context.Context, event WorkflowEvent) {
	if p == nil || (p.redis == nil && p.nats == nil) {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	event.Source = p.nodeID

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("encode workflow event failed", zap.String("type", event.Type), zap.Error(err))
		return
	}

	if p.redis != nil {
		if err := p.redis.Publish(ctx, p.redisChannel, payload).Err(); err != nil {
			p.logger.Warn("redis event publish failed", zap.String("type", event.Type), zap.Error(err))
		}
	}
	if p.nats != nil {
		if err := p.nats.Publish(p.natsSubject, payload); err != nil {
			p.logger.Warn("nats event publish failed", zap.String("type", event.Type), zap.Error(err))
		}
	}
}

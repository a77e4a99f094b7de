// Package behavior implements the behavior event pipeline (C5):
// a handler-facing publisher that validates and enriches an inbound
// interaction, a durable queue hop, and a consumer that appends each
// delivered event to an append-only log sink — at-least-once,
// idempotent-by-aggregation on the read side (C6).
//
// Grounded on the original RabbitMQClientManager/MongoDBClientManager
// (core/rabbitmq_client.py, core/mongodb_client.py): a durable queue
// named user_behavior_log_queue carrying persistent JSON messages,
// consumed by a single long-lived task with manual ack, sunk into a
// user_behavior_log collection indexed on user_id/course_id/
// action_type/created_time/(user_id,course_id). Go ports: streadway/
// amqp for the queue side (the confirmed no-ack-on-failure, manual
// Ack/Nack path amqp exposes directly) and go.mongodb.org/mongo-driver
// for the sink.
package behavior

import "time"

// ActionType is one of the six canonical interaction kinds (§3).
type ActionType string

const (
	ActionView       ActionType = "view"
	ActionFavorite   ActionType = "favorite"
	ActionUnfavorite ActionType = "unfavorite"
	ActionPurchase   ActionType = "purchase"
	ActionStudy      ActionType = "study"
	ActionRate       ActionType = "rate"
)

// DefaultWeight returns the canonical action_value used when a
// publish request omits one explicitly.
func DefaultWeight(action ActionType) (float64, bool) {
	w, ok := canonicalWeights[action]
	return w, ok
}

var canonicalWeights = map[ActionType]float64{
	ActionView:       1.0,
	ActionFavorite:   3.0,
	ActionUnfavorite: -2.0,
	ActionPurchase:   5.0,
	ActionStudy:      4.0,
	ActionRate:       4.0,
}

// CourseSnapshot is the small set of course attributes embedded in a
// behavior event at publish time, so the log remains a faithful
// historical record even if the course catalogue entry later changes.
type CourseSnapshot struct {
	Title    string   `json:"title,omitempty" bson:"title,omitempty"`
	Category string   `json:"category,omitempty" bson:"category,omitempty"`
	Tags     []string `json:"tags,omitempty" bson:"tags,omitempty"`
}

// Event is one immutable behavior log record (§3).
type Event struct {
	UserID         string         `json:"user_id" bson:"user_id"`
	CourseID       string         `json:"course_id" bson:"course_id"`
	ActionType     ActionType     `json:"action_type" bson:"action_type"`
	ActionValue    float64        `json:"action_value" bson:"action_value"`
	CourseSnapshot CourseSnapshot `json:"course_snapshot" bson:"course_snapshot"`
	Extra          map[string]any `json:"extra,omitempty" bson:"extra,omitempty"`
	CreatedTime    time.Time      `json:"created_time" bson:"created_time"`
	IP             string         `json:"ip,omitempty" bson:"ip,omitempty"`
	UserAgent      string         `json:"user_agent,omitempty" bson:"user_agent,omitempty"`
	InsertedTime   time.Time      `json:"inserted_time,omitempty" bson:"inserted_time,omitempty"`
}

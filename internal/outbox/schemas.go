package outbox

import "example.com/planner/pkg/events"

// Topics the planner publishes to.
const (
	TopicActivity   = "planner.activity.v1"
	TopicCompletion = "planner.completion.v1"
)

// Route describes where an event type is published and how it is framed.
type Route struct {
	Topic         string
	SchemaSubject string
	Schema        string
}

var catalog = map[string]Route{
	events.TypeActivityCreated: {
		Topic:         TopicActivity,
		SchemaSubject: TopicActivity + "-activity.created",
		Schema:        activityCreatedSchema,
	},
	events.TypeActivityUpdated: {
		Topic:         TopicActivity,
		SchemaSubject: TopicActivity + "-activity.updated",
		Schema:        activityUpdatedSchema,
	},
	events.TypeActivityArchived: {
		Topic:         TopicActivity,
		SchemaSubject: TopicActivity + "-activity.archived",
		Schema:        activityArchivedSchema,
	},
	events.TypeCompletionToggled: {
		Topic:         TopicCompletion,
		SchemaSubject: TopicCompletion + "-completion.toggled",
		Schema:        completionToggledSchema,
	},
}

// RouteFor returns the route registered for eventType.
func RouteFor(eventType string) (Route, bool) {
	route, ok := catalog[eventType]
	return route, ok
}

const activityCreatedSchema = `{
  "type": "object",
  "title": "ActivityCreated",
  "properties": {
    "activity_id": {"type": "string"},
    "owner_id": {"type": "string"},
    "title": {"type": "string"},
    "frequency_type": {"type": "string", "enum": ["DAILY", "WEEKLY", "MONTHLY", "ONCE"]},
    "scheduled_days": {"type": ["array", "null"], "items": {"type": "string", "enum": ["L", "M", "X", "J", "V", "S", "D"]}},
    "time_of_day": {"type": "string"},
    "domain_id": {"type": "string"},
    "goal_id": {"type": "string"},
    "created_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "owner_id", "title", "frequency_type", "created_at"],
  "additionalProperties": false
}`

const activityUpdatedSchema = `{
  "type": "object",
  "title": "ActivityUpdated",
  "properties": {
    "activity_id": {"type": "string"},
    "owner_id": {"type": "string"},
    "title": {"type": "string"},
    "frequency_type": {"type": "string", "enum": ["DAILY", "WEEKLY", "MONTHLY", "ONCE"]},
    "previous_frequency": {"type": "string"},
    "scheduled_days": {"type": ["array", "null"], "items": {"type": "string"}},
    "time_of_day": {"type": "string"},
    "domain_id": {"type": "string"},
    "goal_id": {"type": "string"},
    "updated_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "owner_id", "title", "frequency_type", "updated_at"],
  "additionalProperties": false
}`

const activityArchivedSchema = `{
  "type": "object",
  "title": "ActivityArchived",
  "properties": {
    "activity_id": {"type": "string"},
    "owner_id": {"type": "string"},
    "archived": {"type": "boolean"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "owner_id", "archived", "occurred_at"],
  "additionalProperties": false
}`

const completionToggledSchema = `{
  "type": "object",
  "title": "CompletionToggled",
  "properties": {
    "completion_id": {"type": "string"},
    "activity_id": {"type": "string"},
    "owner_id": {"type": "string"},
    "period_key": {"type": "string"},
    "date": {"type": "string", "format": "date"},
    "completed": {"type": "boolean"},
    "completed_at": {"type": "string", "format": "date-time"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["completion_id", "activity_id", "owner_id", "period_key", "date", "completed", "occurred_at"],
  "additionalProperties": false
}`

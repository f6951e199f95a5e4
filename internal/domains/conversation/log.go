package conversation

import "time"

// LogEntry is one line of the full interaction log. Unlike TurnContext it keeps
// every agent reply separately.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	Role      string    `json:"role" bson:"role"`
	Content   string    `json:"content" bson:"content"`
	AgentName string    `json:"agent,omitempty" bson:"agent,omitempty"`
}

package services

import "context"

// Event types delivered to group members
const (
	EventMemberJoined = "member_joined"
	EventMemberLeft   = "member_left"
	EventCheckedIn    = "checked_in"
)

// GroupEvent describes a change in a group made by Actor
type GroupEvent struct {
	Type    string   `json:"type"`
	GroupID string   `json:"group_id"`
	Actor   string   `json:"actor"`
	Members []string `json:"members,omitempty"`
	Date    string   `json:"date,omitempty"`
	Coin    int      `json:"coin,omitempty"`
}

// EventPublisher fans a group event out to the other members.
// Delivery is best effort and never fails the operation that raised it.
type EventPublisher interface {
	Publish(ctx context.Context, recipients []string, event GroupEvent)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, []string, GroupEvent) {}

// others returns roster without actor
func others(roster []string, actor string) []string {
	out := make([]string, 0, len(roster))
	for _, name := range roster {
		if name != actor {
			out = append(out, name)
		}
	}
	return out
}

package models

import "time"

// DefaultAvatar is assigned when a user registers without a picture
const DefaultAvatar = "https://i.imgur.com/Mwskb9x.png"

// Exercise is the movement a challenge group trains
type Exercise string

const (
	ExercisePushUps Exercise = "Push Ups"
	ExercisePullUps Exercise = "Pull Ups"
	ExerciseDips    Exercise = "Dips"
)

// Valid reports whether e is one of the supported exercises
func (e Exercise) Valid() bool {
	switch e {
	case ExercisePushUps, ExercisePullUps, ExerciseDips:
		return true
	}
	return false
}

// Challenge duration bounds, in days
const (
	MinChallengeDays = 15
	MaxChallengeDays = 90
)

// User represents a registered participant
type User struct {
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Avatar       string    `json:"avatar"`
	Coin         int       `json:"coin"`
	CurrentGroup *string   `json:"current_group"`
	History      []string  `json:"history"`
	PushToken    *string   `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// InGroup reports whether the user currently references a group
func (u *User) InGroup() bool {
	return u.CurrentGroup != nil && *u.CurrentGroup != ""
}

// HasRedeemed reports whether date was already rewarded. Matching is by exact string.
func (u *User) HasRedeemed(date string) bool {
	for _, d := range u.History {
		if d == date {
			return true
		}
	}
	return false
}

// Member is one roster entry of a group
type Member struct {
	Username string `json:"username"`
	Counter  int    `json:"counter"`
}

// Group represents a time-boxed challenge group
type Group struct {
	ID            string    `json:"group_id"`
	CreatedAt     string    `json:"created_at"` // DD/MM/YYYY
	Exercise      Exercise  `json:"exercise"`
	Days          int       `json:"days"`
	StartingPoint int       `json:"starting_point"`
	Increment     int       `json:"increment"`
	Members       []Member  `json:"members"`
	InsertedAt    time.Time `json:"-"`
}

// HasMember reports whether username is on the roster
func (g *Group) HasMember(username string) bool {
	for _, m := range g.Members {
		if m.Username == username {
			return true
		}
	}
	return false
}

// AddMember puts username on the roster with a zero counter, keeping join order.
// An existing entry is reset to zero in place.
func (g *Group) AddMember(username string) {
	for i := range g.Members {
		if g.Members[i].Username == username {
			g.Members[i].Counter = 0
			return
		}
	}
	g.Members = append(g.Members, Member{Username: username})
}

// RemoveMember drops username from the roster
func (g *Group) RemoveMember(username string) {
	kept := g.Members[:0]
	for _, m := range g.Members {
		if m.Username != username {
			kept = append(kept, m)
		}
	}
	g.Members = kept
}

// Roster returns member usernames in join order
func (g *Group) Roster() []string {
	return Usernames(g.Members)
}

// Usernames lists the usernames of members, keeping their order
func Usernames(members []Member) []string {
	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.Username)
	}
	return names
}

// MemberStatus is a roster entry annotated with the member's current profile
type MemberStatus struct {
	Username string   `json:"username"`
	Avatar   string   `json:"avatar"`
	Coin     int      `json:"coin"`
	History  []string `json:"history"`
}

// GroupStatus is the caller-facing view of the caller's current group
type GroupStatus struct {
	GroupID       string         `json:"group_id"`
	Members       []MemberStatus `json:"members"`
	Exercise      Exercise       `json:"exercise"`
	DaysLeft      int            `json:"days_left"`
	StartingPoint int            `json:"starting_point"`
	Increment     int            `json:"increment"`
	Totals        int            `json:"totals"`
	History       []string       `json:"history"`
}

// Profile is the public view of a user
type Profile struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	Coin     int    `json:"coin"`
}

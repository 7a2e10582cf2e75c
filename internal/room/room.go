package room

import (
	"errors"
	"slices"
	"time"

	"github.com/planpoker/planning-poker-backend/internal/vote"
)

var ErrCapacityExceeded = errors.New("room is full")
var ErrMemberNotFound = errors.New("member not found in room")
var ErrAlreadyRevealed = errors.New("votes already revealed")
var ErrInvalidVote = errors.New("invalid vote value")
var ErrNoVotes = errors.New("no votes to reveal")

// Member is one participant inside a room.
type Member struct {
	ID       string
	Name     string
	Vote     vote.Card
	HasVoted bool
}

// Room holds one estimation session: membership, the current round's votes,
// the reveal flag and the running score carried across rounds. It is plain
// state with no locking; the session actor serializes access.
type Room struct {
	ID           string
	Title        string
	MaxMembers   int
	CreatedAt    time.Time
	UpdatedAt    time.Time
	RunningScore float64

	members   map[string]*Member
	joinOrder []string
	votes     map[string]vote.Card
	castOrder []string
	revealed  bool
}

func New(id, title string, maxMembers int) *Room {
	now := time.Now()
	return &Room{
		ID:         id,
		Title:      title,
		MaxMembers: maxMembers,
		CreatedAt:  now,
		UpdatedAt:  now,
		members:    make(map[string]*Member),
		votes:      make(map[string]vote.Card),
	}
}

func (r *Room) touch() { r.UpdatedAt = time.Now() }

func (r *Room) MemberCount() int { return len(r.members) }

func (r *Room) Revealed() bool { return r.revealed }

func (r *Room) HasMember(id string) bool {
	_, ok := r.members[id]
	return ok
}

// MemberVote returns the member's current vote, if any.
func (r *Room) MemberVote(id string) (vote.Card, bool) {
	m, ok := r.members[id]
	if !ok || !m.HasVoted {
		return "", false
	}
	return m.Vote, true
}

// AddMember inserts a new member. Adding an id that is already present is a
// success and leaves the existing member untouched, which is how a rejoin
// after a reload looks from here.
func (r *Room) AddMember(id, name string) error {
	if _, ok := r.members[id]; ok {
		return nil
	}
	if len(r.members) >= r.MaxMembers {
		return ErrCapacityExceeded
	}
	r.members[id] = &Member{ID: id, Name: name}
	r.joinOrder = append(r.joinOrder, id)
	r.touch()
	return nil
}

// Rename updates a member's display name. A rejoin may carry a new name.
func (r *Room) Rename(id, name string) {
	if m, ok := r.members[id]; ok && name != "" && m.Name != name {
		m.Name = name
	}
}

// RemoveMember drops the member and any vote it cast. Removing an absent id
// is a no-op.
func (r *Room) RemoveMember(id string) bool {
	if _, ok := r.members[id]; !ok {
		return false
	}
	delete(r.members, id)
	delete(r.votes, id)
	r.joinOrder = slices.DeleteFunc(r.joinOrder, func(s string) bool { return s == id })
	r.castOrder = slices.DeleteFunc(r.castOrder, func(s string) bool { return s == id })
	r.touch()
	return true
}

// CastVote records a vote for a member. Changing a vote before the reveal is
// allowed and keeps the member's original slot in the cast order.
func (r *Room) CastVote(id string, c vote.Card) error {
	m, ok := r.members[id]
	if !ok {
		return ErrMemberNotFound
	}
	if r.revealed {
		return ErrAlreadyRevealed
	}
	if !c.Valid() {
		return ErrInvalidVote
	}
	if _, voted := r.votes[id]; !voted {
		r.castOrder = append(r.castOrder, id)
	}
	r.votes[id] = c
	m.Vote = c
	m.HasVoted = true
	r.touch()
	return nil
}

// VoteResult is one member's row in a reveal.
type VoteResult struct {
	MemberID  string    `json:"memberId"`
	Name      string    `json:"name"`
	Vote      vote.Card `json:"vote"`
	IsHighest bool      `json:"isHighest"`
	IsLowest  bool      `json:"isLowest"`
}

// Stats is the outcome of a reveal.
type Stats struct {
	TotalVotes int          `json:"totalVotes"`
	Average    float64      `json:"average"`
	Votes      []vote.Card  `json:"votes"`
	Results    []VoteResult `json:"results"`
}

// Reveal freezes the round, computes the aggregate and records it as the
// running score. Unknown cards count toward the total but not the average;
// high/low marks are only assigned when more than one numeric vote exists,
// and every member tied at an extremum is marked.
func (r *Room) Reveal() (Stats, error) {
	if len(r.votes) == 0 {
		return Stats{}, ErrNoVotes
	}

	stats := Stats{TotalVotes: len(r.votes)}
	var numeric []float64
	for _, id := range r.castOrder {
		c := r.votes[id]
		m := r.members[id]
		stats.Votes = append(stats.Votes, c)
		stats.Results = append(stats.Results, VoteResult{MemberID: id, Name: m.Name, Vote: c})
		if w, ok := c.Weight(); ok {
			numeric = append(numeric, w)
		}
	}

	if len(numeric) > 0 {
		var sum float64
		for _, w := range numeric {
			sum += w
		}
		stats.Average = sum / float64(len(numeric))
	}

	if len(numeric) > 1 {
		max := slices.Max(numeric)
		min := slices.Min(numeric)
		for i := range stats.Results {
			if w, ok := stats.Results[i].Vote.Weight(); ok {
				stats.Results[i].IsHighest = w == max
				stats.Results[i].IsLowest = w == min
			}
		}
	}

	r.revealed = true
	r.RunningScore = stats.Average
	r.touch()
	return stats, nil
}

// ResetVotes clears the round: every vote and voted flag, plus the reveal
// flag. Members and the running score stay.
func (r *Room) ResetVotes() {
	clear(r.votes)
	r.castOrder = nil
	for _, m := range r.members {
		m.Vote = ""
		m.HasVoted = false
	}
	r.revealed = false
	r.touch()
}

// MemberView is a member as shown to clients. The vote value is withheld
// until the round is revealed.
type MemberView struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	HasVoted bool       `json:"hasVoted"`
	Vote     *vote.Card `json:"vote,omitempty"`
}

// Snapshot is an immutable client-facing view of the room.
type Snapshot struct {
	ID           string       `json:"id"`
	Title        string       `json:"title,omitempty"`
	Members      []MemberView `json:"members"`
	MaxMembers   int          `json:"maxMembers"`
	Revealed     bool         `json:"isRevealed"`
	RunningScore float64      `json:"runningScore"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

func (r *Room) memberView(m *Member) MemberView {
	v := MemberView{ID: m.ID, Name: m.Name, HasVoted: m.HasVoted}
	if r.revealed && m.HasVoted {
		card := m.Vote
		v.Vote = &card
	}
	return v
}

// MemberView returns the client-facing view of a single member.
func (r *Room) MemberView(id string) (MemberView, bool) {
	m, ok := r.members[id]
	if !ok {
		return MemberView{}, false
	}
	return r.memberView(m), true
}

// Snapshot builds a view of the whole room in join order. It shares no
// mutable state with the room.
func (r *Room) Snapshot() Snapshot {
	snap := Snapshot{
		ID:           r.ID,
		Title:        r.Title,
		Members:      make([]MemberView, 0, len(r.members)),
		MaxMembers:   r.MaxMembers,
		Revealed:     r.revealed,
		RunningScore: r.RunningScore,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	for _, id := range r.joinOrder {
		snap.Members = append(snap.Members, r.memberView(r.members[id]))
	}
	return snap
}

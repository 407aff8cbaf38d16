package raffle

import (
	"sort"
	"strconv"
)

// Participant is a registered raffle entry. The identity is the key of
// State.Participants.
type Participant struct {
	Username string `json:"username"`
	Twitter  string `json:"twitter"`
}

// Winners is the frozen result of the single draw.
type Winners struct {
	Timestamp int64    `json:"timestamp"`
	List      []string `json:"list"`
	DrawID    string   `json:"drawId,omitempty"`
}

// State is the whole persisted raffle aggregate.
type State struct {
	Participants   map[string]Participant `json:"participants"`
	TotalStarts    int64                  `json:"totalStarts"`
	LastMessageIDs map[string]int         `json:"lastMessageIds"`
	Winners        *Winners               `json:"winners"`
}

// NewState returns an empty aggregate.
func NewState() *State {
	return &State{
		Participants:   make(map[string]Participant),
		LastMessageIDs: make(map[string]int),
	}
}

// Normalize fills maps that older documents may lack.
func (s *State) Normalize() {
	if s.Participants == nil {
		s.Participants = make(map[string]Participant)
	}
	if s.LastMessageIDs == nil {
		s.LastMessageIDs = make(map[string]int)
	}
}

// Clone creates a deep copy of the state
func (s *State) Clone() State {
	clone := State{
		Participants:   make(map[string]Participant, len(s.Participants)),
		TotalStarts:    s.TotalStarts,
		LastMessageIDs: make(map[string]int, len(s.LastMessageIDs)),
	}
	for id, p := range s.Participants {
		clone.Participants[id] = p
	}
	for id, msgID := range s.LastMessageIDs {
		clone.LastMessageIDs[id] = msgID
	}
	if s.Winners != nil {
		w := *s.Winners
		w.List = append([]string(nil), s.Winners.List...)
		clone.Winners = &w
	}
	return clone
}

// Identities returns participant identities in a stable order: numeric
// identities ascending, then any non-numeric ones lexicographically.
func (s *State) Identities() []string {
	ids := make([]string, 0, len(s.Participants))
	for id := range s.Participants {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return identityLess(ids[i], ids[j])
	})
	return ids
}

// OrderedParticipants returns participants in Identities order.
func (s *State) OrderedParticipants() []Participant {
	ids := s.Identities()
	out := make([]Participant, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.Participants[id])
	}
	return out
}

func identityLess(a, b string) bool {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}

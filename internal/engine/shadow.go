package engine

import "github.com/duskcourt/onuw/internal/roles"

// ShadowTable implements roles.Shadow: the mapping of Doppelganger seats
// to the role they copied at wake order 1. Populated during night order 1
// and read through resolution.
type ShadowTable struct {
	copied map[roles.SeatIndex]roles.Role
}

// NewShadowTable builds an empty shadow table.
func NewShadowTable() *ShadowTable {
	return &ShadowTable{copied: map[roles.SeatIndex]roles.Role{}}
}

func (s *ShadowTable) Record(seat roles.SeatIndex, copiedRole roles.Role) {
	s.copied[seat] = copiedRole
}

func (s *ShadowTable) CopiedRole(seat roles.SeatIndex) (roles.Role, bool) {
	r, ok := s.copied[seat]
	return r, ok
}

func (s *ShadowTable) SeatsThatCopied(role roles.Role) []roles.SeatIndex {
	var out []roles.SeatIndex
	for seat, r := range s.copied {
		if r == role {
			out = append(out, seat)
		}
	}
	return out
}

// Seats returns every seat recorded in the shadow table.
func (s *ShadowTable) Seats() []roles.SeatIndex {
	out := make([]roles.SeatIndex, 0, len(s.copied))
	for seat := range s.copied {
		out = append(out, seat)
	}
	return out
}

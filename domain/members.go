package domain

import (
	"strings"

	"github.com/google/uuid"
)

// memberPalette provides stable display colors, assigned round-robin at
// member creation and kept for the member's lifetime.
var memberPalette = []string{
	"#2563eb", // blue
	"#16a34a", // green
	"#9333ea", // purple
	"#d97706", // amber
	"#dc2626", // red
	"#0891b2", // cyan
}

// Members returns a copy of the current member set.
func (b *Board) Members() []Member {
	return append([]Member(nil), b.members...)
}

// UpsertMember adds a new member or updates an existing one by id. New
// members get a generated id, a palette color and, when omitted, initials
// and an email derived from the display name. Initials must be unique among
// current members; codes of removed members may be reused.
func (b *Board) UpsertMember(m Member) (Member, error) {
	if strings.TrimSpace(m.Name) == "" {
		return Member{}, validationErr("name", "must not be empty")
	}
	if m.Initials == "" {
		m.Initials = deriveInitials(m.Name)
	}
	if m.Email == "" {
		m.Email = deriveEmail(m.Name)
	}
	for i := range b.members {
		if m.ID != "" && b.members[i].ID == m.ID {
			continue
		}
		if b.members[i].Initials == m.Initials {
			return Member{}, validationErr("initials", "already in use by "+b.members[i].Name)
		}
	}
	if m.ID != "" {
		for i := range b.members {
			if b.members[i].ID == m.ID {
				if m.Color == "" {
					m.Color = b.members[i].Color
				}
				b.members[i] = m
				return m, nil
			}
		}
		return Member{}, ErrMemberNotFound
	}
	m.ID = uuid.NewString()
	if m.Color == "" {
		m.Color = memberPalette[len(b.members)%len(memberPalette)]
	}
	b.members = append(b.members, m)
	return m, nil
}

// RemoveMember deletes the member with the given id. Tasks assigned to the
// member keep their now-dangling assignee code; reports group those under
// an unassigned/unknown bucket instead of failing.
func (b *Board) RemoveMember(id string) error {
	for i := range b.members {
		if b.members[i].ID == id {
			b.members = append(b.members[:i], b.members[i+1:]...)
			return nil
		}
	}
	return ErrMemberNotFound
}

func deriveInitials(name string) string {
	var sb strings.Builder
	for _, part := range strings.Fields(name) {
		r := []rune(part)
		sb.WriteString(strings.ToUpper(string(r[0])))
	}
	return sb.String()
}

func deriveEmail(name string) string {
	slug := strings.ToLower(strings.Join(strings.Fields(name), "."))
	return slug + "@team.local"
}

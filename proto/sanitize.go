package proto

import (
	"html"
	"strings"
)

const (
	maxIDLen    = 32
	maxNameLen  = 20
	maxColorLen = 7

	DefaultName  = "Player"
	DefaultColor = "#ffffff"
	// spawn height for a join that carries no position
	DefaultSpawnY = 5
)

func keep(s string, allowed func(r rune) bool, max int) string {
	var b strings.Builder
	n := 0
	for _, r := range s {
		if n == max {
			break
		}
		if allowed(r) {
			b.WriteRune(r)
			n++
		}
	}
	return b.String()
}

func truncate(s string, max int) string {
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

func isIDRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == '-'
}

func isColorRune(r rune) bool {
	return r == '#' || r >= 'a' && r <= 'f' || r >= 'A' && r <= 'F' || r >= '0' && r <= '9'
}

// SanitizeID keeps [a-zA-Z0-9_-] and at most 32 characters.
func SanitizeID(id string) string {
	return keep(id, isIDRune, maxIDLen)
}

func SanitizeName(name *string) string {
	if name == nil {
		return DefaultName
	}
	return truncate(html.EscapeString(*name), maxNameLen)
}

func SanitizeColor(color *string) string {
	if color == nil {
		return DefaultColor
	}
	return keep(*color, isColorRune, maxColorLen)
}

// Player builds the sanitized player a join announces.
func (r *JoinRequest) Player() Player {
	return Player{
		ID:    SanitizeID(r.ID),
		Name:  SanitizeName(r.Name),
		Color: SanitizeColor(r.Color),
		X:     numberOr(r.X, 0),
		Y:     numberOr(r.Y, DefaultSpawnY),
		Z:     numberOr(r.Z, 0),
		Yaw:   numberOr(r.Yaw, 0),
	}
}

func (r *UpdatePlayerRequest) Player() Player {
	return Player{
		ID:    SanitizeID(r.ID),
		Name:  SanitizeName(r.Name),
		Color: SanitizeColor(r.Color),
		X:     numberOr(r.X, 0),
		Y:     numberOr(r.Y, 0),
		Z:     numberOr(r.Z, 0),
		Yaw:   numberOr(r.Yaw, 0),
	}
}

// Apply moves p to the position carried by r. Absent fields keep their value.
func (r *MoveRequest) Apply(p Player) Player {
	p.X = numberOr(r.X, p.X)
	p.Y = numberOr(r.Y, p.Y)
	p.Z = numberOr(r.Z, p.Z)
	p.Yaw = numberOr(r.Yaw, p.Yaw)
	return p
}

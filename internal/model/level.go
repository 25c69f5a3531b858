package model

import (
	"strconv"
	"strings"
)

// Level 考试级别 (1..3)
type Level int

const (
	Level1 Level = 1
	Level2 Level = 2
	Level3 Level = 3
)

func (l Level) Valid() bool {
	return l >= Level1 && l <= Level3
}

func (l Level) Title() string {
	return "Level " + strconv.Itoa(int(l))
}

// ParseLevel accepts "1", "2" or "3" with surrounding whitespace.
func ParseLevel(raw string) (Level, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	l := Level(n)
	if !l.Valid() {
		return 0, false
	}
	return l, true
}

package utils

import (
	"strconv"
	"strings"
)

// StringToInt converts string to int, returns 0 if error
func StringToInt(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return i
}

// ParseID parses a positive numeric id. It returns 0 for anything else.
func ParseID(s string) uint {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}

// ParseIDList parses "1,2,3" into ids, skipping blanks and invalid entries.
func ParseIDList(s string) []uint {
	var ids []uint
	for _, part := range strings.Split(s, ",") {
		if id := ParseID(part); id != 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

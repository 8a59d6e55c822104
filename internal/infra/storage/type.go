package storage

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AppUser es una cuenta de la app (login con Discord).
type AppUser struct {
	DiscordID       string
	Name            string
	Admin           bool
	LastGuildSyncAt *time.Time
	CreatedAt       time.Time
}

// los colores se guardan como "#RRGGBB"
func colorHex(rgb int) string {
	return fmt.Sprintf("#%06X", rgb&0xFFFFFF)
}

func parseColorHex(s string) int {
	v, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 16, 32)
	if err != nil {
		return 0
	}
	return int(v)
}

func nullableString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

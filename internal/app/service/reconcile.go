package service

import "github.com/jose-valero/timerboard-bot/internal/domain"

// Diff compara lo guardado (local) con lo que reporta Discord (current).
// toDelete son los ids locales ausentes en current; toUpsert es current sin
// duplicados (si un id se repite, gana la última aparición).
func Diff[T any](local, current []T, key func(T) string) (toDelete []string, toUpsert []T) {
	seen := make(map[string]int, len(current))
	for _, it := range current {
		k := key(it)
		if i, ok := seen[k]; ok {
			toUpsert[i] = it
			continue
		}
		seen[k] = len(toUpsert)
		toUpsert = append(toUpsert, it)
	}
	for _, it := range local {
		if _, ok := seen[key(it)]; !ok {
			toDelete = append(toDelete, key(it))
		}
	}
	return toDelete, toUpsert
}

func roleKey(r domain.Role) string       { return r.RoleID }
func channelKey(c domain.Channel) string { return c.ChannelID }
func memberKey(m domain.Member) string   { return m.UserID }

func textChannels(in []domain.Channel) []domain.Channel {
	out := make([]domain.Channel, 0, len(in))
	for _, ch := range in {
		if ch.IsText() {
			out = append(out, ch)
		}
	}
	return out
}

func dedupeMembers(in []domain.Member) []domain.Member {
	_, out := Diff(nil, in, memberKey)
	return out
}

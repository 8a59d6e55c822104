package service

import (
	"context"
	"iter"

	"github.com/jose-valero/timerboard-bot/internal/domain"
)

// MaxMemberPage es el máximo que acepta Discord por request.
const MaxMemberPage = 1000

// MemberPages recorre los miembros del guild de a pageSize siguiendo el cursor
// de cada página. Termina cuando no hay cursor; un error corta la secuencia.
func MemberPages(ctx context.Context, gw DiscordGateway, guildID string, pageSize int) iter.Seq2[[]domain.Member, error] {
	if pageSize <= 0 || pageSize > MaxMemberPage {
		pageSize = MaxMemberPage
	}
	return func(yield func([]domain.Member, error) bool) {
		after := ""
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			page, err := gw.GetMembers(ctx, guildID, pageSize, after)
			if err != nil {
				yield(nil, err)
				return
			}
			if len(page.Members) > 0 && !yield(page.Members, nil) {
				return
			}
			if page.Next == "" || page.Next == after {
				return
			}
			after = page.Next
		}
	}
}

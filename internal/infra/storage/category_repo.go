package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jose-valero/timerboard-bot/internal/domain"
)

type CategoryRepo struct{ db *sql.DB }

func NewCategoryRepo(db *sql.DB) *CategoryRepo { return &CategoryRepo{db: db} }

// GetDetails carga la categoría con ping format, roles y canales.
func (r *CategoryRepo) GetDetails(ctx context.Context, id int64) (domain.CategoryDetails, error) {
	var (
		d        domain.CategoryDetails
		pfID     sql.NullInt64
		reminder sql.NullInt64
		pfGuild  sql.NullString
		pfName   sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
SELECT c.id, c.guild_id, c.name, c.ping_format_id, c.ping_reminder_seconds,
       pf.guild_id, pf.name
  FROM fleet_categories c
  LEFT JOIN ping_formats pf ON pf.id = c.ping_format_id
 WHERE c.id = $1
`, id).Scan(&d.Category.ID, &d.Category.GuildID, &d.Category.Name, &pfID, &reminder, &pfGuild, &pfName)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CategoryDetails{}, ErrNotFound
	}
	if err != nil {
		return domain.CategoryDetails{}, err
	}
	if pfID.Valid {
		d.Category.PingFormatID = &pfID.Int64
		if pfName.Valid {
			d.PingFormat = &domain.PingFormat{ID: pfID.Int64, GuildID: pfGuild.String, Name: pfName.String}
		}
	}
	if reminder.Valid {
		dur := time.Duration(reminder.Int64) * time.Second
		d.Category.PingReminder = &dur
	}

	if d.AccessRoles, err = r.accessRoles(ctx, id); err != nil {
		return domain.CategoryDetails{}, err
	}
	if d.PingRoles, err = r.pingRoles(ctx, id); err != nil {
		return domain.CategoryDetails{}, err
	}
	if d.Channels, err = r.channels(ctx, id); err != nil {
		return domain.CategoryDetails{}, err
	}
	return d, nil
}

func (r *CategoryRepo) accessRoles(ctx context.Context, id int64) ([]domain.CategoryAccessRole, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT gr.role_id, gr.guild_id, gr.name, gr.color, gr.position,
       ar.can_view, ar.can_create, ar.can_manage
  FROM fleet_category_access_roles ar
  JOIN discord_guild_roles gr ON gr.role_id = ar.role_id
 WHERE ar.category_id = $1
 ORDER BY gr.position DESC, gr.role_id
`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CategoryAccessRole
	for rows.Next() {
		var (
			ar    domain.CategoryAccessRole
			color string
		)
		if err := rows.Scan(&ar.Role.RoleID, &ar.Role.GuildID, &ar.Role.Name, &color, &ar.Role.Position,
			&ar.CanView, &ar.CanCreate, &ar.CanManage); err != nil {
			return nil, err
		}
		ar.Role.Color = parseColorHex(color)
		out = append(out, ar)
	}
	return out, rows.Err()
}

func (r *CategoryRepo) pingRoles(ctx context.Context, id int64) ([]domain.Role, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT gr.role_id, gr.guild_id, gr.name, gr.color, gr.position
  FROM fleet_category_ping_roles pr
  JOIN discord_guild_roles gr ON gr.role_id = pr.role_id
 WHERE pr.category_id = $1
 ORDER BY gr.position DESC, gr.role_id
`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Role
	for rows.Next() {
		var (
			ro    domain.Role
			color string
		)
		if err := rows.Scan(&ro.RoleID, &ro.GuildID, &ro.Name, &color, &ro.Position); err != nil {
			return nil, err
		}
		ro.Color = parseColorHex(color)
		out = append(out, ro)
	}
	return out, rows.Err()
}

func (r *CategoryRepo) channels(ctx context.Context, id int64) ([]domain.Channel, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT ch.channel_id, ch.guild_id, ch.name, ch.position
  FROM fleet_category_channels cc
  JOIN discord_guild_channels ch ON ch.channel_id = cc.channel_id
 WHERE cc.category_id = $1
 ORDER BY ch.position, ch.channel_id
`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Channel
	for rows.Next() {
		ch := domain.Channel{Kind: domain.ChannelKindText}
		if err := rows.Scan(&ch.ChannelID, &ch.GuildID, &ch.Name, &ch.Position); err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

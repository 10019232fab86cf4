package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/gosimple/slug"
	apperrors "github.com/louisbranch/oilandrope/internal/platform/errors"
	"github.com/louisbranch/oilandrope/internal/platform/i18n/catalog"
	"github.com/louisbranch/oilandrope/internal/platform/pagination"
	"github.com/louisbranch/oilandrope/internal/services/roleplay/campaign"
	"github.com/louisbranch/oilandrope/internal/services/roleplay/dice"
	"github.com/louisbranch/oilandrope/internal/services/roleplay/place"
	"github.com/louisbranch/oilandrope/internal/storage"
)

// maxListedWorlds bounds the worlds sent in one direct message.
const maxListedWorlds = 100

func rollCommand(ctx context.Context, b *Bot, call commandCall) error {
	expression := strings.Join(call.args, "")
	seed, err := b.seed()
	if err != nil {
		return fmt.Errorf("roll seed: %w", err)
	}
	roll, err := dice.NewRoller(seed).Roll(expression)
	b.metrics.DiceRolled("bot", err == nil)
	if err != nil {
		return b.reply(ctx, call, Reply{Content: apperrors.UserMessage(err, call.locale)})
	}
	return b.reply(ctx, call, Reply{Embed: &Embed{
		Title:       catalog.Sprintf(call.locale, "bot.roll.title", roll.Expression),
		Description: catalog.Sprintf(call.locale, "bot.roll.description", roll.Total),
		Footer:      roll.Footer(),
		Color:       embedColor,
	}})
}

func linkChannelCommand(ctx context.Context, b *Bot, call commandCall) error {
	if len(call.args) == 0 {
		return b.reply(ctx, call, Reply{Content: catalog.Sprintf(call.locale, "bot.linkchannel.campaign_required")})
	}
	author := call.msg.Author
	if !author.Linked() {
		return b.reply(ctx, call, Reply{Content: catalog.Sprintf(call.locale, "bot.register", b.cfg.SiteURL)})
	}
	name := strings.Join(call.args, " ")
	target, found, err := b.findCampaign(ctx, author.UserID, slug.Make(name))
	if err != nil {
		return err
	}
	if !found {
		return b.reply(ctx, call, Reply{Content: catalog.Sprintf(call.locale, "bot.linkchannel.not_found", name)})
	}

	allowed := target.OwnerID == author.UserID
	if !allowed {
		player, err := b.store.GetPlayer(ctx, target.ID, author.UserID)
		switch {
		case err == nil:
			allowed = player.IsGameMaster
		case !errors.Is(err, storage.ErrNotFound):
			return err
		}
	}
	if !allowed {
		return b.reply(ctx, call, Reply{Content: catalog.Sprintf(call.locale, "bot.linkchannel.not_game_master", target.Name)})
	}

	target.DiscordChannelID = call.msg.ChannelID
	target.UpdatedAt = b.clock().UTC()
	if err := b.store.UpdateCampaign(ctx, target); err != nil {
		return err
	}
	log.Printf("bot: linked channel %s to campaign %s", call.msg.ChannelID, target.ID)
	return b.reply(ctx, call, Reply{Content: catalog.Sprintf(call.locale, "bot.linkchannel.linked", target.Name)})
}

// findCampaign scans the campaigns visible to userID for one whose slug
// matches.
func (b *Bot) findCampaign(ctx context.Context, userID, wanted string) (campaign.Campaign, bool, error) {
	if wanted == "" {
		return campaign.Campaign{}, false, nil
	}
	request := pagination.Request{PageSize: pagination.DefaultPageSize.Max}
	for {
		page, err := b.store.ListCampaigns(ctx, storage.CampaignQuery{VisibleTo: userID}, request)
		if err != nil {
			return campaign.Campaign{}, false, err
		}
		for _, c := range page.Results {
			if c.Slug() == wanted {
				return c, true, nil
			}
		}
		if page.NextPageToken == "" {
			return campaign.Campaign{}, false, nil
		}
		request.PageToken = page.NextPageToken
	}
}

func worldsCommand(ctx context.Context, b *Bot, call commandCall) error {
	action, scope := "list", "private"
	if len(call.args) > 0 {
		action = strings.ToLower(call.args[0])
	}
	if len(call.args) > 1 {
		scope = strings.ToLower(call.args[1])
	}
	if action != "list" {
		return b.reply(ctx, call, Reply{Content: catalog.Sprintf(call.locale, "bot.worlds.unknown_action", action, "list")})
	}

	world := place.SiteWorld
	query := storage.PlaceQuery{SiteType: &world}
	titleKey := "bot.worlds.private"
	switch scope {
	case "public":
		query.Scope = storage.PlaceScopeCommunity
		titleKey = "bot.worlds.public"
	case "private":
		if !call.msg.Author.Linked() {
			return b.reply(ctx, call, Reply{Content: catalog.Sprintf(call.locale, "bot.register", b.cfg.SiteURL)})
		}
		query.Scope = storage.PlaceScopeUser
		query.UserID = call.msg.Author.UserID
	default:
		return b.reply(ctx, call, Reply{Content: catalog.Sprintf(call.locale, "bot.worlds.unknown_action", scope, "public, private")})
	}

	worlds, err := b.listWorlds(ctx, query)
	if err != nil {
		return err
	}
	description := catalog.Sprintf(call.locale, "bot.worlds.none")
	if len(worlds) > 0 {
		lines := make([]string, len(worlds))
		for i, w := range worlds {
			lines[i] = "• " + w.Name
		}
		description = strings.Join(lines, "\n")
	}
	dm := Reply{Embed: &Embed{
		Title:       catalog.Sprintf(call.locale, titleKey),
		Description: description,
		Color:       embedColor,
	}}
	if err := b.messenger.DirectMessage(ctx, call.msg.Author.ID, dm); err != nil {
		return err
	}
	if call.msg.ServerID == "" {
		return nil
	}
	return b.reply(ctx, call, Reply{Content: catalog.Sprintf(call.locale, "bot.worlds.sent")})
}

func (b *Bot) listWorlds(ctx context.Context, query storage.PlaceQuery) ([]place.Place, error) {
	var worlds []place.Place
	request := pagination.Request{PageSize: pagination.DefaultPageSize.Default}
	for len(worlds) < maxListedWorlds {
		page, err := b.store.ListPlaces(ctx, query, request)
		if err != nil {
			return nil, err
		}
		worlds = append(worlds, page.Results...)
		if page.NextPageToken == "" {
			break
		}
		request.PageToken = page.NextPageToken
	}
	if len(worlds) > maxListedWorlds {
		worlds = worlds[:maxListedWorlds]
	}
	return worlds, nil
}

func shutdownCommand(ctx context.Context, b *Bot, call commandCall) error {
	if !b.isOwner(call.msg.Author.ID) {
		return b.reply(ctx, call, Reply{Content: catalog.Sprintf(call.locale, "bot.no_permission")})
	}
	log.Printf("bot: shutting down %s on request of %s", b.cfg.Name, call.msg.Author)
	err := b.reply(ctx, call, Reply{Content: catalog.Sprintf(call.locale, "bot.shutdown")})
	b.shutdown()
	return err
}

func helpCommand(ctx context.Context, b *Bot, call commandCall) error {
	prefix := b.cfg.CommandPrefix
	line := func(name, key string, args ...any) string {
		return fmt.Sprintf("`%s%s` %s", prefix, name, catalog.Sprintf(call.locale, key, args...))
	}
	roleplay := strings.Join([]string{
		line("roll", "bot.help.roll", prefix),
		line("linkchannel", "bot.help.linkchannel"),
		line("worlds", "bot.help.worlds", prefix),
	}, "\n")
	misc := strings.Join([]string{
		line("shutdown", "bot.help.shutdown"),
		line("help", "bot.help.help"),
	}, "\n")
	return b.reply(ctx, call, Reply{Embed: &Embed{
		Title:       catalog.Sprintf(call.locale, "bot.help.title"),
		Description: b.cfg.Description,
		Color:       embedColor,
		Fields: []EmbedField{
			{Name: catalog.Sprintf(call.locale, "bot.help.roleplay"), Value: roleplay},
			{Name: catalog.Sprintf(call.locale, "bot.help.misc"), Value: misc},
		},
	}})
}

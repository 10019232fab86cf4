package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	apperrors "github.com/louisbranch/oilandrope/internal/platform/errors"
	"github.com/louisbranch/oilandrope/internal/services/bot/discord"
)

const cdnBase = "https://cdn.discordapp.com"

// gateway sends replies through a discordgo session.
type gateway struct {
	session *discordgo.Session
}

func (g *gateway) Send(ctx context.Context, channelID string, reply Reply) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if reply.Embed != nil {
		if _, err := g.session.ChannelMessageSendEmbed(channelID, toMessageEmbed(reply.Embed), discordgo.WithContext(ctx)); err != nil {
			return discordError(http.MethodPost, "/channels/"+channelID+"/messages", err)
		}
	}
	if reply.Content != "" {
		if _, err := g.session.ChannelMessageSend(channelID, reply.Content, discordgo.WithContext(ctx)); err != nil {
			return discordError(http.MethodPost, "/channels/"+channelID+"/messages", err)
		}
	}
	return nil
}

func (g *gateway) DirectMessage(ctx context.Context, userID string, reply Reply) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	channel, err := g.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return discordError(http.MethodPost, "/users/@me/channels", err)
	}
	return g.Send(ctx, channel.ID, reply)
}

func toMessageEmbed(e *Embed) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	if e.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	for _, f := range e.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return embed
}

// discordError maps REST failures to DiscordAPIError so they render with
// the localized catalogs.
func discordError(method, endpoint string, err error) error {
	if err == nil {
		return nil
	}
	apiErr := &apperrors.DiscordAPIError{Method: method, Endpoint: endpoint, Cause: err}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		if restErr.Response != nil {
			apiErr.StatusCode = restErr.Response.StatusCode
		}
		if restErr.Message != nil {
			apiErr.DiscordCode = restErr.Message.Code
			apiErr.Message = restErr.Message.Message
		}
	} else {
		apiErr.Message = err.Error()
	}
	return apiErr.AsDomain()
}

func messageFromEvent(m *discordgo.MessageCreate) (Message, bool) {
	if m == nil || m.Message == nil || m.Author == nil {
		return Message{}, false
	}
	return Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		ServerID:  m.GuildID,
		Content:   m.Content,
		Author:    userFromDiscord(m.Author),
		AuthorBot: m.Author.Bot,
	}, true
}

func userFromDiscord(u *discordgo.User) discord.User {
	code, _ := strconv.Atoi(u.Discriminator)
	out := discord.User{
		ID:      u.ID,
		Nick:    u.Username,
		Code:    code,
		Locale:  u.Locale,
		Premium: u.PremiumType != 0,
	}
	if u.Avatar != "" {
		out.AvatarURL = fmt.Sprintf("%s/avatars/%s/%s.png", cdnBase, u.ID, u.Avatar)
	}
	return out
}

func guildFromEvent(g *discordgo.GuildCreate) (Guild, bool) {
	if g == nil || g.Guild == nil || g.ID == "" {
		return Guild{}, false
	}
	server := discord.Server{
		ID:          g.ID,
		Name:        g.Name,
		Region:      g.Region,
		OwnerID:     g.OwnerID,
		Description: g.Description,
		MemberCount: g.MemberCount,
	}
	if g.Icon != "" {
		server.IconURL = fmt.Sprintf("%s/icons/%s/%s.png", cdnBase, g.ID, g.Icon)
	}
	guild := Guild{Server: server, SystemChannelID: g.SystemChannelID}
	for _, c := range g.Channels {
		channel, ok := channelFromDiscord(c)
		if ok {
			guild.Channels = append(guild.Channels, channel)
		}
	}
	return guild, true
}

// channelFromDiscord keeps text, news and voice channels.
func channelFromDiscord(c *discordgo.Channel) (discord.Channel, bool) {
	if c == nil {
		return discord.Channel{}, false
	}
	channel := discord.Channel{
		ID:       c.ID,
		ServerID: c.GuildID,
		Name:     strings.TrimSpace(c.Name),
		Position: c.Position,
		NSFW:     c.NSFW,
		Topic:    c.Topic,
		Bitrate:  c.Bitrate,
	}
	switch c.Type {
	case discordgo.ChannelTypeGuildText:
		channel.Kind = discord.ChannelText
	case discordgo.ChannelTypeGuildNews:
		channel.Kind = discord.ChannelText
		channel.News = true
	case discordgo.ChannelTypeGuildVoice:
		channel.Kind = discord.ChannelVoice
	default:
		return discord.Channel{}, false
	}
	return channel, true
}

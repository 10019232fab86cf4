package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/oilandrope/internal/services/registration/user"
	"github.com/louisbranch/oilandrope/internal/services/roleplay/campaign"
	"github.com/louisbranch/oilandrope/internal/services/roleplay/place"
	"github.com/louisbranch/oilandrope/internal/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// CampaignStore reads a campaign with its table and schedule.
type CampaignStore interface {
	GetCampaign(ctx context.Context, campaignID string) (campaign.Campaign, error)
	GetPlace(ctx context.Context, placeID string) (place.Place, error)
	GetUser(ctx context.Context, userID string) (user.User, error)
	ListPlayers(ctx context.Context, campaignID string) ([]campaign.Player, error)
	ListCampaignSessions(ctx context.Context, campaignID string) ([]campaign.Session, error)
}

// DescribeCampaignInput represents the MCP tool input for a campaign summary.
type DescribeCampaignInput struct {
	CampaignID string `json:"campaign_id" jsonschema:"campaign identifier"`
}

// CampaignWorld names the world a campaign is set in.
type CampaignWorld struct {
	ID   string `json:"id" jsonschema:"world identifier"`
	Name string `json:"name" jsonschema:"world name"`
}

// CampaignMember is a player at the table.
type CampaignMember struct {
	ID       string `json:"id" jsonschema:"user identifier"`
	Username string `json:"username" jsonschema:"login name"`
	Name     string `json:"name,omitempty" jsonschema:"full name when set"`
}

// UpcomingSession is the next scheduled game.
type UpcomingSession struct {
	ID       string `json:"id" jsonschema:"session identifier"`
	Name     string `json:"name" jsonschema:"session name"`
	NextGame string `json:"next_game" jsonschema:"scheduled start (RFC 3339)"`
}

// DescribeCampaignResult represents the MCP tool output for a campaign summary.
type DescribeCampaignResult struct {
	ID              string           `json:"id" jsonschema:"campaign identifier"`
	Name            string           `json:"name" jsonschema:"campaign name"`
	Summary         string           `json:"summary,omitempty" jsonschema:"short campaign summary"`
	System          string           `json:"system" jsonschema:"ruleset the campaign is played with"`
	IsPublic        bool             `json:"is_public" jsonschema:"whether anyone can see the campaign"`
	World           *CampaignWorld   `json:"world,omitempty" jsonschema:"world the campaign is set in"`
	GameMasters     []CampaignMember `json:"game_masters" jsonschema:"players running the game"`
	Players         []CampaignMember `json:"players" jsonschema:"players who are not game masters"`
	UpcomingSession *UpcomingSession `json:"upcoming_session,omitempty" jsonschema:"next session that has not happened yet"`
}

// DescribeCampaignTool defines the MCP tool schema for a campaign summary.
func DescribeCampaignTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "describe_campaign",
		Description: "Describes a campaign: world, game masters, players and the next session",
	}
}

// DescribeCampaignHandler summarizes a campaign.
func DescribeCampaignHandler(store CampaignStore, now func() time.Time) mcp.ToolHandlerFor[DescribeCampaignInput, DescribeCampaignResult] {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DescribeCampaignInput) (*mcp.CallToolResult, DescribeCampaignResult, error) {
		campaignID := strings.TrimSpace(input.CampaignID)
		if campaignID == "" {
			return nil, DescribeCampaignResult{}, fmt.Errorf("campaign_id is required")
		}

		c, err := store.GetCampaign(ctx, campaignID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, DescribeCampaignResult{}, fmt.Errorf("campaign %q not found", campaignID)
		}
		if err != nil {
			return nil, DescribeCampaignResult{}, fmt.Errorf("get campaign: %w", err)
		}

		result := DescribeCampaignResult{
			ID:          c.ID,
			Name:        c.Name,
			Summary:     c.Resume,
			System:      c.System.String(),
			IsPublic:    c.IsPublic,
			GameMasters: []CampaignMember{},
			Players:     []CampaignMember{},
		}

		if c.PlaceID != "" {
			world, err := store.GetPlace(ctx, c.PlaceID)
			switch {
			case err == nil:
				result.World = &CampaignWorld{ID: world.ID, Name: world.Name}
			case !errors.Is(err, storage.ErrNotFound):
				return nil, DescribeCampaignResult{}, fmt.Errorf("get world: %w", err)
			}
		}

		players, err := store.ListPlayers(ctx, c.ID)
		if err != nil {
			return nil, DescribeCampaignResult{}, fmt.Errorf("list players: %w", err)
		}
		for _, p := range players {
			u, err := store.GetUser(ctx, p.UserID)
			if err != nil {
				return nil, DescribeCampaignResult{}, fmt.Errorf("get player %s: %w", p.UserID, err)
			}
			member := CampaignMember{
				ID:       u.ID,
				Username: u.Username,
				Name:     strings.TrimSpace(u.FirstName + " " + u.LastName),
			}
			if p.IsGameMaster {
				result.GameMasters = append(result.GameMasters, member)
			} else {
				result.Players = append(result.Players, member)
			}
		}

		sessions, err := store.ListCampaignSessions(ctx, c.ID)
		if err != nil {
			return nil, DescribeCampaignResult{}, fmt.Errorf("list sessions: %w", err)
		}
		current := now()
		for _, s := range sessions {
			if s.NextGame == nil || s.Finished(current) {
				continue
			}
			result.UpcomingSession = &UpcomingSession{
				ID:       s.ID,
				Name:     s.Name,
				NextGame: s.NextGame.UTC().Format(time.RFC3339),
			}
			break
		}
		return nil, result, nil
	}
}

package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/oilandrope/internal/platform/pagination"
	"github.com/louisbranch/oilandrope/internal/services/roleplay/place"
	"github.com/louisbranch/oilandrope/internal/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// WorldStore lists places.
type WorldStore interface {
	ListPlaces(ctx context.Context, query storage.PlaceQuery, page pagination.Request) (pagination.Page[place.Place], error)
}

// ListWorldsInput represents the MCP tool input for listing worlds.
type ListWorldsInput struct {
	OwnerID   string `json:"owner_id,omitempty" jsonschema:"list the worlds owned by this user instead of community worlds"`
	PageSize  int    `json:"page_size,omitempty" jsonschema:"maximum worlds to return (default 50, max 200)"`
	PageToken string `json:"page_token,omitempty" jsonschema:"token from a previous call"`
}

// World summarizes a world place.
type World struct {
	ID          string `json:"id" jsonschema:"world identifier"`
	Name        string `json:"name" jsonschema:"world name"`
	Description string `json:"description,omitempty" jsonschema:"world description"`
	OwnerID     string `json:"owner_id,omitempty" jsonschema:"user who created the world"`
	Community   bool   `json:"community" jsonschema:"whether the world is visible to everyone"`
}

// ListWorldsResult represents the MCP tool output for listing worlds.
type ListWorldsResult struct {
	Worlds        []World `json:"worlds" jsonschema:"worlds ordered by id"`
	NextPageToken string  `json:"next_page_token,omitempty" jsonschema:"token for the next page, empty on the last one"`
}

// ListWorldsTool defines the MCP tool schema for listing worlds.
func ListWorldsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_worlds",
		Description: "Lists community worlds, or the worlds owned by a user",
	}
}

// ListWorldsHandler lists world places.
func ListWorldsHandler(store WorldStore) mcp.ToolHandlerFor[ListWorldsInput, ListWorldsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ListWorldsInput) (*mcp.CallToolResult, ListWorldsResult, error) {
		siteType := place.SiteWorld
		query := storage.PlaceQuery{Scope: storage.PlaceScopeCommunity, SiteType: &siteType}
		if ownerID := strings.TrimSpace(input.OwnerID); ownerID != "" {
			query.Scope = storage.PlaceScopeOwned
			query.UserID = ownerID
		}

		page, err := store.ListPlaces(ctx, query, pagination.Request{
			PageSize:  pagination.ClampPageSize(int32(input.PageSize), pagination.DefaultPageSize),
			PageToken: input.PageToken,
		})
		if err != nil {
			return nil, ListWorldsResult{}, fmt.Errorf("list worlds: %w", err)
		}

		result := ListWorldsResult{
			Worlds:        make([]World, 0, len(page.Results)),
			NextPageToken: page.NextPageToken,
		}
		for _, p := range page.Results {
			result.Worlds = append(result.Worlds, World{
				ID:          p.ID,
				Name:        p.Name,
				Description: p.Description,
				OwnerID:     p.OwnerID,
				Community:   p.IsCommunity(),
			})
		}
		return nil, result, nil
	}
}

package domain

import (
	"context"
	"fmt"

	"github.com/louisbranch/oilandrope/internal/services/roleplay/dice"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RollDiceInput represents the MCP tool input for a dice roll.
type RollDiceInput struct {
	Roll string `json:"roll" jsonschema:"dice expression such as 1d20+2d4-1"`
	Seed *int64 `json:"seed,omitempty" jsonschema:"optional seed for a reproducible roll"`
}

// RollDiceTerm is one evaluated term of the expression.
type RollDiceTerm struct {
	Term  string `json:"term" jsonschema:"term as typed, sign included"`
	Kind  string `json:"kind" jsonschema:"dice or number"`
	Count int    `json:"count,omitempty" jsonschema:"number of dice rolled"`
	Faces int    `json:"faces,omitempty" jsonschema:"faces per die"`
	Rolls []int  `json:"rolls" jsonschema:"value of each die, or the flat number"`
	Value int    `json:"value" jsonschema:"signed contribution to the total"`
}

// RollDiceResult represents the MCP tool output for a dice roll.
type RollDiceResult struct {
	Roll  string         `json:"roll" jsonschema:"normalized expression"`
	Total int            `json:"total" jsonschema:"sum of all terms"`
	Terms []RollDiceTerm `json:"terms" jsonschema:"terms in input order"`
	Seed  int64          `json:"seed" jsonschema:"seed used by the server"`
}

// DiceRecorder counts dice evaluations.
type DiceRecorder interface {
	DiceRolled(surface string, ok bool)
}

// RollDiceTool defines the MCP tool schema for rolling dice.
func RollDiceTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "roll_dice",
		Description: "Rolls a dice expression like 2d6+1 and reports each term",
	}
}

// RollDiceHandler evaluates a dice expression. resolveSeed returns the pinned
// seed when one is given and a fresh one otherwise.
func RollDiceHandler(resolveSeed func(*int64) (int64, error), recorder DiceRecorder) mcp.ToolHandlerFor[RollDiceInput, RollDiceResult] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input RollDiceInput) (*mcp.CallToolResult, RollDiceResult, error) {
		seed, err := resolveSeed(input.Seed)
		if err != nil {
			return nil, RollDiceResult{}, fmt.Errorf("resolve seed: %w", err)
		}

		roll, err := dice.NewRoller(seed).Roll(input.Roll)
		if recorder != nil {
			recorder.DiceRolled("mcp", err == nil)
		}
		if err != nil {
			return nil, RollDiceResult{}, err
		}

		result := RollDiceResult{
			Roll:  roll.Expression,
			Total: roll.Total,
			Terms: make([]RollDiceTerm, 0, len(roll.Terms)),
			Seed:  seed,
		}
		for _, term := range roll.Terms {
			out := RollDiceTerm{
				Term:  term.Text,
				Kind:  "number",
				Rolls: term.Rolls,
				Value: term.Value(),
			}
			if term.Kind == dice.KindDice {
				out.Kind = "dice"
				out.Count = term.Count
				out.Faces = term.Faces
			}
			result.Terms = append(result.Terms, out)
		}
		return nil, result, nil
	}
}

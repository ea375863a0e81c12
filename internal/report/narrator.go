package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/dotcommander/courtside/internal/agent"
	"github.com/dotcommander/courtside/internal/proto"
	"github.com/dotcommander/courtside/internal/provider"
	"github.com/dotcommander/courtside/internal/stats"
)

// Report agent prompt texts.
const (
	AgentDescription  = "You are an expert in generating game report for NBA games."
	AgentInstructions = `Describe the game like a game report in the newspaper.
The data needed for the report will be provided from the previous step.`
)

// InputMessage is the user prompt of the writing stage.
func InputMessage(req Request) string {
	return fmt.Sprintf(`Create a report of the game between %s and the home team %s on %s.
Create this report based on the play by play statistic retrieved from the data source.
Describe the game like a game report in the newspaper.
Include the following information in the report:

- Game summary
- Game highlights
- Game statistics

Format the response using markdown and include tables where appropriate.`,
		teamLabel(req.AwayTeam), teamLabel(req.HomeTeam), req.Date)
}

func teamLabel(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if name := stats.TeamName(code); name != code {
		return fmt.Sprintf("%s (%s)", code, name)
	}
	return code
}

// AgentNarrator narrates with an LLM agent that has no tools: all data
// arrives in the prompt.
type AgentNarrator struct {
	LLM       agent.LLM
	Selection provider.Selection
	// Instructions overrides AgentInstructions when set.
	Instructions string
	// OnChunk receives streamed text.
	OnChunk func(string)
}

var _ Narrator = (*AgentNarrator)(nil)

// Narrate implements Narrator.
func (n *AgentNarrator) Narrate(ctx context.Context, req Request, data string) (string, error) {
	instructions := n.Instructions
	if strings.TrimSpace(instructions) == "" {
		instructions = AgentInstructions
	}
	resp, err := n.LLM.Run(ctx, agent.Request{
		Name:      "game_report_writer",
		Selection: n.Selection,
		System:    []string{AgentDescription, instructions},
		Messages: []proto.Message{{
			Role:    proto.RoleUser,
			Content: InputMessage(req) + "\n\nPlay-by-play data from the previous step:\n\n" + data,
		}},
		MaxSteps: 1,
		OnChunk:  n.OnChunk,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Package team defines the basketball agents, the data analysis team that
// coordinates them, and the runner that executes their turns.
package team

import (
	"strings"

	"github.com/dotcommander/courtside/internal/provider"
	"github.com/dotcommander/courtside/internal/tools/builtin"
)

// Agent and team ids.
const (
	DataAgentID          = "data_agent"
	AnalystAgentID       = "analyst_agent"
	VisualizationAgentID = "visualization_agent"
	GameReportAgentID    = "game_report_agent"
	DataAnalysisTeamID   = "data_analysis_team"
)

// DefaultHistoryRuns is how many previous runs of a session are replayed.
const DefaultHistoryRuns = 3

// Agent is a single model with instructions and tools.
type Agent struct {
	ID             string
	Name           string
	Description    string
	Instructions   []string
	ExpectedOutput string
	Model          provider.Selection
	// ReasoningModel plans the answer before Model writes it. A zero value
	// disables the planning step.
	ReasoningModel provider.Selection
	// Tools are names in the runner's registry. Names the registry lacks are
	// ignored.
	Tools       []string
	Markdown    bool
	HistoryRuns int
}

// Team is a leader model delegating to member agents.
type Team struct {
	ID           string
	Name         string
	Description  string
	Instructions []string
	Members      []*Agent
	Model        provider.Selection
	Tools        []string
	Markdown     bool
	HistoryRuns  int
}

// Member returns the member with the given id.
func (t *Team) Member(id string) (*Agent, bool) {
	for _, m := range t.Members {
		if m.ID == id {
			return m, true
		}
	}
	return nil, false
}

const dataAgentInstructions = `You are an expert in basketball data extraction. Extract comprehensive, structured information
from the provided resources. Focus on:

1. Accurately capturing the relevant parameter values from user's questions for the tools call,
2. Identifying the correct tool to use based on the user's questions
3. Extracting relevant data that provides context for the next analysis steps

Be thorough but concise.
If no relevant information can be found with the defined agent tools, respond with "No relevant information found."`

// DataAgentOutput is the answer template of the data agent.
const DataAgentOutput = `## Analysis Result

| Column1 | Column2 | Column3 | ... |
|---------|---------|-------- |-----|
| {Data from the query result} |`

const analystAgentInstructions = `You are an expert in analysing advanced statistics of NBA players and teams.
Given the data extracted by the data agent, provide insights and analysis based on the user's questions.
The data coming from the data agent is a markdown or TOON table.

Focus on:
1. Interpreting the data provided by the data agent accurately,
2. Providing clear and concise analysis that directly addresses the user's questions,

Be thorough but concise.
Use the knowledge base to look up definitions of advanced statistics.
Use the table tool to describe, sort or filter a statistics table when the answer needs more than the data you were given.
If no relevant information can be found, ask data agent for more data.`

const visualizationAgentInstructions = `You are an expert in visualizing basketball data. Create clear and informative visualizations
based on the data extracted by the data agent. Focus on:

1. Selecting the appropriate visualization type for the data,
2. Ensuring the visualizations effectively communicate the insights from the data,
3. If the user asks explicitly for a certain type of chart, please follow the user's request.

Save charts with the chart tool and tell the user the file path it returns.
When the chart tool is not available, render charts as Mermaid code blocks (xychart-beta, pie or quadrantChart) instead.
Be thorough but concise.
If no relevant information can be found with the defined agent tools, respond with "No relevant information found."`

const gameReportAgentInstructions = `You are an expert in creating reports of NBA games.
When the user asks for a game report, work out the game date and the three letter codes of the home and away teams,
then call the game report tool with the date as YYYYMMDD.
Return the report as the tool produced it. If a team or date is ambiguous, ask the user before running the tool.`

const teamInstructions = `You are the lead of a data analysis team! 🔍
Your team consists of specialized agents, each with unique skills and expertise.
As the team lead, your role is to coordinate the efforts of your team members to achieve the best results for the user.

Focus on:
1. Assigning tasks to the most suitable agents based on their expertise,
2. Ensuring effective communication and collaboration among team members,
3. Make sure that every agent gets the input they need to perform their tasks effectively,
4. If an agent reports back that they cannot find relevant information, help them to re-evaluate the task or ask other agents to provide additional context,
5. Managing the workflow to ensure timely and accurate responses to user queries.

Be thorough but concise.
If no relevant information can be found with the defined agent tools, respond with "No relevant information found."`

// Deps configure Assemble.
type Deps struct {
	Model     provider.Selection
	Reasoning provider.Selection
	// Instructions replace the built-in instructions of the agent or team
	// with the same id.
	Instructions map[string]string
	HistoryRuns  int
}

func (d Deps) instructions(id, def string) []string {
	if s := strings.TrimSpace(d.Instructions[id]); s != "" {
		return []string{s}
	}
	return []string{def}
}

func (d Deps) historyRuns() int {
	if d.HistoryRuns > 0 {
		return d.HistoryRuns
	}
	return DefaultHistoryRuns
}

// NewDataAgent returns the agent that pulls statistics.
func NewDataAgent(d Deps) *Agent {
	return &Agent{
		ID:             DataAgentID,
		Name:           "Basketball Data Agent",
		Description:    "Extracts play-by-play and team shooting data from Basketball Reference.",
		Instructions:   d.instructions(DataAgentID, dataAgentInstructions),
		ExpectedOutput: DataAgentOutput,
		Model:          d.Model,
		ReasoningModel: d.Reasoning,
		Tools: []string{
			builtin.PlayByPlayName,
			builtin.TeamShootingName,
			builtin.TeamClusteringName,
			builtin.AnalyzeTableName,
			builtin.ThinkName,
		},
		Markdown:    true,
		HistoryRuns: d.historyRuns(),
	}
}

// NewAnalystAgent returns the agent that interprets data.
func NewAnalystAgent(d Deps) *Agent {
	return &Agent{
		ID:             AnalystAgentID,
		Name:           "Basketball Analyst Agent",
		Description:    "Analyses advanced statistics of NBA players and teams.",
		Instructions:   d.instructions(AnalystAgentID, analystAgentInstructions),
		Model:          d.Model,
		ReasoningModel: d.Reasoning,
		Tools:          []string{builtin.SearchKnowledgeName, builtin.AnalyzeTableName, builtin.ThinkName},
		Markdown:       true,
		HistoryRuns:    d.historyRuns(),
	}
}

// NewVisualizationAgent returns the agent that charts data.
func NewVisualizationAgent(d Deps) *Agent {
	return &Agent{
		ID:             VisualizationAgentID,
		Name:           "Basketball Visualization Agent",
		Description:    "Turns basketball data into charts.",
		Instructions:   d.instructions(VisualizationAgentID, visualizationAgentInstructions),
		Model:          d.Model,
		ReasoningModel: d.Reasoning,
		Tools:          []string{builtin.CreateChartName, builtin.ThinkName},
		Markdown:       true,
		HistoryRuns:    d.historyRuns(),
	}
}

// NewGameReportAgent returns the agent that runs the game report workflow.
func NewGameReportAgent(d Deps) *Agent {
	return &Agent{
		ID:           GameReportAgentID,
		Name:         "Basketball Game Report Agent",
		Description:  "Writes newspaper style reports of NBA games.",
		Instructions: d.instructions(GameReportAgentID, gameReportAgentInstructions),
		Model:        d.Model,
		Tools:        []string{builtin.RunGameReportName},
		Markdown:     true,
		HistoryRuns:  d.historyRuns(),
	}
}

// Assemble builds the data analysis team and its members.
func Assemble(d Deps) *Team {
	return &Team{
		ID:           DataAnalysisTeamID,
		Name:         "Data Analysis Team",
		Description:  "A team of agents that collaborates to analyze basketball data.",
		Instructions: d.instructions(DataAnalysisTeamID, teamInstructions),
		Members: []*Agent{
			NewDataAgent(d),
			NewAnalystAgent(d),
			NewVisualizationAgent(d),
			NewGameReportAgent(d),
		},
		Model:       d.Model,
		Tools:       []string{builtin.ThinkName},
		Markdown:    true,
		HistoryRuns: d.historyRuns(),
	}
}

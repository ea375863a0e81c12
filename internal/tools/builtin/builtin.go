// Package builtin holds the basketball tools agents can call.
package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/dotcommander/courtside/internal/chart"
	"github.com/dotcommander/courtside/internal/knowledge"
	"github.com/dotcommander/courtside/internal/report"
	"github.com/dotcommander/courtside/internal/shooting"
	"github.com/dotcommander/courtside/internal/stats"
	"github.com/dotcommander/courtside/internal/tools"
)

// Tool names.
const (
	PlayByPlayName      = "get_play_by_play"
	TeamShootingName    = "get_team_shooting_data"
	TeamClusteringName  = "get_team_shooting_clustering"
	SearchKnowledgeName = "search_knowledge"
	RunGameReportName   = "run_game_report"
	ThinkName           = "think"
	CreateChartName     = "create_chart"
	AnalyzeTableName    = "analyze_table"
)

const (
	defaultKnowledgeLimit = 5
	defaultClusterCount   = 4
	defaultTableLimit     = 50
)

// Table sources of analyze_table.
const (
	SourcePlayByPlay   = "play_by_play"
	SourceTeamShooting = "team_shooting"
)

// ShootingSource yields a season's team shooting table.
type ShootingSource interface {
	TeamShooting(ctx context.Context, season int) (*stats.Table, error)
}

// Searcher queries the knowledge base.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]knowledge.ScoredDocument, error)
}

// ReportRunner runs the game report workflow.
type ReportRunner interface {
	Run(ctx context.Context, req report.Request, observers ...report.Observer) (*report.Result, error)
}

// ChartSaver writes charts to disk.
type ChartSaver interface {
	Save(s chart.Spec) (string, error)
}

var (
	dateParam = tools.Param{Name: "date", Type: tools.String, Required: true,
		Description: "Game date as YYYYMMDD, e.g. 20251116."}
	homeParam = tools.Param{Name: "home_team", Type: tools.String, Required: true,
		Description: "Three letter code of the home team, e.g. HOU for the Houston Rockets."}
	awayParam = tools.Param{Name: "away_team", Type: tools.String, Required: true,
		Description: "Three letter code of the away team, e.g. ORL for the Orlando Magic."}
	seasonParam = tools.Param{Name: "season", Type: tools.Integer, Required: true,
		Description: "Year the season ends, e.g. 2025 for 2024-25."}
)

// PlayByPlay returns the play-by-play table of a game in TOON form.
func PlayByPlay(src stats.Source) tools.Tool {
	return tools.Func{
		ToolName:        PlayByPlayName,
		ToolDescription: "Get the play-by-play statistics of an NBA game from Basketball Reference, as a compact table.",
		Parameters:      []tools.Param{dateParam, homeParam},
		Fn: func(ctx context.Context, a tools.Args) (string, error) {
			table, err := src.PlayByPlay(ctx, stats.GameKey{Date: a.String("date"), HomeTeam: a.String("home_team")})
			if err != nil {
				return "", err
			}
			return stats.Encode(table), nil
		},
	}
}

// TeamShootingData returns a season's team shooting table as markdown. The
// output is the agent's answer.
func TeamShootingData(src ShootingSource) tools.Tool {
	return tools.Func{
		ToolName: TeamShootingName,
		ToolDescription: "Get the team shooting data for a given season. " +
			"This data can be combined to generate clustering analysis.",
		Parameters: []tools.Param{seasonParam},
		Stop:       true,
		Fn: func(ctx context.Context, a tools.Args) (string, error) {
			table, err := src.TeamShooting(ctx, a.Int("season", 0))
			if err != nil {
				return "", err
			}
			return stats.Markdown(table), nil
		},
	}
}

// TeamShootingClustering clusters teams by shot profile. The output is the
// agent's answer.
func TeamShootingClustering(src ShootingSource) tools.Tool {
	return tools.Func{
		ToolName:        TeamClusteringName,
		ToolDescription: "Get the team shooting clustering data for a given season.",
		Parameters: []tools.Param{seasonParam, {
			Name: "n_cluster", Type: tools.Integer, Required: true,
			Description: fmt.Sprintf("Number of clusters, e.g. %d.", defaultClusterCount),
		}},
		Stop: true,
		Fn: func(ctx context.Context, a tools.Args) (string, error) {
			table, err := src.TeamShooting(ctx, a.Int("season", 0))
			if err != nil {
				return "", err
			}
			c, err := shooting.Cluster(table, a.Int("n_cluster", defaultClusterCount))
			if err != nil {
				return "", err
			}
			return stats.Markdown(c.Table(table)), nil
		},
	}
}

// SearchKnowledge searches the basketball knowledge base.
func SearchKnowledge(kb Searcher) tools.Tool {
	return tools.Func{
		ToolName:        SearchKnowledgeName,
		ToolDescription: "Search the basketball knowledge base for definitions of statistics and background information.",
		Parameters: []tools.Param{
			{Name: "query", Type: tools.String, Required: true, Description: "What to look up."},
			{Name: "limit", Type: tools.Integer, Description: fmt.Sprintf("Maximum number of results, default %d.", defaultKnowledgeLimit)},
		},
		Fn: func(ctx context.Context, a tools.Args) (string, error) {
			hits, err := kb.Search(ctx, a.String("query"), a.Int("limit", defaultKnowledgeLimit))
			if err != nil {
				return "", err
			}
			return knowledge.Format(hits), nil
		},
	}
}

const gameReportExamples = `
You can refer to the example below as guidance for how to use this tool.
### Example: Game Report Workflow
User: Please create a report for the game on December 1st, 2025, Houston Rockets versus Utah Jazz.
Run: {"date": "20251201", "home_team": "HOU", "away_team": "UTA"}`

// RunGameReport runs the game report workflow and returns the report.
func RunGameReport(runner ReportRunner) tools.Tool {
	return tools.Func{
		ToolName: RunGameReportName,
		ToolDescription: "Create a newspaper style markdown report of an NBA game from its play-by-play statistics." +
			gameReportExamples,
		Parameters: []tools.Param{dateParam, homeParam, awayParam},
		Fn: func(ctx context.Context, a tools.Args) (string, error) {
			res, err := runner.Run(ctx, report.Request{
				Date:     a.String("date"),
				HomeTeam: a.String("home_team"),
				AwayTeam: a.String("away_team"),
			})
			if err != nil {
				return "", err
			}
			return res.Report, nil
		},
	}
}

// CreateChart draws a single-series chart and saves it as an HTML file.
func CreateChart(charts ChartSaver) tools.Tool {
	return tools.Func{
		ToolName: CreateChartName,
		ToolDescription: "Create a chart from labelled numbers and save it as an HTML file. " +
			"Use bar for comparisons, line for trends, pie for shares, scatter for individual points " +
			"and histogram for the distribution of values. Returns the file path.",
		Parameters: []tools.Param{
			{Name: "chart_type", Type: tools.String, Required: true, Enum: chart.Kinds, Description: "Kind of chart."},
			{Name: "title", Type: tools.String, Required: true, Description: "Chart title; also names the file."},
			{Name: "labels", Type: tools.Array, Description: "Category labels, one per value. Not used by histograms."},
			{Name: "values", Type: tools.Array, Items: tools.Number, Required: true, Description: "The numbers to plot."},
			{Name: "series_name", Type: tools.String, Description: "Legend name of the data series."},
			{Name: "x_label", Type: tools.String, Description: "X axis title."},
			{Name: "y_label", Type: tools.String, Description: "Y axis title."},
			{Name: "bins", Type: tools.Integer, Description: fmt.Sprintf("Histogram bin count, default %d.", chart.DefaultBins)},
		},
		Fn: func(_ context.Context, a tools.Args) (string, error) {
			s := chart.Spec{
				Kind:   a.String("chart_type"),
				Title:  a.String("title"),
				Series: a.String("series_name"),
				XLabel: a.String("x_label"),
				YLabel: a.String("y_label"),
				Labels: a.Strings("labels"),
				Values: a.Floats("values"),
				Bins:   a.Int("bins", chart.DefaultBins),
			}
			path, err := charts.Save(s)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Saved %s chart %q to %s", s.Kind, s.Title, path), nil
		},
	}
}

// AnalyzeTable fetches a play-by-play or team shooting table and runs one
// operation over it.
func AnalyzeTable(src stats.Source, shots ShootingSource) tools.Tool {
	return tools.Func{
		ToolName: AnalyzeTableName,
		ToolDescription: "Run an operation over a basketball statistics table and return the result as markdown. " +
			"describe summarizes every column, sort orders rows by a column, filter keeps rows whose column compares " +
			"true against a value, select keeps the given columns and head returns the first rows. " +
			"play_by_play needs date and home_team; team_shooting needs season.",
		Parameters: []tools.Param{
			{Name: "source", Type: tools.String, Required: true, Enum: []string{SourceTeamShooting, SourcePlayByPlay}, Description: "Which table to load."},
			{Name: "operation", Type: tools.String, Required: true, Enum: stats.Ops, Description: "Operation to run."},
			{Name: "season", Type: tools.Integer, Description: seasonParam.Description},
			{Name: "date", Type: tools.String, Description: dateParam.Description},
			{Name: "home_team", Type: tools.String, Description: homeParam.Description},
			{Name: "column", Type: tools.String, Description: "Column to sort or filter by."},
			{Name: "columns", Type: tools.Array, Description: "Columns to select."},
			{Name: "comparator", Type: tools.String, Enum: stats.Comparators, Description: "Filter comparison; in takes a comma separated value."},
			{Name: "value", Type: tools.String, Description: "Value the filter compares against."},
			{Name: "descending", Type: tools.Boolean, Description: "Sort from largest to smallest."},
			{Name: "limit", Type: tools.Integer, Description: fmt.Sprintf("Maximum rows returned, default %d (10 for head).", defaultTableLimit)},
		},
		Fn: func(ctx context.Context, a tools.Args) (string, error) {
			var (
				table *stats.Table
				err   error
			)
			switch a.String("source") {
			case SourceTeamShooting:
				season := a.Int("season", 0)
				if season == 0 {
					return "", fmt.Errorf("team_shooting needs a season")
				}
				table, err = shots.TeamShooting(ctx, season)
			default:
				key := stats.GameKey{Date: a.String("date"), HomeTeam: a.String("home_team")}
				if key.Date == "" || key.HomeTeam == "" {
					return "", fmt.Errorf("play_by_play needs date and home_team")
				}
				table, err = src.PlayByPlay(ctx, key)
			}
			if err != nil {
				return "", err
			}
			op, limit := a.String("operation"), a.Int("limit", 0)
			if limit == 0 && op != stats.OpHead {
				limit = defaultTableLimit
			}
			out, err := table.Query(stats.Query{
				Op:         op,
				Column:     a.String("column"),
				Columns:    a.Strings("columns"),
				Comparator: a.String("comparator"),
				Value:      a.String("value"),
				Descending: a.Bool("descending"),
				Limit:      limit,
			})
			if err != nil {
				return "", err
			}
			return stats.Markdown(out), nil
		},
	}
}

// ThinkInstructions is added to the system prompt of agents that have the
// think tool.
const ThinkInstructions = `You have access to the think tool. Use it as a scratchpad to work through the problem step by step before answering:
break the question down, decide which tools or team members you need and check intermediate results.`

// Think is a reasoning scratchpad. It has no side effects; the thought is
// echoed back so it stays in the conversation.
func Think() tools.Tool {
	return tools.Func{
		ToolName:        ThinkName,
		ToolDescription: "Use this tool to think through a problem step by step before acting or answering.",
		Parameters: []tools.Param{
			{Name: "title", Type: tools.String, Required: true, Description: "A short title for this step."},
			{Name: "thought", Type: tools.String, Required: true, Description: "Your reasoning for this step."},
			{Name: "action", Type: tools.String, Description: "What you will do next."},
		},
		Fn: func(_ context.Context, a tools.Args) (string, error) {
			var sb strings.Builder
			fmt.Fprintf(&sb, "## %s\n%s", a.String("title"), a.String("thought"))
			if action := a.String("action"); action != "" {
				fmt.Fprintf(&sb, "\nNext: %s", action)
			}
			return sb.String(), nil
		},
	}
}

// Deps are the services behind the built-in tools. Nil fields leave their
// tools out.
type Deps struct {
	Stats     stats.Source
	Shooting  ShootingSource
	Knowledge Searcher
	Reports   ReportRunner
	Charts    ChartSaver
}

// Registry returns every tool whose dependency is set, plus think.
func Registry(d Deps) *tools.Registry {
	r := tools.NewRegistry()
	add := func(t tools.Tool) {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	if d.Stats != nil {
		add(PlayByPlay(d.Stats))
	}
	if d.Shooting != nil {
		add(TeamShootingData(d.Shooting))
		add(TeamShootingClustering(d.Shooting))
	}
	if d.Stats != nil && d.Shooting != nil {
		add(AnalyzeTable(d.Stats, d.Shooting))
	}
	if d.Charts != nil {
		add(CreateChart(d.Charts))
	}
	if d.Knowledge != nil {
		add(SearchKnowledge(d.Knowledge))
	}
	if d.Reports != nil {
		add(RunGameReport(d.Reports))
	}
	add(Think())
	return r
}

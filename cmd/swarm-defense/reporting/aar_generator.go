package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/controllers"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/simulation"
	"github.com/picogrid/swarm-defense/pkg/logger"
)

// AARGenerator generates After Action Reports
type AARGenerator struct {
	logger *SimulationLogger
	config AARConfig
}

// AARConfig configures AAR generation
type AARConfig struct {
	OutputDir   string
	Format      string // "json" or "markdown"
	DetailLevel string // "summary", "detailed", "full"
}

// Outcome is what the engine knows at the end of a scenario
type Outcome struct {
	Algorithm      string
	Seed           int64
	Degraded       bool
	FriendlyCount  int
	EnemyCount     int
	AssetCount     int
	Statistics     simulation.Statistics
	Telemetry      controllers.Telemetry
	FramesRecorded int
	WallTime       time.Duration
}

// AAR represents an After Action Report
type AAR struct {
	Metadata        AARMetadata             `json:"metadata"`
	Summary         ExecutiveSummary        `json:"summary"`
	Timeline        []TimelineEntry         `json:"timeline"`
	TeamAnalysis    map[string]TeamAnalysis `json:"team_analysis"`
	AssetDefence    AssetDefenceAnalysis    `json:"asset_defence"`
	Algorithm       AlgorithmAnalysis       `json:"algorithm"`
	Statistics      simulation.Statistics   `json:"statistics"`
	EventLog        []EventLogEntry         `json:"event_log,omitempty"`
	Recommendations []Recommendation        `json:"recommendations"`
}

// AARMetadata contains report metadata
type AARMetadata struct {
	SimulationID string    `json:"simulation_id"`
	GeneratedAt  time.Time `json:"generated_at"`
	WallTime     string    `json:"wall_time"`
	SimDuration  float64   `json:"sim_duration_s"`
	Seed         int64     `json:"seed"`
	Version      string    `json:"version"`
}

// ExecutiveSummary provides high-level overview
type ExecutiveSummary struct {
	Outcome        string   `json:"outcome"`
	WinningTeam    string   `json:"winning_team"`
	MissionSuccess bool     `json:"mission_success"`
	TotalLosses    int      `json:"total_losses"`
	KeyEvents      []string `json:"key_events"`
}

// TimelineEntry represents an event in the timeline
type TimelineEntry struct {
	SimTime     float64                `json:"sim_time"`
	EventType   string                 `json:"event_type"`
	Description string                 `json:"description"`
	Impact      string                 `json:"impact"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// TeamAnalysis contains team-specific analysis
type TeamAnalysis struct {
	TeamName        string  `json:"team_name"`
	FinalStatus     string  `json:"final_status"`
	InitialStrength int     `json:"initial_strength"`
	FinalStrength   int     `json:"final_strength"`
	Losses          int     `json:"losses"`
	Kills           int     `json:"kills"`
	Effectiveness   float64 `json:"effectiveness_rating"`
	FirstLossAt     float64 `json:"first_loss_at_s,omitempty"`
}

// AssetDefenceAnalysis summarises damage taken by ground assets
type AssetDefenceAnalysis struct {
	Assets          int             `json:"assets"`
	Protected       int             `json:"protected"`
	Hits            int             `json:"hits"`
	TotalDamage     float64         `json:"total_damage"`
	DamageByAsset   map[int]float64 `json:"damage_by_asset"`
	AssetsDestroyed int             `json:"assets_destroyed"`
}

// AlgorithmAnalysis reports the controller and its activity counters
type AlgorithmAnalysis struct {
	Key       string                `json:"key"`
	Degraded  bool                  `json:"degraded"`
	Telemetry controllers.Telemetry `json:"telemetry"`
}

// EventLogEntry represents a detailed event log entry
type EventLogEntry struct {
	SimTime     float64                `json:"sim_time"`
	EventType   string                 `json:"event_type"`
	Severity    string                 `json:"severity"`
	Description string                 `json:"description"`
	Entity      int                    `json:"entity,omitempty"`
	Team        string                 `json:"team,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// Recommendation represents an improvement recommendation
type Recommendation struct {
	Priority    string `json:"priority"` // "High", "Medium", "Low"
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// NewAARGenerator creates a new AAR generator
func NewAARGenerator(logger *SimulationLogger, config AARConfig) *AARGenerator {
	if config.Format == "" {
		config.Format = "json"
	}
	if config.DetailLevel == "" {
		config.DetailLevel = "detailed"
	}
	return &AARGenerator{
		logger: logger,
		config: config,
	}
}

// GenerateAAR creates an After Action Report from the logged events and the outcome
func (g *AARGenerator) GenerateAAR(outcome Outcome) (*AAR, error) {
	if g.logger == nil {
		return nil, fmt.Errorf("no simulation log to report on")
	}
	summary := g.logger.GetSummary()
	events := g.logger.GetEvents()
	sort.SliceStable(events, func(i, j int) bool { return events[i].SimTime < events[j].SimTime })

	aar := &AAR{
		Metadata: AARMetadata{
			SimulationID: summary.SimulationID,
			GeneratedAt:  time.Now(),
			WallTime:     outcome.WallTime.String(),
			SimDuration:  outcome.Statistics.Duration,
			Seed:         outcome.Seed,
			Version:      "1.0",
		},
		Statistics: outcome.Statistics,
		Algorithm: AlgorithmAnalysis{
			Key:       outcome.Algorithm,
			Degraded:  outcome.Degraded,
			Telemetry: outcome.Telemetry,
		},
	}

	aar.TeamAnalysis = g.analyzeTeams(events, outcome)
	aar.Summary = g.generateExecutiveSummary(events, outcome, aar.TeamAnalysis)
	aar.AssetDefence = g.analyzeAssets(events, outcome)

	if g.config.DetailLevel != "summary" {
		aar.Timeline = g.buildTimeline(events)
	}
	if g.config.DetailLevel == "full" {
		aar.EventLog = g.generateEventLog(events)
	}

	aar.Recommendations = g.generateRecommendations(aar)
	return aar, nil
}

// SaveAAR writes the report into the output directory and returns its path
func (g *AARGenerator) SaveAAR(aar *AAR) (string, error) {
	if err := os.MkdirAll(g.config.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := aar.Metadata.GeneratedAt.Format("20060102_150405")
	filename := fmt.Sprintf("AAR_%s_%s", shortID(aar.Metadata.SimulationID), timestamp)

	var (
		path string
		err  error
	)
	switch g.config.Format {
	case "json":
		path, err = g.saveJSON(aar, filename)
	case "markdown", "md":
		path, err = g.saveMarkdown(aar, filename)
	default:
		return "", fmt.Errorf("unsupported format: %s", g.config.Format)
	}
	if err != nil {
		return "", err
	}

	logger.Successf("AAR saved to: %s", path)
	return path, nil
}

func (g *AARGenerator) saveJSON(aar *AAR, filename string) (string, error) {
	data, err := json.MarshalIndent(aar, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal AAR: %w", err)
	}

	path := filepath.Join(g.config.OutputDir, filename+".json")
	return path, os.WriteFile(path, data, 0644)
}

func (g *AARGenerator) saveMarkdown(aar *AAR, filename string) (string, error) {
	var sb strings.Builder
	s := aar.Statistics

	sb.WriteString("# After Action Report\n\n")
	sb.WriteString(fmt.Sprintf("**Simulation:** %s  \n", aar.Metadata.SimulationID))
	sb.WriteString(fmt.Sprintf("**Algorithm:** %s", aar.Algorithm.Key))
	if aar.Algorithm.Degraded {
		sb.WriteString(" (degraded)")
	}
	sb.WriteString("  \n")
	sb.WriteString(fmt.Sprintf("**Seed:** %d  \n", aar.Metadata.Seed))
	sb.WriteString(fmt.Sprintf("**Simulated:** %.1fs (wall %s)\n\n", aar.Metadata.SimDuration, aar.Metadata.WallTime))

	sb.WriteString("## Executive Summary\n\n")
	sb.WriteString(fmt.Sprintf("%s\n\n", aar.Summary.Outcome))
	sb.WriteString(fmt.Sprintf("- **Mission Success:** %t\n", s.MissionSuccess))
	sb.WriteString(fmt.Sprintf("- **Survival Rate:** %.1f%%\n", s.SurvivalRate*100))
	sb.WriteString(fmt.Sprintf("- **Kill Ratio:** %.2f:1\n", s.KillRatio))
	sb.WriteString(fmt.Sprintf("- **Assets Protected:** %d/%d\n\n", s.AssetsProtected, aar.AssetDefence.Assets))

	sb.WriteString("## Team Analysis\n\n")
	for _, team := range []string{simulation.TeamFriendly, simulation.TeamEnemy} {
		analysis, ok := aar.TeamAnalysis[team]
		if !ok {
			continue
		}
		sb.WriteString(fmt.Sprintf("### %s\n\n", team))
		sb.WriteString(fmt.Sprintf("- **Final Status:** %s\n", analysis.FinalStatus))
		sb.WriteString(fmt.Sprintf("- **Strength:** %d/%d\n", analysis.FinalStrength, analysis.InitialStrength))
		sb.WriteString(fmt.Sprintf("- **Losses:** %d\n", analysis.Losses))
		sb.WriteString(fmt.Sprintf("- **Kills:** %d\n\n", analysis.Kills))
	}

	sb.WriteString("## Algorithm Telemetry\n\n")
	sb.WriteString(fmt.Sprintf("- **Iterations:** %d\n", aar.Algorithm.Telemetry.IterationCount))
	sb.WriteString(fmt.Sprintf("- **Field Strength:** %.3f\n", aar.Algorithm.Telemetry.FieldStrength))
	sb.WriteString(fmt.Sprintf("- **Scouts:** %d\n\n", aar.Algorithm.Telemetry.ScoutCount))

	if len(aar.Timeline) > 0 {
		sb.WriteString("## Timeline\n\n")
		for _, entry := range aar.Timeline {
			sb.WriteString(fmt.Sprintf("- `t=%6.1fs` %s (%s)\n", entry.SimTime, entry.Description, entry.Impact))
		}
		sb.WriteString("\n")
	}

	if len(aar.Recommendations) > 0 {
		sb.WriteString("## Recommendations\n\n")
		for _, rec := range aar.Recommendations {
			sb.WriteString(fmt.Sprintf("### %s (%s Priority)\n", rec.Title, rec.Priority))
			sb.WriteString(fmt.Sprintf("%s\n\n", rec.Description))
		}
	}

	path := filepath.Join(g.config.OutputDir, filename+".md")
	return path, os.WriteFile(path, []byte(sb.String()), 0644)
}

func (g *AARGenerator) generateExecutiveSummary(events []SimulationEvent, outcome Outcome, teams map[string]TeamAnalysis) ExecutiveSummary {
	s := outcome.Statistics
	exec := ExecutiveSummary{
		MissionSuccess: s.MissionSuccess,
		TotalLosses:    s.FriendlyLosses + s.EnemyLosses,
		KeyEvents:      make([]string, 0),
	}

	defenders, attackers := teams[simulation.TeamFriendly], teams[simulation.TeamEnemy]
	switch {
	case attackers.FinalStrength == 0 && defenders.FinalStrength > 0:
		exec.WinningTeam = simulation.TeamFriendly
		exec.Outcome = fmt.Sprintf("%s eliminated every attacker in %.1fs", outcome.Algorithm, s.Duration)
	case defenders.FinalStrength == 0 && attackers.FinalStrength > 0:
		exec.WinningTeam = simulation.TeamEnemy
		exec.Outcome = fmt.Sprintf("The %s swarm was wiped out after %.1fs", outcome.Algorithm, s.Duration)
	case s.MissionSuccess:
		exec.WinningTeam = simulation.TeamFriendly
		exec.Outcome = "Assets held with most attackers destroyed"
	default:
		exec.Outcome = "Stalemate - no clear victor"
	}

	for _, event := range events {
		if len(exec.KeyEvents) >= 5 {
			break
		}
		if event.Severity == SeverityCritical || event.Type == EventTypeObjective {
			exec.KeyEvents = append(exec.KeyEvents, event.Message)
		}
	}
	for _, event := range events {
		if len(exec.KeyEvents) >= 5 {
			break
		}
		if event.Type == EventTypeDestruction {
			exec.KeyEvents = append(exec.KeyEvents, event.Message)
		}
	}

	return exec
}

func (g *AARGenerator) buildTimeline(events []SimulationEvent) []TimelineEntry {
	timeline := make([]TimelineEntry, 0)
	for _, event := range events {
		if event.Type != EventTypeDestruction && event.Severity != SeverityCritical && event.Type != EventTypeObjective {
			continue
		}
		timeline = append(timeline, TimelineEntry{
			SimTime:     event.SimTime,
			EventType:   event.Type,
			Description: event.Message,
			Impact:      assessImpact(event),
			Details:     event.Details,
		})
	}
	return timeline
}

func assessImpact(event SimulationEvent) string {
	switch {
	case event.Severity == SeverityCritical:
		return "Critical"
	case event.Type == EventTypeDestruction && event.TeamName == simulation.TeamFriendly:
		return "High"
	case event.Type == EventTypeDestruction:
		return "Medium"
	default:
		return "Low"
	}
}

func (g *AARGenerator) analyzeTeams(events []SimulationEvent, outcome Outcome) map[string]TeamAnalysis {
	s := outcome.Statistics
	teams := map[string]TeamAnalysis{
		simulation.TeamFriendly: {
			TeamName:        simulation.TeamFriendly,
			InitialStrength: outcome.FriendlyCount,
			Losses:          s.FriendlyLosses,
			Kills:           s.EnemyLosses,
		},
		simulation.TeamEnemy: {
			TeamName:        simulation.TeamEnemy,
			InitialStrength: outcome.EnemyCount,
			Losses:          s.EnemyLosses,
			Kills:           s.FriendlyLosses,
		},
	}

	for _, event := range events {
		if event.Type != EventTypeDestruction {
			continue
		}
		t, ok := teams[event.TeamName]
		if ok && t.FirstLossAt == 0 {
			t.FirstLossAt = event.SimTime
			teams[event.TeamName] = t
		}
	}

	for name, t := range teams {
		t.FinalStrength = t.InitialStrength - t.Losses
		if t.InitialStrength > 0 {
			t.Effectiveness = float64(t.Kills) / float64(t.InitialStrength)
		}
		t.FinalStatus = finalStatus(t.FinalStrength, t.InitialStrength)
		teams[name] = t
	}
	return teams
}

func finalStatus(final, initial int) string {
	if initial <= 0 {
		return "Unknown"
	}
	ratio := float64(final) / float64(initial)
	switch {
	case final <= 0:
		return "Eliminated"
	case ratio < 0.3:
		return "Critical"
	case ratio < 0.6:
		return "Degraded"
	default:
		return "Operational"
	}
}

func (g *AARGenerator) analyzeAssets(events []SimulationEvent, outcome Outcome) AssetDefenceAnalysis {
	analysis := AssetDefenceAnalysis{
		Assets:        outcome.AssetCount,
		Protected:     outcome.Statistics.AssetsProtected,
		DamageByAsset: make(map[int]float64),
	}
	destroyed := make(map[int]bool)
	for _, event := range events {
		if event.Type != EventTypeAssetDamage {
			continue
		}
		analysis.Hits++
		id, _ := event.Details["asset_id"].(int)
		if dmg, ok := event.Details["damage"].(float64); ok {
			analysis.TotalDamage += dmg
			analysis.DamageByAsset[id] += dmg
		}
		if remaining, ok := event.Details["remaining"].(float64); ok && remaining <= 0 {
			destroyed[id] = true
		}
	}
	analysis.AssetsDestroyed = len(destroyed)
	return analysis
}

func (g *AARGenerator) generateEventLog(events []SimulationEvent) []EventLogEntry {
	log := make([]EventLogEntry, 0, len(events))
	for _, event := range events {
		log = append(log, EventLogEntry{
			SimTime:     event.SimTime,
			EventType:   event.Type,
			Severity:    event.Severity,
			Description: event.Message,
			Entity:      event.EntityID,
			Team:        event.TeamName,
			Details:     event.Details,
		})
	}
	return log
}

func (g *AARGenerator) generateRecommendations(aar *AAR) []Recommendation {
	var recs []Recommendation
	s := aar.Statistics

	if aar.AssetDefence.Protected < aar.AssetDefence.Assets {
		recs = append(recs, Recommendation{
			Priority:    "High",
			Category:    "Asset Defence",
			Title:       "Ground threats reached protected assets",
			Description: "Shorten the threat response time or raise the critical ground multiplier so defenders commit to ground attackers earlier.",
		})
	}
	if s.SurvivalRate < 0.5 {
		recs = append(recs, Recommendation{
			Priority:    "High",
			Category:    "Force Protection",
			Title:       "Heavy friendly losses",
			Description: fmt.Sprintf("Only %.0f%% of the swarm survived. Increase cohesion gain or enable communication so drones engage with local superiority.", s.SurvivalRate*100),
		})
	}
	if s.KillRatio < 1 {
		recs = append(recs, Recommendation{
			Priority:    "Medium",
			Category:    "Engagement",
			Title:       "Unfavourable exchange ratio",
			Description: "Attackers traded at better than one for one. Consider a coordinated algorithm or a longer weapon range override.",
		})
	}
	if aar.Algorithm.Degraded {
		recs = append(recs, Recommendation{
			Priority:    "Low",
			Category:    "Equipment",
			Title:       "Scenario ran on degraded combat profile",
			Description: "Re-run with a different seed before drawing conclusions about the algorithm.",
		})
	}
	if len(recs) == 0 {
		recs = append(recs, Recommendation{
			Priority:    "Low",
			Category:    "General",
			Title:       "No issues found",
			Description: "The swarm held every asset with an acceptable exchange ratio.",
		})
	}
	return recs
}

package reporting

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/simulation"
	"github.com/picogrid/swarm-defense/pkg/logger"
)

// SimulationLogger records the notable events of one scenario and echoes the
// important ones to the console in color.
type SimulationLogger struct {
	simulationID string
	startTime    time.Time
	events       []SimulationEvent
	metrics      map[string]Metric
	out          io.Writer
	mu           sync.RWMutex
}

// SimulationEvent represents a logged simulation event
type SimulationEvent struct {
	Timestamp time.Time
	SimTime   float64
	Type      string
	Severity  string
	TeamName  string
	EntityID  int
	Message   string
	Details   map[string]interface{}
}

// Metric represents a tracked metric
type Metric struct {
	Name        string
	Value       float64
	Unit        string
	LastUpdated time.Time
	History     []MetricPoint
}

// MetricPoint represents a metric value at a point in time
type MetricPoint struct {
	Timestamp time.Time
	Value     float64
}

// EventType constants
const (
	EventTypeSpawn       = "spawn"
	EventTypeDestruction = "destruction"
	EventTypeAssetDamage = "asset_damage"
	EventTypeTeamStatus  = "team_status"
	EventTypeObjective   = "objective"
	EventTypeSystem      = "system"
)

// Severity constants
const (
	SeverityDebug    = "debug"
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

const (
	maxEvents        = 10000
	maxMetricHistory = 1000
)

// Color definitions
var (
	colorDebug     = color.New(color.FgHiBlack)
	colorInfo      = color.New(color.FgCyan)
	colorWarning   = color.New(color.FgYellow)
	colorError     = color.New(color.FgRed)
	colorCritical  = color.New(color.FgRed, color.Bold)
	colorDefenders = color.New(color.FgBlue, color.Bold)
	colorAttackers = color.New(color.FgRed, color.Bold)
	colorSuccess   = color.New(color.FgGreen)
)

// NewSimulationLogger creates a logger echoing to stdout
func NewSimulationLogger(simulationID string) *SimulationLogger {
	return &SimulationLogger{
		simulationID: simulationID,
		startTime:    time.Now(),
		events:       make([]SimulationEvent, 0),
		metrics:      make(map[string]Metric),
		out:          os.Stdout,
	}
}

// LogStart marks the start of the scenario
func (sl *SimulationLogger) LogStart(algorithm string, friendlies, enemies int) {
	sl.mu.Lock()
	sl.startTime = time.Now()
	sl.mu.Unlock()

	sl.logEvent(SimulationEvent{
		Timestamp: time.Now(),
		Type:      EventTypeSystem,
		Severity:  SeverityInfo,
		Message:   fmt.Sprintf("Scenario started: %s, %d vs %d", algorithm, friendlies, enemies),
		Details: map[string]interface{}{
			"algorithm":  algorithm,
			"friendlies": friendlies,
			"enemies":    enemies,
		},
	})
	sl.logColoredMessage(SeverityInfo, "Simulation Started",
		fmt.Sprintf("ID: %s | %s | %d vs %d", shortID(sl.simulationID), algorithm, friendlies, enemies))
}

// SetOutput redirects console echo. A nil writer silences it; events are still recorded.
func (sl *SimulationLogger) SetOutput(w io.Writer) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if w == nil {
		w = io.Discard
	}
	sl.out = w
}

func (sl *SimulationLogger) SimulationID() string {
	return sl.simulationID
}

// LogSpawn records a drone entering the scenario
func (sl *SimulationLogger) LogSpawn(droneID int, teamName string, droneType string, position core.Vector3D) {
	sl.logEvent(SimulationEvent{
		Timestamp: time.Now(),
		Type:      EventTypeSpawn,
		Severity:  SeverityDebug,
		TeamName:  teamName,
		EntityID:  droneID,
		Message:   fmt.Sprintf("Drone spawned: %d (%s) at %s", droneID, droneType, position),
		Details: map[string]interface{}{
			"drone_type": droneType,
			"position":   position.Array(),
		},
	})
}

// LogDestruction records a drone of teamName destroyed by killerID
func (sl *SimulationLogger) LogDestruction(droneID int, teamName string, killerID int, simTime float64) {
	sl.logEvent(SimulationEvent{
		Timestamp: time.Now(),
		SimTime:   simTime,
		Type:      EventTypeDestruction,
		Severity:  SeverityWarning,
		TeamName:  teamName,
		EntityID:  droneID,
		Message:   fmt.Sprintf("Drone destroyed: %d by %d at t=%.1fs", droneID, killerID, simTime),
		Details: map[string]interface{}{
			"killer_id": killerID,
		},
	})

	sl.logColoredMessage(SeverityWarning, "Drone Destroyed",
		fmt.Sprintf("Team: %s | ID: %d | Killer: %d | t=%.1fs",
			sl.getTeamColor(teamName).Sprint(teamName), droneID, killerID, simTime))
}

// LogAssetDamage records a ground enemy chipping an asset. Only a destroyed
// asset is echoed.
func (sl *SimulationLogger) LogAssetDamage(assetID, enemyID int, damage, remaining, simTime float64) {
	severity := SeverityInfo
	if remaining <= 0 {
		severity = SeverityCritical
	}
	sl.logEvent(SimulationEvent{
		Timestamp: time.Now(),
		SimTime:   simTime,
		Type:      EventTypeAssetDamage,
		Severity:  severity,
		TeamName:  simulation.TeamEnemy,
		EntityID:  enemyID,
		Message:   fmt.Sprintf("Asset %d hit by %d for %.2f (%.1f left)", assetID, enemyID, damage, remaining),
		Details: map[string]interface{}{
			"asset_id":  assetID,
			"damage":    damage,
			"remaining": remaining,
		},
	})

	if remaining <= 0 {
		sl.logColoredMessage(SeverityCritical, "Asset Destroyed",
			fmt.Sprintf("Asset %d | Attacker: %d | t=%.1fs", assetID, enemyID, simTime))
	}
}

// LogTeamStatus logs team status update
func (sl *SimulationLogger) LogTeamStatus(teamName string, activeDrones, totalDrones, losses int) {
	sl.logEvent(SimulationEvent{
		Timestamp: time.Now(),
		Type:      EventTypeTeamStatus,
		Severity:  SeverityInfo,
		TeamName:  teamName,
		Message:   fmt.Sprintf("Team %s: %d/%d active, %d losses", teamName, activeDrones, totalDrones, losses),
		Details: map[string]interface{}{
			"active_drones": activeDrones,
			"total_drones":  totalDrones,
			"losses":        losses,
		},
	})

	sl.logColoredMessage(SeverityInfo, "Team Status",
		fmt.Sprintf("%s %d/%d active, %d lost",
			sl.getTeamColor(teamName).Sprint(teamName), activeDrones, totalDrones, losses))
}

// LogObjective records the mission outcome
func (sl *SimulationLogger) LogObjective(status string, details map[string]interface{}) {
	sl.logEvent(SimulationEvent{
		Timestamp: time.Now(),
		Type:      EventTypeObjective,
		Severity:  SeverityInfo,
		TeamName:  simulation.TeamFriendly,
		Message:   fmt.Sprintf("Asset defence: %s", status),
		Details:   details,
	})
}

// LogError logs an error event
func (sl *SimulationLogger) LogError(message string, err error, details map[string]interface{}) {
	if details == nil {
		details = make(map[string]interface{})
	}
	details["error"] = err.Error()

	sl.logEvent(SimulationEvent{
		Timestamp: time.Now(),
		Type:      EventTypeSystem,
		Severity:  SeverityError,
		Message:   message,
		Details:   details,
	})

	logger.Errorf("%s: %v", message, err)
}

// UpdateMetric updates a metric value
func (sl *SimulationLogger) UpdateMetric(name string, value float64, unit string) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	metric, exists := sl.metrics[name]
	if !exists {
		metric = Metric{
			Name:    name,
			Unit:    unit,
			History: make([]MetricPoint, 0),
		}
	}

	now := time.Now()
	metric.Value = value
	metric.LastUpdated = now
	metric.History = append(metric.History, MetricPoint{Timestamp: now, Value: value})
	if len(metric.History) > maxMetricHistory {
		metric.History = metric.History[len(metric.History)-maxMetricHistory:]
	}

	sl.metrics[name] = metric
}

// GetEvents returns all logged events
func (sl *SimulationLogger) GetEvents() []SimulationEvent {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	events := make([]SimulationEvent, len(sl.events))
	copy(events, sl.events)
	return events
}

// GetMetrics returns current metrics
func (sl *SimulationLogger) GetMetrics() map[string]Metric {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	metrics := make(map[string]Metric, len(sl.metrics))
	for k, v := range sl.metrics {
		metrics[k] = v
	}
	return metrics
}

// SimulationSummary represents a summary of the simulation
type SimulationSummary struct {
	SimulationID string
	StartTime    time.Time
	Duration     time.Duration
	TotalEvents  int
	EventCounts  map[string]int
	TeamEvents   map[string]map[string]int
	Metrics      map[string]Metric
}

// GetSummary returns a simulation summary
func (sl *SimulationLogger) GetSummary() SimulationSummary {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	eventCounts := make(map[string]int)
	teamEvents := make(map[string]map[string]int)
	for _, event := range sl.events {
		eventCounts[event.Type]++
		if event.TeamName != "" {
			if teamEvents[event.TeamName] == nil {
				teamEvents[event.TeamName] = make(map[string]int)
			}
			teamEvents[event.TeamName][event.Type]++
		}
	}

	metrics := make(map[string]Metric, len(sl.metrics))
	for k, v := range sl.metrics {
		metrics[k] = v
	}

	return SimulationSummary{
		SimulationID: sl.simulationID,
		StartTime:    sl.startTime,
		Duration:     time.Since(sl.startTime),
		TotalEvents:  len(sl.events),
		EventCounts:  eventCounts,
		TeamEvents:   teamEvents,
		Metrics:      metrics,
	}
}

func (sl *SimulationLogger) logEvent(event SimulationEvent) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	sl.events = append(sl.events, event)
	if len(sl.events) > maxEvents {
		sl.events = sl.events[len(sl.events)-maxEvents:]
	}
}

func (sl *SimulationLogger) logColoredMessage(severity, eventType, message string) {
	sl.mu.RLock()
	out := sl.out
	sl.mu.RUnlock()

	var severityColor *color.Color
	switch severity {
	case SeverityDebug:
		severityColor = colorDebug
	case SeverityWarning:
		severityColor = colorWarning
	case SeverityError:
		severityColor = colorError
	case SeverityCritical:
		severityColor = colorCritical
	default:
		severityColor = colorInfo
	}

	fmt.Fprintf(out, "[%s] %s %s | %s\n",
		time.Now().Format("15:04:05.000"),
		severityColor.Sprint(fmt.Sprintf("%-8s", severity)),
		eventType,
		message)
}

func (sl *SimulationLogger) getTeamColor(teamName string) *color.Color {
	switch teamName {
	case simulation.TeamFriendly:
		return colorDefenders
	case simulation.TeamEnemy:
		return colorAttackers
	default:
		return colorInfo
	}
}

// PrintSummary prints a formatted summary
func (sl *SimulationLogger) PrintSummary() {
	summary := sl.GetSummary()
	sl.mu.RLock()
	out := sl.out
	sl.mu.RUnlock()

	rule := "================================================================"
	colorSuccess.Fprintln(out, "\n"+rule)
	colorSuccess.Fprintf(out, "  SIMULATION SUMMARY - %s\n", shortID(summary.SimulationID))
	colorSuccess.Fprintln(out, rule)

	fmt.Fprintf(out, "\nDuration: %v | Total Events: %d\n", summary.Duration.Round(time.Millisecond), summary.TotalEvents)

	fmt.Fprintln(out, "\nEvent Distribution:")
	for _, eventType := range sortedKeys(summary.EventCounts) {
		fmt.Fprintf(out, "   %-20s: %d\n", eventType, summary.EventCounts[eventType])
	}

	fmt.Fprintln(out, "\nTeam Events:")
	teams := make([]string, 0, len(summary.TeamEvents))
	for team := range summary.TeamEvents {
		teams = append(teams, team)
	}
	sort.Strings(teams)
	for _, team := range teams {
		fmt.Fprintf(out, "\n   %s:\n", sl.getTeamColor(team).Sprint(team))
		for _, eventType := range sortedKeys(summary.TeamEvents[team]) {
			fmt.Fprintf(out, "      %-18s: %d\n", eventType, summary.TeamEvents[team][eventType])
		}
	}

	if len(summary.Metrics) > 0 {
		fmt.Fprintln(out, "\nMetrics:")
		names := make([]string, 0, len(summary.Metrics))
		for name := range summary.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			m := summary.Metrics[name]
			fmt.Fprintf(out, "   %-20s: %.2f %s\n", name, m.Value, m.Unit)
		}
	}

	colorSuccess.Fprintln(out, "\n"+rule)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

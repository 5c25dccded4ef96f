package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
	"github.com/picogrid/swarm-defense/pkg/logger"
)

var batteryOpts struct {
	bullets int
	dt      float64
	level   float64
}

var batteryCmd = &cobra.Command{
	Use:   "battery",
	Short: "Evaluate the drone endurance model",
	Long: `Print payload fraction and endurance for a bullet load, and the battery level
left after flying dt seconds from the given level.`,
	RunE: evaluateBattery,
}

func init() {
	f := batteryCmd.Flags()
	f.IntVar(&batteryOpts.bullets, "bullets", 0, "bullets carried")
	f.Float64Var(&batteryOpts.dt, "dt", 60, "flight time in seconds")
	f.Float64Var(&batteryOpts.level, "level", 100, "starting battery level in percent")
}

func evaluateBattery(_ *cobra.Command, _ []string) error {
	if batteryOpts.bullets < 0 {
		return fmt.Errorf("bullets must not be negative")
	}
	if batteryOpts.dt < 0 {
		return fmt.Errorf("dt must not be negative")
	}
	if batteryOpts.level < 0 || batteryOpts.level > 100 {
		return fmt.Errorf("level must be between 0 and 100")
	}

	m := core.DefaultBatteryModel()
	logger.LogSection("Battery model")
	logger.LogKeyValue("Bullets", batteryOpts.bullets)
	logger.LogKeyValue("Payload fraction", fmt.Sprintf("%.3f", m.PayloadFraction(batteryOpts.bullets)))
	logger.LogKeyValue("Endurance", fmt.Sprintf("%.1f min", m.EnduranceMinutes(batteryOpts.bullets)))
	logger.LogKeyValue("Level after flight", fmt.Sprintf("%.2f%%", m.Drain(batteryOpts.level, batteryOpts.bullets, batteryOpts.dt)))

	table := logger.NewTable("BULLETS", "PAYLOAD", "ENDURANCE (MIN)")
	for _, n := range []int{0, 50, 100, 150, 200, 250} {
		table.AddRow(fmt.Sprintf("%d", n), fmt.Sprintf("%.2f", m.PayloadFraction(n)), fmt.Sprintf("%.1f", m.EnduranceMinutes(n)))
	}
	table.Print()
	return nil
}

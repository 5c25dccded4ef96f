package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/config"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/controllers"
	"github.com/picogrid/swarm-defense/pkg/logger"
	"github.com/picogrid/swarm-defense/pkg/simulation"
	"github.com/picogrid/swarm-defense/pkg/utils"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List algorithms, presets and scenarios",
	Long:  `List the swarm algorithms, the scenario presets, the registered simulations and any scenario files in the project`,
	RunE:  listAll,
}

func listAll(_ *cobra.Command, _ []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "ALGORITHM\tLABEL\tDESCRIPTION")
	_, _ = fmt.Fprintln(w, "---------\t-----\t-----------")
	for _, a := range controllers.NewFactory(controllers.DefaultPresets()).Algorithms() {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", a.Value, a.Label, a.Description)
	}
	_, _ = fmt.Fprintln(w)

	presets := config.ScenarioPresets()
	_, _ = fmt.Fprintln(w, "PRESET\tFRIENDLY\tENEMY\tGROUND RATIO\tMAX TIME")
	_, _ = fmt.Fprintln(w, "------\t--------\t-----\t------------\t--------")
	for _, name := range config.PresetNames() {
		p := presets[name]
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%.2f\t%.0fs\n", name, p.FriendlyCount, p.EnemyCount, p.GroundAttackRatio, p.MaxTime)
	}
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintln(w, "REGISTERED\tDESCRIPTION")
	_, _ = fmt.Fprintln(w, "----------\t-----------")
	for _, e := range simulation.DefaultRegistry.Entries() {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", e.Name, e.Description)
	}
	_, _ = fmt.Fprintln(w)

	infos, err := utils.DiscoverSimulations()
	if err != nil {
		logger.Debugf("Simulation discovery skipped: %v", err)
	}
	if len(infos) > 0 {
		_, _ = fmt.Fprintln(w, "SIMULATION\tVERSION\tCATEGORY\tDESCRIPTION")
		_, _ = fmt.Fprintln(w, "----------\t-------\t--------\t-----------")
		for _, info := range infos {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				info.Descriptor.Name,
				info.Descriptor.Version,
				info.Descriptor.Category,
				info.Descriptor.Description,
			)
		}
		_, _ = fmt.Fprintln(w)
	}

	if root, err := utils.FindProjectRoot(); err == nil {
		files, err := utils.DiscoverScenarioFiles(root)
		if err != nil {
			return err
		}
		if len(files) > 0 {
			_, _ = fmt.Fprintln(w, "SCENARIO FILE\tALGORITHM\tFRIENDLY\tENEMY\tMOVING ASSET")
			_, _ = fmt.Fprintln(w, "-------------\t---------\t--------\t-----\t------------")
			for _, f := range files {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%t\n", f.Path, f.Algorithm, f.Friendly, f.Enemy, f.Dynamic)
			}
		}
	}

	return w.Flush()
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/otpower88/grabbot/internal/config"
	"github.com/otpower88/grabbot/internal/store"
)

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print persisted attempt counters",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				fmt.Fprintf(os.Stderr, "load config: %v\n", err)
				os.Exit(1)
			}
			st, err := openStatsStore(cfg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "open stats store: %v\n", err)
				os.Exit(1)
			}
			defer st.Close()

			stats, err := st.Load()
			if err != nil {
				fmt.Fprintf(os.Stderr, "load stats: %v\n", err)
				os.Exit(1)
			}

			rate := 0.0
			if stats.TotalAttempts > 0 {
				rate = float64(stats.SuccessCount) * 100 / float64(stats.TotalAttempts)
			}
			fmt.Printf("group:          %s\n", st.GetString(store.KeyGroupName, cfg.Watch.GroupName))
			fmt.Printf("total attempts: %d\n", stats.TotalAttempts)
			fmt.Printf("successes:      %d\n", stats.SuccessCount)
			fmt.Printf("success rate:   %.1f%%\n", rate)
		},
	}
}

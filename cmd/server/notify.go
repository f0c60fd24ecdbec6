package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/tasknest/internal/handler"
)

func notifyNowCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "notify-now",
		Short: "Build one notification digest and print it as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(*configPath)
			if err != nil {
				return err
			}

			api := handler.NewAPI(rt.db, handler.Options{
				Location:            rt.loc,
				LookaheadDays:       rt.cfg.LookaheadDays,
				NotifyDays:          rt.cfg.Notify.Days,
				MaterializeDueToday: rt.cfg.Notify.MaterializeDueToday,
				Notifiers:           rt.notifiers(),
			})
			digest, err := api.Feed().NotifyNow(cmd.Context())
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(digest)
		},
	}
}

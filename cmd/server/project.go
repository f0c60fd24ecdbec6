package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tasknest/internal/model"
	"github.com/tasknest/internal/recurrence"
	"github.com/tasknest/internal/service"
)

func projectCmd(configPath *string) *cobra.Command {
	var (
		from string
		days int
	)
	cmd := &cobra.Command{
		Use:   "project <task|todo> <id>",
		Short: "Print the projected dates of a recurring item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := model.ParseKind(args[0])
			if !ok {
				return fmt.Errorf("unknown kind %q, want task or todo", args[0])
			}
			id, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[1])
			}

			rt, err := loadRuntime(*configPath)
			if err != nil {
				return err
			}

			start := recurrence.Today(time.Now(), rt.loc)
			if from != "" {
				if start, err = recurrence.ParseDate(from); err != nil {
					return err
				}
			}

			item, err := service.NewStore(rt.db).Get(cmd.Context(), kind, uint(id))
			if err != nil {
				return err
			}
			rule, ok := recurrence.RuleOf(item)
			if !ok {
				return fmt.Errorf("%s %d: %w", kind, id, service.ErrNotRecurring)
			}

			anchor := recurrence.AnchorOf(item)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %d %q: %s from %s\n", kind, id, item.Title, rule.Pattern, recurrence.FormatDate(anchor))
			for _, d := range recurrence.ProjectStrings(rule, anchor, start, recurrence.AddDays(start, days)) {
				fmt.Fprintln(out, d)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "window start (YYYY-MM-DD), defaults to today")
	cmd.Flags().IntVarP(&days, "days", "n", 30, "window length in days")
	return cmd
}

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"audiopipe/internal/pipeline"
)

func newStagesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stages",
		Short: "List the configured pipeline stages in execution order",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := ctx.buildEngine(nil)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			stages := engine.Stages()
			if len(stages) == 0 {
				fmt.Fprintln(out, "No stages configured")
				return nil
			}
			rows := make([][]string, 0, len(stages))
			for i, stage := range stages {
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					pipeline.DisplayName(stage.Name()),
					stage.Name(),
					stage.ProcessorType(),
				})
			}
			fmt.Fprint(out, renderTable(
				[]string{"#", "Stage", "Name", "Type"},
				rows,
				[]columnAlignment{alignRight},
			))
			fmt.Fprintln(out)
			return nil
		},
	}
}

func newSeparatorsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "separators",
		Short: "List the registered source separation backends",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rows := make([][]string, 0)
			for _, name := range ctx.separators.Names() {
				rows = append(rows, []string{name, yesNo(name == cfg.Separation.Backend)})
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderTable([]string{"Backend", "Configured"}, rows, nil))
			fmt.Fprintln(out)
			return nil
		},
	}
}

package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewEnvCmd создаёт группу команд для управления окружениями.
func NewEnvCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Manage execution environments",
	}

	cmd.AddCommand(
		newEnvListCmd(clientFn, outputFn),
		newEnvBuildCmd(clientFn, outputFn),
		newEnvShowCmd(clientFn, outputFn),
		newEnvCopyCmd(clientFn, outputFn),
		newEnvSetCmd(clientFn, outputFn),
		newEnvDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

func envDetail(env *EnvironmentResponse) [][2]string {
	return [][2]string{
		{"Name", env.Name},
		{"Level", env.Level},
		{"Machine-specific", strconv.FormatBool(env.MachineSpecific)},
		{"Modules", strings.Join(env.Modules, ", ")},
		{"Flags", strings.Join(env.OptimizationFlags, " ")},
		{"Variables", strconv.Itoa(len(env.Variables))},
		{"Built", env.BuiltAt},
	}
}

func newEnvListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List environment names",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			names, err := client.ListEnvironments()
			if err != nil {
				return err
			}

			rows := make([][]string, len(names))
			for i, name := range names {
				rows[i] = []string{name}
			}

			out.Print([]string{"NAME"}, rows, names)
			return nil
		},
	}
}

func newEnvBuildCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var pipeline string
	var level string

	cmd := &cobra.Command{
		Use:   "build NAME",
		Short: "Build an environment for a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			p, err := resolvePipeline(flagArgs(pipeline))
			if err != nil {
				return err
			}

			env, err := client.BuildEnvironment(args[0], p, level)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Environment built: %s", env.Name))
			out.Detail(envDetail(env), env)
			return nil
		},
	}

	cmd.Flags().StringVar(&pipeline, "pipeline", "", "Pipeline name (defaults to focused)")
	cmd.Flags().StringVar(&level, "level", "", "Optimization level (fast, balanced, aggressive)")

	return cmd
}

func newEnvShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show environment details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			env, err := client.GetEnvironment(args[0])
			if err != nil {
				return err
			}

			out.Detail(envDetail(env), env)
			return nil
		},
	}
}

func newEnvCopyCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "copy SOURCE TARGET",
		Short: "Copy an environment under a new name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			env, err := client.CopyEnvironment(args[0], args[1])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Environment copied: %s -> %s", args[0], args[1]))
			out.Detail(envDetail(env), env)
			return nil
		},
	}
}

func newEnvSetCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var varPairs []string

	cmd := &cobra.Command{
		Use:   "set NAME",
		Short: "Set environment variables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			vars := make(map[string]string, len(varPairs))
			for _, pair := range varPairs {
				key, value, found := strings.Cut(pair, "=")
				if !found || key == "" {
					return fmt.Errorf("invalid --var value %q, expected KEY=VALUE", pair)
				}
				vars[key] = value
			}

			env, err := client.ConfigureEnvironment(args[0], vars)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Environment updated: %s", env.Name))
			out.Detail(envDetail(env), env)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&varPairs, "var", nil, "Variable as KEY=VALUE (repeatable, required)")
	cmd.MarkFlagRequired("var")

	return cmd
}

func newEnvDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete an environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteEnvironment(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Environment deleted: %s", args[0]))
			return nil
		},
	}
}

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// parseConfigFlags разбирает пары key=value в конфигурацию пакета.
// Значение сперва пробуется как JSON (числа, bool, списки), иначе строка.
func parseConfigFlags(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	config := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --set value %q, expected key=value", pair)
		}

		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err == nil {
			config[key] = parsed
		} else {
			config[key] = value
		}
	}
	return config, nil
}

func pipelineRow(p *PipelineResponse) []string {
	return []string{p.Name, strconv.Itoa(len(p.Packages)), p.EnvironmentName, p.Status, p.CreatedAt}
}

var pipelineHeaders = []string{"NAME", "PACKAGES", "ENVIRONMENT", "STATUS", "CREATED"}

// NewPipelineCmd создаёт группу команд для управления pipelines.
func NewPipelineCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Manage pipelines",
	}

	cmd.AddCommand(
		newPipelineListCmd(clientFn, outputFn),
		newPipelineCreateCmd(clientFn, outputFn),
		newPipelineShowCmd(clientFn, outputFn),
		newPipelineDeleteCmd(clientFn, outputFn),
		newPipelineAddCmd(clientFn, outputFn),
		newPipelineConfigureCmd(clientFn, outputFn),
		newPipelineRemoveCmd(clientFn, outputFn),
		newPipelineReorderCmd(clientFn, outputFn),
		newPipelineLinkEnvCmd(clientFn, outputFn),
		newPipelineAnalyzeCmd(clientFn, outputFn),
		newPipelineImportCmd(clientFn, outputFn),
		newPipelineExportCmd(clientFn, outputFn),
	)

	return cmd
}

func newPipelineListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all pipelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			pipelines, err := client.ListPipelines()
			if err != nil {
				return err
			}

			rows := make([][]string, len(pipelines))
			for i := range pipelines {
				rows[i] = pipelineRow(&pipelines[i])
			}

			out.Print(pipelineHeaders, rows, pipelines)
			return nil
		},
	}
}

func newPipelineCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create an empty pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			p, err := client.CreatePipeline(args[0], description)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Pipeline created: %s", p.Name))
			out.Print(pipelineHeaders, [][]string{pipelineRow(p)}, p)
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "Pipeline description")

	return cmd
}

func newPipelineShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show [PIPELINE]",
		Short: "Show pipeline packages in execution order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			name, err := resolvePipeline(args)
			if err != nil {
				return err
			}

			p, err := client.GetPipeline(name)
			if err != nil {
				return err
			}

			headers := []string{"ORDER", "PACKAGE", "TYPE", "CONFIG"}
			rows := make([][]string, len(p.Packages))
			for i, e := range p.Packages {
				cfg := ""
				if len(e.Config) > 0 {
					data, _ := json.Marshal(e.Config)
					cfg = string(data)
				}
				rows[i] = []string{strconv.Itoa(e.Order), e.Name, e.Type, cfg}
			}

			out.Print(headers, rows, p)
			return nil
		},
	}
}

func newPipelineDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete PIPELINE",
		Short: "Delete a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeletePipeline(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Pipeline deleted: %s", args[0]))
			return nil
		},
	}
}

func newPipelineAddCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var pipeline string
	var position int
	var configPairs []string

	cmd := &cobra.Command{
		Use:   "add PACKAGE",
		Short: "Add a catalog package to the pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			name, err := resolvePipeline(flagArgs(pipeline))
			if err != nil {
				return err
			}

			config, err := parseConfigFlags(configPairs)
			if err != nil {
				return err
			}

			req := AddPackageRequest{Name: args[0], Config: config}
			if cmd.Flags().Changed("position") {
				req.Position = &position
			}

			p, err := client.AddPackage(name, req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Package %s added to %s", args[0], name))
			out.Print(pipelineHeaders, [][]string{pipelineRow(p)}, p)
			return nil
		},
	}

	cmd.Flags().StringVar(&pipeline, "pipeline", "", "Pipeline name (defaults to focused)")
	cmd.Flags().IntVar(&position, "position", -1, "Insert position (default: append)")
	cmd.Flags().StringArrayVar(&configPairs, "set", nil, "Package config as key=value (repeatable)")

	return cmd
}

func newPipelineConfigureCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var pipeline string
	var configPairs []string

	cmd := &cobra.Command{
		Use:   "configure PACKAGE",
		Short: "Replace a package configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			name, err := resolvePipeline(flagArgs(pipeline))
			if err != nil {
				return err
			}

			config, err := parseConfigFlags(configPairs)
			if err != nil {
				return err
			}

			p, err := client.ConfigurePackage(name, args[0], config)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Package %s configured", args[0]))
			out.Print(pipelineHeaders, [][]string{pipelineRow(p)}, p)
			return nil
		},
	}

	cmd.Flags().StringVar(&pipeline, "pipeline", "", "Pipeline name (defaults to focused)")
	cmd.Flags().StringArrayVar(&configPairs, "set", nil, "Package config as key=value (repeatable)")

	return cmd
}

func newPipelineRemoveCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var pipeline string

	cmd := &cobra.Command{
		Use:   "remove PACKAGE",
		Short: "Remove a package from the pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			name, err := resolvePipeline(flagArgs(pipeline))
			if err != nil {
				return err
			}

			p, err := client.RemovePackage(name, args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Package %s removed from %s", args[0], name))
			out.Print(pipelineHeaders, [][]string{pipelineRow(p)}, p)
			return nil
		},
	}

	cmd.Flags().StringVar(&pipeline, "pipeline", "", "Pipeline name (defaults to focused)")

	return cmd
}

func newPipelineReorderCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var pipeline string

	cmd := &cobra.Command{
		Use:   "reorder PACKAGE...",
		Short: "Reorder pipeline packages",
		Long:  "Reorder pipeline packages. The arguments must be a full permutation of the current package names.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			name, err := resolvePipeline(flagArgs(pipeline))
			if err != nil {
				return err
			}

			p, err := client.ReorderPackages(name, args)
			if err != nil {
				return err
			}

			out.Success("Packages reordered")
			out.Print(pipelineHeaders, [][]string{pipelineRow(p)}, p)
			return nil
		},
	}

	cmd.Flags().StringVar(&pipeline, "pipeline", "", "Pipeline name (defaults to focused)")

	return cmd
}

func newPipelineLinkEnvCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var pipeline string

	cmd := &cobra.Command{
		Use:   "link-env ENVIRONMENT",
		Short: "Link an environment to the pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			name, err := resolvePipeline(flagArgs(pipeline))
			if err != nil {
				return err
			}

			p, err := client.LinkEnvironment(name, args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Environment %s linked to %s", args[0], name))
			out.Print(pipelineHeaders, [][]string{pipelineRow(p)}, p)
			return nil
		},
	}

	cmd.Flags().StringVar(&pipeline, "pipeline", "", "Pipeline name (defaults to focused)")

	return cmd
}

func newPipelineAnalyzeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [PIPELINE]",
		Short: "Show package relationships within the pipeline",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			name, err := resolvePipeline(args)
			if err != nil {
				return err
			}

			rels, err := client.AnalyzePipeline(name)
			if err != nil {
				return err
			}

			if len(rels) == 0 {
				out.Success("No known relationships")
				return nil
			}

			headers := []string{"PACKAGE A", "PACKAGE B", "TYPE", "DESCRIPTION"}
			rows := make([][]string, len(rels))
			for i, rel := range rels {
				rows[i] = []string{rel.A, rel.B, rel.Type, rel.Description}
			}

			out.Print(headers, rows, rels)
			return nil
		},
	}
}

func newPipelineImportCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a pipeline from a YAML descriptor file",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read descriptor file: %w", err)
			}

			p, err := client.ImportPipeline(string(data))
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Pipeline imported: %s (%d packages)", p.Name, len(p.Packages)))
			out.Print(pipelineHeaders, [][]string{pipelineRow(p)}, p)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Path to YAML descriptor (required)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newPipelineExportCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "export [PIPELINE]",
		Short: "Export a pipeline as a YAML descriptor",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			name, err := resolvePipeline(args)
			if err != nil {
				return err
			}

			text, err := client.ExportPipeline(name)
			if err != nil {
				return err
			}

			out.Raw(strings.TrimRight(text, "\n"))
			return nil
		},
	}
}

// flagArgs приводит значение флага --pipeline к форме аргументов
// для resolvePipeline: пустой флаг означает "взять из фокуса".
func flagArgs(flag string) []string {
	if flag == "" {
		return nil
	}
	return []string{flag}
}

package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// NewCatalogCmd создаёт группу команд для просмотра каталога пакетов.
func NewCatalogCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse the package catalog",
	}

	cmd.AddCommand(
		newCatalogListCmd(clientFn, outputFn),
		newCatalogShowCmd(clientFn, outputFn),
	)

	return cmd
}

func newCatalogListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List catalog packages",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			defs, err := client.ListCatalogPackages()
			if err != nil {
				return err
			}

			headers := []string{"NAME", "TYPE", "DESCRIPTION"}
			rows := make([][]string, len(defs))
			for i, def := range defs {
				rows[i] = []string{def.Name, def.Type, def.Description}
			}

			out.Print(headers, rows, defs)
			return nil
		},
	}
}

func newCatalogShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show PACKAGE",
		Short: "Show a package and its parameter schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			def, err := client.GetCatalogPackage(args[0])
			if err != nil {
				return err
			}

			fields := [][2]string{
				{"Name", def.Name},
				{"Type", def.Type},
				{"Description", def.Description},
				{"Provides", strings.Join(def.Provides, ", ")},
			}
			for _, param := range def.Params {
				name, _ := param["name"].(string)
				typ, _ := param["type"].(string)
				required, _ := param["required"].(bool)
				spec := typ
				if required {
					spec += ", required"
				}
				fields = append(fields, [2]string{"Param " + name, spec})
			}

			out.Detail(fields, def)
			return nil
		},
	}
}

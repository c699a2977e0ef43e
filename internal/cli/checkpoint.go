package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var checkpointHeaders = []string{"SEQ", "PACKAGE IDX", "VERIFIED", "HASH", "CREATED"}

func checkpointRow(cp *CheckpointResponse) []string {
	hash := cp.Hash
	if len(hash) > 12 {
		hash = hash[:12]
	}
	return []string{
		strconv.Itoa(cp.Seq),
		strconv.Itoa(cp.PackageIndex),
		strconv.FormatBool(cp.Verified),
		hash,
		cp.CreatedAt,
	}
}

// NewCheckpointCmd создаёт группу команд для управления checkpoints.
func NewCheckpointCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Manage execution checkpoints",
	}

	cmd.AddCommand(
		newCheckpointListCmd(clientFn, outputFn),
		newCheckpointCreateCmd(clientFn, outputFn),
		newCheckpointLatestCmd(clientFn, outputFn),
		newCheckpointRestoreCmd(clientFn, outputFn),
	)

	return cmd
}

func newCheckpointListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list EXECUTION_ID",
		Short: "List checkpoints of an execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			cps, err := client.ListCheckpoints(args[0])
			if err != nil {
				return err
			}

			rows := make([][]string, len(cps))
			for i := range cps {
				rows[i] = checkpointRow(&cps[i])
			}

			out.Print(checkpointHeaders, rows, cps)
			return nil
		},
	}
}

func newCheckpointCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var packageIndex int
	var snapshotPairs []string

	cmd := &cobra.Command{
		Use:   "create EXECUTION_ID",
		Short: "Create a checkpoint for a running execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			var snapshots map[string]string
			if len(snapshotPairs) > 0 {
				snapshots = make(map[string]string, len(snapshotPairs))
				for _, pair := range snapshotPairs {
					node, path, found := strings.Cut(pair, "=")
					if !found || node == "" {
						return fmt.Errorf("invalid --snapshot value %q, expected node=path", pair)
					}
					snapshots[node] = path
				}
			}

			cp, err := client.CreateCheckpoint(args[0], CreateCheckpointRequest{
				PackageIndex:  packageIndex,
				NodeSnapshots: snapshots,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Checkpoint %d created", cp.Seq))
			out.Print(checkpointHeaders, [][]string{checkpointRow(cp)}, cp)
			return nil
		},
	}

	cmd.Flags().IntVar(&packageIndex, "package-index", -1, "Index of the last fully completed package")
	cmd.Flags().StringArrayVar(&snapshotPairs, "snapshot", nil, "Node snapshot as node=path (repeatable)")

	return cmd
}

func newCheckpointLatestCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "latest EXECUTION_ID",
		Short: "Show the latest verified checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			cp, err := client.LatestCheckpoint(args[0])
			if err != nil {
				return err
			}

			out.Print(checkpointHeaders, [][]string{checkpointRow(cp)}, cp)
			return nil
		},
	}
}

func newCheckpointRestoreCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var replan bool

	cmd := &cobra.Command{
		Use:   "restore EXECUTION_ID [SEQ]",
		Short: "Create a new execution from a checkpoint (latest verified when SEQ is omitted)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			var exec *ExecutionResponse
			var err error
			if len(args) == 2 {
				seq, convErr := strconv.Atoi(args[1])
				if convErr != nil || seq < 1 {
					return fmt.Errorf("invalid checkpoint seq: %s", args[1])
				}
				exec, err = client.RestoreCheckpoint(args[0], seq, replan)
			} else {
				exec, err = client.RestoreLatestCheckpoint(args[0], replan)
			}
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Execution restored: %s (resume index %d)", exec.ID, exec.ResumeIndex))
			out.Detail(execDetail(exec), exec)
			return nil
		},
	}

	cmd.Flags().BoolVar(&replan, "replan", false, "Skip plan compatibility checks, placement is always rebuilt on adoption")

	return cmd
}

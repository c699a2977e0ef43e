package cli

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var execHeaders = []string{"ID", "PIPELINE", "STATUS", "STARTED", "FINISHED", "ERROR"}

func execRow(e *ExecutionResponse) []string {
	return []string{e.ID, e.PipelineName, e.Status, e.StartedAt, e.FinishedAt, e.Error}
}

func execDetail(e *ExecutionResponse) [][2]string {
	fields := [][2]string{
		{"ID", e.ID},
		{"Pipeline", e.PipelineName},
		{"Status", e.Status},
		{"Resume index", strconv.Itoa(e.ResumeIndex)},
		{"Created", e.CreatedAt},
		{"Started", e.StartedAt},
		{"Finished", e.FinishedAt},
	}
	if e.RestoredFrom != nil {
		fields = append(fields, [2]string{
			"Restored from",
			fmt.Sprintf("%s/%d", e.RestoredFrom.ExecutionID, e.RestoredFrom.Seq),
		})
	}
	if e.LastCheckpointSeq > 0 {
		fields = append(fields, [2]string{"Last checkpoint", strconv.Itoa(e.LastCheckpointSeq)})
	}
	if e.Plan != nil {
		fields = append(fields,
			[2]string{"Strategy", e.Plan.Strategy},
			[2]string{"Method", e.Plan.Method.Type},
		)
		for _, a := range e.Plan.Assignments {
			state := e.NodeStates[a.NodeName]
			fields = append(fields, [2]string{
				"Node " + a.NodeName,
				fmt.Sprintf("%s  packages=%v", state, a.Packages),
			})
		}
	}
	if e.Error != "" {
		fields = append(fields, [2]string{"Error", e.Error})
	}
	return fields
}

// NewExecCmd создаёт группу команд для управления executions.
func NewExecCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Manage pipeline executions",
	}

	cmd.AddCommand(
		newExecStartCmd(clientFn, outputFn),
		newExecListCmd(clientFn, outputFn),
		newExecShowCmd(clientFn, outputFn),
		newExecStopCmd(clientFn, outputFn),
		newExecEventsCmd(clientFn, outputFn),
		newExecAnalysisCmd(clientFn, outputFn),
		newExecNodesCmd(clientFn, outputFn),
		newExecLogsCmd(clientFn, outputFn),
		newExecFollowCmd(clientFn, outputFn),
	)

	return cmd
}

func newExecStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var strategy string
	var method string
	var hostfile string
	var nodeCount int
	var procsPerNode int
	var sshUser string
	var sshPort int
	var mpiFlags []string

	cmd := &cobra.Command{
		Use:   "start [PIPELINE]",
		Short: "Start a pipeline execution",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			name, err := resolvePipeline(args)
			if err != nil {
				return err
			}

			req := StartExecutionRequest{
				Strategy: strategy,
				Method: MethodConfig{
					Type:         method,
					HostfilePath: hostfile,
					NodeCount:    nodeCount,
					ProcsPerNode: procsPerNode,
					SSHUser:      sshUser,
					SSHPort:      sshPort,
					MPIFlags:     mpiFlags,
				},
			}

			exec, err := client.StartExecution(name, req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Execution started: %s", exec.ID))
			out.Detail(execDetail(exec), exec)
			return nil
		},
	}

	cmd.Flags().StringVar(&strategy, "strategy", "", "Scheduling strategy (balanced, packed, performance)")
	cmd.Flags().StringVar(&method, "method", "local", "Launch method (local, ssh, parallel-ssh, mpi)")
	cmd.Flags().StringVar(&hostfile, "hostfile", "", "Hostfile path for ssh/parallel-ssh/mpi")
	cmd.Flags().IntVar(&nodeCount, "nodes", 0, "Limit the number of nodes (0 = all)")
	cmd.Flags().IntVar(&procsPerNode, "procs-per-node", 0, "Processes per node (mpi)")
	cmd.Flags().StringVar(&sshUser, "ssh-user", "", "SSH user for remote launch")
	cmd.Flags().IntVar(&sshPort, "ssh-port", 0, "SSH port for remote launch")
	cmd.Flags().StringArrayVar(&mpiFlags, "mpi-flag", nil, "Extra mpiexec flag (repeatable)")

	return cmd
}

func newExecListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var pipeline string
	var limit int
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List executions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			// По умолчанию фильтруем по сфокусированному pipeline.
			name := pipeline
			if name == "" && !all {
				if focused, ok := Focus(); ok {
					name = focused
				}
			}

			execs, err := client.ListExecutions(name, limit)
			if err != nil {
				return err
			}

			rows := make([][]string, len(execs))
			for i := range execs {
				rows[i] = execRow(&execs[i])
			}

			out.Print(execHeaders, rows, execs)
			return nil
		},
	}

	cmd.Flags().StringVar(&pipeline, "pipeline", "", "Filter by pipeline name")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of executions")
	cmd.Flags().BoolVar(&all, "all", false, "Ignore the focused pipeline")

	return cmd
}

func newExecShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show execution details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			exec, err := client.GetExecution(args[0])
			if err != nil {
				return err
			}

			out.Detail(execDetail(exec), exec)
			return nil
		},
	}
}

func newExecStopCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "stop ID",
		Short: "Stop a running execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			exec, err := client.StopExecution(args[0], force)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Stop requested for execution %s", exec.ID))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Kill immediately without a grace period")

	return cmd
}

func newExecEventsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "events ID",
		Short: "Show the execution transition journal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			events, err := client.ExecutionEvents(args[0])
			if err != nil {
				return err
			}

			headers := []string{"SEQ", "FROM", "TO", "REASON", "AT"}
			rows := make([][]string, len(events))
			for i, ev := range events {
				rows[i] = []string{strconv.Itoa(ev.Seq), ev.From, ev.To, ev.Reason, ev.At}
			}

			out.Print(headers, rows, events)
			return nil
		},
	}
}

func newExecAnalysisCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "analysis ID",
		Short: "Show phase durations and the bottleneck phase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			analysis, err := client.AnalyzeExecution(args[0])
			if err != nil {
				return err
			}

			headers := []string{"PHASE", "DURATION"}
			rows := make([][]string, 0, len(analysis.Phases)+2)
			for _, ph := range analysis.Phases {
				rows = append(rows, []string{ph.Status, time.Duration(ph.Duration).String()})
			}
			rows = append(rows, []string{"total", time.Duration(analysis.Total).String()})
			if analysis.Bottleneck != "" {
				rows = append(rows, []string{"bottleneck", analysis.Bottleneck})
			}

			out.Print(headers, rows, analysis)
			return nil
		},
	}
}

func newExecNodesCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "nodes ID",
		Short: "Show node telemetry for an execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			nodes, err := client.ExecutionNodes(args[0])
			if err != nil {
				return err
			}

			headers := []string{"NODE", "CPU%", "AVG CPU%", "MEM MB", "SAMPLES", "LAST SEEN", "ALIVE"}
			rows := make([][]string, len(nodes))
			for i, n := range nodes {
				alive := "yes"
				if n.Unresponsive {
					alive = "UNRESPONSIVE"
				}
				rows[i] = []string{
					n.Node,
					fmt.Sprintf("%.1f", n.CPUPercent),
					fmt.Sprintf("%.1f", n.AvgCPU),
					strconv.FormatInt(n.MemoryMB, 10),
					strconv.Itoa(n.Samples),
					n.LastSeen,
					alive,
				}
			}

			out.Print(headers, rows, nodes)
			return nil
		},
	}
}

func newExecLogsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var tail int

	cmd := &cobra.Command{
		Use:   "logs ID NODE",
		Short: "Show buffered logs from a node",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			lines, err := client.NodeLogs(args[0], args[1], tail)
			if err != nil {
				return err
			}

			for _, line := range lines {
				out.Raw(line)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&tail, "tail", 0, "Number of trailing lines (0 = all buffered)")

	return cmd
}

func newExecFollowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var interval int

	cmd := &cobra.Command{
		Use:   "follow ID",
		Short: "Stream execution logs until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			return client.StreamLogs(args[0], interval, os.Stdout)
		},
	}

	cmd.Flags().IntVar(&interval, "interval", 0, "Also emit telemetry snapshots every N seconds")

	return cmd
}

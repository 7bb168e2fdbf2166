package cmds

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/go-delve/setproctitle/pkg/config"
	"github.com/go-delve/setproctitle/pkg/logflags"
	"github.com/go-delve/setproctitle/pkg/proctitle"
	"github.com/go-delve/setproctitle/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v2"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string

	// targetPid is the process whose title is changed or read.
	targetPid pidValue
	// title is the new title.
	title string

	verify      bool
	dump        bool
	dryRun      bool
	splitArgs   bool
	noRootCheck bool
	timeout     time.Duration
	procRoot    string

	// readHex prints the region read by the read subcommand as a hex dump.
	readHex bool
	// initConfig makes the config subcommand write the default config file.
	initConfig bool
	// verbose makes the version subcommand print build information.
	verbose bool

	// rootCommand is the root of the command tree.
	rootCommand *cobra.Command

	conf *config.Config
)

const rootCommandLongDesc = `setproctitle changes the title of a running process.

The title of a process is what ps, top and /proc/<pid>/cmdline show: the
argument vector the process was started with. setproctitle attaches to the
process with ptrace, overwrites its argument vector in place and lets it run
again.

The new title can not be longer than the current argument vector: it must
leave room for a terminating zero byte. Shorter titles are padded with
spaces, so no other memory of the target moves.

This utility requires root privileges.`

// pidValue is a pflag.Value that only accepts positive process ids.
type pidValue int

var _ pflag.Value = (*pidValue)(nil)

func (p *pidValue) String() string {
	return strconv.Itoa(int(*p))
}

func (p *pidValue) Set(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fmt.Errorf("invalid pid %q: must be a positive integer", s)
	}
	*p = pidValue(n)
	return nil
}

func (p *pidValue) Type() string {
	return "pid"
}

// New returns an initialized command tree.
func New() *cobra.Command {
	// Config setup and load.
	conf = config.LoadConfig()
	confTimeout, _ := conf.TimeoutDuration()
	confProcRoot := conf.ProcRoot
	if confProcRoot == "" {
		confProcRoot = proctitle.DefaultProcRoot
	}

	targetPid = 0
	title = ""

	// Main setproctitle root command.
	rootCommand = &cobra.Command{
		Use:   "setproctitle --pid PID --title TITLE",
		Short: "Change the title of a running process.",
		Long:  rootCommandLongDesc,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(setTitle(cmd, cmd.OutOrStdout(), cmd.ErrOrStderr()))
		},
	}

	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", conf.LogOutput, `Comma separated list of components that should produce debug output (see 'setproctitle help log')`)
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor (see 'setproctitle help log').")
	rootCommand.PersistentFlags().StringVar(&procRoot, "proc-root", confProcRoot, "Mount point of procfs.")
	rootCommand.PersistentFlags().DurationVar(&timeout, "timeout", confTimeout, "Give up waiting for the target to stop after this long (0 waits forever).")
	rootCommand.PersistentFlags().BoolVar(&noRootCheck, "no-root-check", false, "Do not require root privileges (for CAP_SYS_PTRACE or permissive ptrace_scope).")

	rootCommand.Flags().VarP(&targetPid, "pid", "p", "Process whose title is changed.")
	rootCommand.Flags().StringVarP(&title, "title", "t", "", "New title.")
	rootCommand.Flags().BoolVar(&verify, "verify", conf.Verify, "Read the title back before resuming the target and fail if it differs.")
	rootCommand.Flags().BoolVar(&dump, "dump", conf.Dump, "Log a hex dump of the argument region before and after the change (needs --log).")
	rootCommand.Flags().BoolVar(&dryRun, "dry-run", false, "Print what would be written without attaching to the target.")
	rootCommand.Flags().BoolVar(&splitArgs, "split-args", conf.SplitArgs, "Split the title into separate arguments using shell quoting rules.")

	// 'read' subcommand.
	readCommand := &cobra.Command{
		Use:   "read --pid PID",
		Short: "Print the current title of a process, read from its memory.",
		Long: `Print the current title of a process.

The argument vector is read from the memory of the process with the same
method used to change it, zero bytes are printed as spaces.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(readTitle(cmd, cmd.OutOrStdout(), cmd.ErrOrStderr()))
		},
	}
	readCommand.Flags().VarP(&targetPid, "pid", "p", "Process whose title is read.")
	readCommand.Flags().BoolVar(&readHex, "hex", false, "Print a hex dump of the argument region.")
	rootCommand.AddCommand(readCommand)

	// 'config' subcommand.
	configCommand := &cobra.Command{
		Use:   "config",
		Short: "Print the configuration.",
		Long: `Print the configuration loaded from the configuration file.

With --init a default configuration file, with every option documented and
disabled, is created.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(configCmd(cmd.OutOrStdout(), cmd.ErrOrStderr()))
		},
	}
	configCommand.Flags().BoolVar(&initConfig, "init", false, "Write the default configuration file.")
	rootCommand.AddCommand(configCommand)

	// 'version' subcommand.
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "setproctitle\n%s\n", version.SetProcTitleVersion)
			if verbose {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", version.BuildInfo())
			}
		},
	}
	versionCommand.Flags().BoolVarP(&verbose, "verbose", "v", false, "print verbose version info")
	rootCommand.AddCommand(versionCommand)

	rootCommand.AddCommand(&cobra.Command{
		Use:   "log",
		Short: "Help about logging flags.",
		Long: `Logging can be enabled by specifying the --log flag and using the
--log-output flag to select which components should produce logs.

The argument of --log-output must be a comma separated list of component
names selected from this list:

	locator	Log how the status record of the target is parsed.
	ptrace	Log every ptrace request and wait status.
	patcher	Log the patch window and the steps of the patch (default).

Additionally --log-dest can be used to specify where the logs should be
written.
If the argument is a number it will be interpreted as a file descriptor,
otherwise as a file path.
`,
	})

	rootCommand.DisableAutoGenTag = true

	return rootCommand
}

func setTitle(cmd *cobra.Command, stdout, stderr io.Writer) int {
	if !setupLogging(cmd, stderr) {
		return 1
	}
	defer logflags.Close()

	if targetPid == 0 || title == "" {
		cmd.SetOut(stderr)
		cmd.Usage()
		return 1
	}

	newTitle := []byte(title)
	if splitArgs {
		var err error
		newTitle, err = proctitle.JoinArgs(title)
		if err != nil {
			reportError(stderr, err)
			return 1
		}
	}

	pid := int(targetPid)
	if dryRun {
		plan, err := proctitle.NewPlan(procRoot, pid, newTitle)
		if err != nil {
			reportError(stderr, err)
			return 1
		}
		printPlan(stdout, plan)
		return 0
	}

	if !checkRoot(stderr) {
		return 1
	}

	ctx, cancel := targetContext()
	defer cancel()

	tr := proctitle.NewTracer(procRoot)
	defer tr.Close()

	_, err := proctitle.SetTitle(ctx, tr, pid, newTitle, proctitle.Options{
		ProcRoot: procRoot,
		Verify:   verify,
		Dump:     dump,
	})
	if err != nil {
		reportError(stderr, err)
		return 1
	}
	return 0
}

func readTitle(cmd *cobra.Command, stdout, stderr io.Writer) int {
	if !setupLogging(cmd, stderr) {
		return 1
	}
	defer logflags.Close()

	if targetPid == 0 {
		cmd.SetOut(stderr)
		cmd.Usage()
		return 1
	}
	if !checkRoot(stderr) {
		return 1
	}

	ctx, cancel := targetContext()
	defer cancel()

	tr := proctitle.NewTracer(procRoot)
	defer tr.Close()

	region, err := proctitle.ReadTitle(ctx, tr, int(targetPid), proctitle.Options{ProcRoot: procRoot})
	if err != nil {
		reportError(stderr, err)
		return 1
	}
	if readHex {
		fmt.Fprint(stdout, hex.Dump(region))
		return 0
	}
	fmt.Fprintln(stdout, proctitle.Printable(region))
	return 0
}

// setupLogging configures logflags. A log-output coming from the
// configuration file only applies when --log is given.
func setupLogging(cmd *cobra.Command, stderr io.Writer) bool {
	logstr := logOutput
	if !log && !cmd.Flags().Changed("log-output") {
		logstr = ""
	}
	if err := logflags.Setup(log, logstr, logDest); err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return false
	}
	return true
}

func configCmd(stdout, stderr io.Writer) int {
	if initConfig {
		path, err := config.WriteDefaultConfig()
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Configuration written to %s\n", path)
		return 0
	}
	out, err := yaml.Marshal(conf)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	stdout.Write(out)
	return 0
}

// targetContext returns the context bounding the wait for the target to
// stop: it is canceled by SIGINT and, if set, by --timeout.
func targetContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func checkRoot(stderr io.Writer) bool {
	if noRootCheck || os.Geteuid() == 0 {
		return true
	}
	fmt.Fprintln(stderr, "Error: This utility requires root privileges.")
	return false
}

func printPlan(w io.Writer, plan *proctitle.Plan) {
	fmt.Fprintf(w, "pid:\t%d\n", plan.Pid)
	fmt.Fprintf(w, "region:\t%v (%d bytes)\n", plan.Region, plan.Region.Size())
	fmt.Fprintf(w, "window:\t%v\n", plan.Window)
	fmt.Fprintf(w, "title:\t%q\n", plan.Title)
}

// Command nimmy runs and debugs nimmy scripts from the command line.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/treeform/nimmy/pkg/config"
	"github.com/treeform/nimmy/pkg/debug"
	"github.com/treeform/nimmy/pkg/logging"
	"github.com/treeform/nimmy/pkg/metrics"
	"github.com/treeform/nimmy/pkg/store"
	"github.com/treeform/nimmy/pkg/tracing"
	"github.com/treeform/nimmy/pkg/vm"
	"github.com/treeform/nimmy/pkg/watch"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:     "nimmy",
		Short:   "nimmy - an embeddable scripting language with a built-in stepping debugger",
		Version: version,
	}

	var runCfgPath string
	runCmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Run a nimmy source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			watchMode, _ := cmd.Flags().GetBool("watch")
			cfg, err := loadConfig(runCfgPath)
			if err != nil {
				return err
			}
			if watchMode {
				w, err := watch.New(args[0], func(path string) error {
					return runFile(path, cfg)
				}, func(err error) { printError(err) })
				if err != nil {
					return err
				}
				return w.Run()
			}
			return runFile(args[0], cfg)
		},
	}
	runCmd.Flags().BoolP("watch", "w", false, "Re-run on file change")
	runCmd.Flags().StringVar(&runCfgPath, "config", "", "Path to a nimmy config file")

	evalCmd := &cobra.Command{
		Use:   "eval <expression>",
		Short: "Evaluate a source fragment and print its echo output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(args[0])
		},
	}

	debugCmd := &cobra.Command{
		Use:   "debug <file>",
		Short: "Run a file under the interactive stepping debugger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDebug(args[0])
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("nimmy v%s\n", version)
		},
	}

	rootCmd.AddCommand(runCmd, evalCmd, debugCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func buildVM(cfg config.Config) (*vm.VM, func(), error) {
	logger := logging.New(logging.Config{MinLevel: parseLevel(cfg.Logging.Level), Format: logging.TextFormat})
	recorder := metrics.New(metrics.DefaultConfig())

	var opts []vm.Option
	opts = append(opts, vm.WithLogger(logger), vm.WithMeter(recorder), vm.WithMaxSteps(cfg.MaxSteps))

	var shutdownTracer func()
	if cfg.Tracing.Enabled {
		provider, err := tracing.Init(tracing.Config{ServiceName: cfg.Tracing.ServiceName, SamplingRate: cfg.Tracing.SamplingRate})
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, vm.WithTracer(tracing.NewTracer("nimmy")))
		shutdownTracer = func() { provider.Shutdown(context.Background()) }
	}

	var closeStore func()
	if cfg.Store.Backend != "" && cfg.Store.Backend != "none" {
		st, closer, err := openStore(cfg)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, vm.WithStore(st))
		closeStore = closer
	}

	machine := vm.New(opts...)

	cleanup := func() {
		logger.Close()
		if closeStore != nil {
			closeStore()
		}
		if shutdownTracer != nil {
			shutdownTracer()
		}
	}
	return machine, cleanup, nil
}

func openStore(cfg config.Config) (vm.Store, func(), error) {
	ctx := context.Background()
	var backing interface {
		vm.Store
		Close() error
	}
	switch cfg.Store.Backend {
	case "sqlite":
		s, err := store.OpenSQLite(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, nil, err
		}
		backing = s
	case "postgres":
		s, err := store.OpenPostgres(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, nil, err
		}
		backing = s
	case "mysql":
		s, err := store.OpenMySQL(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, nil, err
		}
		backing = s
	case "mongo":
		s, err := store.OpenMongo(ctx, cfg.Store.DSN, "nimmy")
		if err != nil {
			return nil, nil, err
		}
		backing = s
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	if cfg.Store.BreakpointCacheDSN == "" {
		return backing, func() { backing.Close() }, nil
	}
	cached := store.NewCachedStore(backing, cfg.Store.BreakpointCacheDSN, 0)
	return cached, func() { cached.Close(); backing.Close() }, nil
}

func parseLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.DEBUG
	case "warn":
		return logging.WARN
	case "error":
		return logging.ERROR
	default:
		return logging.INFO
	}
}

func runFile(path string, cfg config.Config) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	machine, cleanup, err := buildVM(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	start := time.Now()
	out, err := machine.Run(string(source))
	if err != nil {
		printError(err)
		return err
	}
	if out != "" {
		fmt.Print(out)
	}
	printSuccess(fmt.Sprintf("done in %s", time.Since(start)))
	return nil
}

func runEval(expr string) error {
	machine, cleanup, err := buildVM(config.Default())
	if err != nil {
		return err
	}
	defer cleanup()

	out, err := machine.Run(expr)
	if err != nil {
		printError(err)
		return err
	}
	fmt.Print(out)
	return nil
}

func runDebug(path string) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	machine, cleanup, err := buildVM(config.Default())
	if err != nil {
		return err
	}
	defer cleanup()

	session := debug.New(machine)
	if err := session.Load(string(source)); err != nil {
		printError(err)
		return err
	}

	printInfo("nimmy debugger — commands: n(ext) s(tep) o(out) c(ontinue) l(ocals) b <line> q(uit)")
	reader := bufio.NewReader(os.Stdin)

	for !machine.IsFinished() {
		fmt.Printf("%d> ", session.CurrentLine())
		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		if quit := handleDebugCommand(session, line); quit {
			break
		}
	}
	return nil
}

func handleDebugCommand(session *debug.Session, line string) (quit bool) {
	cmd := parseDebugCommand(line)
	switch cmd.name {
	case "n":
		reportStepErr(session.StepOver())
	case "s":
		reportStepErr(session.StepInto())
	case "o":
		reportStepErr(session.StepOut())
	case "c":
		reportStepErr(session.Continue())
	case "l":
		fmt.Println(session.FormatLocals())
	case "b":
		if cmd.line > 0 {
			session.AddBreakpoint(cmd.line)
			printInfo(fmt.Sprintf("breakpoint set at line %d", cmd.line))
		}
	case "q":
		return true
	default:
		printWarning("unknown command")
	}
	return false
}

type debugCommand struct {
	name string
	line int
}

func parseDebugCommand(line string) debugCommand {
	var name string
	var n int
	fmt.Sscanf(line, "%s %d", &name, &n)
	return debugCommand{name: name, line: n}
}

func reportStepErr(err error) {
	if err != nil {
		printError(err)
	}
}

var (
	infoColor    = color.New(color.FgCyan)
	successColor = color.New(color.FgGreen)
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
)

func printInfo(msg string)    { infoColor.Printf("[INFO] %s\n", msg) }
func printSuccess(msg string) { successColor.Printf("[SUCCESS] %s\n", msg) }
func printWarning(msg string) { warningColor.Printf("[WARNING] %s\n", msg) }
func printError(err error)    { errorColor.Printf("[ERROR] %s\n", err.Error()) }

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"oopcheck/internal/checker"
	"oopcheck/internal/config"
	"oopcheck/internal/cppsource"
	"oopcheck/internal/extractor"
	"oopcheck/internal/logger"
	"oopcheck/internal/storage"
	"oopcheck/internal/suite"
)

var (
	rootCmd = &cobra.Command{
		Use:           "oopcheck",
		Short:         "Check the class structure of a C++ program against a logic query",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}

	cfg *config.Config

	configPath string
	dbPath     string
	logLevel   string
	logJSON    bool
	stepBudget int

	target   string
	frontend string
	goal     string
	save     bool
	explain  bool
	runID    string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "error: %v\n", err)
	if hint := errors.FlattenHints(err); hint != "" {
		fmt.Fprintf(w, "hint: %s\n", hint)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the YAML config file")
	pf.StringVarP(&dbPath, "db", "d", "", "Path to the runs database (SQLite)")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.BoolVar(&logJSON, "log-json", false, "Log as JSON")
	pf.IntVar(&stepBudget, "step-budget", 0, "Maximum evaluation steps per query (0 = unlimited)")

	for _, cmd := range []*cobra.Command{checkCmd, factsCmd} {
		cmd.Flags().StringVarP(&target, "target", "t", "", "Source file whose declarations are checked (loc.file in the AST)")
		cmd.Flags().StringVarP(&frontend, "frontend", "f", "", "Input front end: auto, clang or cpp")
		cmd.Flags().BoolVar(&save, "save", false, "Persist the extracted facts as a run")
	}
	checkCmd.Flags().StringVarP(&goal, "query", "q", "", "Goal to prove (may also be given as the second argument)")
	for _, cmd := range []*cobra.Command{checkCmd, queryCmd} {
		cmd.Flags().BoolVar(&explain, "explain", false, "Print the bindings of the first solution")
	}
	queryCmd.Flags().StringVarP(&runID, "run", "r", "", "Id (or unique prefix) of a saved run")
	_ = queryCmd.MarkFlagRequired("run")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(factsCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(suiteCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(astCmd)
}

// setup loads the config, lets explicit flags override it and initializes
// the logger.
func setup(cmd *cobra.Command) error {
	var err error
	cfg, err = config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Storage.DBPath = dbPath
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-json") {
		cfg.Log.JSON = logJSON
	}
	if flags.Changed("step-budget") {
		cfg.Check.StepBudget = stepBudget
	}
	if f := cmd.Flags().Lookup("frontend"); f != nil && f.Changed {
		cfg.Check.Frontend = frontend
	}

	return logger.Initialize(cfg.Log.Level, cfg.Log.JSON)
}

func newChecker() *checker.Checker {
	return checker.New(checker.Options{StepBudget: cfg.Check.StepBudget}, logger.Logger.Named("checker"))
}

func openStore() (*storage.SQLiteStore, error) {
	return storage.NewSQLiteStore(cfg.Storage.DBPath)
}

func input(path string) (checker.Input, error) {
	fe, err := checker.ParseFrontend(cfg.Check.Frontend)
	if err != nil {
		return checker.Input{}, err
	}
	return checker.Input{Path: path, Target: target, Frontend: fe}, nil
}

// saveRun persists an extraction and reports the new run id on stderr.
func saveRun(ctx context.Context, cmd *cobra.Command, in checker.Input, res *extractor.Result) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	fe := in.Frontend
	if fe == checker.FrontendAuto || fe == "" {
		fe = checker.DetectFrontend(in.Path)
	}
	tgt := in.Target
	if tgt == "" {
		tgt = in.Path
	}
	run := storage.NewRun(in.Path, tgt, string(fe))
	run.Diagnostics = res.Diagnostics
	if err := store.SaveRun(ctx, run, res.Store.All()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "saved run %s (%d facts)\n", run.ID, run.FactCount)
	return nil
}

func printOutcome(w io.Writer, out checker.Outcome) {
	fmt.Fprintln(w, out.Verdict)
	if !explain || !out.Result.Found {
		return
	}
	names := make([]string, 0, len(out.Result.Bindings))
	for name := range out.Result.Bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s = %s\n", name, out.Result.Bindings[name])
	}
}

var checkCmd = &cobra.Command{
	Use:   "check <input> [query]",
	Short: "Extract facts from a Clang JSON AST or C++ source and prove a goal",
	Long: `Extract facts from a Clang JSON AST dump (clang++ -Xclang -ast-dump=json
-fsyntax-only) or a C++ source file, then prove the goal against them.
Prints PASSED or FAILED. Any error exits non-zero without a verdict.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		q := goal
		if len(args) == 2 {
			if q != "" {
				return errors.New("query given both as --query and as an argument")
			}
			q = args[1]
		}
		if strings.TrimSpace(q) == "" {
			return errors.WithHint(errors.New("no query"), "e.g. oopcheck check ast.json -t animal.cpp \"class('Animal')\"")
		}

		in, err := input(args[0])
		if err != nil {
			return err
		}
		report, err := newChecker().Run(ctx, in, q)
		if err != nil {
			return err
		}
		if save {
			if err := saveRun(ctx, cmd, in, report.Extraction); err != nil {
				return err
			}
		}
		printOutcome(cmd.OutOrStdout(), report.Outcome)
		return nil
	},
}

var factsCmd = &cobra.Command{
	Use:   "facts <input>",
	Short: "Print the facts extracted from an input",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		in, err := input(args[0])
		if err != nil {
			return err
		}
		res, err := newChecker().Load(ctx, in)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, f := range res.Store.All() {
			fmt.Fprintln(out, f)
		}
		for _, d := range res.Diagnostics {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", d)
		}

		if save {
			return saveRun(ctx, cmd, in, res)
		}
		return nil
	},
}

var queryCmd = &cobra.Command{
	Use:   "query <goal>",
	Short: "Prove a goal against a saved run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := store.ResolveRunID(ctx, runID)
		if err != nil {
			return err
		}
		_, fs, err := store.LoadRun(ctx, id)
		if err != nil {
			return err
		}

		out, err := newChecker().Check(ctx, fs, args[0])
		if err != nil {
			return err
		}
		printOutcome(cmd.OutOrStdout(), out)
		return nil
	},
}

var suiteCmd = &cobra.Command{
	Use:   "suite <file.yaml>",
	Short: "Run a YAML suite of goals with expected verdicts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := suite.Load(args[0])
		if err != nil {
			return err
		}
		runner := suite.NewRunner(newChecker(), logger.Logger.Named("suite"))
		report, err := runner.Run(cmd.Context(), s)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, r := range report.Results {
			switch {
			case r.Err != nil:
				fmt.Fprintf(out, "ERROR %s: %v\n", r.Check.Name, r.Err)
			case r.OK():
				fmt.Fprintf(out, "ok    %s\n", r.Check.Name)
			default:
				fmt.Fprintf(out, "FAIL  %s: expected %s, got %s\n", r.Check.Name, r.Check.Expect, r.Verdict)
			}
		}
		fmt.Fprintf(out, "%d passed, %d failed, %d errors\n", report.Passed, report.Failed, report.Errored)

		if !report.OK() {
			return errors.Newf("%d of %d checks did not match", report.Failed+report.Errored, len(report.Results))
		}
		return nil
	},
}

var astCmd = &cobra.Command{
	Use:   "ast <file.cpp>",
	Short: "Print the Clang-style JSON AST the C++ source front end produces",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := cppsource.NewParser(logger.Logger.Named("cppsource"))
		root, err := p.ParseFile(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(root)
	},
}

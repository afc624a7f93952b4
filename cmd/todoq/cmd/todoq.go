package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"todoq/internal/utils"
)

// Version information, set at build time
var (
	Version = "dev"
	Commit  = "unknown"
)

// Result codes for JSON output
const (
	ResultActionCompleted = "ACTION_COMPLETED"
	ResultInfoOnly        = "INFO_ONLY"
	ResultError           = "ERROR"
)

// Config holds process-level settings that tests inject instead of flags
type Config struct {
	ConfigPath   string // config file, XDG default when empty
	Endpoint     string // overrides endpoint.url
	DataDir      string // where the mutation journal lives, XDG data dir when empty
	Verbose      bool
	OutputFormat string
}

// Execute runs the CLI with the given arguments and IO writers
func Execute(args []string, stdout, stderr io.Writer, cfg *Config) int {
	rootCmd := NewTodoQ(stdout, stderr, cfg)

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		if containsJSONFlag(args) || (cfg != nil && cfg.OutputFormat == "json") {
			outputErrorJSON(err, stdout)
		} else {
			_, _ = fmt.Fprintln(stderr, "Error:", err)
		}
		return 1
	}
	return 0
}

// containsJSONFlag checks if args contain --json flag
func containsJSONFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--json" {
			return true
		}
	}
	return false
}

// NewTodoQ creates the root command with injectable IO
func NewTodoQ(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	if cfg == nil {
		cfg = &Config{}
	}

	v := viper.New()
	v.SetEnvPrefix("TODOQ")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("config", cfg.ConfigPath)
	v.SetDefault("endpoint", cfg.Endpoint)
	v.SetDefault("verbose", cfg.Verbose)
	v.SetDefault("json", cfg.OutputFormat == "json")

	env := &environment{cfg: cfg, viper: v, stdout: stdout, stderr: stderr}

	cmd := &cobra.Command{
		Use:   "todoq",
		Short: "A todo list client that stays responsive while the server catches up",
		Long: "todoq keeps a todo list in sync with a remote collection endpoint. Changes show up\n" +
			"immediately and are rolled back if the server rejects them.",
		Version: Version,
		Args:    cobra.NoArgs,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			utils.SetVerboseMode(v.GetBool("verbose"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if isTerminal(stdout) && !v.GetBool("json") {
				return runTUI(cmd.Context(), env)
			}
			return runList(cmd.Context(), env)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to config file (default $XDG_CONFIG_HOME/todoq/config.yaml)")
	cmd.PersistentFlags().String("endpoint", "", "Collection endpoint URL (overrides endpoint.url)")
	cmd.PersistentFlags().BoolP("verbose", "V", false, "Enable verbose/debug output")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	for _, name := range []string{"config", "endpoint", "verbose", "json"} {
		_ = v.BindPFlag(name, cmd.PersistentFlags().Lookup(name))
	}

	cmd.AddCommand(newTUICmd(env))
	cmd.AddCommand(newListCmd(env))
	cmd.AddCommand(newAddCmd(env))
	cmd.AddCommand(newEditCmd(env))
	cmd.AddCommand(newRemoveCmd(env))
	cmd.AddCommand(newServeCmd(env))
	cmd.AddCommand(newStatsCmd(env))
	cmd.AddCommand(newConfigCmd(env))
	cmd.AddCommand(newVersionCmd(env))

	return cmd
}

// newVersionCmd creates the 'version' subcommand
func newVersionCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if env.jsonOutput() {
				return writeJSON(env.stdout, map[string]string{"version": Version, "commit": Commit, "result": ResultInfoOnly})
			}
			_, _ = fmt.Fprintf(env.stdout, "todoq\nVersion: %s\nCommit: %s\n", Version, Commit)
			return nil
		},
	}
}

// environment is what every subcommand needs: injected settings, the merged
// flag/env view and the output streams
type environment struct {
	cfg    *Config
	viper  *viper.Viper
	stdout io.Writer
	stderr io.Writer
}

func (e *environment) jsonOutput() bool {
	return e.viper.GetBool("json")
}

// isTerminal reports whether w is an interactive terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

type errorResponse struct {
	Error      string `json:"error"`
	Suggestion string `json:"suggestion,omitempty"`
	Code       int    `json:"code"`
	Result     string `json:"result"`
}

// outputErrorJSON outputs error in JSON format
func outputErrorJSON(err error, stdout io.Writer) {
	response := errorResponse{
		Error:  err.Error(),
		Code:   1,
		Result: ResultError,
	}
	var ews *utils.ErrorWithSuggestion
	if errors.As(err, &ews) {
		response.Error = ews.Err.Error()
		response.Suggestion = ews.Suggestion
	}

	jsonBytes, _ := sonic.ConfigStd.Marshal(response)
	_, _ = fmt.Fprintln(stdout, string(jsonBytes))
}

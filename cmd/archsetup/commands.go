package archsetup

import (
	"fmt"
	"os"

	"github.com/arthur-debert/archsetup/internal/version"
	"github.com/arthur-debert/archsetup/pkg/config"
	"github.com/arthur-debert/archsetup/pkg/errors"
	"github.com/arthur-debert/archsetup/pkg/filesystem"
	"github.com/arthur-debert/archsetup/pkg/identity"
	"github.com/arthur-debert/archsetup/pkg/logging"
	"github.com/arthur-debert/archsetup/pkg/provision"
	"github.com/arthur-debert/archsetup/pkg/runner"
	"github.com/arthur-debert/archsetup/pkg/ui"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

// Identity resolves who archsetup acts for
type Identity interface {
	provision.Privileges
	Current() (*identity.User, error)
}

// Environment holds the system seams the commands run against
type Environment struct {
	Identity Identity
	FS       filesystem.FS
	// NewRunner builds the subprocess runner once flags are parsed
	NewRunner func(opts runner.Options) runner.Runner
	// Config is the base of every configuration load; flags fill in the rest
	Config   config.LoadOptions
	TempRoot string
}

// DefaultEnvironment is the real system
func DefaultEnvironment() Environment {
	return Environment{
		Identity:  identity.NewResolver(),
		FS:        filesystem.NewOS(),
		NewRunner: func(opts runner.Options) runner.Runner { return runner.New(opts) },
	}
}

type globalFlags struct {
	verbosity  int
	dryRun     bool
	configPath string
	format     string
	overrides  []string
}

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	return newRootCmd(DefaultEnvironment())
}

func newRootCmd(env Environment) *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:     "archsetup",
		Short:   MsgRootShort,
		Long:    MsgRootLong,
		Example: MsgRootExample,
		Version: version.Version,
		Args:    cobra.NoArgs,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(flags.verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProvision(cmd, env, flags)
		},
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}

	rootCmd.PersistentFlags().CountVarP(&flags.verbosity, "verbose", "v", MsgFlagVerbose)
	rootCmd.PersistentFlags().BoolVar(&flags.dryRun, "dry-run", false, MsgFlagDryRun)
	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", MsgFlagConfig)
	rootCmd.PersistentFlags().StringVarP(&flags.format, "format", "f", "auto", MsgFlagFormat)
	rootCmd.PersistentFlags().StringArrayVar(&flags.overrides, "set", nil, MsgFlagSet)

	rootCmd.AddCommand(newPlanCmd(env, flags))
	rootCmd.AddCommand(newStatusCmd(env, flags))
	rootCmd.AddCommand(newGenConfigCmd(env, flags))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())
	rootCmd.AddCommand(newManCmd())

	return rootCmd
}

// runProvision is the full run. The privilege check comes first so a
// regular user is turned away before configuration is even read.
func runProvision(cmd *cobra.Command, env Environment, flags *globalFlags) error {
	logger := logging.GetLogger("cmd.archsetup")

	renderer, err := newRenderer(cmd, flags)
	if err != nil {
		return err
	}

	if err := env.Identity.RequireSuperuser(); err != nil {
		return report(renderer, err)
	}

	user, err := env.Identity.Invoker()
	if err != nil {
		return report(renderer, err)
	}

	cfg, err := loadConfig(env, flags, user)
	if err != nil {
		return report(renderer, err)
	}

	logger.Info().
		Bool("dryRun", flags.dryRun).
		Str("user", user.Name).
		Strs("configSources", cfg.Sources).
		Msg("Starting provisioning")

	p := provision.New(provision.Options{
		Privileges: env.Identity,
		Config:     cfg,
		Runner:     env.NewRunner(runnerOptions(cmd, flags)),
		FS:         env.FS,
		TempRoot:   env.TempRoot,
		DryRun:     flags.dryRun,
		Observer:   renderer,
	})

	result, runErr := p.Run(cmd.Context())
	if result != nil {
		if err := renderer.RenderResult(result); err != nil {
			logger.Warn().Err(err).Msg(MsgErrRender)
		}
	}
	if runErr != nil {
		return report(renderer, runErr)
	}

	logger.Info().Int("steps", len(result.Steps)).Msg("Provisioning finished")
	return nil
}

func newPlanCmd(env Environment, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: MsgPlanShort,
		Long:  MsgPlanLong,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			renderer, user, cfg, err := prepareReadOnly(cmd, env, flags)
			if err != nil {
				return err
			}

			p := provision.New(provision.Options{
				Privileges: env.Identity,
				Config:     cfg,
				Runner:     env.NewRunner(runnerOptions(cmd, flags)),
				FS:         env.FS,
			})
			return renderer.RenderPlan(p.Plan(user))
		},
	}
}

func newStatusCmd(env Environment, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: MsgStatusShort,
		Long:  MsgStatusLong,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			renderer, user, cfg, err := prepareReadOnly(cmd, env, flags)
			if err != nil {
				return err
			}

			p := provision.New(provision.Options{
				Privileges: env.Identity,
				Config:     cfg,
				Runner:     env.NewRunner(runnerOptions(cmd, flags)),
				FS:         env.FS,
			})
			status, err := p.Status(cmd.Context(), user)
			if err != nil {
				return report(renderer, err)
			}
			return renderer.RenderStatus(status)
		},
	}
}

func newGenConfigCmd(env Environment, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "genconfig",
		Short: MsgGenConfigShort,
		Long:  MsgGenConfigLong,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := actingUser(env)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(env, flags, user)
			if err != nil {
				return err
			}
			out, err := cfg.TOML()
			if err != nil {
				return errors.Wrap(err, errors.ErrInternal, "failed to encode configuration")
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: MsgVersionShort,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), MsgVersionFormat, version.Version, version.Commit, version.Date)
		},
	}
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:                   "completion [bash|zsh|fish|powershell]",
		Short:                 MsgCompletionShort,
		Long:                  MsgCompletionLong,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			default:
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
		},
	}
}

func newManCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:    "man",
		Short:  MsgManShort,
		Args:   cobra.NoArgs,
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return errors.Wrapf(err, errors.ErrDirCreate, MsgErrManDir, dir)
			}
			header := &doc.GenManHeader{Title: "ARCHSETUP", Section: "1"}
			if err := doc.GenManTree(cmd.Root(), header, dir); err != nil {
				return errors.Wrap(err, errors.ErrInternal, "failed to generate man pages")
			}
			fmt.Fprintf(cmd.OutOrStdout(), MsgManWritten, dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "man", MsgFlagManDir)
	return cmd
}

// prepareReadOnly sets up the commands that inspect without needing root
func prepareReadOnly(cmd *cobra.Command, env Environment, flags *globalFlags) (ui.Renderer, *identity.User, *config.Config, error) {
	renderer, err := newRenderer(cmd, flags)
	if err != nil {
		return nil, nil, nil, err
	}
	user, err := actingUser(env)
	if err != nil {
		return nil, nil, nil, report(renderer, err)
	}
	cfg, err := loadConfig(env, flags, user)
	if err != nil {
		return nil, nil, nil, report(renderer, err)
	}
	return renderer, user, cfg, nil
}

// actingUser is the invoking user of an elevated process, or the process's
// own user when it was started directly
func actingUser(env Environment) (*identity.User, error) {
	if user, err := env.Identity.Invoker(); err == nil {
		return user, nil
	}
	user, err := env.Identity.Current()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrIdentity, MsgErrResolveUser)
	}
	return user, nil
}

func loadConfig(env Environment, flags *globalFlags, user *identity.User) (*config.Config, error) {
	opts := env.Config
	if flags.configPath != "" {
		opts.ExplicitPath = flags.configPath
	}
	if opts.UserHome == "" && user != nil {
		opts.UserHome = user.Home
	}
	if len(flags.overrides) > 0 {
		overrides := make(map[string]string, len(opts.Overrides)+len(flags.overrides))
		for key, value := range opts.Overrides {
			overrides[key] = value
		}
		for _, assignment := range flags.overrides {
			key, value, err := config.ParseOverride(assignment)
			if err != nil {
				return nil, err
			}
			overrides[key] = value
		}
		opts.Overrides = overrides
	}
	return config.Load(opts)
}

func newRenderer(cmd *cobra.Command, flags *globalFlags) (ui.Renderer, error) {
	format, err := ui.ParseFormat(flags.format)
	if err != nil {
		return nil, err
	}
	return ui.NewRenderer(format, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// reportedError marks an error the renderer has already shown
type reportedError struct{ error }

func (e *reportedError) Unwrap() error { return e.error }

func report(renderer ui.Renderer, err error) error {
	if rerr := renderer.RenderError(err); rerr != nil {
		log.Warn().Err(rerr).Msg(MsgErrRender)
	}
	return &reportedError{err}
}

// Reported reports whether err was already shown to the user
func Reported(err error) bool {
	_, ok := err.(*reportedError)
	return ok
}

// runnerOptions keeps subprocess output off stdout when stdout carries JSON
func runnerOptions(cmd *cobra.Command, flags *globalFlags) runner.Options {
	opts := runner.Options{DryRun: flags.dryRun, Stderr: cmd.ErrOrStderr()}
	if format, _ := ui.ParseFormat(flags.format); format == ui.FormatJSON {
		opts.Stdout = cmd.ErrOrStderr()
	} else {
		opts.Stdout = cmd.OutOrStdout()
	}
	return opts
}

package archsetup

// Short messages (one-liners)
const (
	// Command descriptions
	MsgRootShort       = "Bootstrap an Arch Linux desktop"
	MsgPlanShort       = "Show what a run would execute"
	MsgStatusShort     = "Compare the machine against the configuration"
	MsgGenConfigShort  = "Print the effective configuration as TOML"
	MsgVersionShort    = "Print version information"
	MsgCompletionShort = "Generate shell completion script"
	MsgManShort        = "Generate man pages"

	// Status messages
	MsgVersionFormat = "archsetup version %s\n  commit: %s\n  built:  %s\n"
	MsgManWritten    = "Man pages written to %s\n"

	// Error messages
	MsgErrResolveUser = "failed to resolve the acting user"
	MsgErrRender      = "failed to render output"
	MsgErrManDir      = "failed to create man page directory %s"

	// Flag descriptions
	MsgFlagVerbose = "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)"
	MsgFlagDryRun  = "Log every change instead of making it"
	MsgFlagConfig  = "Configuration file merged over the system and user files"
	MsgFlagFormat  = "Output format: auto, term, text or json"
	MsgFlagSet     = "Override a configuration key, e.g. --set packages.community=zoom,spotify"
	MsgFlagManDir  = "Directory the man pages are written to"
)

// Long messages
const (
	MsgRootLong = `archsetup bootstraps an Arch Linux desktop in one run:

  1. checks that it runs as root and finds the user behind sudo, doas or pkexec
  2. upgrades the system with pacman
  3. installs the official packages in a single transaction
  4. builds and installs the AUR helper when it is missing
  5. installs the community packages through the helper as the invoking user
  6. links configuration from the workspace into place, owned by that user

Any failing step stops the run and archsetup exits with the failing
command's status. Running it again is safe: packages already installed are
skipped and links are replaced by identical ones.

Configuration is layered, later layers winning: built-in defaults,
/etc/archsetup/config.toml, the invoking user's
~/.config/archsetup/config.toml, --config, and ARCHSETUP_* variables
(ARCHSETUP_PACKAGES__EXTRA_OFFICIAL=foo,bar).`

	MsgRootExample = `  sudo archsetup                 # Run every step
  sudo archsetup --dry-run -v    # Log what would change
  archsetup plan                 # Show the commands a run would execute
  archsetup status               # Show what is missing`

	MsgPlanLong = `Plan lists every step with the exact commands a run would execute and the
user each command runs as. Nothing is executed except the lookup of the AUR
helper on PATH, so plan does not need root.

Terminal output is rendered Markdown; piped output is raw Markdown.`

	MsgStatusLong = `Status queries pacman for installed packages, looks up the AUR helper and
inspects every configured link. Link states:

  linked          the target points at the source
  absent          nothing at the target yet
  stale           the target is a link pointing elsewhere
  conflict        a real file or directory occupies the target
  missing-source  the workspace source does not exist

Status changes nothing and does not need root.`

	MsgGenConfigLong = `Print the configuration archsetup would use, with every layer merged, as a
TOML document. Redirect it to ~/.config/archsetup/config.toml to start a
personal configuration.`

	MsgCompletionLong = `To load completions:

Bash:
  $ source <(archsetup completion bash)
  # To load completions for each session, execute once:
  $ archsetup completion bash > /etc/bash_completion.d/archsetup

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it.  You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc
  # To load completions for each session, execute once:
  $ archsetup completion zsh > "${fpath[1]}/_archsetup"

Fish:
  $ archsetup completion fish | source
  # To load completions for each session, execute once:
  $ archsetup completion fish > ~/.config/fish/completions/archsetup.fish
`
)

// Package config resolves the remedy Environment: every path and policy
// default the pipeline needs, passed explicitly into each component instead
// of being read from ambient global state.
package config

import (
	stderrors "errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Igasawa/Skills-personal-sub001/internal/errors"
)

// Defaults for evidence bounds and loop policy.
const (
	DefaultReportsRoot       = "reports"
	DefaultLogTailMaxBytes   = 64 * 1024
	DefaultAuditTailMaxLines = 200
	DefaultCommandTimeout    = 10 * time.Minute
	DefaultMaxLoops          = 5
	DefaultMaxRuntimeMinutes = 30
	DefaultSameErrorLimit    = 3
	DefaultNoProgressLimit   = 3
	DefaultCommitTemplate    = "fix: resolve incident {incident_id} ({step})"
	DefaultCommitRemote      = "origin"
)

// Environment holds every resolved external dependency of the pipeline.
// Components receive it at construction; nothing reads os.Getenv later.
type Environment struct {
	// ReportsRoot is the directory holding error_inbox, error_plans,
	// error_runs, error_archive, and error_handoff.
	ReportsRoot string

	// RepoRoot is the git repository the commit gate operates on.
	// Empty means "resolve from the reports root's containing repo".
	RepoRoot string

	// RunRegistryPath maps run_id -> execution log path.
	RunRegistryPath string

	// MonthlyDirName is the per-cycle reports subdirectory holding
	// audit_log.jsonl files, keyed by YYYY-MM.
	MonthlyDirName string

	// PlaybookPath points at the optional playbooks.yaml used by the plan
	// synthesizer for per-failure-class defaults.
	PlaybookPath string

	// Evidence bounds.
	LogTailMaxBytes   int64
	AuditTailMaxLines int

	// CommandTimeout bounds each verification command.
	CommandTimeout time.Duration

	// Loop policy defaults, overridable per execute invocation.
	MaxLoops          int
	MaxRuntimeMinutes int
	SameErrorLimit    int
	NoProgressLimit   int

	// Commit gate defaults.
	CommitMessageTemplate string
	CommitRemote          string
}

// Overrides carries flag-level overrides into Load. Zero values mean
// "not set".
type Overrides struct {
	ReportsRoot string
	RepoRoot    string
	ConfigFile  string
}

// Load resolves the Environment. Precedence: flag overrides > REMEDY_*
// environment variables > remedy.yaml config file > built-in defaults.
// A .env file in the working directory is loaded first, best-effort.
func Load(cwd string, ov Overrides) (Environment, error) {
	_ = godotenv.Load(filepath.Join(cwd, ".env"))

	v := viper.New()
	v.SetDefault("reports_root", DefaultReportsRoot)
	v.SetDefault("repo_root", "")
	v.SetDefault("run_registry", "")
	v.SetDefault("monthly_dir", "monthly")
	v.SetDefault("playbook", "")
	v.SetDefault("log_tail_max_bytes", DefaultLogTailMaxBytes)
	v.SetDefault("audit_tail_max_lines", DefaultAuditTailMaxLines)
	v.SetDefault("command_timeout", DefaultCommandTimeout.String())
	v.SetDefault("max_loops", DefaultMaxLoops)
	v.SetDefault("max_runtime_minutes", DefaultMaxRuntimeMinutes)
	v.SetDefault("same_error_limit", DefaultSameErrorLimit)
	v.SetDefault("no_progress_limit", DefaultNoProgressLimit)
	v.SetDefault("commit_message_template", DefaultCommitTemplate)
	v.SetDefault("commit_remote", DefaultCommitRemote)

	v.SetEnvPrefix("REMEDY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if ov.ConfigFile != "" {
		v.SetConfigFile(ov.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Environment{}, errors.Wrap(errors.EInvalidConfig, "failed to read config file "+ov.ConfigFile, err)
		}
	} else {
		v.SetConfigName("remedy")
		v.SetConfigType("yaml")
		v.AddConfigPath(cwd)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !stderrors.As(err, &notFound) {
				return Environment{}, errors.Wrap(errors.EInvalidConfig, "failed to parse remedy.yaml", err)
			}
		}
	}

	env := Environment{
		ReportsRoot:           v.GetString("reports_root"),
		RepoRoot:              v.GetString("repo_root"),
		RunRegistryPath:       v.GetString("run_registry"),
		MonthlyDirName:        v.GetString("monthly_dir"),
		PlaybookPath:          v.GetString("playbook"),
		LogTailMaxBytes:       v.GetInt64("log_tail_max_bytes"),
		AuditTailMaxLines:     v.GetInt("audit_tail_max_lines"),
		MaxLoops:              v.GetInt("max_loops"),
		MaxRuntimeMinutes:     v.GetInt("max_runtime_minutes"),
		SameErrorLimit:        v.GetInt("same_error_limit"),
		NoProgressLimit:       v.GetInt("no_progress_limit"),
		CommitMessageTemplate: v.GetString("commit_message_template"),
		CommitRemote:          v.GetString("commit_remote"),
	}

	timeout, err := time.ParseDuration(v.GetString("command_timeout"))
	if err != nil {
		return Environment{}, errors.Wrap(errors.EInvalidConfig, "invalid command_timeout", err)
	}
	env.CommandTimeout = timeout

	if ov.ReportsRoot != "" {
		env.ReportsRoot = ov.ReportsRoot
	}
	if ov.RepoRoot != "" {
		env.RepoRoot = ov.RepoRoot
	}

	if !filepath.IsAbs(env.ReportsRoot) {
		env.ReportsRoot = filepath.Join(cwd, env.ReportsRoot)
	}
	if env.RunRegistryPath == "" {
		env.RunRegistryPath = filepath.Join(env.ReportsRoot, "run_registry.json")
	}
	if env.PlaybookPath == "" {
		env.PlaybookPath = filepath.Join(cwd, "playbooks.yaml")
	}

	return env, nil
}

// MonthlyAuditPath returns the audit trail path for a YYYY-MM cycle.
func (e Environment) MonthlyAuditPath(ym string) string {
	if ym == "" {
		return ""
	}
	return filepath.Join(e.ReportsRoot, e.MonthlyDirName, ym, "audit_log.jsonl")
}

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/backbill/chronicle/client"
)

// defaultURL is the server URL assumed when nothing else is configured.
const defaultURL = "http://localhost:3040"

// Build-time variables set via ldflags.
var (
	version   = "0.3.0"
	commit    = ""
	buildDate = ""
)

var (
	apiClient     *client.Client
	flagURL       string
	flagKey       string
	flagFmt       string
	flagActor     string
	flagActorName string
)

func versionString() string {
	if commit != "" && buildDate != "" {
		return fmt.Sprintf("chronicle version %s (commit: %s, built: %s)", version, commit, buildDate)
	}
	return fmt.Sprintf("chronicle version %s-dev", version)
}

// configFile is the ~/.chronicle/config.yaml structure. The flat url/api_key
// form and the profiles form are both accepted.
type configFile struct {
	URL       string `yaml:"url"`
	APIKey    string `yaml:"api_key"`
	ActorID   string `yaml:"actor_id"`
	ActorName string `yaml:"actor_name"`

	Profiles      map[string]configProfile `yaml:"profiles"`
	ActiveProfile string                   `yaml:"active_profile"`
}

type configProfile struct {
	URL       string `yaml:"url"`
	APIKey    string `yaml:"api_key"`
	ActorID   string `yaml:"actor_id"`
	ActorName string `yaml:"actor_name"`
}

func main() {
	rootCmd := &cobra.Command{
		Use:     "chronicle",
		Short:   "Chronicle CLI — audit and versioning for the ISP back office",
		Version: versionString(),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			resolveConfig()
			var opts []client.Option
			if flagKey != "" {
				opts = append(opts, client.WithAPIKey(flagKey))
			}
			if flagActor != "" {
				opts = append(opts, client.WithActor(flagActor, flagActorName))
			}
			apiClient = client.New(flagURL, opts...)
		},
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&flagURL, "url", defaultURL, "Chronicle server URL (env: CHRONICLE_URL)")
	rootCmd.PersistentFlags().StringVar(&flagKey, "api-key", "", "API key (env: CHRONICLE_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&flagActor, "actor", "", "Actor ID for audit attribution (env: CHRONICLE_ACTOR_ID)")
	rootCmd.PersistentFlags().StringVar(&flagActorName, "actor-name", "", "Actor display name (env: CHRONICLE_ACTOR_NAME)")
	rootCmd.PersistentFlags().StringVar(&flagFmt, "format", "json", "Output format: json|table|quiet")

	initCmd := newInitCmd()
	initCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {} // skip client setup
	doctorCmd := newDoctorCmd()
	doctorCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {} // skip client setup

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(newEntityCmd())
	rootCmd.AddCommand(newAuditCmd())
	rootCmd.AddCommand(newQueueCmd())
	rootCmd.AddCommand(newSnapshotCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveConfig() {
	// Flag takes precedence, then env, then config file.
	if flagURL == defaultURL {
		if v := os.Getenv("CHRONICLE_URL"); v != "" {
			flagURL = v
		}
	}
	if flagKey == "" {
		flagKey = os.Getenv("CHRONICLE_API_KEY")
	}
	if flagActor == "" {
		flagActor = os.Getenv("CHRONICLE_ACTOR_ID")
	}
	if flagActorName == "" {
		flagActorName = os.Getenv("CHRONICLE_ACTOR_NAME")
	}

	// Try config file for any remaining defaults.
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	cfgPath := filepath.Join(home, ".chronicle", "config.yaml")
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return
	}
	var cfg configFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return
	}
	// Resolve from profiles if available, fall back to flat format.
	resolved := configProfile{
		URL:       cfg.URL,
		APIKey:    cfg.APIKey,
		ActorID:   cfg.ActorID,
		ActorName: cfg.ActorName,
	}
	if cfg.Profiles != nil {
		profileName := cfg.ActiveProfile
		if profileName == "" {
			profileName = "default"
		}
		if p, ok := cfg.Profiles[profileName]; ok {
			if p.URL != "" {
				resolved.URL = p.URL
			}
			if p.APIKey != "" {
				resolved.APIKey = p.APIKey
			}
			if p.ActorID != "" {
				resolved.ActorID = p.ActorID
			}
			if p.ActorName != "" {
				resolved.ActorName = p.ActorName
			}
		}
	}
	if flagURL == defaultURL && resolved.URL != "" {
		flagURL = resolved.URL
	}
	if flagKey == "" && resolved.APIKey != "" {
		flagKey = resolved.APIKey
	}
	if flagActor == "" && resolved.ActorID != "" {
		flagActor = resolved.ActorID
	}
	if flagActorName == "" && resolved.ActorName != "" {
		flagActorName = resolved.ActorName
	}
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	os.Exit(1)
}

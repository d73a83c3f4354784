// Package main implements the bwsandbox CLI.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Use-Tusk/bwsandbox/internal/bwrap"
	"github.com/Use-Tusk/bwsandbox/internal/config"
	"github.com/Use-Tusk/bwsandbox/internal/scope"
)

// Build-time variables (set via -ldflags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

var (
	debug         bool
	profilePath   string
	templateName  string
	listTemplates bool
	showVersion   bool
	bwrapPath     string
	exitCode      int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "bwsandbox [flags] -- [payload args...]",
		Short: "Run a command in a bubblewrap sandbox configured by a profile",
		Long: `bwsandbox runs a payload command inside a bubblewrap sandbox whose
services (seccomp filtering, network isolation, D-Bus proxying, environment
scrubbing, AppImage support) are configured by a single JSON-with-comments
profile document.

Examples:
  bwsandbox --profile ./sandbox.jsonc -- npm install
  bwsandbox --template bash
  bwsandbox --list-templates`,
		RunE:          runCommand,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
	}

	rootCmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	rootCmd.Flags().StringVarP(&profilePath, "profile", "p", "", "Path to profile document")
	rootCmd.Flags().StringVarP(&templateName, "template", "t", "", "Use a built-in command template (e.g. bash, sh, node)")
	rootCmd.Flags().BoolVar(&listTemplates, "list-templates", false, "List available command templates")
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "Show version information")
	rootCmd.Flags().StringVar(&bwrapPath, "bwrap-path", "", "Override the resolved bwrap binary")
	rootCmd.Flags().SetInterspersed(true)

	if err := rootCmd.Execute(); err != nil {
		// One-line human message plus a debug-formatted full structure to
		// the trace log, per spec.md §7.
		if debug {
			logrus.SetLevel(logrus.DebugLevel)
		}
		logrus.WithField("error", fmt.Sprintf("%+v", err)).Debug("bwsandbox: failing")
		fmt.Fprintf(os.Stderr, "bwsandbox: %v\n", err)
		exitCode = 1
	}
	os.Exit(exitCode)
}

func runCommand(cmd *cobra.Command, args []string) error {
	if showVersion {
		fmt.Printf("bwsandbox - bubblewrap sandbox orchestrator\n")
		fmt.Printf("  Version: %s\n", version)
		fmt.Printf("  Built:   %s\n", buildTime)
		fmt.Printf("  Commit:  %s\n", gitCommit)
		return nil
	}

	if listTemplates {
		fmt.Println("Available command templates:")
		for _, name := range config.TemplateNames() {
			fmt.Printf("  %s\n", name)
		}
		fmt.Println("Available sandbox templates:")
		for _, name := range config.SandboxTemplateNames() {
			fmt.Printf("  %s\n", name)
		}
		return nil
	}

	log := logrus.New()
	if debug {
		log.SetLevel(logrus.DebugLevel)
	}

	var profile *config.Profile
	switch {
	case profilePath != "":
		p, err := config.Load(profilePath)
		if err != nil {
			return fmt.Errorf("failed to load profile: %w", err)
		}
		profile = p
	case templateName != "":
		profile = &config.Profile{Command: config.CommandSpec{Template: templateName}}
	default:
		return fmt.Errorf("no profile specified: use --profile or --template (see --list-templates)")
	}

	if templateName != "" {
		profile.Command.Template = templateName
	}

	spec, err := config.ResolveTemplate(profile.Command)
	if err != nil {
		return fmt.Errorf("failed to resolve command: %w\nUse --list-templates to see available templates", err)
	}
	if spec.Executable == "" {
		if len(args) == 0 {
			return fmt.Errorf("no command specified: provide a payload executable via the profile or command line")
		}
		spec.Executable = args[0]
		args = args[1:]
	}
	payloadArgs := append(append([]string{}, spec.Args...), args...)

	if debug {
		fmt.Fprintf(os.Stderr, "[bwsandbox] Command: %s %s\n", spec.Executable, strings.Join(payloadArgs, " "))
	}

	services, err := config.BuildServices(profile, log)
	if err != nil {
		return fmt.Errorf("failed to build services: %w", err)
	}

	runtime := config.DefaultRuntime()
	if bwrapPath != "" {
		runtime.BwrapPath = bwrapPath
	}
	resolvedBwrapPath, err := resolveBwrapPath(runtime.BwrapPath)
	if err != nil {
		return fmt.Errorf("failed to locate bwrap: %w", err)
	}

	sandboxArgs, err := config.ResolveSandboxArgs(profile.Sandbox)
	if err != nil {
		return fmt.Errorf("failed to resolve sandbox arguments: %w", err)
	}

	builder, err := bwrap.New(resolvedBwrapPath, runtime.RuntimeDir, sandboxArgs, log)
	if err != nil {
		return fmt.Errorf("failed to initialize sandbox builder: %w", err)
	}
	if err := builder.ApplyServices(services); err != nil {
		return fmt.Errorf("failed to apply services: %w", err)
	}

	cleanup := scope.NewCleanup(builder.Scope(), log)
	defer cleanup.Close()

	proc, err := builder.Spawn(spec.Executable, payloadArgs)
	if err != nil {
		return fmt.Errorf("failed to spawn sandbox: %w", err)
	}
	defer func() { _ = proc.Close() }()

	handles, err := proc.StartServices(services)
	if err != nil {
		return fmt.Errorf("failed to start services: %w", err)
	}
	defer func() {
		for i := len(handles) - 1; i >= 0; i-- {
			if cerr := handles[i].Close(); cerr != nil {
				log.WithError(cerr).Warn("bwsandbox: failed to close service handle")
			}
		}
	}()

	payloadExitCode, err := proc.Wait()
	if err != nil {
		log.WithError(err).Debug("bwsandbox: bwrap reap reported an error alongside an exit code")
	}
	exitCode = payloadExitCode
	return nil
}

func resolveBwrapPath(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	return exec.LookPath("bwrap")
}

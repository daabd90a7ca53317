package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"hooktrace/internal/app"
)

type ExitCoder interface {
	ExitCode() int
}

type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }
func (e *exitError) ExitCode() int { return e.code }

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if ex, ok := err.(ExitCoder); ok {
			os.Exit(ex.ExitCode())
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var jsonOutput bool

	newSvc := func() (*app.Service, error) {
		return app.New(app.Options{ConfigPath: configPath})
	}

	cmd := &cobra.Command{
		Use:           "hooktrace",
		Short:         "Export AI coding tool sessions as traces",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")

	cmd.AddCommand(newHookCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newEnableCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newDisableCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newStatusCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newDoctorCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newVersionCmd(&jsonOutput))
	cmd.AddCommand(newSelfCmd(newSvc, &jsonOutput))

	return cmd
}

func newHookCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	var tool string
	var providerName string
	cmd := &cobra.Command{
		Use:     "hook",
		Aliases: []string{"ingest", "run"},
		Short:   "Process one hook invocation from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			payload, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read hook payload: %w", err)
			}
			report, err := svc.HookRun(cmd.Context(), tool, payload, providerName)
			if err != nil {
				return err
			}
			if report.Skipped {
				return print(*jsonOutput, report, fmt.Sprintf("skipped %s %s", report.Tool, report.Kind))
			}
			msg := fmt.Sprintf("exported %d/%d turns for %s session %s", report.Emitted, report.Turns, report.Tool, report.SessionID)
			if len(report.ProviderErrors) > 0 {
				msg += fmt.Sprintf(" (%d provider errors)", len(report.ProviderErrors))
			}
			return print(*jsonOutput, report, msg)
		},
	}
	cmd.Flags().StringVar(&tool, "tool", "", "source tool name")
	cmd.Flags().StringVar(&providerName, "provider", "", "override export backend for this invocation")
	_ = cmd.MarkFlagRequired("tool")
	return cmd
}

func newEnableCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	var scope string
	var providerName string
	cmd := &cobra.Command{
		Use:     "enable <tool>",
		Aliases: []string{"on", "install"},
		Short:   "Register the hook in a tool's settings",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			change, err := svc.Enable(args[0], scope, providerName)
			if err != nil {
				return err
			}
			msg := fmt.Sprintf("enabled %s at %s", change.Tool, change.Path)
			if !change.Changed {
				msg = fmt.Sprintf("%s already enabled at %s", change.Tool, change.Path)
			}
			return print(*jsonOutput, change, msg)
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "settings scope: global|project|local")
	cmd.Flags().StringVar(&providerName, "provider", "", "export backend for this tool")
	return cmd
}

func newDisableCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:     "disable <tool>",
		Aliases: []string{"off", "uninstall"},
		Short:   "Remove the hook from a tool's settings",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			change, err := svc.Disable(args[0], scope)
			if err != nil {
				return err
			}
			msg := fmt.Sprintf("disabled %s (%s)", change.Tool, change.Path)
			if !change.Changed {
				msg = fmt.Sprintf("%s had no hook registered", change.Tool)
			}
			return print(*jsonOutput, change, msg)
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "settings scope: global|project|local")
	return cmd
}

func newStatusCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show tools, providers, and tracked sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			st, err := svc.Status()
			if err != nil {
				return err
			}
			if *jsonOutput {
				return print(true, st, "")
			}
			fmt.Printf("hooktrace %s\n", st.Version)
			fmt.Printf("config: %s\n", st.ConfigPath)
			if st.ProjectRoot != "" {
				fmt.Printf("project: %s\n", st.ProjectRoot)
			}
			fmt.Printf("provider: %s (%s)\n", st.Provider, st.ExportMode)
			fmt.Printf("sessions tracked: %d\n", st.Sessions)
			for _, row := range st.Tools {
				mark := " "
				if row.Enabled {
					mark = "*"
				}
				line := fmt.Sprintf("%s %-8s provider=%s", mark, row.Name, row.Provider)
				switch {
				case row.Registered:
					line += " registered at " + row.Path
				case row.Enabled:
					line += " NOT REGISTERED"
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}

func newDoctorCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	var enableDetected bool
	var strict bool
	cmd := &cobra.Command{
		Use:     "doctor",
		Aliases: []string{"diag", "checkup"},
		Short:   "Run diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			if enableDetected {
				changes, err := svc.EnableDetected("")
				if err != nil {
					return err
				}
				if !*jsonOutput && len(changes) > 0 {
					names := make([]string, 0, len(changes))
					for _, ch := range changes {
						names = append(names, ch.Tool)
					}
					fmt.Printf("enabled detected tools: %s\n", strings.Join(names, ", "))
				}
			}
			report := svc.DoctorRun()
			if *jsonOutput {
				if err := print(true, report, ""); err != nil {
					return err
				}
			} else if report.Healthy {
				fmt.Println("healthy")
			} else {
				fmt.Println("issues found:")
				for _, f := range report.Findings {
					fmt.Printf("- [%s] %s: %s\n", f.Level, f.Code, f.Message)
				}
			}
			if strict && !report.Healthy {
				return &exitError{code: 2, msg: fmt.Sprintf("DOC_UNHEALTHY: doctor found %d findings (strict mode)", len(report.Findings))}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&enableDetected, "enable-detected", false, "enable every detected tool first")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit 2 when findings are reported")
	return cmd
}

func newSelfCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	selfCmd := &cobra.Command{Use: "self", Short: "Manage hooktrace itself"}
	var channel string
	var requireSignatures bool
	updateCmd := &cobra.Command{
		Use:     "update",
		Aliases: []string{"upgrade", "up"},
		Short:   "Update the hooktrace binary with verification",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			res, err := svc.SelfUpdate(cmd.Context(), channel, requireSignatures)
			if err != nil {
				return err
			}
			if !res.Updated {
				return print(*jsonOutput, res, "up to date: "+res.Reason)
			}
			return print(*jsonOutput, res, fmt.Sprintf("updated to %s (%s)", res.Version, res.Channel))
		},
	}
	updateCmd.Flags().StringVar(&channel, "channel", "stable", "release channel")
	updateCmd.Flags().BoolVar(&requireSignatures, "require-signatures", false, "fail unless the release is signed")
	selfCmd.AddCommand(updateCmd)
	return selfCmd
}

func print(jsonOutput bool, payload any, message string) error {
	if jsonOutput {
		blob, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(blob))
		return nil
	}
	if message != "" {
		fmt.Println(message)
	}
	return nil
}

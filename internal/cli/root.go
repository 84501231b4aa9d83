// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	datahugger "github.com/eosc-data/datahugger-go"
	"github.com/eosc-data/datahugger-go/doi"
	"github.com/eosc-data/datahugger-go/download"
	"github.com/eosc-data/datahugger-go/internal/httpclient"
	"github.com/eosc-data/datahugger-go/internal/progress"
	"github.com/eosc-data/datahugger-go/internal/progresslog"
	"github.com/eosc-data/datahugger-go/internal/tui"
)

// RootOpts holds global CLI options, generalized from the teacher's
// single-repo RootOpts to the multi-backend Dataset model: Token now
// applies to whichever backend Resolve() picks rather than only the
// Hugging Face Hub.
type RootOpts struct {
	Token    string
	JSONOut  bool
	Quiet    bool
	Verbose  bool
	Config   string
	LogFile  string
	LogLevel string
}

// Execute runs the CLI with the given version string.
func Execute(version string) error {
	ro := &RootOpts{}
	ctx, cancel := signalContext(context.Background())
	defer cancel()

	root := &cobra.Command{
		Use:           "datahugger",
		Short:         "Fetch datasets from Dataverse, OSF, Zenodo, Dryad, DataONE, HAL, GitHub, Hugging Face and arXiv",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	root.PersistentFlags().StringVarP(&ro.Token, "token", "t", "", "Access token for the resolved backend (also reads its own env var, e.g. HF_TOKEN)")
	root.PersistentFlags().BoolVar(&ro.JSONOut, "json", false, "Emit machine-readable JSON progress events")
	root.PersistentFlags().BoolVarP(&ro.Quiet, "quiet", "q", false, "Quiet mode (minimal logs)")
	root.PersistentFlags().BoolVarP(&ro.Verbose, "verbose", "v", false, "Verbose logs (debug details)")
	root.PersistentFlags().StringVar(&ro.Config, "config", "", "Path to config file (JSON or YAML)")
	root.PersistentFlags().StringVar(&ro.LogFile, "log-file", "", "Write logs to file (in addition to stderr)")
	root.PersistentFlags().StringVar(&ro.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")

	downloadCmd := newDownloadCmd(ctx, ro)
	root.AddCommand(downloadCmd)
	root.AddCommand(newVersionCmd(version))
	root.AddCommand(newResolveDOICmd(ctx))
	root.AddCommand(newConfigCmd())

	root.SetHelpCommand(&cobra.Command{Use: "help", Hidden: true})

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return err
	}
	return nil
}

type downloadOpts struct {
	url              string
	dstDir           string
	limit            int
	crawlConcurrency int
	verify           string
	dryRun           bool
	planFormat       string
}

func newDownloadCmd(ctx context.Context, ro *RootOpts) *cobra.Command {
	opts := &downloadOpts{}

	cmd := &cobra.Command{
		Use:   "download [URL]",
		Short: "Resolve a dataset URL or DOI and download its files",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return applySettingsDefaults(cmd, ro, opts)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.url == "" && len(args) > 0 {
				opts.url = args[0]
			}
			if opts.url == "" {
				return fmt.Errorf("missing URL or DOI. Pass as positional arg or --url")
			}

			verify := download.Verify(opts.verify)
			if verify != download.VerifySize && verify != download.VerifyChecksum {
				return fmt.Errorf("invalid --verify %q (want size|checksum)", opts.verify)
			}

			if opts.dryRun {
				ds, err := datahugger.Resolve(ctx, opts.url, datahugger.Settings{
					Token:            resolveToken(ro),
					HTTPConfig:       httpclient.DefaultConfig(),
					CrawlConcurrency: opts.crawlConcurrency,
					DownloadLimit:    opts.limit,
					Verify:           verify,
				})
				if err != nil {
					return err
				}
				return runPlan(ctx, ds, opts.planFormat, ro.JSONOut)
			}

			ds, err := datahugger.Resolve(ctx, opts.url, datahugger.Settings{
				Token:            resolveToken(ro),
				HTTPConfig:       httpclient.DefaultConfig(),
				CrawlConcurrency: opts.crawlConcurrency,
				DownloadLimit:    opts.limit,
				Verify:           verify,
			})
			if err != nil {
				return err
			}

			var ui *tui.LiveRenderer
			switch {
			case ro.JSONOut:
				ds.WithProgress(progresslog.New(os.Stdout).Handler())
			case ro.Quiet:
				ds.WithProgress(cliProgress())
			default:
				ui = tui.NewLiveRenderer(tui.Header{
					DatasetID: ds.ID(),
					RootURL:   ds.RootURL(),
					DstDir:    opts.dstDir,
					Limit:     opts.limit,
					Verify:    string(verify),
				})
				defer ui.Close()
				ds.WithProgress(ui.Handler())
			}

			return ds.DownloadWithValidation(ctx, opts.dstDir, opts.limit)
		},
	}

	cmd.Flags().StringVarP(&opts.url, "url", "u", "", "Dataset URL or DOI. If omitted, the positional URL is used")
	cmd.Flags().StringVarP(&opts.dstDir, "to", "o", "Storage", "Destination base directory")
	cmd.Flags().IntVarP(&opts.limit, "limit", "l", 4, "Maximum number of files downloading at once")
	cmd.Flags().IntVarP(&opts.crawlConcurrency, "crawl-concurrency", "c", 8, "Crawl worker pool size")
	cmd.Flags().StringVar(&opts.verify, "verify", "size", "Post-download verification: size|checksum")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Crawl only: print the file list and exit")
	cmd.Flags().StringVar(&opts.planFormat, "plan-format", "table", "Plan output format for --dry-run: table|json")

	return cmd
}

type planItem struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

func runPlan(ctx context.Context, ds *datahugger.Dataset, format string, jsonOut bool) error {
	dual := ds.CrawlFiles(ctx)
	var items []planItem
	for {
		fe, ok, err := dual.NextBlocking()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		size := int64(0)
		if fe.Size != nil {
			size = *fe.Size
		}
		items = append(items, planItem{Path: fe.PathCrawlRel, Size: size})
	}

	if strings.ToLower(format) == "json" || jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}
	fmt.Printf("Plan for %s (%d files):\n", ds.RootURL(), len(items))
	for _, it := range items {
		fmt.Printf("  %s  %8d\n", it.Path, it.Size)
	}
	return nil
}

func newResolveDOICmd(ctx context.Context) *cobra.Command {
	var noFollow bool
	cmd := &cobra.Command{
		Use:   "resolve-doi DOI",
		Short: "Resolve a bare DOI to its landing-page URL, without matching it against a backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := doi.NewResolver(15 * time.Second)
			target, err := r.Resolve(ctx, args[0], !noFollow)
			if err != nil {
				return err
			}
			fmt.Println(target)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noFollow, "no-follow", false, "Stop at the first redirect instead of following the whole chain")
	return cmd
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func resolveToken(ro *RootOpts) string {
	tok := strings.TrimSpace(ro.Token)
	if tok != "" {
		return tok
	}
	return strings.TrimSpace(os.Getenv("HF_TOKEN"))
}

func applySettingsDefaults(cmd *cobra.Command, ro *RootOpts, dst *downloadOpts) error {
	path := ro.Config
	if path == "" {
		home, _ := os.UserHomeDir()
		jsonPath := filepath.Join(home, ".config", "datahugger.json")
		yamlPath := filepath.Join(home, ".config", "datahugger.yaml")
		ymlPath := filepath.Join(home, ".config", "datahugger.yml")

		if _, err := os.Stat(jsonPath); err == nil {
			path = jsonPath
		} else if _, err := os.Stat(yamlPath); err == nil {
			path = yamlPath
		} else if _, err := os.Stat(ymlPath); err == nil {
			path = ymlPath
		}
	}
	if path == "" {
		return nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var cfg map[string]any
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return fmt.Errorf("invalid YAML config file: %w", err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return fmt.Errorf("invalid JSON config file: %w", err)
		}
	}

	setStr := func(flagName string, set func(string)) {
		if cmd.Flags().Changed(flagName) {
			return
		}
		if v, ok := cfg[flagName]; ok && v != nil {
			set(fmt.Sprint(v))
		}
	}
	setInt := func(flagName string, set func(int)) {
		if cmd.Flags().Changed(flagName) {
			return
		}
		if v, ok := cfg[flagName]; ok && v != nil {
			var x int
			fmt.Sscan(fmt.Sprint(v), &x)
			set(x)
		}
	}

	setStr("to", func(v string) { dst.dstDir = v })
	setInt("limit", func(v int) { dst.limit = v })
	setInt("crawl-concurrency", func(v int) { dst.crawlConcurrency = v })
	setStr("verify", func(v string) { dst.verify = v })

	if !cmd.Flags().Changed("token") && os.Getenv("HF_TOKEN") == "" {
		if v, ok := cfg["token"]; ok && v != nil {
			ro.Token = fmt.Sprint(v)
		}
	}

	return nil
}

// cliProgress returns a simple text-based progress handler.
func cliProgress() progress.Func {
	return func(ev progress.Event) {
		switch ev.Event {
		case "retry":
			fmt.Printf("retry %s (attempt %d): %s\n", ev.Path, ev.Attempt, ev.Message)
		case "file_start":
			fmt.Printf("downloading: %s (%d bytes)\n", ev.Path, ev.Total)
		case "file_done":
			if strings.Contains(strings.ToLower(ev.Message), "present") {
				fmt.Printf("skip: %s %s\n", ev.Path, ev.Message)
			} else {
				fmt.Printf("done: %s\n", ev.Path)
			}
		case "error":
			fmt.Fprintf(os.Stderr, "error: %s (%s)\n", ev.Message, ev.Path)
		case "done":
			fmt.Println(ev.Message)
		}
	}
}

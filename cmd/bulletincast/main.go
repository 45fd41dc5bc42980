// Package main provides the bulletincast CLI: it synthesizes a dated news
// bulletin into speech by driving the hosted notebook end to end and leaves
// the result at <output>/<date>.wav.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ttngo/bulletincast/pkg/browser"
	"github.com/ttngo/bulletincast/pkg/bulletin"
	"github.com/ttngo/bulletincast/pkg/config"
	"github.com/ttngo/bulletincast/pkg/dateutil"
	"github.com/ttngo/bulletincast/pkg/logging"
	"github.com/ttngo/bulletincast/pkg/pipeline"
)

const version = "1.2.0"

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	stepStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75"))
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// CLIConfig holds command-line configuration.
type CLIConfig struct {
	Date        string
	ConfigFile  string
	AuthMethod  string
	Headless    bool
	OutputDir   string
	BulletinDir string
	Verbose     bool
	ShowVersion bool

	// set records which flags were passed explicitly, so only those
	// override the config file
	set map[string]bool
}

func main() {
	cli := parseFlags()

	if cli.ShowVersion {
		fmt.Printf("bulletincast v%s\n", version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	var interrupted atomic.Bool
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println(errorStyle.Render("\nInterrupted, shutting down..."))
		interrupted.Store(true)
		cancel()
	}()

	err := run(ctx, cli)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("✗ "+err.Error()))
		if interrupted.Load() {
			os.Exit(130)
		}
		os.Exit(1)
	}
}

func parseFlags() *CLIConfig {
	cli := &CLIConfig{}

	flag.StringVar(&cli.Date, "date", "yesterday", "Bulletin date: yesterday, today, latest, or YYYY-MM-DD")
	flag.StringVar(&cli.ConfigFile, "config", "", "Path to configuration file (YAML)")
	flag.StringVar(&cli.AuthMethod, "auth", "", "Authentication method: cookies or interactive")
	flag.BoolVar(&cli.Headless, "headless", true, "Run the browser headless")
	flag.StringVar(&cli.OutputDir, "output", "", "Directory for generated audio files")
	flag.StringVar(&cli.BulletinDir, "bulletin-dir", "", "Directory containing bulletin text files")
	flag.BoolVar(&cli.Verbose, "verbose", false, "Print the debug log location")
	flag.BoolVar(&cli.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "bulletincast - Bulletin text-to-speech via a hosted notebook\n\n")
		fmt.Fprintf(os.Stderr, "Usage: bulletincast [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Synthesize yesterday's bulletin\n")
		fmt.Fprintf(os.Stderr, "  bulletincast\n\n")
		fmt.Fprintf(os.Stderr, "  # Synthesize a specific date with a config file\n")
		fmt.Fprintf(os.Stderr, "  bulletincast -config bulletincast.yaml -date 2025-11-15\n\n")
		fmt.Fprintf(os.Stderr, "  # First-time login in a visible browser\n")
		fmt.Fprintf(os.Stderr, "  bulletincast -auth interactive -headless=false\n\n")
	}

	flag.Parse()

	cli.set = make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { cli.set[f.Name] = true })
	return cli
}

func run(ctx context.Context, cli *CLIConfig) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}

	date, text, err := selectBulletin(cli.Date, cfg.Paths.BulletinDir)
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("bulletincast v%s", version)))
	fmt.Println(dimStyle.Render(fmt.Sprintf("  date      %s", date)))
	fmt.Println(dimStyle.Render(fmt.Sprintf("  bulletin  %d characters", len([]rune(text)))))
	fmt.Println(dimStyle.Render(fmt.Sprintf("  output    %s", cfg.Paths.OutputDir)))
	if cli.Verbose {
		if dir, derr := logging.GetLogDirectory(); derr == nil {
			fmt.Println(dimStyle.Render(fmt.Sprintf("  logs      %s/%s.log", dir, logging.GetRunID())))
		}
	}

	fmt.Println(stepStyle.Render("▸ Preparing browser"))
	manager := browser.NewManager()
	if err := manager.Initialize(); err != nil {
		return fmt.Errorf("browser setup failed: %w", err)
	}
	defer manager.Shutdown()

	runner := pipeline.NewRunner(cfg, pipeline.NewBrowserOpener(manager, cfg), nil)

	fmt.Println(stepStyle.Render(fmt.Sprintf("▸ Synthesizing bulletin for %s", date)))
	start := time.Now()
	artifact, err := runner.Run(ctx, date, text)
	if err != nil {
		return err
	}

	fmt.Println(successStyle.Render("✓ " + artifact))
	fmt.Println(dimStyle.Render("  completed in " + dateutil.FormatDuration(time.Since(start))))
	return nil
}

// loadConfig reads the config file if given, otherwise uses defaults, then
// applies explicitly passed flags on top.
func loadConfig(cli *CLIConfig) (*config.Config, error) {
	var cfg *config.Config
	if cli.ConfigFile != "" {
		loaded, err := config.Load(cli.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.DefaultConfig()
	}

	if cli.set["auth"] {
		cfg.Auth.Method = config.AuthMethod(cli.AuthMethod)
	}
	if cli.set["headless"] {
		cfg.Browser.Headless = cli.Headless
	}
	if cli.set["output"] {
		cfg.Paths.OutputDir = cli.OutputDir
	}
	if cli.set["bulletin-dir"] {
		cfg.Paths.BulletinDir = cli.BulletinDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// selectBulletin resolves the date selector and loads the bulletin text.
func selectBulletin(selector, dir string) (string, string, error) {
	reader := bulletin.NewReader(dir)

	if selector == dateutil.SelectorLatest {
		text, date, err := reader.Latest()
		if err != nil {
			return "", "", err
		}
		return date.Format(dateutil.Layout), text, nil
	}

	date, err := dateutil.Resolve(selector, time.Now())
	if err != nil {
		return "", "", err
	}
	text, err := reader.Read(date)
	if err != nil {
		return "", "", err
	}
	return date.Format(dateutil.Layout), text, nil
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/harrisonrobin/mdical/pkg/auth"
	"github.com/harrisonrobin/mdical/pkg/colors"
	"github.com/harrisonrobin/mdical/pkg/config"
	"github.com/harrisonrobin/mdical/pkg/google"
	"github.com/harrisonrobin/mdical/pkg/ical"
	"github.com/harrisonrobin/mdical/pkg/index"
	"github.com/harrisonrobin/mdical/pkg/publish"
	"github.com/harrisonrobin/mdical/pkg/validation"
	"github.com/harrisonrobin/mdical/pkg/vault"
)

func main() {
	vaultPath := flag.String("vault", "", "Vault directory to scan (overrides config)")
	printOnly := flag.Bool("print", false, "Print the calendar to stdout instead of saving it")
	watch := flag.Bool("watch", false, "Keep running and save on the configured interval")
	once := flag.Bool("once", false, "Save once and exit even when periodic saving is enabled")
	syncGoogle := flag.Bool("google", false, "Also sync tasks into Google Calendar")
	calendarName := flag.String("calendar", "", "Google Calendar name to sync with (overrides config)")
	setCalendar := flag.String("set-calendar", "", "Set the default Google Calendar name")
	setGistToken := flag.Bool("set-gist-token", false, "Prompt for and store the GitHub gist token")
	setAPIKey := flag.Bool("set-api-key", false, "Prompt for and store the hosted service secret key")
	showConfig := flag.Bool("show-config", false, "Print the configuration with secrets masked")
	calendarURL := flag.Bool("calendar-url", false, "Show where the gist and the hosted service publish this vault")
	validateAPI := flag.Bool("validate", false, "Check the hosted service subscription for the secret key")
	doAuth := flag.Bool("auth", false, "Authenticate with Google Calendar")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	switch {
	case *setCalendar != "":
		cfg.Calendar = *setCalendar
		saveConfig(cfg)
		fmt.Printf("Default calendar set to: %s\n", *setCalendar)
		return
	case *setGistToken:
		cfg.Gist.Token = promptSecret("GitHub token: ")
		saveConfig(cfg)
		fmt.Println("Gist token saved.")
		return
	case *setAPIKey:
		cfg.API.SecretKey = promptSecret("Secret key: ")
		saveConfig(cfg)
		if cache, err := openValidationCache(); err != nil {
			log.Warnf("Validation cache unavailable: %v", err)
		} else if err := cache.Reset(); err != nil {
			log.Warnf("Failed to save validation cache: %v", err)
		}
		fmt.Println("Secret key saved.")
		return
	case *showConfig:
		out, _ := json.MarshalIndent(cfg.Redacted(), "", "  ")
		fmt.Println(string(out))
		return
	}

	if *vaultPath != "" {
		cfg.Vault = *vaultPath
	}
	if *calendarName != "" {
		cfg.Calendar = *calendarName
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *doAuth {
		authenticate(ctx)
		return
	}
	if *calendarURL {
		showCalendarURL(ctx, cfg)
		return
	}
	if *validateAPI {
		validateKey(ctx, cfg)
		return
	}

	saver, err := newApp(ctx, cfg, *printOnly, *syncGoogle)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	defer saver.close()

	watching := cfg.Watching(*watch, *once || *printOnly)
	if err := saver.run(ctx); err != nil {
		log.Errorf("Save failed: %v", err)
		if !watching {
			os.Exit(1)
		}
	}
	if !watching {
		return
	}

	interval := cfg.SaveInterval()
	log.Infof("Saving every %v. Press Ctrl+C to stop.", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("Stopping")
			return
		case <-ticker.C:
			if err := saver.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorf("Save failed: %v", err)
			}
		}
	}
}

// app holds what one scan-render-publish cycle needs across runs.
type app struct {
	scanner  *vault.Scanner
	renderer *ical.Renderer
	targets  []publish.Publisher
	cache    *validation.Cache
	print    bool

	google *google.CalendarClient
	index  *index.EventIndex
	colors *colors.ColorCache
}

func newApp(ctx context.Context, cfg *config.Config, printOnly, syncGoogle bool) (*app, error) {
	if cfg.Vault == "" {
		return nil, errors.New("no vault configured; pass -vault or set \"vault\" in the config file")
	}
	opts, err := cfg.ParsingOptions()
	if err != nil {
		return nil, err
	}
	logger := log.StandardLogger()

	a := &app{
		scanner:  vault.NewScanner(cfg.Vault, cfg.VaultName, opts, logger),
		renderer: ical.NewRenderer(opts, logger),
		print:    printOnly,
	}
	if printOnly {
		return a, nil
	}

	a.cache, err = openValidationCache()
	if err != nil {
		log.Warnf("Validation cache unavailable: %v", err)
	}
	a.targets, err = cfg.Publishers(ctx, a.scanner.VaultName, a.cache, logger)
	if err != nil {
		return nil, err
	}

	if syncGoogle {
		if a.index, err = openIndex(); err != nil {
			log.Warnf("Failed to load event index: %v", err)
		}
		if a.colors, err = openColors(); err != nil {
			log.Warnf("Failed to load color cache: %v", err)
		}
		a.google, err = google.NewClient(ctx, cfg.Calendar, a.index, a.colors, logger)
		if err != nil {
			return nil, fmt.Errorf("google calendar: %w", err)
		}
	}
	if len(a.targets) == 0 && a.google == nil {
		log.Warn("No save target is enabled; the calendar is only built")
	}
	return a, nil
}

func (a *app) run(ctx context.Context) error {
	start := time.Now()
	scan, err := a.scanner.Scan(ctx)
	if err != nil {
		return err
	}
	tasks := scan.Tasks
	calendar := a.renderer.Render(tasks)
	log.WithFields(log.Fields{"tasks": len(tasks), "took": time.Since(start)}).Info("Calendar built")

	if a.print {
		fmt.Print(calendar)
		return nil
	}

	errs := []error{publish.All(ctx, calendar, a.targets...)}
	if a.google != nil {
		res, err := a.google.Sync(ctx, tasks, a.renderer.Options.MultiDate, a.renderer.Options.Loc(), scan.Unread...)
		if err != nil {
			errs = append(errs, fmt.Errorf("google: %w", err))
		}
		log.WithFields(log.Fields{
			"created":   res.Created,
			"updated":   res.Updated,
			"unchanged": res.Unchanged,
			"deleted":   res.Deleted,
		}).Info("Google Calendar synced")
	}
	a.persist()
	return errors.Join(errs...)
}

func (a *app) persist() {
	if a.cache != nil {
		a.cache.Sweep()
		if err := a.cache.Save(); err != nil {
			log.Warnf("Failed to save validation cache: %v", err)
		}
	}
	if a.index != nil {
		if err := a.index.Save(); err != nil {
			log.Warnf("Failed to save event index: %v", err)
		}
	}
	if a.colors != nil {
		if err := a.colors.Save(); err != nil {
			log.Warnf("Failed to save color cache: %v", err)
		}
	}
}

func (a *app) close() {
	if !a.print {
		a.persist()
	}
}

func authenticate(ctx context.Context) {
	xdgConfigBase, err := auth.GetXdgHome()
	if err != nil {
		log.Fatalf("could not find path to configuration file: error %v", err)
	}

	tokenFile := filepath.Join(xdgConfigBase, auth.TokenFile)
	if _, err := os.Stat(tokenFile); err != nil {
		if !os.IsNotExist(err) {
			log.Warnf("could not check token file '%s', error %v", tokenFile, err)
		}
	} else {
		log.Infof("Removing existing token file at '%s'", tokenFile)
		if err := os.Remove(tokenFile); err != nil {
			log.Fatalf("could not delete token file '%s', error %v. Please delete it manually", tokenFile, err)
		}
	}

	if _, err := auth.GetCalendarService(ctx); err != nil {
		log.Fatalf("Authentication failed: %v", err)
	}
	log.Infof("Authentication successful! Token saved to %s", tokenFile)
}

func apiClient(cfg *config.Config) (*publish.APIClient, *validation.Cache) {
	cache, err := openValidationCache()
	if err != nil {
		log.Warnf("Validation cache unavailable: %v", err)
	}
	name := cfg.VaultName
	if name == "" && cfg.Vault != "" {
		name = filepath.Base(filepath.Clean(cfg.Vault))
	}
	return publish.NewAPIClient(cfg.API.BaseURL, name, cfg.API.SecretKey, cache, log.StandardLogger()), cache
}

func showCalendarURL(ctx context.Context, cfg *config.Config) {
	if url := cfg.GistURL(); url != "" {
		fmt.Printf("Gist: %s\n", url)
	}
	if cfg.API.SecretKey == "" {
		return
	}
	client, _ := apiClient(cfg)
	saved, err := client.Calendar(ctx)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	if !saved.Found {
		fmt.Println(saved.Message)
		return
	}
	fmt.Printf("API: %s (updated %s)\n", saved.URL, saved.UpdatedAt)
}

func validateKey(ctx context.Context, cfg *config.Config) {
	client, cache := apiClient(cfg)
	entry, err := client.IsActive(ctx, true)
	if cache != nil {
		if err := cache.Save(); err != nil {
			log.Warnf("Failed to save validation cache: %v", err)
		}
	}
	if err != nil {
		log.Fatalf("Validation failed: %v", err)
	}
	fmt.Printf("Subscription: %s\n", entry.Status)
	if entry.ExpiresAt != nil {
		fmt.Printf("Expires: %s\n", entry.ExpiresAt.Format(time.RFC1123))
	}
	if entry.Message != "" {
		fmt.Println(entry.Message)
	}
	if !entry.Active() {
		os.Exit(1)
	}
}

func promptSecret(prompt string) string {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		log.Fatal("a terminal is required to enter secrets")
	}
	fmt.Print(prompt)
	b, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		log.Fatalf("could not read secret: %v", err)
	}
	secret := strings.TrimSpace(string(b))
	if secret == "" {
		log.Fatal("empty secret, nothing saved")
	}
	return secret
}

func saveConfig(cfg *config.Config) {
	if err := config.Save(cfg); err != nil {
		log.Fatalf("Error saving config: %v", err)
	}
}

func openValidationCache() (*validation.Cache, error) {
	path, err := validation.DefaultPath()
	if err != nil {
		return nil, err
	}
	return validation.NewCache(path)
}

func openIndex() (*index.EventIndex, error) {
	path, err := index.DefaultPath()
	if err != nil {
		return nil, err
	}
	return index.NewEventIndex(path)
}

func openColors() (*colors.ColorCache, error) {
	path, err := colors.DefaultPath()
	if err != nil {
		return nil, err
	}
	return colors.NewColorCache(path)
}

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/webcomputing/assistant-alexa/internal/port/outbound"
)

// Deployment errors.
var (
	ErrNoSchemas             = errors.New("no alexa schemas found, run generate first")
	ErrAskNotInstalled       = errors.New("ask-cli is not installed, install it with 'npm i -g ask-cli' and run 'ask init'")
	ErrUnsupportedAskVersion = errors.New("unsupported ask-cli version, at least 1.6.2 is required")
	ErrTrainingTimeout       = errors.New("model training timed out")
)

// Deployment defaults.
const (
	DefaultAskBinary       = "ask"
	DefaultPollInterval    = 5 * time.Second
	DefaultTrainingTimeout = 2 * time.Minute

	statusInProgress = "IN_PROGRESS"
	statusError      = "ERROR"
)

var (
	minAskVersion      = [3]int{1, 6, 2}
	schemaFilePattern  = regexp.MustCompile(`^schema_(..)\.json$`)
	versionPattern     = regexp.MustCompile(`(\d+)\.(\d+)\.(\d+)`)
	countryCodeLocales = map[string]string{"de": "de-DE", "en": "en-GB"}
)

// DeploymentConfig configures the skill deployment.
type DeploymentConfig struct {
	ApplicationID  string
	InvocationName string
	BuildDir       string
	AskBinary      string
	PollInterval   time.Duration
	Timeout        time.Duration
}

// DeploymentService uploads generated schemas with the ask CLI.
type DeploymentService struct {
	cfg    DeploymentConfig
	runner outbound.CommandRunner
	logger *slog.Logger
}

// NewDeploymentService creates a DeploymentService.
func NewDeploymentService(cfg DeploymentConfig, runner outbound.CommandRunner, logger *slog.Logger) *DeploymentService {
	if cfg.AskBinary == "" {
		cfg.AskBinary = DefaultAskBinary
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTrainingTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DeploymentService{cfg: cfg, runner: runner, logger: logger}
}

// LocaleFor maps a country code to the locale Alexa expects. Unknown codes
// are returned unchanged.
func LocaleFor(countryCode string) string {
	if locale, ok := countryCodeLocales[countryCode]; ok {
		return locale
	}
	return countryCode
}

// Deploy updates the skill manifest if needed and uploads every language model.
func (d *DeploymentService) Deploy(ctx context.Context) error {
	codes, err := d.countryCodes()
	if err != nil {
		return err
	}
	if err := d.checkAsk(ctx); err != nil {
		return err
	}

	if err := os.MkdirAll(d.deploymentsDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create deployments directory: %w", err)
	}
	if err := d.deploySkillSchema(ctx, codes); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, code := range codes {
		g.Go(func() error {
			return d.deployModel(gctx, code)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	d.logger.Info("alexa deployment finished", "locales", len(codes))
	return nil
}

func (d *DeploymentService) schemaDir() string      { return filepath.Join(d.cfg.BuildDir, "alexa") }
func (d *DeploymentService) deploymentsDir() string { return filepath.Join(d.cfg.BuildDir, "deployments", "alexa") }

// countryCodes returns the country codes of the generated schema files.
func (d *DeploymentService) countryCodes() ([]string, error) {
	entries, err := os.ReadDir(d.schemaDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSchemas
		}
		return nil, fmt.Errorf("failed to read schema directory: %w", err)
	}

	var codes []string
	for _, e := range entries {
		if m := schemaFilePattern.FindStringSubmatch(e.Name()); m != nil {
			codes = append(codes, m[1])
		}
	}
	if len(codes) == 0 {
		return nil, ErrNoSchemas
	}
	return codes, nil
}

func (d *DeploymentService) checkAsk(ctx context.Context) error {
	if _, err := d.runner.LookPath(d.cfg.AskBinary); err != nil {
		return fmt.Errorf("%w: %v", ErrAskNotInstalled, err)
	}
	out, err := d.runner.Run(ctx, d.cfg.AskBinary, "--version")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAskNotInstalled, err)
	}
	version, ok := parseVersion(string(out))
	if !ok || compareVersions(version, minAskVersion) < 0 {
		return fmt.Errorf("%w: found %q", ErrUnsupportedAskVersion, bytes.TrimSpace(out))
	}
	return nil
}

func parseVersion(s string) ([3]int, bool) {
	var v [3]int
	m := versionPattern.FindStringSubmatch(s)
	if m == nil {
		return v, false
	}
	for i := range v {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return v, false
		}
		v[i] = n
	}
	return v, true
}

func compareVersions(a, b [3]int) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// deploySkillSchema rewrites the manifest locales when they differ from the
// generated languages. Models of locales not configured here are dropped by
// Alexa.
func (d *DeploymentService) deploySkillSchema(ctx context.Context, codes []string) error {
	skill, err := d.currentSkillSchema(ctx)
	if err != nil {
		return err
	}

	manifest, _ := skill["manifest"].(map[string]any)
	if manifest == nil {
		manifest = map[string]any{}
		skill["manifest"] = manifest
	}
	publishing, _ := manifest["publishingInformation"].(map[string]any)
	if publishing == nil {
		publishing = map[string]any{}
		manifest["publishingInformation"] = publishing
	}
	current, _ := publishing["locales"].(map[string]any)

	configured := make([]string, 0, len(current))
	for locale := range current {
		configured = append(configured, locale)
	}
	wanted := make([]string, 0, len(codes))
	for _, code := range codes {
		wanted = append(wanted, LocaleFor(code))
	}
	slices.Sort(configured)
	slices.Sort(wanted)
	if slices.Equal(configured, wanted) {
		return nil
	}

	d.logger.Info("updating skill schema, locale definitions differ", "configured", configured, "generated", wanted)
	locales := make(map[string]any, len(wanted))
	for _, locale := range wanted {
		locales[locale] = map[string]any{"name": d.cfg.InvocationName}
	}
	publishing["locales"] = locales

	path := filepath.Join(d.deploymentsDir(), "skill.json")
	if err := writeJSON(path, skill); err != nil {
		return err
	}
	out, err := d.ask(ctx, "update-skill", "-f", path)
	if err != nil {
		return fmt.Errorf("failed to update skill: %w", err)
	}
	d.logger.Info("skill schema submitted", "output", string(bytes.TrimSpace(out)))

	g, gctx := errgroup.WithContext(ctx)
	for _, locale := range wanted {
		g.Go(func() error {
			return d.waitForTraining(gctx, locale)
		})
	}
	return g.Wait()
}

// currentSkillSchema returns the skill manifest backup, exporting it first
// when no backup exists.
func (d *DeploymentService) currentSkillSchema(ctx context.Context) (map[string]any, error) {
	path := filepath.Join(d.deploymentsDir(), "skill-backup.json")
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		data, err = d.ask(ctx, "get-skill")
		if err != nil {
			return nil, fmt.Errorf("failed to export skill: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write skill backup: %w", err)
		}
		d.logger.Info("skill schema backed up", "path", path)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read skill backup: %w", err)
	}

	var skill map[string]any
	if err := json.Unmarshal(data, &skill); err != nil {
		return nil, fmt.Errorf("failed to parse skill schema: %w", err)
	}
	if skill == nil {
		skill = map[string]any{}
	}
	return skill, nil
}

func (d *DeploymentService) deployModel(ctx context.Context, code string) error {
	locale := LocaleFor(code)
	logger := d.logger.With("locale", locale)

	d.exportModel(ctx, locale)

	schemaPath := filepath.Join(d.schemaDir(), "schema_"+code+".json")
	out, err := d.ask(ctx, "update-model", "-f", schemaPath, "-l", locale)
	if err != nil {
		return fmt.Errorf("failed to update model for %s: %w", locale, err)
	}
	if !bytes.Contains(out, []byte("Model for "+locale+" submitted.")) {
		logger.Warn("unexpected update-model output", "output", string(bytes.TrimSpace(out)))
	}
	d.logStatus(ctx, locale)

	return d.waitForTraining(ctx, locale)
}

// exportModel stores the currently deployed model next to the skill backup.
func (d *DeploymentService) exportModel(ctx context.Context, locale string) {
	var model any = map[string]any{}
	if out, err := d.ask(ctx, "get-model", "-l", locale); err == nil {
		if err := json.Unmarshal(out, &model); err != nil {
			model = map[string]any{}
		}
	}
	path := filepath.Join(d.deploymentsDir(), "schema_"+locale+".json")
	if err := writeJSON(path, model); err != nil {
		d.logger.Error("failed to export model", "locale", locale, "error", err)
	}
}

// Status returns the last model update status of locale, or "ERROR" when
// the skill status carries none.
func (d *DeploymentService) Status(ctx context.Context, locale string) (string, error) {
	out, err := d.ask(ctx, "get-skill-status")
	if err != nil {
		return "", fmt.Errorf("failed to get skill status: %w", err)
	}
	var status struct {
		InteractionModel map[string]struct {
			LastUpdateRequest struct {
				Status string `json:"status"`
			} `json:"lastUpdateRequest"`
		} `json:"interactionModel"`
	}
	if err := json.Unmarshal(out, &status); err != nil {
		return statusError, nil
	}
	if s := status.InteractionModel[locale].LastUpdateRequest.Status; s != "" {
		return s, nil
	}
	return statusError, nil
}

func (d *DeploymentService) logStatus(ctx context.Context, locale string) {
	status, err := d.Status(ctx, locale)
	if err != nil {
		d.logger.Error("model training status unavailable", "locale", locale, "error", err)
		return
	}
	d.logger.Info("amazon model training", "locale", locale, "status", status)
}

// waitForTraining polls until locale's model is no longer in progress.
func (d *DeploymentService) waitForTraining(ctx context.Context, locale string) error {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: %s", ErrTrainingTimeout, locale)
			}
			return ctx.Err()
		case <-ticker.C:
			status, err := d.Status(ctx, locale)
			if err != nil {
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return fmt.Errorf("%w: %s", ErrTrainingTimeout, locale)
				}
				return err
			}
			if status != statusInProgress {
				d.logger.Info("amazon model training", "locale", locale, "status", status)
				return nil
			}
		}
	}
}

// ask runs "ask api <command> -s <skill id> args...".
func (d *DeploymentService) ask(ctx context.Context, command string, args ...string) ([]byte, error) {
	full := append([]string{"api", command, "-s", d.cfg.ApplicationID}, args...)
	return d.runner.Run(ctx, d.cfg.AskBinary, full...)
}

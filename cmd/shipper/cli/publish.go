package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meigma/shipper"
	"github.com/meigma/shipper/cmd/shipper/cli/config"
	"github.com/meigma/shipper/internal/metrics"
	"github.com/meigma/shipper/internal/registry"
	"github.com/meigma/shipper/internal/transport"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Compress the build output and upload it to every configured provider",
	Long: `Publish compresses the build output directory and uploads the archive.

The release is derived from GITHUB_REF (tag pushes) or GITHUB_SHA (any other
push). The result is printed to stdout as JSON: an array with one entry per
provider, "[]" when there was nothing to publish, or an encrypted string for
early releases.

Provider failures are reported in the result and do not fail the command.
Compression, release page and encryption failures exit non-zero.

Examples:
  shipper publish --project waifu2x --source dist/waifu2x
  GITHUB_REF=refs/tags/v1.2.3 shipper publish --platform linux --device cuda`,
	Args: cobra.NoArgs,
	RunE: runPublish,
}

func init() {
	f := publishCmd.Flags()
	f.String("project", "", "Project name used in the archive name")
	f.String("source", "", "Build output directory to publish")
	f.String("output", "", "Directory for the archive (default: parent of --source)")
	f.String("platform", "", "Target platform (default $BUILD_PLATFORM)")
	f.String("device", "", "Target device (default $BUILD_DEVICE)")
	f.String("format", "tar.zst", "Archive format (tar.zst, tar.gz, estargz)")
	for _, name := range []string{"project", "source", "output", "platform", "device", "format"} {
		//nolint:errcheck // flags are defined above
		viper.BindPFlag(name, f.Lookup(name))
	}

	//nolint:errcheck // flag is defined above
	publishCmd.RegisterFlagCompletionFunc("format", completeFormats)
	//nolint:errcheck // flag is defined above
	publishCmd.MarkFlagDirname("source")
	//nolint:errcheck // flag is defined above
	publishCmd.MarkFlagDirname("output")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	if cfg.Source == "" {
		return errors.New("config: source directory is required (--source or SHIPPER_SOURCE)")
	}

	release, err := shipper.DetectRelease(cfg.GitHub.Ref, cfg.GitHub.SHA)
	if err != nil {
		return err
	}
	format, err := shipper.ParseFormat(cfg.Format)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := newLogger()
	httpClient := transport.NewClient(cfg.Timeout)

	gh, err := newGitHubTarget(cfg, httpClient)
	if err != nil {
		return err
	}
	specs, err := buildSpecs(cfg, gh, httpClient, logger)
	if err != nil {
		return err
	}

	observer, finishProgress := newProgressObserver(logger)
	opts := []shipper.Option{
		shipper.WithLogger(logger),
		shipper.WithFormat(format),
		shipper.WithSecretKey(cfg.Secret),
		shipper.WithObserver(observer),
	}

	var recorder *metrics.Recorder
	if cfg.Metrics.Pushgateway != "" {
		recorder = metrics.New()
		opts = append(opts, shipper.WithObserver(recorder))
	}

	if gh.Client != nil {
		opts = append(opts, shipper.WithRegistry(registry.New(gh.Client, gh.Owner, gh.Repo,
			registry.WithLogger(logger),
			registry.WithMaxAttempts(cfg.GitHub.MaxAttempts),
			registry.WithRetryDelay(cfg.GitHub.RetryDelay),
		)))
	}

	pub, err := shipper.NewPublisher(opts...)
	if err != nil {
		return err
	}

	artifact := shipper.NewArtifact(shipper.ArtifactSpec{
		Project:   cfg.Project,
		Platform:  cfg.Platform,
		Device:    cfg.Device,
		SourceDir: cfg.Source,
		OutputDir: cfg.Output,
		Format:    format,
	}, release)

	ctx, cancel := signalContext()
	defer cancel()

	outcome, err := pub.Publish(ctx, artifact, release, specs)
	finishProgress()

	if recorder != nil {
		pushMetrics(ctx, recorder, cfg, release, logger)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(outcome)
}

func newGitHubTarget(cfg *config.Config, httpClient *http.Client) (githubTarget, error) {
	if cfg.GitHub.Token == "" || cfg.GitHub.Repository == "" {
		return githubTarget{}, nil
	}
	owner, repo, err := registry.SplitRepository(cfg.GitHub.Repository)
	if err != nil {
		return githubTarget{}, fmt.Errorf("config: %w", err)
	}
	client, err := registry.NewClient(cfg.GitHub.Token, cfg.GitHub.APIURL, httpClient)
	if err != nil {
		return githubTarget{}, fmt.Errorf("config: %w", err)
	}
	return githubTarget{Client: client, Owner: owner, Repo: repo}, nil
}

// pushMetrics sends run metrics to the Pushgateway. Failures are logged
// and never change the command result.
func pushMetrics(ctx context.Context, r *metrics.Recorder, cfg *config.Config, release shipper.Release, logger *slog.Logger) {
	grouping := map[string]string{"release": release.ID}
	if cfg.Project != "" {
		grouping["project"] = cfg.Project
	}
	if err := r.Push(ctx, cfg.Metrics.Pushgateway, cfg.Metrics.Job, grouping); err != nil {
		logger.Warn("metrics push failed", "error", err)
	}
}

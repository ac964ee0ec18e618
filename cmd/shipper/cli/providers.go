package cli

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/go-github/v66/github"

	"github.com/meigma/shipper"
	"github.com/meigma/shipper/cmd/shipper/cli/config"
	"github.com/meigma/shipper/internal/provider"
)

// githubTarget is the GitHub repository the github provider and the release
// registry act on. Client is nil when no token or repository is configured.
type githubTarget struct {
	Client *github.Client
	Owner  string
	Repo   string
}

// buildSpecs turns the configured provider table into publisher rows.
// Rows missing their credentials or endpoint are kept but marked as not
// configured, so they are silently left out of the run.
func buildSpecs(cfg *config.Config, gh githubTarget, client *http.Client, logger *slog.Logger) ([]shipper.ProviderSpec, error) {
	deps := provider.Deps{
		Logger:     logger,
		HTTPClient: client,
		GitHub:     gh.Client,
		Owner:      gh.Owner,
		Repo:       gh.Repo,
	}

	specs := make([]shipper.ProviderSpec, 0, len(cfg.Providers))
	seen := make(map[string]int, len(cfg.Providers))
	for i, pc := range cfg.Providers {
		group, err := shipper.ParseGroup(pc.Group)
		if err != nil {
			return nil, fmt.Errorf("providers[%d]: %w", i, err)
		}

		if pc.Token == "" && pc.TokenEnv != "" {
			pc.Token = os.Getenv(pc.TokenEnv)
		}

		row := shipper.ProviderSpec{Group: group, TagOnly: pc.TagOnly}
		if !configured(pc, gh) {
			logger.Debug("provider not configured", "index", i, "kind", pc.Kind, "name", pc.Name)
			specs = append(specs, row)
			continue
		}

		p, err := provider.New(providerConfig(pc), deps)
		if err != nil {
			return nil, fmt.Errorf("providers[%d]: %w", i, err)
		}
		if j, dup := seen[p.Name()]; dup {
			return nil, fmt.Errorf("providers[%d]: duplicate provider name %q (also providers[%d]); set name", i, p.Name(), j)
		}
		seen[p.Name()] = i
		row.Provider = p
		row.Configured = true
		specs = append(specs, row)
	}
	return specs, nil
}

// configured reports whether a row has what its kind needs to run.
func configured(pc config.ProviderConfig, gh githubTarget) bool {
	switch provider.Kind(pc.Kind) {
	case provider.KindGitHub:
		return gh.Client != nil
	case provider.KindRelay:
		return pc.URL != "" && pc.Token != ""
	case provider.KindS3:
		return pc.Bucket != ""
	case provider.KindForm, provider.KindIPFS, provider.KindOCI:
		return pc.URL != ""
	default:
		// Unknown kinds are reported by provider.New.
		return true
	}
}

func providerConfig(pc config.ProviderConfig) provider.Config {
	return provider.Config{
		Name:     pc.Name,
		Kind:     provider.Kind(pc.Kind),
		URL:      pc.URL,
		Token:    pc.Token,
		Username: pc.Username,
		Password: pc.Password,
		Fields:   pc.Fields,
		Bucket:   pc.Bucket,
		Prefix:   pc.Prefix,
		Region:   pc.Region,
		Insecure: pc.Insecure,
		SkipPin:  pc.SkipPin,
	}
}

package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"oras.land/oras-go/v2/registry/remote/auth"
	orascreds "oras.land/oras-go/v2/registry/remote/credentials"
)

// errReadOnlyStore is returned by writes to a static credential store.
var errReadOnlyStore = errors.New("static credential store is read-only")

// registryCredentials returns the credential store for an OCI provider.
// Explicit credentials win; otherwise the Docker config and its credential
// helpers are consulted.
func registryCredentials(host, username, password string) (orascreds.Store, error) {
	if username != "" || password != "" {
		return staticCredentials(host, username, password), nil
	}
	store, err := orascreds.NewStoreFromDocker(orascreds.StoreOptions{})
	if err != nil {
		return nil, fmt.Errorf("create docker credential store: %w", err)
	}
	return &dockerHubFallbackStore{store: store}, nil
}

// staticCredentials returns a store holding one credential for host.
func staticCredentials(host, username, password string) orascreds.Store {
	return &staticStore{
		host: host,
		cred: auth.Credential{Username: username, Password: password},
	}
}

type staticStore struct {
	host string
	cred auth.Credential
}

func (s *staticStore) Get(_ context.Context, serverAddress string) (auth.Credential, error) {
	if normalizeServerAddress(serverAddress) == normalizeServerAddress(s.host) {
		return s.cred, nil
	}
	return auth.EmptyCredential, nil
}

func (s *staticStore) Put(context.Context, string, auth.Credential) error {
	return errReadOnlyStore
}

func (s *staticStore) Delete(context.Context, string) error {
	return errReadOnlyStore
}

// dockerHubFallbackStore retries Docker Hub lookups under the other
// addresses the Docker CLI may have stored them under.
type dockerHubFallbackStore struct {
	store orascreds.Store
}

func (s *dockerHubFallbackStore) Get(ctx context.Context, serverAddress string) (auth.Credential, error) {
	cred, err := s.store.Get(ctx, serverAddress)
	if err == nil && !isEmptyCredential(cred) {
		return cred, nil
	}
	for _, alt := range dockerHubAliases(serverAddress) {
		if alt == serverAddress {
			continue
		}
		if c, altErr := s.store.Get(ctx, alt); altErr == nil && !isEmptyCredential(c) {
			return c, nil
		}
	}
	return cred, err
}

func (s *dockerHubFallbackStore) Put(ctx context.Context, serverAddress string, cred auth.Credential) error {
	return s.store.Put(ctx, serverAddress, cred)
}

func (s *dockerHubFallbackStore) Delete(ctx context.Context, serverAddress string) error {
	return s.store.Delete(ctx, serverAddress)
}

func dockerHubAliases(serverAddress string) []string {
	switch normalizeServerAddress(serverAddress) {
	case "docker.io", "registry-1.docker.io", "index.docker.io":
		return []string{
			"https://index.docker.io/v1/",
			"index.docker.io",
			"registry-1.docker.io",
			"docker.io",
		}
	default:
		return nil
	}
}

// normalizeServerAddress strips scheme, path and port.
func normalizeServerAddress(addr string) string {
	addr = strings.TrimPrefix(addr, "http://")
	addr = strings.TrimPrefix(addr, "https://")
	addr, _, _ = strings.Cut(addr, "/")
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func isEmptyCredential(cred auth.Credential) bool {
	return cred == auth.EmptyCredential ||
		(cred.Username == "" && cred.Password == "" && cred.AccessToken == "" && cred.RefreshToken == "")
}

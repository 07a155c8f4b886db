// Package bootstrap wires configuration, storage, the resolver, the DNS
// provider and the use cases together for every binary.
package bootstrap

import (
	"fmt"
	"log"

	"maildns/external_resource/cloudflare"
	"maildns/external_resource/resolver"
	"maildns/internal/repository"
	"maildns/internal/usecase"
	"maildns/pkg/config"
	"maildns/pkg/storage"
)

// App holds the wired application
type App struct {
	Config   *config.Config
	Storage  storage.CombinedStorage
	Usecase  usecase.DeliverabilityUsecase
	Provider bool
}

// DefaultSettings converts the remediation values of cfg into storage defaults
func DefaultSettings(cfg *config.Config) storage.Settings {
	return storage.Settings{
		SPFInclude:         cfg.SPFInclude,
		DMARCReportAddress: cfg.DMARCReportAddress,
		MXTarget:           cfg.MXTarget,
		MXPriority:         cfg.MXPriority,
		ApexTarget:         cfg.ApexTarget,
		WWWTarget:          cfg.WWWTarget,
		TTL:                cfg.TTL,
		DKIMSelectors:      cfg.DKIMSelectors,
	}
}

// ProviderConfig selects token auth when a token is set, the legacy key and
// email pair otherwise.
func ProviderConfig(cfg *config.Config) cloudflare.Config {
	pc := cloudflare.Config{
		APIBase: cfg.CloudflareAPIBase,
		Timeout: cfg.ProviderTimeout,
	}
	if cfg.UseAPIToken() {
		pc.APIToken = cfg.CloudflareAPIToken
		log.Println("[Bootstrap] Using Cloudflare API token")
	} else {
		pc.APIKey = cfg.CloudflareAPIKey
		pc.Email = cfg.CloudflareEmail
		log.Println("[Bootstrap] Using Cloudflare API key and email")
	}
	return pc
}

// New builds the application from cfg. A missing provider token is not an
// error: fixes then report not configured.
func New(cfg *config.Config) (*App, error) {
	// Initialize storage
	settingsStorage := storage.NewJSONStorage(cfg.DataDir, DefaultSettings(cfg))

	// Initialize Cloudflare client
	var mutator repository.RecordMutator
	var providerSource repository.RecordSource
	if cfg.ProviderConfigured() {
		cfClient, err := cloudflare.NewClient(ProviderConfig(cfg))
		if err != nil {
			return nil, fmt.Errorf("failed to create Cloudflare client: %w", err)
		}

		// Initialize repositories
		zoneRepo := repository.NewZoneRepository(cfClient)
		dnsRepo := repository.NewDNSRepository(cfClient, zoneRepo)
		mutator = dnsRepo
		providerSource = dnsRepo
	} else {
		log.Println("[WARNING] No Cloudflare credentials configured; fixes will report not configured")
	}

	var source repository.RecordSource
	switch cfg.RecordSource {
	case config.RecordSourceProvider:
		if providerSource == nil {
			return nil, fmt.Errorf("record source %q needs Cloudflare credentials", cfg.RecordSource)
		}
		source = providerSource
	default:
		source = repository.NewResolverSource(resolver.NewClient(resolver.Config{
			Nameservers: cfg.DNSNameservers,
			Timeout:     cfg.DNSTimeout,
		}))
	}

	// Initialize usecase
	executor := usecase.NewFixExecutor(mutator, cfg.ProviderTimeout)
	uc := usecase.NewDeliverabilityUsecase(source, executor, settingsStorage, cfg.DNSTimeout)

	log.Printf("[Bootstrap] record source=%s provider=%t data=%s", cfg.RecordSource, mutator != nil, cfg.DataDir)

	return &App{
		Config:   cfg,
		Storage:  settingsStorage,
		Usecase:  uc,
		Provider: mutator != nil,
	}, nil
}

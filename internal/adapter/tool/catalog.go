package tool

import (
	"fmt"
	"log/slog"

	"finnguide/internal/infra/config"
)

// Names of the tools the assistant can use.
const (
	ApartmentToolName      = "Apartment assistant"
	ResidentPermitToolName = "Resident permit assistant"
	StudyProgrammeToolName = "Study programme selection assistant"
	WebSearchToolName      = "DuckDuckGo Search"
)

// NewSearchBackend builds the configured search backend, rate limited when
// search.rate_limit is set.
func NewSearchBackend(cfg config.SearchConfig, logger *slog.Logger) (SearchBackend, error) {
	var backend SearchBackend
	switch cfg.Backend {
	case "duckduckgo", "":
		backend = NewDuckDuckGoBackend(cfg.DuckDuckGoURL, cfg.Region, logger)
	case "searxng":
		backend = NewSearXNGBackend(cfg.SearXNGURL, logger)
	default:
		return nil, fmt.Errorf("unknown search backend %q", cfg.Backend)
	}
	return NewRateLimitedBackend(backend, cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst), nil
}

// NewCatalog registers the four assistant tools, in prompt order, on a
// fresh Registry.
func NewCatalog(cfg config.SearchConfig, backend SearchBackend, logger *slog.Logger) (*Registry, error) {
	common := []SiteSearchOption{
		WithMaxResults(cfg.MaxResults),
		WithTimeout(cfg.Timeout),
	}
	with := func(opts ...SiteSearchOption) []SiteSearchOption {
		return append(append([]SiteSearchOption{}, common...), opts...)
	}

	tools := []*SiteSearchTool{
		NewSiteSearchTool(ApartmentToolName,
			"Useful when you need to answer questions related to apply an apartment in Finland.",
			backend, logger, with(WithSite(cfg.Sites.Apartment))...),
		NewSiteSearchTool(ResidentPermitToolName,
			"Useful when you need to answer questions related to apply a Finnish resident permit .",
			backend, logger, with(WithSite(cfg.Sites.ResidentPermit))...),
		NewSiteSearchTool(StudyProgrammeToolName,
			"Useful when you need to answer questions related to select a study programme in Finland.",
			backend, logger, with(WithSite(cfg.Sites.StudyProgramme))...),
		NewSiteSearchTool(WebSearchToolName,
			"Useful to browse information from the Internet.",
			backend, logger, with(WithoutTrailingNewline())...),
	}

	reg := NewRegistry()
	for _, t := range tools {
		if err := reg.Register(t); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

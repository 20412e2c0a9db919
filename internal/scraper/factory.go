package scraper

import (
	"fmt"

	"github.com/maltedev/target-product-scraper/internal/browser"
	"github.com/maltedev/target-product-scraper/internal/fetch"
	"github.com/maltedev/target-product-scraper/internal/parser"
)

// Deps carries everything the strategies may need. Renderer and Fetch are
// optional; strategies that need a missing dependency are not built.
type Deps struct {
	Renderer browser.Renderer
	Fetch    *fetch.Client
	Parser   *parser.ListingParser
	Render   browser.RenderOptions
	Static   StaticOptions
	API      APIOptions
	DebugDir string
}

func Names() []string {
	return []string{StrategyCascade, StrategyRendered, StrategyStatic, StrategyEmbedded, StrategyAPI, StrategyManual}
}

// NewStrategy builds a strategy by name.
func NewStrategy(name string, deps Deps) (Strategy, error) {
	if deps.Parser == nil {
		deps.Parser = parser.NewListingParser()
	}

	switch name {
	case StrategyRendered:
		if deps.Renderer == nil {
			return nil, fmt.Errorf("%s: %w: no browser available", name, ErrNotConfigured)
		}
		return NewRenderedStrategy(deps.Renderer, deps.Parser, deps.Render, deps.DebugDir), nil

	case StrategyStatic:
		return NewStaticStrategy(deps.Parser, deps.Static), nil

	case StrategyEmbedded:
		if deps.Fetch == nil {
			return nil, fmt.Errorf("%s: %w: no HTTP client", name, ErrNotConfigured)
		}
		return NewEmbeddedStrategy(deps.Fetch, deps.Parser), nil

	case StrategyAPI:
		if deps.Fetch == nil {
			return nil, fmt.Errorf("%s: %w: no HTTP client", name, ErrNotConfigured)
		}
		return NewAPIStrategy(deps.Fetch, deps.API), nil

	case StrategyManual:
		var lookup ProductLookup
		if deps.Fetch != nil {
			if api := NewAPIStrategy(deps.Fetch, deps.API); api.Configured() {
				lookup = api
			}
		}
		return NewManualStrategy(lookup), nil

	case StrategyCascade:
		var chain []Strategy
		chain = append(chain, NewStaticStrategy(deps.Parser, deps.Static))
		if deps.Fetch != nil {
			chain = append(chain, NewEmbeddedStrategy(deps.Fetch, deps.Parser))
			if api := NewAPIStrategy(deps.Fetch, deps.API); api.Configured() {
				chain = append(chain, api)
			}
		}
		if deps.Renderer != nil {
			chain = append(chain, NewRenderedStrategy(deps.Renderer, deps.Parser, deps.Render, deps.DebugDir))
		}
		return NewCascadeStrategy(chain...), nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

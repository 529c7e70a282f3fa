// Package rules implements RuleParser (spec.md §4.1): turning raw
// EasyList-style lines and loosely-typed user rule objects into
// canonical models.Rule records, rejecting procedural selectors.
package rules

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/hybridguard/filterengine/dom"
	"github.com/hybridguard/filterengine/models"
	"github.com/ysmood/gson"
)

// procedural pseudo-tokens are rejected per spec.md §4.1's closed list.
// Extended/procedural selectors are explicitly out of scope (spec.md §1).
var proceduralTokens = []string{
	":has-text(",
	":contains(",
	":xpath(",
	":matches-css(",
	":min-text-length(",
	":watch-attr(",
	":-abp-",
	":upward(",
	":remove(",
	":style(",
	":matches-path(",
	":matches-media(",
}

func hasProceduralToken(selector string) (string, bool) {
	for _, tok := range proceduralTokens {
		if strings.Contains(selector, tok) {
			return tok, true
		}
	}
	return "", false
}

// Parser implements RuleParser. It is stateless and safe for
// concurrent use; the easylist-<i> id counter is local to each
// ParseCosmetic call, matching the teacher's preference for pure,
// side-effect-free parsing functions (cleaner/selector.go,
// cleaner/filter.go take input and return output, nothing else).
type Parser struct {
	logger *slog.Logger
}

// NewParser builds a Parser. logger may be nil, in which case the
// default slog logger is used.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// ParseCosmetic implements spec.md §4.1's parseCosmetic(lines).
// Comment lines (leading "!"), section headers (leading "["), and
// blank lines are skipped silently. A line must begin "##"; the
// remainder is the selector. Lines whose selector contains a
// procedural pseudo-token are skipped with a log line, never an
// error — cosmetic parsing never fails the caller, only drops lines.
func (p *Parser) ParseCosmetic(lines []string) []models.Rule {
	out := make([]models.Rule, 0, len(lines))
	i := 0
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "!") || strings.HasPrefix(line, "[") {
			continue
		}
		if !strings.HasPrefix(line, "##") {
			continue
		}
		selector := strings.TrimPrefix(line, "##")
		if selector == "" {
			continue
		}
		if tok, bad := hasProceduralToken(selector); bad {
			p.logger.Debug("dropping procedural cosmetic selector", "token", tok, "selector", selector)
			continue
		}
		if _, err := dom.Compile(selector); err != nil {
			p.logger.Debug("dropping unparseable cosmetic selector", "selector", selector, "error", err)
			continue
		}
		out = append(out, models.Rule{
			ID:         "easylist-" + strconv.Itoa(i),
			Selector:   selector,
			Domains:    models.AllDomains(),
			Enabled:    true,
			Category:   models.CategoryEasyList,
			Confidence: models.ConfidenceHigh,
			Source:     models.SourceEasyList,
		})
		i++
	}
	return out
}

// userRuleInput is the loosely-typed shape ParseUserRule accepts. gson
// is used instead of encoding/json because user rule objects arrive
// from two different callers (the admin API's JSON body and, in the
// browser-driven path, arbitrary JS objects bridged through go-rod)
// and field shapes vary: domains may be the string "all", a single
// host string, or a list of host strings.
type userRuleInput struct {
	ID         string
	Selector   string
	Enabled    bool
	Category   string
	Confidence string
}

// ParseUserRule implements spec.md §4.1's parseUserRule(obj). obj is
// decoded with gson so both admin-API JSON bodies and loosely-shaped
// JS bridge payloads work without a fixed Go struct tag contract.
// Returns InvalidRule when selector is empty, fails to compile as
// standard CSS, or domains is neither "all" nor a non-empty host list.
func (p *Parser) ParseUserRule(raw []byte) (*models.Rule, error) {
	j := gson.New(raw)

	selector := strings.TrimSpace(j.Get("selector").Str())
	if selector == "" {
		return nil, models.NewFilterError(models.ErrCodeInvalidRule, "selector must be non-empty", nil)
	}
	if tok, bad := hasProceduralToken(selector); bad {
		return nil, models.NewFilterError(models.ErrCodeInvalidRule, fmt.Sprintf("selector contains procedural token %q", tok), nil)
	}
	if _, err := dom.Compile(selector); err != nil {
		return nil, models.NewFilterError(models.ErrCodeInvalidRule, "selector does not parse as standard CSS", err)
	}

	domains, err := parseDomains(j.Get("domains"))
	if err != nil {
		return nil, err
	}

	id := j.Get("id").Str()
	if id == "" {
		id = "custom-" + selector
	}

	category := models.CategoryCustom
	if c := j.Get("category").Str(); c != "" {
		category = models.Category(c)
	}
	confidence := models.ConfidenceMedium
	if c := j.Get("confidence").Str(); c != "" {
		confidence = models.Confidence(c)
	}

	enabled := true
	if !j.Get("enabled").Nil() {
		enabled = j.Get("enabled").Bool()
	}

	return &models.Rule{
		ID:         id,
		Selector:   selector,
		Domains:    domains,
		Enabled:    enabled,
		Category:   category,
		Confidence: confidence,
		Source:     models.SourceCustom,
	}, nil
}

func parseDomains(v gson.JSON) (models.DomainSpec, error) {
	if !v.Exists() {
		return models.DomainSpec{}, models.NewFilterError(models.ErrCodeInvalidRule, "domains is required", nil)
	}
	if v.IsString() {
		s := v.Str()
		if strings.EqualFold(s, "all") {
			return models.AllDomains(), nil
		}
		if s == "" {
			return models.DomainSpec{}, models.NewFilterError(models.ErrCodeInvalidRule, "domains must be \"all\" or a non-empty host list", nil)
		}
		return models.NewDomainSpec(s), nil
	}
	if v.IsArray() {
		arr := v.Arr()
		if len(arr) == 0 {
			return models.DomainSpec{}, models.NewFilterError(models.ErrCodeInvalidRule, "domains must be \"all\" or a non-empty host list", nil)
		}
		patterns := make([]string, 0, len(arr))
		for _, item := range arr {
			host := strings.TrimSpace(item.Str())
			if host != "" {
				patterns = append(patterns, host)
			}
		}
		if len(patterns) == 0 {
			return models.DomainSpec{}, models.NewFilterError(models.ErrCodeInvalidRule, "domains list contained no usable host patterns", nil)
		}
		return models.NewDomainSpec(patterns...), nil
	}
	return models.DomainSpec{}, models.NewFilterError(models.ErrCodeInvalidRule, "domains must be \"all\" or a non-empty host list", nil)
}

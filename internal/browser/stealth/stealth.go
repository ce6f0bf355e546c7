// internal/browser/stealth/stealth.go
package stealth

import (
	"context"
	_ "embed" // Required for the go:embed directive
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/ma5311943-dotcom/testing-tool/internal/config"
)

//go:embed evasions.js
var evasionsScript string

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Persona is the browser identity presented to the page under test.
type Persona struct {
	UserAgent string   `json:"userAgent"`
	Platform  string   `json:"platform"`
	Languages []string `json:"languages"`
	Locale    string   `json:"locale,omitempty"`
}

// PersonaFromConfig derives a persona from the browser settings.
func PersonaFromConfig(cfg config.BrowserConfig) Persona {
	ua := cfg.UserAgent
	if ua == "" {
		ua = config.DefaultUserAgent
	}
	p := Persona{
		UserAgent: ua,
		Platform:  platformFor(ua),
		Locale:    cfg.Locale,
	}
	if cfg.Locale != "" {
		p.Languages = []string{cfg.Locale}
		if base, _, found := strings.Cut(cfg.Locale, "-"); found {
			p.Languages = append(p.Languages, base)
		}
	}
	return p
}

// platformFor keeps navigator.platform consistent with the user agent.
func platformFor(ua string) string {
	switch {
	case strings.Contains(ua, "Windows"):
		return "Win32"
	case strings.Contains(ua, "Macintosh"):
		return "MacIntel"
	default:
		return "Linux x86_64"
	}
}

// AcceptLanguage formats the persona languages with descending q-values.
func (p Persona) AcceptLanguage() string {
	if len(p.Languages) == 0 {
		return ""
	}
	out := p.Languages[0]
	for i := 1; i < len(p.Languages); i++ {
		q := 1.0 - float64(i)*0.1
		if q < 0.7 {
			q = 0.7
		}
		out += fmt.Sprintf(",%s;q=%.1f", p.Languages[i], q)
	}
	return out
}

// Apply returns the tasks that install the persona on a fresh tab.
func Apply(persona Persona, logger *zap.Logger) chromedp.Action {
	l := logger.Named("stealth")
	return chromedp.Tasks{
		network.Enable(),
		setExtraHTTPHeaders(persona, l),
		setUserAgent(persona, l),
		setLocale(persona, l),
		injectEvasionScript(persona, l),
		chromedp.ActionFunc(func(ctx context.Context) error {
			l.Debug("Persona applied", zap.String("user_agent", persona.UserAgent))
			return nil
		}),
	}
}

// Script returns the evasion script bound to the given persona.
func Script(persona Persona) (string, error) {
	personaJSON, err := json.Marshal(persona)
	if err != nil {
		return "", fmt.Errorf("stealth: failed to marshal persona: %w", err)
	}
	return fmt.Sprintf("const VERDICT_PERSONA = %s;\n%s", personaJSON, evasionsScript), nil
}

func injectEvasionScript(persona Persona, logger *zap.Logger) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		script, err := Script(persona)
		if err != nil {
			return err
		}
		if _, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx); err != nil {
			logger.Error("Failed to register evasion script", zap.Error(err))
			return fmt.Errorf("stealth: failed to add script on new document: %w", err)
		}
		return nil
	})
}

func setUserAgent(persona Persona, logger *zap.Logger) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		override := emulation.SetUserAgentOverride(persona.UserAgent).
			WithPlatform(persona.Platform)
		if al := persona.AcceptLanguage(); al != "" {
			override = override.WithAcceptLanguage(al)
		}
		if err := override.Do(ctx); err != nil {
			logger.Error("Failed to set user agent override", zap.Error(err))
			return fmt.Errorf("stealth: failed to set user agent override: %w", err)
		}
		return nil
	})
}

func setExtraHTTPHeaders(persona Persona, logger *zap.Logger) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		al := persona.AcceptLanguage()
		if al == "" {
			return nil
		}
		headers := network.Headers{"Accept-Language": al}
		if err := network.SetExtraHTTPHeaders(headers).Do(ctx); err != nil {
			logger.Error("Failed to set extra HTTP headers", zap.Error(err))
			return fmt.Errorf("stealth: failed to set extra http headers: %w", err)
		}
		return nil
	})
}

func setLocale(persona Persona, logger *zap.Logger) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if persona.Locale == "" {
			return nil
		}
		// Some Chrome builds reject a locale override they cannot load; that is not fatal.
		if err := emulation.SetLocaleOverride().WithLocale(persona.Locale).Do(ctx); err != nil {
			logger.Warn("Locale override rejected", zap.String("locale", persona.Locale), zap.Error(err))
		}
		return nil
	})
}

// internal/browser/allocator.go
package browser

import (
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/ma5311943-dotcom/testing-tool/internal/config"
)

// flag is a single Chrome command line switch. Value is a bool or a string.
type flag struct {
	Name  string
	Value interface{}
}

// launchFlags assembles the switches for a scenario browser, in order. Later
// entries override earlier ones with the same name.
func launchFlags(cfg config.BrowserConfig) []flag {
	flags := []flag{
		{"headless", cfg.Headless},
		{"ignore-certificate-errors", cfg.IgnoreTLSErrors},
		// Hides navigator.webdriver from the Blink side.
		{"disable-blink-features", "AutomationControlled"},
		{"disable-extensions", true},
		{"disable-gpu", cfg.Headless},
		{"hide-scrollbars", true},
		{"mute-audio", true},
	}

	if cfg.DisableCache {
		flags = append(flags,
			flag{"disk-cache-size", "0"},
			flag{"media-cache-size", "0"},
			flag{"disable-cache", true},
		)
	}

	if cfg.NoSandbox {
		flags = append(flags,
			flag{"no-sandbox", true},
			flag{"disable-dev-shm-usage", true},
			flag{"disable-setuid-sandbox", true},
		)
	}

	// Custom arguments from configuration, "--name=value" or "--name".
	for _, arg := range cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimLeft(parts[0], "-")
		if name == "" {
			continue
		}
		if len(parts) == 2 {
			flags = append(flags, flag{name, parts[1]})
		} else {
			flags = append(flags, flag{name, true})
		}
	}
	return flags
}

// AllocatorOptions builds the exec allocator options for one scenario browser.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	var opts []chromedp.ExecAllocatorOption

	// The default set includes enable-automation, which shows the automation
	// infobar and sets navigator.webdriver.
	for _, opt := range chromedp.DefaultExecAllocatorOptions {
		opts = append(opts, opt)
	}
	opts = append(opts, chromedp.Flag("enable-automation", false))

	for _, f := range launchFlags(cfg) {
		opts = append(opts, chromedp.Flag(f.Name, f.Value))
	}

	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.Viewport.Width > 0 && cfg.Viewport.Height > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.Viewport.Width, cfg.Viewport.Height))
	}
	if cfg.BinaryPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.BinaryPath))
	}
	return opts
}

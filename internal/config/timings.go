// File: internal/config/timings.go
// This file defines the Timings struct, which holds every wait, settle delay and
// timeout used while driving a page. Real pages hydrate, animate and redirect at
// their own pace; these values decide how patient each step is before it gives up.
//
// The values load from the `timings` section of the config file through Viper, so a
// slow staging environment can be accommodated without code changes.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// DefaultUserAgent is presented by every session unless overridden.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Timings holds the waits and timeouts applied by step handlers.
type Timings struct {
	// -- Navigation --
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	HydrationWait     time.Duration `mapstructure:"hydration_wait" yaml:"hydration_wait"`
	BodyTimeout       time.Duration `mapstructure:"body_timeout" yaml:"body_timeout"`

	// -- Interaction --
	ClickSettle    time.Duration `mapstructure:"click_settle" yaml:"click_settle"`
	PostClickWait  time.Duration `mapstructure:"post_click_wait" yaml:"post_click_wait"`
	PostInputWait  time.Duration `mapstructure:"post_input_wait" yaml:"post_input_wait"`
	ScrollSettle   time.Duration `mapstructure:"scroll_settle" yaml:"scroll_settle"`
	LiteralTimeout time.Duration `mapstructure:"literal_timeout" yaml:"literal_timeout"`

	// -- Verification --
	TextTimeout     time.Duration `mapstructure:"text_timeout" yaml:"text_timeout"`
	RedirectSettle  time.Duration `mapstructure:"redirect_settle" yaml:"redirect_settle"`
	RedirectTimeout time.Duration `mapstructure:"redirect_timeout" yaml:"redirect_timeout"`
	ElementTimeout  time.Duration `mapstructure:"element_timeout" yaml:"element_timeout"`
	VisibleTimeout  time.Duration `mapstructure:"visible_timeout" yaml:"visible_timeout"`
	PollInterval    time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`

	// SlowLoadThreshold is the page load time above which the load-time audit warns.
	SlowLoadThreshold time.Duration `mapstructure:"slow_load_threshold" yaml:"slow_load_threshold"`
}

// DefaultTimings returns the timing profile used when no config file is loaded.
func DefaultTimings() Timings {
	return Timings{
		NavigationTimeout: 60 * time.Second,
		HydrationWait:     4 * time.Second,
		BodyTimeout:       15 * time.Second,
		ClickSettle:       time.Second,
		PostClickWait:     3 * time.Second,
		PostInputWait:     800 * time.Millisecond,
		ScrollSettle:      2 * time.Second,
		LiteralTimeout:    5 * time.Second,
		TextTimeout:       20 * time.Second,
		RedirectSettle:    10 * time.Second,
		RedirectTimeout:   15 * time.Second,
		ElementTimeout:    15 * time.Second,
		VisibleTimeout:    30 * time.Second,
		PollInterval:      250 * time.Millisecond,
		SlowLoadThreshold: 20 * time.Second,
	}
}

func setTimingDefaults(v *viper.Viper) {
	d := DefaultTimings()
	v.SetDefault("timings.navigation_timeout", d.NavigationTimeout)
	v.SetDefault("timings.hydration_wait", d.HydrationWait)
	v.SetDefault("timings.body_timeout", d.BodyTimeout)
	v.SetDefault("timings.click_settle", d.ClickSettle)
	v.SetDefault("timings.post_click_wait", d.PostClickWait)
	v.SetDefault("timings.post_input_wait", d.PostInputWait)
	v.SetDefault("timings.scroll_settle", d.ScrollSettle)
	v.SetDefault("timings.literal_timeout", d.LiteralTimeout)
	v.SetDefault("timings.text_timeout", d.TextTimeout)
	v.SetDefault("timings.redirect_settle", d.RedirectSettle)
	v.SetDefault("timings.redirect_timeout", d.RedirectTimeout)
	v.SetDefault("timings.element_timeout", d.ElementTimeout)
	v.SetDefault("timings.visible_timeout", d.VisibleTimeout)
	v.SetDefault("timings.poll_interval", d.PollInterval)
	v.SetDefault("timings.slow_load_threshold", d.SlowLoadThreshold)
}

// Validate checks that every wait is usable. Settle delays may be zero; timeouts
// and the poll interval may not.
func (t Timings) Validate() error {
	timeouts := map[string]time.Duration{
		"navigation_timeout": t.NavigationTimeout,
		"body_timeout":       t.BodyTimeout,
		"literal_timeout":    t.LiteralTimeout,
		"text_timeout":       t.TextTimeout,
		"redirect_timeout":   t.RedirectTimeout,
		"element_timeout":    t.ElementTimeout,
		"visible_timeout":    t.VisibleTimeout,
		"poll_interval":      t.PollInterval,
	}
	for name, d := range timeouts {
		if d <= 0 {
			return fmt.Errorf("%s must be a positive duration", name)
		}
	}
	settles := map[string]time.Duration{
		"hydration_wait":  t.HydrationWait,
		"click_settle":    t.ClickSettle,
		"post_click_wait": t.PostClickWait,
		"post_input_wait": t.PostInputWait,
		"scroll_settle":   t.ScrollSettle,
		"redirect_settle": t.RedirectSettle,
	}
	for name, d := range settles {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	return nil
}

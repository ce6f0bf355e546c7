package steps

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ma5311943-dotcom/testing-tool/internal/config"
)

const previewLength = 300

// ExpectTitle requires the document title to equal Title exactly.
type ExpectTitle struct {
	Title string
}

func (ExpectTitle) Kind() Kind { return KindExpectTitle }

func (ExpectTitle) Budget(t config.Timings) time.Duration { return t.LiteralTimeout }

func (s ExpectTitle) Run(ctx context.Context, env *Env) error {
	title, err := env.Page.Title(ctx)
	if err != nil {
		return err
	}
	if title != s.Title {
		return verificationf("Title mismatch: expected %q, found %q", s.Title, title)
	}
	return nil
}

// ExpectTitlePresent requires a non-blank document title.
type ExpectTitlePresent struct{}

func (ExpectTitlePresent) Kind() Kind { return KindExpectTitle }

func (ExpectTitlePresent) Budget(t config.Timings) time.Duration { return t.LiteralTimeout }

func (ExpectTitlePresent) Run(ctx context.Context, env *Env) error {
	title, err := env.Page.Title(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(title) == "" {
		return verificationf("Page title is empty.")
	}
	return nil
}

// ExpectText waits for Text to appear in the page's visible text,
// case-insensitively.
type ExpectText struct {
	Text string
}

func (ExpectText) Kind() Kind { return KindExpectText }

func (ExpectText) Budget(t config.Timings) time.Duration { return t.TextTimeout + t.LiteralTimeout }

func (s ExpectText) Run(ctx context.Context, env *Env) error {
	found, err := env.poll(ctx, env.Timings.TextTimeout, func(ctx context.Context) (bool, error) {
		var ok bool
		err := env.probe(ctx, &ok, "textPresent", s.Text)
		return ok, err
	})
	if err != nil {
		return err
	}
	if found {
		return nil
	}
	loc, _ := env.Page.Location(ctx)
	return verificationf("VERIFICATION FAILED: %q not found at %s. Page content preview: %s...",
		s.Text, loc, env.preview(ctx, previewLength))
}

// ExpectElement requires an element to exist, or to be visible. Query is tried
// as a selector first, then as text or a name, id or aria-label fragment.
type ExpectElement struct {
	Query   string
	Visible bool
}

func (ExpectElement) Kind() Kind { return KindExpectElement }

func (ExpectElement) Budget(t config.Timings) time.Duration {
	return t.ElementTimeout + t.LiteralTimeout
}

func (s ExpectElement) Run(ctx context.Context, env *Env) error {
	var valid bool
	if err := env.probe(ctx, &valid, "validSelector", s.Query); err != nil {
		return err
	}
	if valid {
		err := within(ctx, env.Timings.ElementTimeout, func(ctx context.Context) error {
			if s.Visible {
				return env.Page.WaitVisible(ctx, s.Query)
			}
			return env.Page.WaitReady(ctx, s.Query)
		})
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	var ok bool
	if err := env.probe(ctx, &ok, "elementFuzzy", s.Query, s.Visible); err != nil {
		return err
	}
	if !ok {
		state := "exist"
		if s.Visible {
			state = "visible"
		}
		return verificationf("ACCURACY ERROR: Element or Text %q is not %s in current DOM.", s.Query, state)
	}
	return nil
}

// pageCheck is the shared shape of the single-probe document checks.
type pageCheck struct{}

func (pageCheck) Kind() Kind { return KindPageCheck }

func (pageCheck) Budget(t config.Timings) time.Duration { return t.LiteralTimeout }

// ExpectImageAlt requires every img element to carry an alt attribute.
type ExpectImageAlt struct{ pageCheck }

func (ExpectImageAlt) Run(ctx context.Context, env *Env) error {
	var missing int
	if err := env.probe(ctx, &missing, "imagesMissingAlt"); err != nil {
		return err
	}
	if missing > 0 {
		return verificationf("Found %d images missing alt text.", missing)
	}
	return nil
}

// ExpectSingleH1 requires exactly one h1 element.
type ExpectSingleH1 struct{ pageCheck }

func (ExpectSingleH1) Run(ctx context.Context, env *Env) error {
	var n int
	if err := env.probe(ctx, &n, "h1Count"); err != nil {
		return err
	}
	if n != 1 {
		return verificationf("Expected 1 h1 element, found %d.", n)
	}
	return nil
}

// Label coverage checks.
const (
	CheckAssociatedLabels = "associated labels"
	CheckTextContent      = "text content"
)

// ExpectLabelCoverage requires every Tag element to have an associated label
// or non-empty text content, depending on Check.
type ExpectLabelCoverage struct {
	pageCheck
	Tag   string
	Check string
}

func (s ExpectLabelCoverage) Run(ctx context.Context, env *Env) error {
	var failures int
	if err := env.probe(ctx, &failures, "labelFailures", s.Tag, s.Check); err != nil {
		return err
	}
	if failures > 0 {
		return verificationf("Found %d %s elements failing %s check.", failures, s.Tag, s.Check)
	}
	return nil
}

// ExpectMetaTag requires a meta or link element with Attr="Value".
type ExpectMetaTag struct {
	pageCheck
	Attr  string
	Value string
}

func (s ExpectMetaTag) Run(ctx context.Context, env *Env) error {
	var ok bool
	if err := env.probe(ctx, &ok, "metaExists", s.Attr, s.Value); err != nil {
		return err
	}
	if !ok {
		return verificationf("%s='%s' element is missing.", s.Attr, s.Value)
	}
	return nil
}

// ExpectImagesLoaded requires every image to have finished decoding.
type ExpectImagesLoaded struct{ pageCheck }

func (ExpectImagesLoaded) Run(ctx context.Context, env *Env) error {
	var ok bool
	if err := env.probe(ctx, &ok, "imagesLoaded"); err != nil {
		return err
	}
	if !ok {
		return verificationf("Some images failed to load completely.")
	}
	return nil
}

// ExpectLandmarkVisible requires the header or footer, when present, not to be
// hidden by style.
type ExpectLandmarkVisible struct {
	pageCheck
	Landmark string
}

func (s ExpectLandmarkVisible) Run(ctx context.Context, env *Env) error {
	var ok bool
	if err := env.probe(ctx, &ok, "landmarkVisible", s.Landmark); err != nil {
		return err
	}
	if !ok {
		name := s.Landmark
		if name != "" {
			name = strings.ToUpper(name[:1]) + name[1:]
		}
		return verificationf("%s is not visible.", name)
	}
	return nil
}

// ExpectProtocol compares window.location.protocol. "https" and "https:" are
// equivalent.
type ExpectProtocol struct {
	pageCheck
	Protocol string
}

func (s ExpectProtocol) Run(ctx context.Context, env *Env) error {
	var got string
	if err := env.probe(ctx, &got, "protocol"); err != nil {
		return err
	}
	want := strings.ToLower(strings.TrimSpace(s.Protocol))
	if !strings.HasSuffix(want, ":") {
		want += ":"
	}
	if got != want {
		return verificationf("Protocol mismatch: expected %s, found %s", s.Protocol, got)
	}
	return nil
}

// ExpectScriptsDeferred requires external classic scripts to load with defer
// or async.
type ExpectScriptsDeferred struct{ pageCheck }

func (ExpectScriptsDeferred) Run(ctx context.Context, env *Env) error {
	var n int
	if err := env.probe(ctx, &n, "blockingScripts"); err != nil {
		return err
	}
	if n > 0 {
		return verificationf("Found %d external scripts without defer or async.", n)
	}
	return nil
}

// ExpectLazyImages requires every image to declare loading="lazy".
type ExpectLazyImages struct{ pageCheck }

func (ExpectLazyImages) Run(ctx context.Context, env *Env) error {
	var n int
	if err := env.probe(ctx, &n, "eagerImages"); err != nil {
		return err
	}
	if n > 0 {
		return verificationf("Found %d images without loading='lazy'.", n)
	}
	return nil
}

// ExpectCompression requires the document to have been transferred with a
// content encoding, judged by its encoded versus decoded body size.
type ExpectCompression struct{ pageCheck }

func (ExpectCompression) Run(ctx context.Context, env *Env) error {
	var sizes struct {
		Encoded int64 `json:"encoded"`
		Decoded int64 `json:"decoded"`
	}
	if err := env.probe(ctx, &sizes, "transferSizes"); err != nil {
		return err
	}
	if sizes.Decoded == 0 {
		env.Logger.Warn("Transfer sizes unavailable; compression not verified (soft pass).")
		return nil
	}
	if sizes.Encoded >= sizes.Decoded {
		return verificationf("Document was served without compression (%d bytes).", sizes.Decoded)
	}
	env.Logger.Info("Document served compressed.",
		zap.Int64("encoded_bytes", sizes.Encoded), zap.Int64("decoded_bytes", sizes.Decoded))
	return nil
}

// ExpectPageFits requires no horizontal overflow beyond the viewport.
type ExpectPageFits struct{ pageCheck }

func (ExpectPageFits) Run(ctx context.Context, env *Env) error {
	var w struct {
		Scroll   int `json:"scroll"`
		Viewport int `json:"viewport"`
	}
	if err := env.probe(ctx, &w, "pageWidth"); err != nil {
		return err
	}
	if w.Scroll > w.Viewport {
		return verificationf("Page width %dpx exceeds viewport %dpx.", w.Scroll, w.Viewport)
	}
	return nil
}

// ExpectTouchTargets requires visible buttons to be at least MinPx in both
// dimensions.
type ExpectTouchTargets struct {
	pageCheck
	MinPx int
}

func (s ExpectTouchTargets) Run(ctx context.Context, env *Env) error {
	var n int
	if err := env.probe(ctx, &n, "smallButtons", s.MinPx); err != nil {
		return err
	}
	if n > 0 {
		return verificationf("Found %d buttons smaller than %dpx.", n, s.MinPx)
	}
	return nil
}

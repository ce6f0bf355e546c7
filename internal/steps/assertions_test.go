package steps

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constant(v interface{}) func([]interface{}) interface{} {
	return func([]interface{}) interface{} { return v }
}

func TestExpectTitle(t *testing.T) {
	page := newFakePage()
	page.title = "Dashboard"
	env, _ := newTestEnv(t, page)

	assert.NoError(t, ExpectTitle{Title: "Dashboard"}.Run(context.Background(), env))
	assert.EqualError(t, ExpectTitle{Title: "Home"}.Run(context.Background(), env),
		`Title mismatch: expected "Home", found "Dashboard"`)
	assert.NoError(t, ExpectTitlePresent{}.Run(context.Background(), env))

	page.title = "   "
	assert.EqualError(t, ExpectTitlePresent{}.Run(context.Background(), env), "Page title is empty.")
}

func TestExpectText(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		page := newFakePage()
		page.probes["textPresent"] = func(args []interface{}) interface{} { return args[0] == "Welcome" }
		env, _ := newTestEnv(t, page)

		assert.NoError(t, ExpectText{Text: "Welcome"}.Run(context.Background(), env))
	})

	t.Run("failure carries location and a bounded preview", func(t *testing.T) {
		page := newFakePage()
		page.location = "https://example.test/home"
		page.probes["textPresent"] = constant(false)
		page.probes["bodyText"] = constant(strings.Repeat("a", 500))
		env, _ := newTestEnv(t, page)

		err := ExpectText{Text: "Welcome"}.Run(context.Background(), env)
		var verr *VerificationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t,
			`VERIFICATION FAILED: "Welcome" not found at https://example.test/home. Page content preview: `+strings.Repeat("a", 300)+"...",
			err.Error())
	})
}

func TestExpectElement(t *testing.T) {
	t.Run("valid selector waits for visibility", func(t *testing.T) {
		page := newFakePage()
		page.probes["validSelector"] = constant(true)
		env, _ := newTestEnv(t, page)

		require.NoError(t, ExpectElement{Query: "#login", Visible: true}.Run(context.Background(), env))
		assert.Equal(t, []string{"waitVisible:#login"}, page.actions)
	})

	t.Run("selector miss falls through to fuzzy text", func(t *testing.T) {
		page := newFakePage()
		page.waitErr = context.DeadlineExceeded
		page.probes["validSelector"] = constant(true)
		page.probes["elementFuzzy"] = func(args []interface{}) interface{} { return args[1] == false }
		env, _ := newTestEnv(t, page)

		require.NoError(t, ExpectElement{Query: "form"}.Run(context.Background(), env))
		assert.Equal(t, []string{"waitReady:form"}, page.actions)
	})

	t.Run("not in the DOM", func(t *testing.T) {
		page := newFakePage()
		page.probes["validSelector"] = constant(false)
		page.probes["elementFuzzy"] = constant(false)
		env, _ := newTestEnv(t, page)

		err := ExpectElement{Query: "Login form", Visible: true}.Run(context.Background(), env)
		assert.EqualError(t, err, `ACCURACY ERROR: Element or Text "Login form" is not visible in current DOM.`)
		err = ExpectElement{Query: "#nonexistent"}.Run(context.Background(), env)
		assert.EqualError(t, err, `ACCURACY ERROR: Element or Text "#nonexistent" is not exist in current DOM.`)
	})
}

func TestPageChecks(t *testing.T) {
	tests := []struct {
		name    string
		step    Step
		probe   string
		result  interface{}
		wantErr string
	}{
		{"alt pass", ExpectImageAlt{}, "imagesMissingAlt", 0, ""},
		{"alt fail", ExpectImageAlt{}, "imagesMissingAlt", 3, "Found 3 images missing alt text."},
		{"h1 pass", ExpectSingleH1{}, "h1Count", 1, ""},
		{"h1 none", ExpectSingleH1{}, "h1Count", 0, "Expected 1 h1 element, found 0."},
		{"h1 many", ExpectSingleH1{}, "h1Count", 2, "Expected 1 h1 element, found 2."},
		{
			"labels fail",
			ExpectLabelCoverage{Tag: "input", Check: CheckAssociatedLabels}, "labelFailures", 2,
			"Found 2 input elements failing associated labels check.",
		},
		{"meta pass", ExpectMetaTag{Attr: "name", Value: "description"}, "metaExists", true, ""},
		{"meta fail", ExpectMetaTag{Attr: "rel", Value: "canonical"}, "metaExists", false, "rel='canonical' element is missing."},
		{"images loaded fail", ExpectImagesLoaded{}, "imagesLoaded", false, "Some images failed to load completely."},
		{"header hidden", ExpectLandmarkVisible{Landmark: "header"}, "landmarkVisible", false, "Header is not visible."},
		{"footer visible", ExpectLandmarkVisible{Landmark: "footer"}, "landmarkVisible", true, ""},
		{"protocol without colon", ExpectProtocol{Protocol: "https"}, "protocol", "https:", ""},
		{"protocol with colon", ExpectProtocol{Protocol: "HTTPS:"}, "protocol", "https:", ""},
		{"protocol mismatch", ExpectProtocol{Protocol: "https:"}, "protocol", "http:", "Protocol mismatch: expected https:, found http:"},
		{"blocking scripts", ExpectScriptsDeferred{}, "blockingScripts", 2, "Found 2 external scripts without defer or async."},
		{"eager images", ExpectLazyImages{}, "eagerImages", 4, "Found 4 images without loading='lazy'."},
		{"compressed", ExpectCompression{}, "transferSizes", map[string]int{"encoded": 100, "decoded": 900}, ""},
		{"uncompressed", ExpectCompression{}, "transferSizes", map[string]int{"encoded": 900, "decoded": 900}, "Document was served without compression (900 bytes)."},
		{"compression unknown", ExpectCompression{}, "transferSizes", map[string]int{"encoded": 0, "decoded": 0}, ""},
		{"page fits", ExpectPageFits{}, "pageWidth", map[string]int{"scroll": 375, "viewport": 375}, ""},
		{"page overflows", ExpectPageFits{}, "pageWidth", map[string]int{"scroll": 420, "viewport": 375}, "Page width 420px exceeds viewport 375px."},
		{"small buttons", ExpectTouchTargets{MinPx: 44}, "smallButtons", 1, "Found 1 buttons smaller than 44px."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := newFakePage()
			page.probes[tt.probe] = constant(tt.result)
			env, _ := newTestEnv(t, page)

			err := tt.step.Run(context.Background(), env)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var verr *VerificationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestProbeArguments(t *testing.T) {
	page := newFakePage()
	var got []interface{}
	page.probes["smallButtons"] = func(args []interface{}) interface{} {
		got = args
		return 0
	}
	env, _ := newTestEnv(t, page)

	require.NoError(t, ExpectTouchTargets{MinPx: 48}.Run(context.Background(), env))
	assert.Equal(t, []interface{}{float64(48)}, got)
}

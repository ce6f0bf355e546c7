package steps

import (
	"context"
	_ "embed"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var (
	//go:embed checks.js
	checksScript string
	//go:embed a11y.js
	a11yScript string
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// probe runs one named function of checks.js in the page and decodes its
// return value into out.
func (e *Env) probe(ctx context.Context, out interface{}, name string, args ...interface{}) error {
	if args == nil {
		args = []interface{}{}
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to encode probe arguments: %w", err)
	}
	expr := fmt.Sprintf("(%s)(%q, %s)", checksScript, name, encoded)
	if err := e.Page.Evaluate(ctx, expr, out); err != nil {
		return fmt.Errorf("page probe %s failed: %w", name, err)
	}
	return nil
}

// violation is one failed accessibility rule.
type violation struct {
	ID     string `json:"id"`
	Help   string `json:"help"`
	Impact string `json:"impact"`
	Nodes  int    `json:"nodes"`
}

func (e *Env) audit(ctx context.Context, rules []string) ([]violation, error) {
	if rules == nil {
		rules = []string{}
	}
	encoded, err := json.Marshal(rules)
	if err != nil {
		return nil, err
	}
	var out []violation
	if err := e.Page.Evaluate(ctx, fmt.Sprintf("(%s)(%s)", a11yScript, encoded), &out); err != nil {
		return nil, fmt.Errorf("accessibility audit failed: %w", err)
	}
	return out, nil
}

// preview returns up to n characters of the page's visible text.
func (e *Env) preview(ctx context.Context, n int) string {
	var text string
	if err := e.probe(ctx, &text, "bodyText"); err != nil {
		return ""
	}
	r := []rune(text)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}

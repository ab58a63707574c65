package templates

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Bare tags that are useless as an item selector on their own.
var genericTagDenylist = map[string]struct{}{
	"a": {}, "body": {}, "div": {}, "span": {}, "p": {}, "table": {},
	"tr": {}, "td": {}, "li": {}, "ul": {}, "section": {}, "article": {},
}

// Lint validates a templates file: every template needs a non-empty item
// selector, vendor systems need indicators, and single-token item selectors
// must carry a specificity marker (class, id or attribute).
func Lint(data []byte) error {
	var f registryFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse templates data: %w", err)
	}

	var errs []string

	lintTier := func(tier string, tpls map[string]Template, wantIndicators bool) {
		for key, tpl := range tpls {
			if tpl.Selectors.IsZero() {
				errs = append(errs, fmt.Sprintf("%s[%s]: empty list selector", tier, key))
				continue
			}
			if wantIndicators && len(tpl.Indicators) == 0 {
				errs = append(errs, fmt.Sprintf("%s[%s]: system template without indicators", tier, key))
			}
			if err := lintItemSelector(tpl.Selectors.Item); err != nil {
				errs = append(errs, fmt.Sprintf("%s[%s]: %v", tier, key, err))
			}
		}
	}
	lintTier("systems", f.Systems, true)
	lintTier("domains", f.Domains, false)
	lintTier("custom", f.Custom, false)

	if len(errs) > 0 {
		return fmt.Errorf("%d invalid templates found:\n%s", len(errs), strings.Join(errs, "\n"))
	}
	return nil
}

// lintItemSelector rejects selectors so broad they would match half the page.
// Comma alternatives are fine as long as each alternative passes.
func lintItemSelector(selector string) error {
	for _, alt := range strings.Split(selector, ",") {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			return fmt.Errorf("empty selector alternative in %q", selector)
		}
		if strings.ContainsAny(alt, ".#[") || strings.Contains(alt, " ") {
			continue
		}
		if _, denied := genericTagDenylist[alt]; denied {
			return fmt.Errorf("item selector %q is a bare generic tag", alt)
		}
	}
	return nil
}

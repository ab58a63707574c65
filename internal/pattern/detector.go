// Package pattern infers a board's selector set from a single DOM without
// prior knowledge of the site. It locates date-bearing leaves, walks to their
// row containers, clusters structurally similar rows and synthesizes a
// selector quadruple with a confidence score.
package pattern

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/daehakro/noticeboard/internal/selectors"
	"github.com/daehakro/noticeboard/internal/textutil"
)

// Result carries the synthesized selector set and how much the detector
// trusts it, measured against the live document.
type Result struct {
	Confidence float64
	Selectors  selectors.Set
}

// Detector holds the compiled detection state. All per-call working state is
// local, so a single Detector is safe for concurrent use.
type Detector struct {
	datePatterns []*regexp.Regexp
	keywords     []string
	minNotices   int
	simThreshold float64
	log          *slog.Logger
}

// Tags that terminate the walk from a date leaf up to its row container.
var rowTags = map[string]struct{}{
	"tr": {}, "li": {}, "article": {}, "section": {},
}

var itemIndicators = []string{
	"item", "notice", "board", "list", "row",
	"article", "post", "entry", "content",
}

var meaningfulItemClasses = []string{"item", "row", "notice", "board", "list"}

const (
	fallbackTitleSelector = "a, .title, .subject, td:nth-child(2), td:nth-child(3)"
	fallbackDateSelector  = ".date, .regdate, .time, td:last-child, td:nth-last-child(2)"
	fallbackLinkSelector  = "a"
)

// NewDetector compiles the date patterns once. An invalid pattern is a
// construction error, not a per-call one.
func NewDetector(datePatterns, keywords []string, minNotices int, simThreshold float64, logger *slog.Logger) (*Detector, error) {
	if logger == nil {
		logger = slog.Default()
	}
	compiled := make([]*regexp.Regexp, 0, len(datePatterns))
	for _, p := range datePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid date pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return &Detector{
		datePatterns: compiled,
		keywords:     keywords,
		minNotices:   minNotices,
		simThreshold: simThreshold,
		log:          logger,
	}, nil
}

// Detect runs the four detection phases against doc. A confidence of zero
// means no usable structure was found.
func (d *Detector) Detect(doc *goquery.Document) Result {
	containers := d.findRowContainers(doc)
	if len(containers) < d.minNotices {
		return Result{}
	}

	features := make([]*rowFeature, 0, len(containers))
	for _, c := range containers {
		if f := d.extractFeatures(c); f != nil {
			features = append(features, f)
		}
	}
	if len(features) == 0 {
		return Result{}
	}

	reps := d.clusterRepresentatives(features)

	var best *rowFeature
	bestScore := 0.0
	for _, rep := range reps {
		if score := d.scoreRow(rep); score > bestScore {
			bestScore = score
			best = rep
		}
	}
	if best == nil {
		return Result{}
	}

	set := d.synthesize(best)
	conf := d.confidence(doc, set)
	d.log.Debug("pattern detection finished", "confidence", conf, "item", set.Item)
	return Result{Confidence: conf, Selectors: set}
}

// --- Phase A: date-leaf discovery ---

func (d *Detector) findRowContainers(doc *goquery.Document) []*goquery.Selection {
	seen := make(map[*html.Node]bool)
	var containers []*goquery.Selection

	add := func(s *goquery.Selection) {
		if s == nil || s.Length() == 0 {
			return
		}
		node := s.Get(0)
		if !seen[node] {
			seen[node] = true
			containers = append(containers, s)
		}
	}

	// Elements whose own text carries a date.
	doc.Find("body *").Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "script", "style", "noscript":
			return
		}
		if d.matchesDate(ownText(s)) {
			add(d.rowContainer(s))
		}
	})

	// Elements flagged as date-ish by class or id, when their text agrees.
	hintSelector := `[class*="date"], [class*="time"], [id*="date"], [class*="regist"], [class*="write"], [class*="post"]`
	doc.Find(hintSelector).Each(func(_ int, s *goquery.Selection) {
		if d.matchesDate(s.Text()) {
			add(d.rowContainer(s))
		}
	})

	return containers
}

// ownText concatenates the element's direct text nodes, excluding descendant
// element text. This keeps huge wrappers from matching as date leaves.
func ownText(s *goquery.Selection) string {
	var b strings.Builder
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			b.WriteString(c.Text())
		}
	})
	return b.String()
}

// rowContainer walks up at most five ancestors to the nearest row-like
// element: tr/li/article/section, or a div whose class or id names an item.
func (d *Detector) rowContainer(s *goquery.Selection) *goquery.Selection {
	cur := s
	for i := 0; i < 5; i++ {
		tag := goquery.NodeName(cur)
		if _, ok := rowTags[tag]; ok {
			return cur
		}
		if tag == "div" && hasItemIndicator(cur) {
			return cur
		}
		parent := cur.Parent()
		if parent.Length() == 0 {
			break
		}
		if t := goquery.NodeName(parent); t == "html" || t == "" {
			break
		}
		cur = parent
	}
	switch goquery.NodeName(s) {
	case "tr", "li", "div":
		return s
	}
	return nil
}

func hasItemIndicator(s *goquery.Selection) bool {
	text := strings.ToLower(s.AttrOr("class", "") + " " + s.AttrOr("id", ""))
	for _, ind := range itemIndicators {
		if strings.Contains(text, ind) {
			return true
		}
	}
	return false
}

func (d *Detector) matchesDate(text string) bool {
	if text == "" {
		return false
	}
	for _, re := range d.datePatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// --- Phase B: per-container features ---

type candidate struct {
	selector string
	textLen  int
	position int
}

type rowFeature struct {
	sel           *goquery.Selection
	tag           string
	classes       []string
	parentTag     string
	parentClasses []string
	siblingCount  int
	hasLink       bool
	textLen       int
	titleCands    []candidate
	dateCands     []candidate
	linkCands     []candidate
}

func (d *Detector) extractFeatures(container *goquery.Selection) *rowFeature {
	tag := goquery.NodeName(container)
	if tag == "" {
		return nil
	}
	f := &rowFeature{
		sel:     container,
		tag:     tag,
		classes: classList(container),
		hasLink: container.Find("a").Length() > 0,
		textLen: utf8.RuneCountInString(strings.TrimSpace(container.Text())),
	}
	if parent := container.Parent(); parent.Length() > 0 {
		f.parentTag = goquery.NodeName(parent)
		f.parentClasses = classList(parent)
		f.siblingCount = parent.ChildrenFiltered(tag).Length() - 1
	}

	container.Find("td, div, span, a, strong, em").Each(func(i int, child *goquery.Selection) {
		text := textutil.CleanText(child.Text())
		cand := candidate{
			selector: relativeSelector(child, container),
			textLen:  utf8.RuneCountInString(text),
			position: i,
		}
		if cand.selector == "" {
			return
		}
		if d.matchesDate(text) {
			f.dateCands = append(f.dateCands, cand)
		}
		if goquery.NodeName(child) == "a" || child.Find("a").Length() > 0 {
			f.linkCands = append(f.linkCands, cand)
		}
		if cand.textLen > 10 && !d.matchesDate(text) {
			f.titleCands = append(f.titleCands, cand)
		}
	})
	return f
}

// relativeSelector builds a CSS path from elem up to (excluding) container:
// tag, dotted classes, and :nth-child when siblings of the same tag make the
// step ambiguous.
func relativeSelector(elem, container *goquery.Selection) string {
	var parts []string
	cur := elem
	for cur.Length() > 0 && cur.Get(0) != container.Get(0) {
		part := goquery.NodeName(cur)
		if classes := classList(cur); len(classes) > 0 {
			part += "." + strings.Join(classes, ".")
		}
		parent := cur.Parent()
		if parent.Length() > 0 && parent.ChildrenFiltered(goquery.NodeName(cur)).Length() > 1 {
			part += fmt.Sprintf(":nth-child(%d)", cur.Index()+1)
		}
		parts = append([]string{part}, parts...)
		if parent.Length() == 0 {
			break
		}
		cur = parent
	}
	return strings.Join(parts, " > ")
}

func classList(s *goquery.Selection) []string {
	return strings.Fields(s.AttrOr("class", ""))
}

// --- Phase C: clustering ---

type rowCluster struct {
	rep     *rowFeature
	members []*rowFeature
}

// clusterRepresentatives groups features by structural similarity and
// returns each cluster's representative (the member with the most same-tag
// siblings), largest cluster first.
func (d *Detector) clusterRepresentatives(features []*rowFeature) []*rowFeature {
	var clusters []*rowCluster
	for _, f := range features {
		var home *rowCluster
		for _, c := range clusters {
			if structuralSimilarity(f, c.rep) >= d.simThreshold {
				home = c
				break
			}
		}
		if home != nil {
			home.members = append(home.members, f)
			if f.siblingCount > home.rep.siblingCount {
				home.rep = f
			}
		} else {
			clusters = append(clusters, &rowCluster{rep: f, members: []*rowFeature{f}})
		}
	}
	sort.SliceStable(clusters, func(i, j int) bool {
		return len(clusters[i].members) > len(clusters[j].members)
	})
	reps := make([]*rowFeature, len(clusters))
	for i, c := range clusters {
		reps[i] = c.rep
	}
	return reps
}

// structuralSimilarity is a weighted sum over tag equality, parent tag
// equality, class-set Jaccard and sibling-count proximity.
func structuralSimilarity(a, b *rowFeature) float64 {
	score := 0.0
	if a.tag == b.tag {
		score += 0.30
	}
	if a.parentTag == b.parentTag {
		score += 0.20
	}
	score += classJaccard(a.classes, b.classes) * 0.30

	diff := a.siblingCount - b.siblingCount
	if diff < 0 {
		diff = -diff
	}
	proximity := 1 - float64(diff)/10
	if proximity < 0 {
		proximity = 0
	}
	score += proximity * 0.20
	return score
}

func classJaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(a))
	for _, c := range a {
		setA[c] = struct{}{}
	}
	inter := 0
	setB := make(map[string]struct{}, len(b))
	for _, c := range b {
		if _, dup := setB[c]; dup {
			continue
		}
		setB[c] = struct{}{}
		if _, ok := setA[c]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// --- Phase D: scoring, synthesis, confidence ---

func (d *Detector) scoreRow(f *rowFeature) float64 {
	score := 0.0

	siblings := float64(f.siblingCount) / 20
	if siblings > 1 {
		siblings = 1
	}
	score += siblings * 0.4

	if f.hasLink {
		score += 0.3
	}

	switch {
	case f.textLen >= 20 && f.textLen <= 200:
		score += 0.2
	case f.textLen > 200:
		score += 0.1
	}

	text := strings.ToLower(f.sel.Text())
	for _, kw := range d.keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			score += 0.1
			break
		}
	}
	return score
}

func (d *Detector) synthesize(f *rowFeature) selectors.Set {
	container := listContainer(f.sel, f.tag)

	set := selectors.Set{
		Container: containerSelector(container),
		Item:      itemSelector(f),
		Title:     fallbackTitleSelector,
		Date:      fallbackDateSelector,
		Link:      fallbackLinkSelector,
	}

	if len(f.titleCands) > 0 {
		best := f.titleCands[0]
		for _, c := range f.titleCands[1:] {
			if c.textLen > best.textLen {
				best = c
			}
		}
		set.Title = best.selector
	}
	if len(f.dateCands) > 0 {
		set.Date = f.dateCands[0].selector
	}
	if len(f.linkCands) > 0 {
		set.Link = f.linkCands[0].selector
	}
	return set
}

// listContainer finds the nearest ancestor holding at least three direct
// children of the item's tag.
func listContainer(item *goquery.Selection, tag string) *goquery.Selection {
	cur := item.Parent()
	for cur.Length() > 0 {
		name := goquery.NodeName(cur)
		if name == "body" || name == "html" {
			break
		}
		if cur.ChildrenFiltered(tag).Length() >= 3 {
			return cur
		}
		cur = cur.Parent()
	}
	if parent := item.Parent(); parent.Length() > 0 {
		return parent
	}
	return item
}

func containerSelector(container *goquery.Selection) string {
	if container == nil || container.Length() == 0 {
		return ""
	}
	if id := container.AttrOr("id", ""); id != "" {
		return "#" + id
	}
	tag := goquery.NodeName(container)
	if classes := classList(container); len(classes) > 0 {
		return tag + "." + strings.Join(classes, ".")
	}
	return tag
}

func itemSelector(f *rowFeature) string {
	selector := f.tag
	var meaningful []string
	for _, class := range f.classes {
		lower := strings.ToLower(class)
		for _, kw := range meaningfulItemClasses {
			if strings.Contains(lower, kw) {
				meaningful = append(meaningful, class)
				break
			}
		}
	}
	if len(meaningful) > 0 {
		selector += "." + strings.Join(meaningful, ".")
	}
	return selector
}

// confidence measures the synthesized set against the document itself:
// nothing selected means zero, too few items means a floor of 0.3, otherwise
// item count plus title and date extraction rates over the first five items.
func (d *Detector) confidence(doc *goquery.Document, set selectors.Set) float64 {
	container := doc.Find(set.Container).First()
	if set.Container == "" || container.Length() == 0 {
		return 0
	}
	items := container.Find(set.Item)
	if items.Length() < d.minNotices {
		return 0.3
	}

	countScore := float64(items.Length()) / 10
	if countScore > 1 {
		countScore = 1
	}
	conf := countScore * 0.4

	sample := items.Length()
	if sample > 5 {
		sample = 5
	}
	titleHits, dateHits := 0, 0
	items.Slice(0, sample).Each(func(_ int, item *goquery.Selection) {
		if title := item.Find(set.Title).First(); title.Length() > 0 {
			if utf8.RuneCountInString(textutil.CleanText(title.Text())) > 5 {
				titleHits++
			}
		}
		if date := item.Find(set.Date).First(); date.Length() > 0 {
			if d.matchesDate(date.Text()) {
				dateHits++
			}
		}
	})
	conf += float64(titleHits) / float64(sample) * 0.4
	conf += float64(dateHits) / float64(sample) * 0.2

	if conf > 1 {
		conf = 1
	}
	return conf
}

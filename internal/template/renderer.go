package template

import (
	"bytes"
	"fmt"
	htmpl "html/template"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/fruitai/outreach/internal/apperr"
)

// Data is the per-prospect input to a render
type Data struct {
	Name          string
	Company       string
	Email         string
	SenderName    string
	SenderCompany string
	Website       string
	Goal          string
	// Body is generated content. When empty the merged "body" value is used.
	Body string
	// Defaults are campaign-level customizations applied under per-call ones
	Defaults map[string]any
	// Tracking rewrites links through the tracking endpoints and adds an
	// open pixel. Nil renders untracked links.
	Tracking *Tracking
}

// Tracking identifies the server and email that tracked links point back to
type Tracking struct {
	BaseURL string
	EmailID string
}

// OpenURL is the address of the email's open pixel
func (t *Tracking) OpenURL() string {
	return strings.TrimRight(t.BaseURL, "/") + "/t/open/" + url.PathEscape(t.EmailID)
}

// ClickURL is the redirecting address of the email's link at index
func (t *Tracking) ClickURL(index int) string {
	return strings.TrimRight(t.BaseURL, "/") + "/t/click/" + url.PathEscape(t.EmailID) + "/" + strconv.Itoa(index)
}

// Rendered is the output of a render. Links holds the real destinations of
// tracked links, by index.
type Rendered struct {
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text"`
	Links   []string `json:"links,omitempty"`
}

// baseDefaults apply to every template before its own defaults
var baseDefaults = map[string]any{
	"subject":     "Partnership Opportunity with {company}",
	"greeting":    "Hi {name},",
	"body":        "I came across {company} and wanted to reach out about {goal}.",
	"signature":   "Best regards,\n\n{senderName}\n{senderCompany}",
	"headerTitle": "Transform Your Business",
	"mainHeading": "Helping {company} grow",
	"buttonText":  "Schedule a Call",
	"buttonUrl":   "",
	"features":    []string{"40% Cost Reduction", "10x Faster Processing", "100% Compliance", "Global Scalability"},
}

var baseFallbacks = map[string]string{
	"name":          "there",
	"firstName":     "there",
	"company":       "your company",
	"senderName":    "our team",
	"senderCompany": "our company",
	"website":       "your website",
	"goal":          "working together",
}

// Renderer turns a template id, customizations and prospect data into an email
type Renderer struct {
	registry *Registry
	layout   *htmpl.Template
}

// NewRenderer creates a Renderer over reg
func NewRenderer(reg *Registry) *Renderer {
	return &Renderer{
		registry: reg,
		layout:   htmpl.Must(htmpl.New("email").Parse(layoutHTML)),
	}
}

// Registry returns the registry backing the renderer
func (r *Renderer) Registry() *Registry {
	return r.registry
}

// Has reports whether templateID is registered
func (r *Renderer) Has(templateID string) bool {
	return r.registry.Exists(templateID)
}

// Render produces the subject, HTML and text bodies. It returns an
// unknown_template error for unregistered ids.
func (r *Renderer) Render(templateID string, customizations map[string]any, data Data) (Rendered, error) {
	t, err := r.registry.Get(templateID)
	if err != nil {
		return Rendered{}, err
	}

	merged := merge(baseDefaults, t.Defaults, data.Defaults, customizations)
	subst := replacer(t, data)
	s := func(key string) string {
		return strings.TrimSpace(subst.Replace(stringValue(merged[key])))
	}

	body := data.Body
	if strings.TrimSpace(body) == "" {
		body = stringValue(merged["body"])
	}
	body = strings.TrimSpace(subst.Replace(body))

	primary, ok := normalizeColor(stringValue(merged["primaryColor"]))
	if !ok {
		primary, _ = normalizeColor(t.PrimaryColor)
	}
	accent, ok := normalizeColor(stringValue(merged["accentColor"]))
	if !ok {
		accent = adjustBrightness(primary, -20)
	}

	var features []string
	for _, f := range stringSlice(merged["features"]) {
		if f = strings.TrimSpace(subst.Replace(f)); f != "" {
			features = append(features, f)
		}
	}

	view := layoutView{
		Subject:      singleLine(s("subject")),
		Greeting:     s("greeting"),
		Paragraphs:   paragraphs(body),
		Signature:    lines(s("signature")),
		HeaderTitle:  s("headerTitle"),
		MainHeading:  s("mainHeading"),
		ButtonText:   s("buttonText"),
		ButtonURL:    s("buttonUrl"),
		Features:     features,
		PrimaryColor: htmpl.CSS(primary),
		AccentColor:  htmpl.CSS(accent),
		FontFamily:   htmpl.CSS(fontFamily(t)),
		ShowBanner:   t.Has(ComponentHeaderBanner),
		ShowFeatures: t.Has(ComponentFeatureGrid) && len(features) > 0,
		ShowButton:   t.Has(ComponentCTAButton),
	}
	if !safeURL(view.ButtonURL) {
		view.ButtonURL = ""
	}
	if view.ShowButton && view.ButtonURL == "" && safeURL(data.Website) {
		view.ButtonURL = data.Website
	}
	view.ShowButton = view.ShowButton && view.ButtonText != "" && view.ButtonURL != ""

	var links []string
	if tr := data.Tracking; tr != nil && tr.BaseURL != "" && tr.EmailID != "" {
		if view.ShowButton {
			links = append(links, view.ButtonURL)
			view.ButtonURL = tr.ClickURL(len(links) - 1)
		}
		view.OpenPixel = tr.OpenURL()
	}

	var buf bytes.Buffer
	if err := r.layout.Execute(&buf, view); err != nil {
		return Rendered{}, apperr.Wrap(apperr.KindInternal, err, "failed to render template %q", templateID)
	}

	return Rendered{
		Subject: view.Subject,
		HTML:    buf.String(),
		Text:    plainText(view),
		Links:   links,
	}, nil
}

type layoutView struct {
	Subject      string
	Greeting     string
	Paragraphs   [][]string
	Signature    []string
	HeaderTitle  string
	MainHeading  string
	ButtonText   string
	ButtonURL    string
	Features     []string
	PrimaryColor htmpl.CSS
	AccentColor  htmpl.CSS
	FontFamily   htmpl.CSS
	ShowBanner   bool
	ShowFeatures bool
	ShowButton   bool
	OpenPixel    string
}

func plainText(v layoutView) string {
	var b strings.Builder
	if v.Greeting != "" {
		b.WriteString(v.Greeting)
		b.WriteString("\n\n")
	}
	for _, p := range v.Paragraphs {
		b.WriteString(strings.Join(p, "\n"))
		b.WriteString("\n\n")
	}
	if v.ShowFeatures {
		for _, f := range v.Features {
			b.WriteString("- ")
			b.WriteString(f)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if v.ShowButton {
		fmt.Fprintf(&b, "%s: %s\n\n", v.ButtonText, v.ButtonURL)
	}
	b.WriteString(strings.Join(v.Signature, "\n"))
	return strings.TrimSpace(b.String()) + "\n"
}

// merge flattens layers left to right; later non-empty values win. A nested
// "customizations" map inside a layer is applied after that layer's top level.
func merge(layers ...map[string]any) map[string]any {
	out := make(map[string]any)
	var apply func(m map[string]any)
	apply = func(m map[string]any) {
		for k, v := range m {
			if k == "customizations" {
				continue
			}
			if isEmpty(v) {
				continue
			}
			out[k] = v
		}
		if nested, ok := m["customizations"].(map[string]any); ok {
			apply(nested)
		}
	}
	for _, m := range layers {
		apply(m)
	}
	return out
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	}
	return false
}

func replacer(t Template, d Data) *strings.Replacer {
	value := func(key, v string) string {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
		if fb, ok := t.Fallbacks[key]; ok {
			return fb
		}
		return baseFallbacks[key]
	}

	firstName := ""
	if fields := strings.Fields(d.Name); len(fields) > 0 {
		firstName = fields[0]
	}

	return strings.NewReplacer(
		"{name}", value("name", d.Name),
		"{firstName}", value("firstName", firstName),
		"{company}", value("company", d.Company),
		"{senderName}", value("senderName", d.SenderName),
		"{senderCompany}", value("senderCompany", d.SenderCompany),
		"{website}", value("website", d.Website),
		"{goal}", value("goal", d.Goal),
		`\n`, "\n",
	)
}

func stringValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return ""
	case fmt.Stringer:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}

func stringSlice(v any) []string {
	switch x := v.(type) {
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			if s := stringValue(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if x == "" {
			return nil
		}
		return strings.Split(x, "\n")
	}
	return nil
}

func fontFamily(t Template) string {
	if t.FontFamily != "" && !strings.ContainsAny(t.FontFamily, `;{}<>"\`) {
		return t.FontFamily
	}
	return "-apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif"
}

var blankLine = regexp.MustCompile(`\n\s*\n`)

// paragraphs splits text on blank lines; each paragraph keeps its lines
func paragraphs(text string) [][]string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out [][]string
	for _, block := range blankLine.Split(text, -1) {
		if ls := lines(block); len(ls) > 0 {
			out = append(out, ls)
		}
	}
	return out
}

func lines(text string) []string {
	var out []string
	for _, l := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func safeURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || raw == "" {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "mailto":
		return true
	}
	return false
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var colorPattern = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// normalizeColor validates #rgb or #rrggbb and returns the lower-case #rrggbb form
func normalizeColor(c string) (string, bool) {
	c = strings.TrimSpace(c)
	if !colorPattern.MatchString(c) {
		return "", false
	}
	c = strings.ToLower(c)
	if len(c) == 4 {
		c = "#" + strings.Repeat(c[1:2], 2) + strings.Repeat(c[2:3], 2) + strings.Repeat(c[3:4], 2)
	}
	return c, true
}

// adjustBrightness shifts each channel of a #rrggbb color by percent of 255
func adjustBrightness(hex string, percent int) string {
	n, err := strconv.ParseUint(strings.TrimPrefix(hex, "#"), 16, 32)
	if err != nil {
		return hex
	}
	amt := int(float64(percent)*2.55 + 0.5)
	if percent < 0 {
		amt = -int(float64(-percent)*2.55 + 0.5)
	}
	clamp := func(v int) int {
		return min(max(v, 0), 255)
	}
	r := clamp(int(n>>16) + amt)
	g := clamp(int(n>>8&0xff) + amt)
	b := clamp(int(n&0xff) + amt)
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Builtins(t *testing.T) {
	reg := NewRegistry()

	var ids []string
	for _, tmpl := range reg.List() {
		ids = append(ids, tmpl.ID)
	}
	assert.Equal(t, []string{"enterprise_executive", "modern_tech", "professional_partnership"}, ids)
	assert.True(t, reg.Exists("modern_tech"))
	assert.False(t, reg.Exists("missing"))
}

func TestRegistry_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
templates:
  - id: friendly_startup
    name: Friendly Startup
    primary_color: "#f59e0b"
    components: [header_banner, cta_button]
    defaults:
      subject: "Quick idea for {company}"
      buttonText: Say hello
    fallbacks:
      name: friend
`), 0o644))

	reg := NewRegistry()
	n, err := reg.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	tmpl, err := reg.Get("friendly_startup")
	require.NoError(t, err)
	assert.True(t, tmpl.Has(ComponentHeaderBanner))
	assert.False(t, tmpl.Has(ComponentFeatureGrid))

	out, err := NewRenderer(reg).Render("friendly_startup", nil, Data{Company: "Globex"})
	require.NoError(t, err)
	assert.Equal(t, "Quick idea for Globex", out.Subject)
	assert.Contains(t, out.Text, "Hi friend,")
}

func TestRegistry_RejectsInvalid(t *testing.T) {
	reg := NewRegistry()

	assert.Error(t, reg.Register(Template{ID: "Bad Id", Name: "x", PrimaryColor: "#fff"}))
	assert.Error(t, reg.Register(Template{ID: "ok", Name: "x", PrimaryColor: "blue"}))
	assert.Error(t, reg.Register(Template{ID: "ok", Name: "x", PrimaryColor: "#fff", Components: []Component{"carousel"}}))

	_, err := reg.Load([]byte("templates: [ {id: broken"))
	assert.Error(t, err)
}

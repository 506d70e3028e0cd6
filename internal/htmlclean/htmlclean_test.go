package htmlclean

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const featurePanel = `<div id="pdp-features-tabpanel" class="panel">
  <script>track()</script>
  <style>.x{}</style>
  <table class="specs" data-row="1">
    <tr><th>Housing Color</th><td>Black</td></tr>
    <tr><td>Number of Positions</td><td> 12 </td></tr>
    <tr><td></td><td><span> </span></td></tr>
  </table>
</div>`

func TestClean_TableSites(t *testing.T) {
	for _, site := range []string{"TE Connectivity", "Molex"} {
		t.Run(site, func(t *testing.T) {
			out, err := Clean(featurePanel, site)
			require.NoError(t, err)

			want := "Housing ColorBlackNumber of Positions12\n" +
				"Housing ColorBlack\n" +
				"Housing Color\n" +
				"Black\n" +
				"Number of Positions12\n" +
				"Number of Positions\n" +
				"12"
			assert.Equal(t, want, out)
			assert.NotContains(t, out, "track()")
		})
	}
}

func TestClean_Generic(t *testing.T) {
	out, err := Clean(featurePanel, "TraceParts")
	require.NoError(t, err)

	assert.Contains(t, out, "<table")
	assert.Contains(t, out, "class=\"specs\"")
	assert.Contains(t, out, "Black")
	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "<style")
	assert.NotContains(t, out, "<span")
}

func TestClean_NoText(t *testing.T) {
	for _, site := range []string{"Molex", "TraceParts"} {
		out, err := Clean(`<div><img src="a.png"><script>x()</script></div>`, site)
		require.NoError(t, err)
		assert.Empty(t, out)
	}
}

func TestStrategyFor(t *testing.T) {
	assert.IsType(t, TableTextStrategy{}, StrategyFor("TE Connectivity"))
	assert.IsType(t, GenericStrategy{}, StrategyFor("Unknown"))
}

package scrape

import (
	"regexp"
	"time"

	"github.com/spherical-ai/part-extractor/internal/domain"
)

// teExpandFeatures opens the collapsed features panel on TE product pages.
const teExpandFeatures = `(async () => {
	const expandButton = document.querySelector('#pdp-features-expander-btn');
	if (expandButton && expandButton.getAttribute('aria-selected') === 'false') {
		expandButton.click();
		await new Promise(r => setTimeout(r, 1500));
	}
})();`

// DefaultProfiles returns the supplier sites tried for a part number, in order.
func DefaultProfiles() []domain.SiteProfile {
	return []domain.SiteProfile{
		{
			Name:              "TE Connectivity",
			URLTemplate:       "https://www.te.com/en/product-{part_number}.html",
			PartNumberPattern: regexp.MustCompile(`^\d{7}-\d$`),
			PreFetchScript:    teExpandFeatures,
			ScriptWait:        1500 * time.Millisecond,
			ContentSelector:   "#pdp-features-tabpanel",
		},
		{
			Name:              "Molex",
			URLTemplate:       "https://www.molex.com/en-us/products/part-detail/{part_number}#part-details",
			PartNumberPattern: regexp.MustCompile(`^\d{9}$`),
			ContentSelector:   "body",
		},
		{
			Name:            "TraceParts",
			URLTemplate:     "https://www.traceparts.com/en/search?CatalogPath=&KeepFilters=true&Keywords={part_number}&SearchAction=Keywords",
			ContentSelector: ".technical-data",
		},
	}
}

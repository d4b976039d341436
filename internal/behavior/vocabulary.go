package behavior

// Search terms for documentation-style sites.
var genericTerms = []string{
	"getting started",
	"installation",
	"configuration",
	"api",
	"tutorial",
	"authentication",
	"deployment",
	"performance",
	"faq",
	"release notes",
	"troubleshooting",
	"examples",
}

// Search terms for shop catalogs.
var apparelTerms = []string{
	"shirt",
	"t-shirt",
	"jeans",
	"jacket",
	"dress",
	"shoes",
	"sweater",
	"hoodie",
	"skirt",
	"shorts",
	"coat",
	"socks",
}

var colors = []string{"red", "blue", "black", "white", "green", "gray", "navy"}

var sizes = []string{"XS", "S", "M", "L", "XL", "XXL"}

// Filter parameter names appended by filtered searches.
const (
	colorParam = "color"
	sizeParam  = "size"
)

// searchTemplate is a speculative search endpoint probed when no search
// was detected on the site.
type searchTemplate struct {
	Path  string
	Param string
}

// speculativeTemplates are probed uniformly. Some are expected to 404.
var speculativeTemplates = []searchTemplate{
	{Path: "/search", Param: "q"},
	{Path: "/", Param: "s"},
	{Path: "/catalogsearch/result/", Param: "q"},
	{Path: "/search/", Param: "query"},
}

package css

// uaStylesheetText is the built-in user-agent default stylesheet: the
// handful of element styles every browser/e-reader applies before any
// author CSS. It matches at lowest specificity by virtue of Origin being
// OriginUserAgent.
const uaStylesheetText = `
h1 { display: block; font-weight: bold; font-size: 2em; margin-top: 0.67em; margin-bottom: 0.67em; }
h2 { display: block; font-weight: bold; font-size: 1.5em; margin-top: 0.83em; margin-bottom: 0.83em; }
h3 { display: block; font-weight: bold; font-size: 1.17em; margin-top: 1em; margin-bottom: 1em; }
h4 { display: block; font-weight: bold; font-size: 1em; margin-top: 1.33em; margin-bottom: 1.33em; }
h5 { display: block; font-weight: bold; font-size: 0.83em; margin-top: 1.67em; margin-bottom: 1.67em; }
h6 { display: block; font-weight: bold; font-size: 0.67em; margin-top: 2.33em; margin-bottom: 2.33em; }
b { font-weight: bold; }
strong { font-weight: bold; }
i { font-style: italic; }
em { font-style: italic; }
p { display: block; margin-top: 1em; margin-bottom: 1em; }
blockquote { display: block; margin-top: 1em; margin-bottom: 1em; margin-left: 40px; margin-right: 40px; }
ul { display: block; margin-top: 1em; margin-bottom: 1em; }
ol { display: block; margin-top: 1em; margin-bottom: 1em; }
li { display: list-item; }
a { text-decoration: underline; }
small { font-size: 0.83em; }
sub { vertical-align: sub; font-size: 0.83em; }
sup { vertical-align: super; font-size: 0.83em; }
`

var uaStylesheet *Stylesheet

// UAStylesheet returns the shared built-in user-agent stylesheet, parsed
// once on first use.
func UAStylesheet() *Stylesheet {
	if uaStylesheet == nil {
		uaStylesheet = NewParser(nil).Parse([]byte(uaStylesheetText), OriginUserAgent, "ua-default")
	}
	return uaStylesheet
}

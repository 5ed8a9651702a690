package css

import "sync"

// UserAgentStyleSheetText holds the default styles of the document.
var UserAgentStyleSheetText = `
html, body, div, article, aside, footer, header, nav, section, main,
figure, figcaption, blockquote, pre, address, hgroup, p, ul, ol, li,
h1, h2, h3, h4, h5, h6, form, fieldset, details, summary, dialog {
	display: block;
}

head, script, style, template, [hidden], dialog:not([open]) {
	display: none;
}

body {
	margin: 8px;
}

h1, h2, h3, h4, h5, h6, b, strong, th {
	font-weight: bold;
}

i, em, cite, address {
	font-style: italic;
}

a:any-link {
	color: -webkit-link;
	text-decoration: underline;
	cursor: pointer;
}

li {
	display: list-item;
}

:focus-visible {
	outline: auto 1px -webkit-focus-ring-color;
}

dialog:modal {
	position: fixed;
	overflow: auto;
}

slot {
	display: contents;
}
`

// FullscreenStyleSheetText is added to the user agent styles once an
// element goes fullscreen.
var FullscreenStyleSheetText = `
:not(:root):fullscreen {
	object-fit: contain;
	position: fixed;
	box-sizing: border-box;
}

:root:fullscreen {
	overflow: hidden;
}
`

var (
	uaOnce       sync.Once
	uaSheet      *StyleSheet
	fullscreenUA *StyleSheet
)

func parseUserAgentSheets() {
	uaSheet = MustParseStyleSheet(UserAgentStyleSheetText, OriginUserAgent)
	fullscreenUA = MustParseStyleSheet(FullscreenStyleSheetText, OriginUserAgent)
}

// UserAgentStyleSheet returns the parsed default styles.
func UserAgentStyleSheet() *StyleSheet {
	uaOnce.Do(parseUserAgentSheets)
	return uaSheet
}

// FullscreenStyleSheet returns the parsed fullscreen styles.
func FullscreenStyleSheet() *StyleSheet {
	uaOnce.Do(parseUserAgentSheets)
	return fullscreenUA
}

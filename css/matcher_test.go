package css

import (
	"strings"
	"testing"

	"github.com/andybalholm/cascadia"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/chrisuehlinger/invalidator/dom"
)

const oracleHTML = `<html><head></head><body>
<div id="main" class="box wide" lang="en-US">
  <p class="x first">one</p>
  <p class="x" title="hello world">two</p>
  <span data-kind="a-b">three</span>
  <p>four</p>
</div>
<ul>
  <li class="x">1</li><li>2</li><li class="y">3</li><li>4</li><li class="x y">5</li>
</ul>
<section><em>only</em></section>
<div class="box"><span><b id="deep">deep</b></span><i></i></div>
</body></html>`

// bodyElements returns the elements under <body> in tree order.
func bodyElements(n *html.Node) []*html.Node {
	var body *html.Node
	var find func(*html.Node)
	find = func(n *html.Node) {
		if body != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == "body" {
			body = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(n)

	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				out = append(out, c)
				walk(c)
			}
		}
	}
	walk(body)
	return out
}

// The selectors here are the subset both engines support.
func TestMatcherAgreesWithCascadia(t *testing.T) {
	ref, err := html.Parse(strings.NewReader(oracleHTML))
	require.NoError(t, err)
	doc, err := dom.ParseHTMLString(oracleHTML)
	require.NoError(t, err)

	refEls := bodyElements(ref)
	body := doc.GetElementsByTagName("body")
	require.Len(t, body, 1)
	els := doc.Descendants(body[0])
	require.Len(t, els, len(refEls))
	for i := range els {
		require.Equal(t, refEls[i].Data, doc.LocalName(els[i]))
	}

	selectors := []string{
		"p", "*", ".x", "p.x", ".x.y", "#main", "#main p", "#main > p", "div > span",
		"div span b", "p + p", "p ~ span", "span + p", "li.x ~ li",
		"[title]", `[title="hello world"]`, "[title~=world]", "[lang|=en]",
		"[data-kind^=a]", "[data-kind$=b]", `[data-kind*="-"]`,
		"li:first-child", "li:last-child", "em:only-child", "p:first-of-type",
		"p:last-of-type", "li:nth-child(2n+1)", "li:nth-child(even)",
		"li:nth-last-child(2)", "li:nth-of-type(3)", "b:only-of-type",
		"li:not(.x)", "p:not(.first)", ":root", "ul li, section em",
		".box > :first-child",
	}
	m := NewMatcher(doc, MatchContext{})
	for _, text := range selectors {
		t.Run(text, func(t *testing.T) {
			oracle := cascadia.MustCompile(text)
			list, err := ParseSelector(text)
			require.NoError(t, err)
			for i, el := range els {
				assert.Equal(t, oracle.Match(refEls[i]), m.Matches(list, el), "element %d <%s>", i, refEls[i].Data)
			}
		})
	}
}

func TestMatcherRelationalPseudos(t *testing.T) {
	doc, err := dom.ParseHTMLString(`<div id="a"><p class="x"></p></div><div id="b"><span><p class="x"></p></span></div>`)
	require.NoError(t, err)
	a, b := doc.GetElementByID("a"), doc.GetElementByID("b")
	m := NewMatcher(doc, MatchContext{})

	child := MustParseSelector("div:has(> .x)")
	assert.True(t, m.Matches(child, a))
	assert.False(t, m.Matches(child, b))

	desc := MustParseSelector("div:has(.x)")
	assert.True(t, m.Matches(desc, a))
	assert.True(t, m.Matches(desc, b))

	is := MustParseSelector(":is(#a, #b) > p")
	assert.True(t, m.Matches(is, doc.FirstChild(a)))
	assert.False(t, m.Matches(is, doc.FirstChild(doc.FirstChild(b))))

	where := MustParseSelector(":where(#b) p")
	assert.True(t, m.Matches(where, doc.FirstChild(doc.FirstChild(b))))
}

func TestMatcherRejectsNonElements(t *testing.T) {
	doc, err := dom.ParseHTMLString(`<p>text</p>`)
	require.NoError(t, err)
	p := doc.GetElementsByTagName("p")[0]
	m := NewMatcher(doc, MatchContext{})

	assert.False(t, m.Matches(MustParseSelector("*"), doc.FirstChild(p)))
	assert.False(t, m.Matches(MustParseSelector("*"), doc.Root()))
	assert.False(t, m.Matches(nil, p))
}

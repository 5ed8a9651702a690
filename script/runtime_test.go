package script

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/chrisuehlinger/invalidator/dom"
	"github.com/chrisuehlinger/invalidator/style"
)

func newRuntime(t *testing.T, src string) (*dom.Document, *Runtime) {
	t.Helper()
	d, err := dom.ParseHTMLString(src)
	require.NoError(t, err)
	return d, NewRuntime(d, nil)
}

func TestRunMutatesDocument(t *testing.T) {
	d, r := newRuntime(t, `<div id="a" class="x"></div>`)
	require.NoError(t, r.Run("test.js", `
		var a = document.getElementById("a");
		a.classList.add("y");
		a.classList.remove("x");
		a.setAttribute("data-k", "v");
		a.id = "b";
		var s = document.createElement("span");
		s.textContent = "hi";
		a.appendChild(s);
	`))

	el := d.GetElementByID("b")
	require.True(t, el.Valid())
	assert.Equal(t, []string{"y"}, d.Classes(el))
	v, ok := d.GetAttribute(el, "data-k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
	assert.Equal(t, "hi", d.TextContent(el))
}

func TestNodeIdentityIsStable(t *testing.T) {
	_, r := newRuntime(t, `<div id="a"><p></p></div>`)
	v, err := r.Eval(`document.getElementById("a") === document.querySelector("div")`)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = r.Eval(`document.getElementById("a").firstElementChild.parentElement.id`)
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	v, err = r.Eval(`document.getElementById("missing")`)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestQuerySelectorAll(t *testing.T) {
	_, r := newRuntime(t, `<ul><li class="x"></li><li></li><li class="x"></li></ul>`)
	v, err := r.Eval(`document.querySelectorAll("li.x").length`)
	require.NoError(t, err)
	assert.EqualValues(t, 2, v)

	v, err = r.Eval(`document.querySelector("li:nth-child(2)").matches(":not(.x)")`)
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestDOMErrorsBecomeExceptions(t *testing.T) {
	_, r := newRuntime(t, `<div id="a"><p id="p"></p></div>`)
	err := r.Run("cycle.js", `
		var a = document.getElementById("a");
		document.getElementById("p").appendChild(a);
	`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HierarchyRequestError")
	assert.Len(t, r.Errors(), 1)

	v, err := r.Eval(`
		var caught = "";
		try { document.getElementById("a").removeChild(document.createElement("b")); }
		catch (e) { caught = String(e); }
		caught`)
	require.NoError(t, err)
	assert.Contains(t, v, "NotFoundError")

	err = r.Run("syntax.js", `document.querySelector("[")`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SyntaxError")

	require.Error(t, r.Run("bad.js", `var = ;`))
}

func TestShadowRootBinding(t *testing.T) {
	d, r := newRuntime(t, `<div id="host"></div>`)
	require.NoError(t, r.Run("shadow.js", `
		var host = document.getElementById("host");
		var root = host.attachShadow({mode: "open"});
		root.appendChild(document.createElement("slot"));
	`))
	host := d.GetElementByID("host")
	sr := d.ShadowRoot(host)
	require.True(t, sr.Valid())
	assert.Equal(t, "slot", d.LocalName(d.FirstChild(sr)))

	v, err := r.Eval(`document.getElementById("host").shadowRoot.firstChild.localName`)
	require.NoError(t, err)
	assert.Equal(t, "slot", v)
}

func TestSetState(t *testing.T) {
	d, r := newRuntime(t, `<a id="a"></a>`)
	require.NoError(t, r.Run("hover.js", `document.getElementById("a").setState("hover")`))
	assert.True(t, d.HasPseudoState(d.GetElementByID("a"), dom.StateHover))

	require.NoError(t, r.Run("unhover.js", `document.getElementById("a").setState("hover", false)`))
	assert.False(t, d.HasPseudoState(d.GetElementByID("a"), dom.StateHover))

	require.Error(t, r.Run("bogus.js", `document.getElementById("a").setState("bogus")`))
}

func TestFlushDrivesStyleEngine(t *testing.T) {
	d, r := newRuntime(t, `<style>.on span { color: red }</style><div id="d"><span id="s"></span></div>`)
	e := style.NewEngine(d, style.DefaultOptions(), nil)
	defer e.Close()
	e.UpdateStyleAndLayoutTree()

	var passes []uint64
	r.SetOnFlush(func() error {
		passes = append(passes, e.UpdateStyleAndLayoutTree().GetCardinality())
		return nil
	})
	require.NoError(t, r.Run("flush.js", `
		flush();
		document.getElementById("d").classList.add("on");
		flush();
	`))
	require.Len(t, passes, 2)
	assert.Zero(t, passes[0])
	assert.NotZero(t, passes[1])
	assert.Equal(t, "red", e.ComputedStyle(d.GetElementByID("s")).GetPropertyValue("color"))

	r.SetOnFlush(func() error { return errors.New("boom") })
	err := r.Run("fail.js", `flush()`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestConsoleLogsThroughZap(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	d, err := dom.ParseHTMLString(`<p></p>`)
	require.NoError(t, err)
	r := NewRuntime(d, zap.New(core))

	require.NoError(t, r.Run("log.js", `console.log("hello", 42); console.debug("hidden")`))
	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "hello 42", entries[0].Message)
	assert.Equal(t, "script", entries[0].LoggerName)
}

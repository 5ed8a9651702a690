package script

import (
	"fmt"

	"github.com/dop251/goja"

	"github.com/chrisuehlinger/invalidator/css"
	"github.com/chrisuehlinger/invalidator/dom"
)

// nodeKey is the property holding the NodeID of a bound node.
const nodeKey = "_node"

func (r *Runtime) throw(err error) {
	panic(r.vm.NewGoError(err))
}

func (r *Runtime) getter(fn func() any) goja.Value {
	return r.vm.ToValue(func(goja.FunctionCall) goja.Value { return r.vm.ToValue(fn()) })
}

func (r *Runtime) setter(fn func(goja.Value)) goja.Value {
	return r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		fn(call.Argument(0))
		return goja.Undefined()
	})
}

func (r *Runtime) accessor(obj *goja.Object, name string, get func() any, set func(goja.Value)) {
	var s goja.Value
	if set != nil {
		s = r.setter(set)
	}
	obj.DefineAccessorProperty(name, r.getter(get), s, goja.FLAG_FALSE, goja.FLAG_TRUE)
}

// nodeOf returns the node behind a bound object.
func (r *Runtime) nodeOf(v goja.Value) (dom.NodeID, bool) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return dom.InvalidNodeID, false
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return dom.InvalidNodeID, false
	}
	v = obj.Get(nodeKey)
	if v == nil {
		return dom.InvalidNodeID, false
	}
	id, ok := v.Export().(int64)
	if !ok {
		return dom.InvalidNodeID, false
	}
	return dom.NodeID(id), true
}

func (r *Runtime) mustNode(v goja.Value, what string) dom.NodeID {
	id, ok := r.nodeOf(v)
	if !ok {
		panic(r.vm.NewTypeError("%s is not a node", what))
	}
	return id
}

// wrap returns the JS object of id, or null for an invalid id. Objects are
// cached so that identity comparisons work in scripts.
func (r *Runtime) wrap(id dom.NodeID) any {
	if !id.Valid() {
		return nil
	}
	if obj, ok := r.nodes[id]; ok {
		return obj
	}
	obj := r.vm.NewObject()
	obj.Set(nodeKey, int64(id))
	r.bindNode(obj, id)
	if r.doc.IsElement(id) {
		r.bindElement(obj, id)
	}
	r.nodes[id] = obj
	return obj
}

func (r *Runtime) wrapAll(ids []dom.NodeID) *goja.Object {
	items := make([]any, len(ids))
	for i, id := range ids {
		items[i] = r.wrap(id)
	}
	return r.vm.NewArray(items...)
}

func (r *Runtime) bindDocument() *goja.Object {
	doc := r.doc
	obj := r.vm.NewObject()
	obj.Set(nodeKey, int64(doc.Root()))
	r.nodes[doc.Root()] = obj
	r.bindNode(obj, doc.Root())

	r.accessor(obj, "documentElement", func() any { return r.wrap(doc.DocumentElement()) }, nil)
	r.accessor(obj, "body", func() any { return r.wrap(r.firstByTag("body")) }, nil)
	r.accessor(obj, "head", func() any { return r.wrap(r.firstByTag("head")) }, nil)

	obj.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		return r.vm.ToValue(r.wrap(doc.GetElementByID(call.Argument(0).String())))
	})
	obj.Set("getElementsByTagName", func(call goja.FunctionCall) goja.Value {
		return r.wrapAll(doc.GetElementsByTagName(call.Argument(0).String()))
	})
	obj.Set("createElement", func(call goja.FunctionCall) goja.Value {
		return r.vm.ToValue(r.wrap(doc.CreateElement(call.Argument(0).String())))
	})
	obj.Set("createTextNode", func(call goja.FunctionCall) goja.Value {
		return r.vm.ToValue(r.wrap(doc.CreateTextNode(call.Argument(0).String())))
	})
	return obj
}

func (r *Runtime) firstByTag(tag string) dom.NodeID {
	if els := r.doc.GetElementsByTagName(tag); len(els) > 0 {
		return els[0]
	}
	return dom.InvalidNodeID
}

// querySelectorAll returns the elements below root that match selector, in
// tree order. Shadow trees are not entered.
func (r *Runtime) querySelectorAll(root dom.NodeID, selector string, first bool) []dom.NodeID {
	list, err := css.ParseSelector(selector)
	if err != nil {
		panic(r.vm.NewGoError(&dom.DOMError{Name: "SyntaxError", Message: fmt.Sprintf("%q: %v", selector, err)}))
	}
	m := css.NewMatcher(r.doc, css.MatchContext{})
	var out []dom.NodeID
	for _, el := range r.doc.Descendants(root) {
		if m.Matches(list, el) {
			out = append(out, el)
			if first {
				break
			}
		}
	}
	return out
}

// bindNode adds the tree API shared by documents, shadow roots, elements
// and text nodes.
func (r *Runtime) bindNode(obj *goja.Object, id dom.NodeID) {
	doc := r.doc
	obj.Set("nodeType", int(doc.Kind(id)))
	r.accessor(obj, "parentNode", func() any { return r.wrap(doc.Parent(id)) }, nil)
	r.accessor(obj, "parentElement", func() any { return r.wrap(doc.ParentElement(id)) }, nil)
	r.accessor(obj, "firstChild", func() any { return r.wrap(doc.FirstChild(id)) }, nil)
	r.accessor(obj, "lastChild", func() any { return r.wrap(doc.LastChild(id)) }, nil)
	r.accessor(obj, "nextSibling", func() any { return r.wrap(doc.NextSibling(id)) }, nil)
	r.accessor(obj, "previousSibling", func() any { return r.wrap(doc.PreviousSibling(id)) }, nil)
	r.accessor(obj, "firstElementChild", func() any { return r.wrap(doc.FirstElementChild(id)) }, nil)
	r.accessor(obj, "lastElementChild", func() any { return r.wrap(doc.LastElementChild(id)) }, nil)
	r.accessor(obj, "childNodes", func() any { return r.wrapAll(doc.Children(id)) }, nil)
	r.accessor(obj, "children", func() any { return r.wrapAll(doc.ElementChildren(id)) }, nil)
	r.accessor(obj, "isConnected", func() any { return doc.IsConnected(id) }, nil)
	r.accessor(obj, "textContent", func() any { return doc.TextContent(id) }, func(v goja.Value) {
		r.setTextContent(id, v.String())
	})

	obj.Set("appendChild", func(call goja.FunctionCall) goja.Value {
		child := r.mustNode(call.Argument(0), "appendChild argument")
		if err := doc.AppendChild(id, child); err != nil {
			r.throw(err)
		}
		return call.Argument(0)
	})
	obj.Set("insertBefore", func(call goja.FunctionCall) goja.Value {
		child := r.mustNode(call.Argument(0), "insertBefore argument")
		ref, _ := r.nodeOf(call.Argument(1))
		if err := doc.InsertBefore(id, child, ref); err != nil {
			r.throw(err)
		}
		return call.Argument(0)
	})
	obj.Set("removeChild", func(call goja.FunctionCall) goja.Value {
		child := r.mustNode(call.Argument(0), "removeChild argument")
		if err := doc.RemoveChild(id, child); err != nil {
			r.throw(err)
		}
		return call.Argument(0)
	})
	obj.Set("remove", func(goja.FunctionCall) goja.Value {
		if doc.Parent(id).Valid() {
			if err := doc.Remove(id); err != nil {
				r.throw(err)
			}
		}
		return goja.Undefined()
	})
	obj.Set("contains", func(call goja.FunctionCall) goja.Value {
		other, ok := r.nodeOf(call.Argument(0))
		return r.vm.ToValue(ok && doc.IsInclusiveAncestorOf(id, other))
	})
	obj.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		found := r.querySelectorAll(id, call.Argument(0).String(), true)
		if len(found) == 0 {
			return goja.Null()
		}
		return r.vm.ToValue(r.wrap(found[0]))
	})
	obj.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		return r.wrapAll(r.querySelectorAll(id, call.Argument(0).String(), false))
	})
}

// setTextContent replaces the children of a container with one text node,
// or the data of a text node.
func (r *Runtime) setTextContent(id dom.NodeID, text string) {
	doc := r.doc
	if doc.Kind(id) == dom.TextNode {
		doc.SetText(id, text)
		return
	}
	for c := doc.FirstChild(id); c.Valid(); c = doc.FirstChild(id) {
		if err := doc.RemoveChild(id, c); err != nil {
			r.throw(err)
		}
	}
	if text == "" {
		return
	}
	if err := doc.AppendChild(id, doc.CreateTextNode(text)); err != nil {
		r.throw(err)
	}
}

func (r *Runtime) bindElement(obj *goja.Object, el dom.NodeID) {
	doc := r.doc
	r.accessor(obj, "tagName", func() any { return doc.LocalName(el) }, nil)
	r.accessor(obj, "localName", func() any { return doc.LocalName(el) }, nil)
	r.accessor(obj, "id", func() any { return doc.ID(el) }, func(v goja.Value) { doc.SetID(el, v.String()) })
	r.accessor(obj, "className", func() any {
		v, _ := doc.GetAttribute(el, "class")
		return v
	}, func(v goja.Value) { doc.SetClassName(el, v.String()) })
	r.accessor(obj, "classList", func() any { return r.bindTokenList(doc.ClassList(el)) }, nil)
	r.accessor(obj, "part", func() any { return r.bindTokenList(doc.PartList(el)) }, nil)
	r.accessor(obj, "shadowRoot", func() any {
		sr := doc.ShadowRoot(el)
		if !sr.Valid() || doc.ShadowRootMode(sr) != dom.ShadowRootOpen {
			return nil
		}
		return r.wrap(sr)
	}, nil)
	r.accessor(obj, "nextElementSibling", func() any { return r.wrap(doc.NextElementSibling(el)) }, nil)
	r.accessor(obj, "previousElementSibling", func() any { return r.wrap(doc.PreviousElementSibling(el)) }, nil)
	r.accessor(obj, "outerHTML", func() any { return doc.OuterHTML(el) }, nil)

	obj.Set("getAttribute", func(call goja.FunctionCall) goja.Value {
		v, ok := doc.GetAttribute(el, call.Argument(0).String())
		if !ok {
			return goja.Null()
		}
		return r.vm.ToValue(v)
	})
	obj.Set("hasAttribute", func(call goja.FunctionCall) goja.Value {
		return r.vm.ToValue(doc.HasAttribute(el, call.Argument(0).String()))
	})
	obj.Set("setAttribute", func(call goja.FunctionCall) goja.Value {
		doc.SetAttribute(el, call.Argument(0).String(), call.Argument(1).String())
		return goja.Undefined()
	})
	obj.Set("removeAttribute", func(call goja.FunctionCall) goja.Value {
		doc.RemoveAttribute(el, call.Argument(0).String())
		return goja.Undefined()
	})
	obj.Set("toggleAttribute", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		on := !doc.HasAttribute(el, name)
		if force := call.Argument(1); !goja.IsUndefined(force) {
			on = force.ToBoolean()
		}
		switch {
		case on && !doc.HasAttribute(el, name):
			doc.SetAttribute(el, name, "")
		case !on && doc.HasAttribute(el, name):
			doc.RemoveAttribute(el, name)
		}
		return r.vm.ToValue(on)
	})
	obj.Set("matches", func(call goja.FunctionCall) goja.Value {
		list, err := css.ParseSelector(call.Argument(0).String())
		if err != nil {
			r.throw(&dom.DOMError{Name: "SyntaxError", Message: err.Error()})
		}
		return r.vm.ToValue(css.NewMatcher(doc, css.MatchContext{}).Matches(list, el))
	})
	obj.Set("attachShadow", func(call goja.FunctionCall) goja.Value {
		mode := dom.ShadowRootOpen
		if init, ok := call.Argument(0).(*goja.Object); ok {
			if m := init.Get("mode"); m != nil && !goja.IsUndefined(m) {
				parsed, ok := dom.ParseShadowRootMode(m.String())
				if !ok {
					panic(r.vm.NewTypeError("invalid shadow root mode %q", m.String()))
				}
				mode = parsed
			}
		}
		root, err := doc.AttachShadow(el, mode)
		if err != nil {
			r.throw(err)
		}
		return r.vm.ToValue(r.wrap(root))
	})

	// State hooks stand in for user interaction, which a script cannot
	// cause directly.
	obj.Set("setState", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		state, ok := dom.ParsePseudoState(name)
		if !ok {
			panic(r.vm.NewTypeError("unknown element state %q", name))
		}
		on := true
		if v := call.Argument(1); !goja.IsUndefined(v) {
			on = v.ToBoolean()
		}
		doc.SetPseudoState(el, state, on)
		return goja.Undefined()
	})
	obj.Set("hasState", func(call goja.FunctionCall) goja.Value {
		state, ok := dom.ParsePseudoState(call.Argument(0).String())
		return r.vm.ToValue(ok && doc.HasPseudoState(el, state))
	})
}

func (r *Runtime) bindTokenList(list *dom.DOMTokenList) *goja.Object {
	obj := r.vm.NewObject()
	tokens := func(call goja.FunctionCall) []string {
		out := make([]string, len(call.Arguments))
		for i, a := range call.Arguments {
			out[i] = a.String()
		}
		return out
	}
	r.accessor(obj, "length", func() any { return list.Length() }, nil)
	r.accessor(obj, "value", func() any { return list.Value() }, nil)

	obj.Set("item", func(call goja.FunctionCall) goja.Value {
		if t := list.Item(int(call.Argument(0).ToInteger())); t != "" {
			return r.vm.ToValue(t)
		}
		return goja.Null()
	})
	obj.Set("contains", func(call goja.FunctionCall) goja.Value {
		return r.vm.ToValue(list.Contains(call.Argument(0).String()))
	})
	obj.Set("add", func(call goja.FunctionCall) goja.Value {
		if err := list.Add(tokens(call)...); err != nil {
			r.throw(err)
		}
		return goja.Undefined()
	})
	obj.Set("remove", func(call goja.FunctionCall) goja.Value {
		if err := list.Remove(tokens(call)...); err != nil {
			r.throw(err)
		}
		return goja.Undefined()
	})
	obj.Set("toggle", func(call goja.FunctionCall) goja.Value {
		var force []bool
		if v := call.Argument(1); !goja.IsUndefined(v) {
			force = append(force, v.ToBoolean())
		}
		on, err := list.Toggle(call.Argument(0).String(), force...)
		if err != nil {
			r.throw(err)
		}
		return r.vm.ToValue(on)
	})
	obj.Set("replace", func(call goja.FunctionCall) goja.Value {
		ok, err := list.Replace(call.Argument(0).String(), call.Argument(1).String())
		if err != nil {
			r.throw(err)
		}
		return r.vm.ToValue(ok)
	})
	return obj
}

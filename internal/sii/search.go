package sii

import "github.com/beevik/etree"

// findFirst returns the first element whose local name equals name, in
// document order, searching el and its entire subtree. The SII wraps its
// payloads in transport envelopes whose nesting varies between endpoints
// and environments, so callers search by name instead of assuming a fixed
// path. Returns nil when no element matches.
func findFirst(el *etree.Element, name string) *etree.Element {
	if el == nil {
		return nil
	}
	if el.Tag == name {
		return el
	}
	for _, child := range el.ChildElements() {
		if found := findFirst(child, name); found != nil {
			return found
		}
	}
	return nil
}

// findFirstText is findFirst plus text extraction; the empty string means
// the element is absent or empty.
func findFirstText(el *etree.Element, name string) string {
	found := findFirst(el, name)
	if found == nil {
		return ""
	}
	return found.Text()
}

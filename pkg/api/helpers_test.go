package api

import (
	"net/url"
	"sort"

	"github.com/tidwall/gjson"
)

func stringsOf(r gjson.Result) []string {
	var out []string
	for _, v := range r.Array() {
		out = append(out, v.String())
	}
	return out
}

func sortedStrings(r gjson.Result) []string {
	out := stringsOf(r)
	sort.Strings(out)
	return out
}

func urlEscape(s string) string {
	return url.QueryEscape(s)
}

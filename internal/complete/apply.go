package complete

import "strings"

// Apply replaces the search prefix at the end of input with m and appends a
// path separator for directories or a space otherwise.
func Apply(input string, res Result, m Match) string {
	head := stem(input, res)
	if m.IsDir {
		return head + m.Name + "/"
	}
	return head + m.Name + " "
}

// CommonPrefix returns the longest prefix shared by every match name.
func CommonPrefix(matches []Match) string {
	if len(matches) == 0 {
		return ""
	}
	prefix := matches[0].Name
	for _, m := range matches[1:] {
		n := 0
		for n < len(prefix) && n < len(m.Name) && prefix[n] == m.Name[n] {
			n++
		}
		prefix = prefix[:n]
	}
	return prefix
}

// Extend grows the search prefix in input to the longest prefix common to
// all matches. It returns input unchanged when there is nothing to add.
func Extend(input string, res Result) string {
	common := CommonPrefix(res.Matches)
	if len(common) <= len(res.Prefix) {
		return input
	}
	return stem(input, res) + common
}

// stem is input without the search prefix. A bare ~ gains its separator.
func stem(input string, res Result) string {
	head := strings.TrimSuffix(input, res.Prefix)
	if res.Token == "~" {
		head += "/"
	}
	return head
}

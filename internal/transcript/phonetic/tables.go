package phonetic

import "strings"

// homophoneGroups lists words that sound alike and must not be penalised as
// errors. Membership is symmetric: any two words of one group match. Entries
// are normalised tokens, so contractions never appear here.
var homophoneGroups = [][]string{
	{"to", "too", "two"},
	{"there", "their"},
	{"be", "bee"},
	{"wait", "weight"},
	{"hear", "here"},
	{"see", "sea"},
	{"know", "no"},
	{"knew", "new"},
	{"write", "right"},
	{"by", "buy", "bye"},
	{"for", "four"},
	{"one", "won"},
	{"eight", "ate"},
	{"weather", "whether"},
	{"where", "wear"},
	{"which", "witch"},
	{"whole", "hole"},
	{"meet", "meat"},
	{"sun", "son"},
	{"flour", "flower"},
	{"break", "brake"},
	{"peace", "piece"},
	{"weak", "week"},
	{"hour", "our"},
	{"blue", "blew"},
	{"night", "knight"},
	{"pair", "pear"},
	{"tail", "tale"},
	{"mail", "male"},
	{"made", "maid"},
	{"road", "rode"},
	{"sail", "sale"},
}

// homophoneIndex maps each homophone to the index of its group.
var homophoneIndex = func() map[string]int {
	idx := make(map[string]int)
	for i, g := range homophoneGroups {
		for _, w := range g {
			idx[w] = i
		}
	}
	return idx
}()

// confusionPairs are sound fragments that recognisers and learners commonly
// substitute for one another.
var confusionPairs = [][2]string{
	{"th", "f"},
	{"w", "v"},
	{"r", "l"},
	{"b", "p"},
	{"d", "t"},
	{"g", "k"},
	{"z", "s"},
	{"j", "y"},
	{"ch", "sh"},
	{"s", "sh"},
	{"n", "m"},
}

func isHomophone(a, b string) bool {
	ga, ok := homophoneIndex[a]
	if !ok {
		return false
	}
	gb, ok := homophoneIndex[b]
	return ok && ga == gb
}

// isConfusion reports whether replacing one occurrence (or every occurrence)
// of a confusable fragment in either word yields the other word.
func isConfusion(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	for _, p := range confusionPairs {
		if swapsTo(a, p[0], p[1], b) || swapsTo(a, p[1], p[0], b) ||
			swapsTo(b, p[0], p[1], a) || swapsTo(b, p[1], p[0], a) {
			return true
		}
	}
	return false
}

// swapsTo reports whether substituting from with to in word reproduces want.
func swapsTo(word, from, to, want string) bool {
	if !strings.Contains(word, from) {
		return false
	}
	if strings.ReplaceAll(word, from, to) == want {
		return true
	}
	for i := 0; i+len(from) <= len(word); i++ {
		if word[i:i+len(from)] != from {
			continue
		}
		if word[:i]+to+word[i+len(from):] == want {
			return true
		}
	}
	return false
}

package textmetrics

import "strings"

// defaultActionWords is the fallback action vocabulary used for classes
// without a dedicated one.
var defaultActionWords = newVocab(
	"move", "moves", "moving", "moved",
	"push", "pushes", "pushing", "pushed",
	"pull", "pulls", "pulling", "pulled",
	"lift", "lifts", "lifting", "lifted",
	"open", "opens", "opening", "opened",
	"close", "closes", "closing", "closed",
)

// classActionWords maps an action class label to its vocabulary. Keys are
// lowercase.
var classActionWords = map[string]map[string]struct{}{
	"bending something so that it deforms": newVocab(
		"bend", "bends", "bending", "bent",
		"deform", "deforms", "deforming", "deformed",
		"curve", "curves", "curving", "curved",
		"warp", "warps", "warping", "warped",
		"flex", "flexes", "flexing", "flexed",
		"twist", "twists", "twisting", "twisted",
	),
	"closing something": newVocab(
		"close", "closes", "closing", "closed",
		"shut", "shuts", "shutting",
		"seal", "seals", "sealing", "sealed",
	),
	"folding something": newVocab(
		"fold", "folds", "folding", "folded",
		"crease", "creases", "creasing", "creased",
		"flatten", "flattens", "flattening", "flattened",
	),
	"pouring something into something": newVocab(
		"pour", "pours", "pouring", "poured",
		"flow", "flows", "flowing", "flowed",
		"fill", "fills", "filling", "filled",
		"stream", "streams", "streaming", "streamed",
	),
	"pouring something into something until it overflows": newVocab(
		"pour", "pours", "pouring", "poured",
		"flow", "flows", "flowing", "flowed",
		"fill", "fills", "filling", "filled",
		"overflow", "overflows", "overflowing", "overflowed",
		"spill", "spills", "spilling", "spilled",
		"splash", "splashes", "splashing", "splashed",
	),
	"something falling like a rock": newVocab(
		"fall", "falls", "falling", "fell", "fallen",
		"drop", "drops", "dropping", "dropped",
		"plummet", "plummets", "plummeting", "plummeted",
	),
	"throwing something": newVocab(
		"throw", "throws", "throwing", "threw", "thrown",
		"toss", "tosses", "tossing", "tossed",
		"fling", "flings", "flinging", "flung",
		"hurl", "hurls", "hurling", "hurled",
	),
	"uncovering something": newVocab(
		"uncover", "uncovers", "uncovering", "uncovered",
		"reveal", "reveals", "revealing", "revealed",
		"remove", "removes", "removing", "removed",
		"lift", "lifts", "lifting", "lifted",
		"open", "opens", "opening", "opened",
	),
}

func newVocab(words ...string) map[string]struct{} {
	v := make(map[string]struct{}, len(words))
	for _, w := range words {
		v[w] = struct{}{}
	}
	return v
}

// InformationDensity is the share of tokens that belong to the action
// vocabulary for the given class; the class vocabulary is unioned with the
// default one.
func InformationDensity(text, class string) float64 {
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 {
		return 0
	}

	classVocab := classActionWords[strings.ToLower(strings.TrimSpace(class))]

	hits := 0
	for _, t := range tokens {
		if _, ok := defaultActionWords[t]; ok {
			hits++
			continue
		}
		if _, ok := classVocab[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(tokens))
}

// AverageInformationDensity averages InformationDensity over a sequence.
func AverageInformationDensity(texts []string, class string) float64 {
	if len(texts) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range texts {
		sum += InformationDensity(t, class)
	}
	return sum / float64(len(texts))
}

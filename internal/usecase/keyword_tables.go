package usecase

import (
	"strings"

	"github.com/cloudflare/ahocorasick"
)

// keywordEntry maps a canonical facet value to the words that trigger it
type keywordEntry struct {
	canonical string
	synonyms  []string
}

// keywordTable is an ordered keyword table compiled into an Aho-Corasick matcher.
// Patterns are whole words (singular or plural) of the tokenSpace form of the input.
// Safe for concurrent use once built.
type keywordTable struct {
	entries  []keywordEntry
	patterns [][]string     // per entry, in dictionary order
	owners   []int          // dictionary index -> entry index
	index    map[string]int // folded canonical -> entry index
	matcher  *ahocorasick.Matcher
}

// span is one occurrence of an entry's pattern in normalized text
type span struct {
	entry      int
	start, end int
}

func newKeywordTable(entries []keywordEntry) *keywordTable {
	t := &keywordTable{
		entries:  entries,
		patterns: make([][]string, len(entries)),
		index:    make(map[string]int, len(entries)),
	}

	seen := make(map[string]bool)
	var dictionary []string
	add := func(i int, pattern string) {
		if pattern == "" || seen[pattern] {
			return
		}
		seen[pattern] = true
		dictionary = append(dictionary, pattern)
		t.owners = append(t.owners, i)
		t.patterns[i] = append(t.patterns[i], pattern)
	}

	// Declared spellings first, so a plural never claims another entry's word
	for i, entry := range entries {
		t.index[foldText(entry.canonical)] = i
		add(i, keywordPattern(entry.canonical))
		for _, word := range entry.synonyms {
			add(i, keywordPattern(word))
		}
	}
	for i, entry := range entries {
		for _, word := range append([]string{entry.canonical}, entry.synonyms...) {
			for _, pattern := range pluralPatterns(word) {
				add(i, pattern)
			}
		}
	}

	t.matcher = ahocorasick.NewStringMatcher(dictionary)
	return t
}

// hits returns, per entry, whether it matches text. An entry whose every
// occurrence lies inside a longer occurrence of another entry does not match:
// "faux cuir" is similicuir, not cuir.
func (t *keywordTable) hits(text string) []bool {
	normalized := tokenSpace(text)
	if normalized == "" {
		return nil
	}

	matched := make([]bool, len(t.entries))
	found := false
	for _, i := range t.matcher.MatchThreadSafe([]byte(normalized)) {
		matched[t.owners[i]] = true
		found = true
	}
	if !found {
		return matched
	}

	spans := t.spans(normalized, matched)
	for i, ok := range matched {
		if ok && shadowed(i, spans) {
			matched[i] = false
		}
	}
	return matched
}

// spans lists every occurrence of the patterns of the matched entries
func (t *keywordTable) spans(text string, matched []bool) []span {
	var out []span
	for i, ok := range matched {
		if !ok {
			continue
		}
		for _, pattern := range t.patterns[i] {
			for offset := 0; offset < len(text); {
				j := strings.Index(text[offset:], pattern)
				if j < 0 {
					break
				}
				start := offset + j
				out = append(out, span{entry: i, start: start, end: start + len(pattern)})
				offset = start + 1
			}
		}
	}
	return out
}

func shadowed(entry int, spans []span) bool {
	own := false
	for _, s := range spans {
		if s.entry != entry {
			continue
		}
		own = true
		if !coveredByLonger(s, spans) {
			return false
		}
	}
	return own
}

func coveredByLonger(s span, spans []span) bool {
	for _, o := range spans {
		if o.entry != s.entry && o.start <= s.start && s.end <= o.end && o.end-o.start > s.end-s.start {
			return true
		}
	}
	return false
}

// first returns the canonical value of the earliest declared entry that matches text
func (t *keywordTable) first(text string) string {
	for i, ok := range t.hits(text) {
		if ok {
			return t.entries[i].canonical
		}
	}
	return ""
}

// all returns every matching canonical value, in declared order
func (t *keywordTable) all(text string) []string {
	result := []string{}
	for i, ok := range t.hits(text) {
		if ok {
			result = append(result, t.entries[i].canonical)
		}
	}
	return result
}

// matches reports whether field mentions canonical or one of its synonyms.
// Values unknown to the table are matched literally.
func (t *keywordTable) matches(field, canonical string) bool {
	if canonical == "" {
		return false
	}

	i, known := t.index[foldText(canonical)]
	if !known {
		return containsTerm(field, canonical)
	}

	hits := t.hits(field)
	return i < len(hits) && hits[i]
}

// Category triggers. Order is significant: the first declared match wins,
// so more specific entries ("table de chevet", "table basse") precede "table".
var categoryTable = newKeywordTable([]keywordEntry{
	{"canapé", []string{"sofa", "divan", "clic-clac", "banquette", "méridienne", "chesterfield", "couch"}},
	{"fauteuil", []string{"bergère", "chauffeuse", "rocking-chair", "armchair"}},
	{"pouf", []string{"repose-pieds", "ottoman"}},
	{"chaise", []string{"chair"}},
	{"tabouret", []string{"tabouret de bar", "stool"}},
	{"table de chevet", []string{"chevet", "table de nuit", "nightstand"}},
	{"table basse", []string{"table de salon", "table d'appoint", "coffee table"}},
	{"table", []string{"dining table"}},
	{"bureau", []string{"desk", "secrétaire"}},
	{"lit", []string{"sommier", "tête de lit", "cadre de lit"}},
	{"matelas", []string{"surmatelas", "mattress"}},
	{"armoire", []string{"penderie", "dressing", "garde-robe", "wardrobe"}},
	{"commode", []string{"chiffonnier"}},
	{"buffet", []string{"bahut", "enfilade", "vaisselier", "sideboard"}},
	{"étagère", []string{"bibliothèque", "bookcase", "shelf"}},
	{"meuble tv", []string{"meuble télé", "banc tv"}},
	{"luminaire", []string{"lampe", "lampadaire", "suspension", "applique", "lamp"}},
	{"tapis", []string{"rug", "carpet"}},
	{"miroir", []string{"mirror"}},
	{"coussin", []string{"cushion"}},
})

var subcategoryTable = newKeywordTable([]keywordEntry{
	{"convertible", []string{"clic-clac", "bz", "canapé-lit", "sofa bed"}},
	{"angle", []string{"d'angle", "corner"}},
	{"relax", []string{"relaxation", "inclinable", "recliner"}},
	{"extensible", []string{"à rallonge", "rallonges"}},
	{"ronde", []string{"rond", "round"}},
	{"rectangulaire", []string{"rectangle"}},
	{"carrée", []string{"carré", "square"}},
	{"gigogne", nil},
	{"coffre", []string{"avec rangement"}},
	{"superposé", []string{"superposés", "mezzanine"}},
})

var colorTable = newKeywordTable([]keywordEntry{
	{"beige", []string{"écru", "sable", "crème", "ivoire", "cream"}},
	{"blanc", []string{"blanche", "white"}},
	{"noir", []string{"noire", "black"}},
	{"gris", []string{"grise", "anthracite", "grey", "gray"}},
	{"bleu", []string{"bleue", "marine", "navy", "turquoise", "pétrole", "canard", "blue"}},
	{"vert", []string{"verte", "kaki", "sauge", "émeraude", "green"}},
	{"rouge", []string{"bordeaux", "brique", "red"}},
	{"jaune", []string{"moutarde", "ocre", "yellow"}},
	{"orange", []string{"terracotta", "rouille", "corail"}},
	{"rose", []string{"vieux rose", "pink"}},
	{"violet", []string{"violette", "mauve", "lilas", "prune", "purple"}},
	{"marron", []string{"brun", "chocolat", "cognac", "caramel", "camel", "noisette", "brown"}},
	{"taupe", nil},
	{"doré", []string{"dorée", "gold"}},
	{"argenté", []string{"argentée", "chromé", "silver"}},
})

var materialTable = newKeywordTable([]keywordEntry{
	{"velours", []string{"velour", "velvet"}},
	{"cuir", []string{"leather", "pleine fleur"}},
	{"similicuir", []string{"simili", "faux cuir", "cuir synthétique"}},
	{"tissu", []string{"fabric", "polyester", "microfibre"}},
	{"lin", []string{"linen"}},
	{"coton", []string{"cotton"}},
	{"laine", []string{"wool"}},
	{"bouclette", []string{"bouclé"}},
	{"bois", []string{"wood", "chêne", "noyer", "hêtre", "pin massif", "teck", "acacia", "manguier", "frêne"}},
	{"métal", []string{"acier", "fer forgé", "aluminium", "inox", "laiton", "metal"}},
	{"verre", []string{"glass"}},
	{"marbre", []string{"marble"}},
	{"rotin", []string{"osier", "rattan", "cannage", "jonc"}},
	{"plastique", []string{"polypropylène", "résine", "plastic"}},
	{"céramique", []string{"grès", "faïence", "ceramic"}},
	{"mousse", []string{"mémoire de forme", "foam"}},
})

var styleTable = newKeywordTable([]keywordEntry{
	{"scandinave", []string{"scandi", "nordique", "scandinavian"}},
	{"industriel", []string{"industrielle", "industrial", "loft", "atelier"}},
	{"moderne", []string{"contemporain", "contemporaine", "modern", "design"}},
	{"classique", []string{"traditionnel", "classic", "louis"}},
	{"vintage", []string{"rétro", "années 50", "années 70"}},
	{"bohème", []string{"boho", "bohemian", "ethnique"}},
	{"rustique", []string{"campagne", "champêtre", "country"}},
	{"minimaliste", []string{"épuré", "minimalist"}},
	{"art déco", nil},
})

var roomTable = newKeywordTable([]keywordEntry{
	{"salon", []string{"séjour", "living", "pièce à vivre"}},
	{"chambre", []string{"bedroom"}},
	{"salle à manger", []string{"dining room"}},
	{"cuisine", []string{"kitchen"}},
	{"bureau", []string{"télétravail", "home office"}},
	{"salle de bain", []string{"salle de bains", "bathroom"}},
	{"entrée", []string{"couloir", "hall"}},
	{"extérieur", []string{"jardin", "terrasse", "balcon", "outdoor"}},
	{"enfant", []string{"kids", "bébé"}},
})

package intent

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Vocabulary is the fixed keyword inventory the heuristic matcher resolves
// questions against. Built once at startup and read-only afterwards.
type Vocabulary struct {
	areaKeywords   map[string][]string
	metricKeywords []metricEntry
}

type metricEntry struct {
	Metric   string
	Area     string
	Keywords []string
}

type vocabularyFile struct {
	Areas   map[string][]string `yaml:"areas"`
	Metrics []struct {
		Metric   string   `yaml:"metric"`
		Area     string   `yaml:"area"`
		Keywords []string `yaml:"keywords"`
	} `yaml:"metrics"`
}

// LoadVocabulary reads the keyword pack from YAML, falling back to the
// built-in defaults when path is empty or the file does not exist.
func LoadVocabulary(path string) (*Vocabulary, error) {
	if path == "" {
		return DefaultVocabulary(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultVocabulary(), nil
		}
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	var file vocabularyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}
	if len(file.Areas) == 0 {
		return DefaultVocabulary(), nil
	}

	v := &Vocabulary{areaKeywords: make(map[string][]string)}
	for area, keywords := range file.Areas {
		v.areaKeywords[Normalize(area)] = normalizeAll(keywords)
	}
	for _, m := range file.Metrics {
		v.metricKeywords = append(v.metricKeywords, metricEntry{
			Metric:   m.Metric,
			Area:     Normalize(m.Area),
			Keywords: normalizeAll(m.Keywords),
		})
	}
	return v, nil
}

// DefaultVocabulary is the built-in Portuguese-first keyword pack.
func DefaultVocabulary() *Vocabulary {
	return &Vocabulary{
		areaKeywords: map[string][]string{
			"financeiro": {"margem", "lucro", "receita", "faturamento", "inadimplencia", "caixa", "financeiro"},
			"vendas":     {"venda", "vendas", "ticket", "conversao", "cliente", "pedido"},
			"compras":    {"compra", "compras", "fornecedor", "custo", "insumo", "pedido de compra"},
			"logistica":  {"estoque", "ruptura", "entrega", "logistica", "armazem", "giro"},
		},
		metricKeywords: []metricEntry{
			{Metric: "margem_bruta", Area: "financeiro", Keywords: []string{"margem", "margem bruta"}},
			{Metric: "receita_liquida", Area: "financeiro", Keywords: []string{"receita", "faturamento"}},
			{Metric: "inadimplencia", Area: "financeiro", Keywords: []string{"inadimplencia", "atraso de pagamento"}},
			{Metric: "ticket_medio", Area: "vendas", Keywords: []string{"ticket", "ticket medio"}},
			{Metric: "conversao", Area: "vendas", Keywords: []string{"conversao", "taxa de conversao"}},
			{Metric: "custo_medio", Area: "compras", Keywords: []string{"custo", "custo medio", "preco de compra"}},
			{Metric: "prazo_entrega", Area: "compras", Keywords: []string{"prazo", "prazo de entrega"}},
			{Metric: "ruptura_estoque", Area: "logistica", Keywords: []string{"ruptura", "falta de estoque"}},
			{Metric: "giro_estoque", Area: "logistica", Keywords: []string{"giro", "giro de estoque"}},
		},
	}
}

// Match scores the normalized question against the vocabulary. hits counts
// matched keywords so the resolver can scale confidence.
type Match struct {
	Area    string
	Metric  string
	Keyword string
	Hits    int
}

// Match finds the best area/metric for a question. areaHint biases the
// lookup towards the page the question was asked from.
func (v *Vocabulary) Match(question, areaHint string) Match {
	text := Normalize(question)
	hint := Normalize(areaHint)

	best := Match{}
	for area, keywords := range v.areaKeywords {
		hits := 0
		keyword := ""
		for _, kw := range keywords {
			if containsWord(text, kw) {
				hits++
				if keyword == "" {
					keyword = kw
				}
			}
		}
		if area == hint {
			hits++
		}
		if hits > best.Hits {
			best = Match{Area: area, Keyword: keyword, Hits: hits}
		}
	}

	if best.Area == "" && hint != "" {
		if _, known := v.areaKeywords[hint]; known {
			best = Match{Area: hint, Hits: 1}
		}
	}

	if best.Area != "" {
		for _, m := range v.metricKeywords {
			if m.Area != best.Area {
				continue
			}
			for _, kw := range m.Keywords {
				if containsWord(text, kw) {
					best.Metric = m.Metric
					break
				}
			}
			if best.Metric != "" {
				break
			}
		}
	}

	return best
}

// HasArea reports whether the vocabulary knows the given area.
func (v *Vocabulary) HasArea(area string) bool {
	_, ok := v.areaKeywords[Normalize(area)]
	return ok
}

var accentReplacer = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ã", "a", "ä", "a",
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"í", "i", "ì", "i", "î", "i", "ï", "i",
	"ó", "o", "ò", "o", "ô", "o", "õ", "o", "ö", "o",
	"ú", "u", "ù", "u", "û", "u", "ü", "u",
	"ç", "c", "ñ", "n",
)

// Normalize lowercases, strips accents and collapses whitespace so keyword
// and dedup comparisons are stable across spellings.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = accentReplacer.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

func normalizeAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if n := Normalize(v); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func containsWord(text, keyword string) bool {
	if keyword == "" {
		return false
	}
	idx := strings.Index(text, keyword)
	for idx >= 0 {
		beforeOK := idx == 0 || text[idx-1] == ' '
		after := idx + len(keyword)
		afterOK := after == len(text) || text[after] == ' ' || !isLetter(text[after])
		if beforeOK && afterOK {
			return true
		}
		next := strings.Index(text[idx+1:], keyword)
		if next < 0 {
			return false
		}
		idx += 1 + next
	}
	return false
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

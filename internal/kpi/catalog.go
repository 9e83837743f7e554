package kpi

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Indicator describes one monitored KPI.
type Indicator struct {
	Area     string  `yaml:"area" json:"area"`
	Metric   string  `yaml:"metric" json:"metric"`
	Label    string  `yaml:"label" json:"label"`
	Unit     string  `yaml:"unit" json:"unit,omitempty"`
	UnitCost float64 `yaml:"unitCost" json:"unit_cost,omitempty"`
	Headline bool    `yaml:"headline" json:"headline,omitempty"`
}

// Catalog is the fixed set of indicators the engine knows about. Built once
// at startup and read-only afterwards.
type Catalog struct {
	indicators []Indicator
	byArea     map[string][]Indicator
}

type catalogFile struct {
	Indicators []Indicator `yaml:"indicators"`
}

// LoadCatalog reads indicators from a YAML pack, falling back to the
// built-in defaults when path is empty or the file does not exist.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return NewCatalog(DefaultIndicators()), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewCatalog(DefaultIndicators()), nil
		}
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(file.Indicators) == 0 {
		return NewCatalog(DefaultIndicators()), nil
	}
	return NewCatalog(file.Indicators), nil
}

// NewCatalog indexes the provided indicators by area.
func NewCatalog(indicators []Indicator) *Catalog {
	c := &Catalog{
		indicators: append([]Indicator(nil), indicators...),
		byArea:     make(map[string][]Indicator),
	}
	for _, ind := range c.indicators {
		area := strings.ToLower(ind.Area)
		c.byArea[area] = append(c.byArea[area], ind)
	}
	return c
}

// All returns every indicator in the catalog.
func (c *Catalog) All() []Indicator {
	return append([]Indicator(nil), c.indicators...)
}

// ByArea returns the indicators monitored for one business area.
func (c *Catalog) ByArea(area string) []Indicator {
	return append([]Indicator(nil), c.byArea[strings.ToLower(area)]...)
}

// Headlines returns the indicators included in briefing digests.
func (c *Catalog) Headlines() []Indicator {
	headlines := make([]Indicator, 0, len(c.indicators))
	for _, ind := range c.indicators {
		if ind.Headline {
			headlines = append(headlines, ind)
		}
	}
	return headlines
}

// Areas returns the distinct business areas covered by the catalog.
func (c *Catalog) Areas() []string {
	areas := make([]string, 0, len(c.byArea))
	for area := range c.byArea {
		areas = append(areas, area)
	}
	return areas
}

// DefaultIndicators is the built-in monitor pack used when no catalog
// file is configured.
func DefaultIndicators() []Indicator {
	return []Indicator{
		{Area: "financeiro", Metric: "margem_bruta", Label: "Margem bruta", Unit: "%", Headline: true},
		{Area: "financeiro", Metric: "receita_liquida", Label: "Receita líquida", Unit: "R$", UnitCost: 1, Headline: true},
		{Area: "financeiro", Metric: "inadimplencia", Label: "Inadimplência", Unit: "%"},
		{Area: "vendas", Metric: "ticket_medio", Label: "Ticket médio", Unit: "R$", UnitCost: 1, Headline: true},
		{Area: "vendas", Metric: "conversao", Label: "Taxa de conversão", Unit: "%"},
		{Area: "compras", Metric: "custo_medio", Label: "Custo médio de compra", Unit: "R$", UnitCost: 1, Headline: true},
		{Area: "compras", Metric: "prazo_entrega", Label: "Prazo médio de entrega", Unit: "dias"},
		{Area: "logistica", Metric: "ruptura_estoque", Label: "Ruptura de estoque", Unit: "%"},
		{Area: "logistica", Metric: "giro_estoque", Label: "Giro de estoque", Unit: "x"},
	}
}

package service

import (
	"sort"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// 标准类别名
const (
	CategoryEthics                 = "Ethics"
	CategoryQuantitativeMethods    = "Quantitative Methods"
	CategoryEconomics              = "Economics"
	CategoryFinancialReporting     = "Financial Reporting & Analysis"
	CategoryCorporateFinance       = "Corporate Finance"
	CategoryEquity                 = "Equity Investments"
	CategoryFixedIncome            = "Fixed Income"
	CategoryDerivatives            = "Derivatives"
	CategoryAlternativeInvestments = "Alternative Investments"
	CategoryPortfolioManagement    = "Portfolio Management & Wealth Planning"
)

// CanonicalCategories 按考纲顺序
var CanonicalCategories = []string{
	CategoryEthics,
	CategoryQuantitativeMethods,
	CategoryEconomics,
	CategoryFinancialReporting,
	CategoryCorporateFinance,
	CategoryEquity,
	CategoryFixedIncome,
	CategoryDerivatives,
	CategoryAlternativeInvestments,
	CategoryPortfolioManagement,
}

var categoryAliases = buildAliasTable(map[string][]string{
	CategoryEthics:                 {"ethics", "éthique", "ethique", "ethical and professional standards"},
	CategoryQuantitativeMethods:    {"quantitative methods", "quant", "quantitative", "qm"},
	CategoryEconomics:              {"economics", "éco", "eco", "économie", "economie"},
	CategoryFinancialReporting:     {"financial reporting & analysis", "financial reporting and analysis", "financial statement analysis", "fra", "fsa"},
	CategoryCorporateFinance:       {"corporate finance", "corp. fin.", "corp fin", "corporate issuers"},
	CategoryEquity:                 {"equity investments", "equity"},
	CategoryFixedIncome:            {"fixed income", "fi"},
	CategoryDerivatives:            {"derivatives", "dérivés", "derives"},
	CategoryAlternativeInvestments: {"alternative investments", "alt. inv.", "alt inv", "alts"},
	CategoryPortfolioManagement:    {"portfolio management & wealth planning", "portfolio management and wealth planning", "portfolio management", "portfolio"},
})

func buildAliasTable(src map[string][]string) map[string]string {
	table := make(map[string]string)
	for canonical, aliases := range src {
		table[FoldKey(canonical)] = canonical
		for _, a := range aliases {
			table[FoldKey(a)] = canonical
		}
	}
	return table
}

// FoldKey 去重音、小写、去首尾空白并压缩内部空白
func FoldKey(raw string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, raw)
	if err != nil {
		folded = raw
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// ResolveCategory 别名表命中返回标准名，否则返回去空白后的原值；空值返回 false
func ResolveCategory(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	if canonical, ok := categoryAliases[FoldKey(trimmed)]; ok {
		return canonical, true
	}
	return trimmed, true
}

// CategoryResolver 在 ResolveCategory 之上记住未知类别的首次写法，
// 同一个 resolver 内折叠后相同的输入总是得到同一个类别
type CategoryResolver struct {
	mu    sync.Mutex
	known map[string]string
}

// NewCategoryResolver 可用已有题库中的类别做种子
func NewCategoryResolver(seed ...string) *CategoryResolver {
	r := &CategoryResolver{known: make(map[string]string)}
	for _, s := range seed {
		r.Resolve(s)
	}
	return r
}

func (r *CategoryResolver) Resolve(raw string) (string, bool) {
	canonical, ok := ResolveCategory(raw)
	if !ok {
		return "", false
	}
	key := FoldKey(canonical)

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, seen := r.known[key]; seen {
		return existing, true
	}
	r.known[key] = canonical
	return canonical, true
}

// Categories 返回已登记的类别，标准类别在前
func (r *CategoryResolver) Categories() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.known))
	seen := make(map[string]bool)
	for _, c := range CanonicalCategories {
		if v, ok := r.known[FoldKey(c)]; ok {
			out = append(out, v)
			seen[FoldKey(c)] = true
		}
	}
	extra := make([]string, 0)
	for k, v := range r.known {
		if !seen[k] {
			extra = append(extra, v)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

package services

import (
	"sort"
	"strings"

	"github.com/Xtsservices/BasavatarakamCanteen2/models"
)

const (
	emptyNoMatch = "No items found"
	emptyMenu    = "Menu is empty"
)

// Section is one category heading and its cards.
type Section struct {
	Title string            `json:"title"`
	Items []models.MenuItem `json:"items"`
}

// FilterItems keeps items in the selected category (exact match, AllItems
// keeps everything) whose name contains the trimmed search text, ignoring case.
func FilterItems(items []models.MenuItem, category, search string) []models.MenuItem {
	search = strings.ToLower(strings.TrimSpace(search))
	out := make([]models.MenuItem, 0, len(items))
	for _, it := range items {
		if it.IsPlaceholder() {
			continue
		}
		if !models.IsAllItems(category) && it.Category != category {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(it.Name), search) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// GroupByCategory partitions items by category name, sections sorted by
// title. Item order inside a section follows the input.
func GroupByCategory(items []models.MenuItem) []Section {
	index := make(map[string]int)
	var sections []Section
	for _, it := range items {
		cat := it.Category
		if cat == "" {
			cat = models.CategoryOthers
		}
		i, ok := index[cat]
		if !ok {
			i = len(sections)
			index[cat] = i
			sections = append(sections, Section{Title: cat})
		}
		sections[i].Items = append(sections[i].Items, it)
	}
	sort.SliceStable(sections, func(a, b int) bool {
		return sections[a].Title < sections[b].Title
	})
	return sections
}

// PadSections appends placeholders so every section length is a multiple of
// columns. Placeholder ids are -1, -2, ... across the whole result.
func PadSections(sections []Section, columns int) []Section {
	if columns <= 1 {
		return sections
	}
	next := int64(-1)
	out := make([]Section, len(sections))
	for i, s := range sections {
		items := make([]models.MenuItem, len(s.Items), PaddedLen(len(s.Items), columns))
		copy(items, s.Items)
		for len(items)%columns != 0 {
			items = append(items, models.Placeholder(next))
			next--
		}
		out[i] = Section{Title: s.Title, Items: items}
	}
	return out
}

// PaddedLen is the smallest multiple of columns that is >= n.
func PaddedLen(n, columns int) int {
	if columns <= 1 {
		return n
	}
	return (n + columns - 1) / columns * columns
}

// View is what the menu grid renders.
type View struct {
	Sections    []Section `json:"sections"`
	EmptyReason string    `json:"emptyReason,omitempty"`
}

// BuildView filters, groups and pads in one go.
func BuildView(items []models.MenuItem, category, search string, columns int) View {
	sections := PadSections(GroupByCategory(FilterItems(items, category, search)), columns)
	v := View{Sections: sections}
	if len(sections) == 0 {
		if strings.TrimSpace(search) != "" || !models.IsAllItems(category) {
			v.EmptyReason = emptyNoMatch
		} else {
			v.EmptyReason = emptyMenu
		}
	}
	return v
}

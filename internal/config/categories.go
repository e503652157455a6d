package config

import "sort"

// CategoryWeights orders command categories in the help menu.
var CategoryWeights = map[string]int{
	"🕯️ Information": 0,
	"🎲 Gameplay":     20,
	"🛡️ Moderation":  40,
}

// SortCategories orders names by weight, unknown categories last and
// alphabetically.
func SortCategories(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		wi, okI := CategoryWeights[names[i]]
		wj, okJ := CategoryWeights[names[j]]
		switch {
		case okI && okJ && wi != wj:
			return wi < wj
		case okI != okJ:
			return okI
		default:
			return names[i] < names[j]
		}
	})
}

package core

// DefaultCategoryColor is used for categories without a dedicated color.
const DefaultCategoryColor = "#64748b"

var categoryColors = map[string]string{
	"Food":          "#f59e42",
	"Shopping":      "#3b82f6",
	"Utilities":     "#10b981",
	"Entertainment": "#a21caf",
	"Travel":        "#f43f5e",
	"Salary":        "#22c55e",
	"Investment":    "#eab308",
	"Other":         DefaultCategoryColor,
}

// CategoryColor returns the badge color for a category.
func CategoryColor(category string) string {
	if c, ok := categoryColors[category]; ok {
		return c
	}
	return DefaultCategoryColor
}

// Categories lists the categories offered by the transaction form.
func Categories() []string {
	return []string{"Food", "Shopping", "Utilities", "Entertainment", "Travel", "Salary", "Investment", "Other"}
}

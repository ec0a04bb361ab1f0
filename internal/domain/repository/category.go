package repository

// Category identifies one of the three tick data categories collected per
// match.
type Category string

const (
	CategoryOdds   Category = "odds"
	CategoryEvents Category = "events"
	CategoryStats  Category = "stats"
)

// Categories lists all tick categories in collection order.
func Categories() []Category {
	return []Category{CategoryOdds, CategoryEvents, CategoryStats}
}

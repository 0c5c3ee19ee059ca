package model

import (
	"strings"
	"time"
)

// Category is the fixed document classification. It drives retention
// policy and summary grouping.
type Category string

const (
	CategoryGeneral        Category = "general"
	CategoryMedical        Category = "medical"
	CategoryLegal          Category = "legal"
	CategoryFinancial      Category = "financial"
	CategoryIdentification Category = "identification"
	CategoryBenefits       Category = "benefits"
	CategoryHousing        Category = "housing"
	CategoryEmployment     Category = "employment"
	CategoryOther          Category = "other"
)

var categories = []Category{
	CategoryGeneral,
	CategoryMedical,
	CategoryLegal,
	CategoryFinancial,
	CategoryIdentification,
	CategoryBenefits,
	CategoryHousing,
	CategoryEmployment,
	CategoryOther,
}

// DefaultRetentionYears applies to any category missing from the table.
const DefaultRetentionYears = 2

var retentionYears = map[Category]int{
	CategoryLegal:          7,
	CategoryMedical:        5,
	CategoryFinancial:      7,
	CategoryBenefits:       5,
	CategoryEmployment:     3,
	CategoryHousing:        3,
	CategoryIdentification: 10,
	CategoryGeneral:        2,
	CategoryOther:          2,
}

// Categories returns the fixed category list in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// ParseCategory validates a category name. An empty value yields general.
func ParseCategory(s string) (Category, bool) {
	s = normalize(s)
	if s == "" {
		return CategoryGeneral, true
	}
	for _, c := range categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// RetentionYears returns how many years documents of the category are kept.
func RetentionYears(c Category) int {
	if y, ok := retentionYears[c]; ok {
		return y
	}
	return DefaultRetentionYears
}

// RetentionDate computes the disposal-eligibility date for a document
// uploaded at uploadDate.
func RetentionDate(uploadDate time.Time, c Category) time.Time {
	return uploadDate.AddDate(RetentionYears(c), 0, 0)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

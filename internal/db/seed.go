package db

import (
	"context"
	"errors"

	"github.com/diewo77/go-expenses/internal/models"
	"gorm.io/gorm"
)

// SystemCategory is a seeded category with its display metadata.
type SystemCategory struct {
	Name  string
	Emoji string
	Color string
}

var systemCategories = []SystemCategory{
	{"Groceries", "🍎", "#4CAF50"},
	{"Transport", "🚌", "#2196F3"},
	{"Entertainment", "🎭", "#9C27B0"},
	{"Restaurants", "🍽️", "#FF9800"},
	{"Health", "💊", "#F44336"},
	{"Clothing", "👕", "#3F51B5"},
	{"Housing", "🏠", "#795548"},
	{"Communication", "📱", "#00BCD4"},
	{"Education", "📚", "#607D8B"},
	{"Sport", "🏋️", "#FF5722"},
	{"Home", "🏡", "#8BC34A"},
	{"Investments", "💹", "#FF9800"},
	{"Marketplaces", "🛒", "#00BCD4"},
	{"Beauty", "💅", "#FF69B4"},
	{"Other", "📦", "#9E9E9E"},
}

// SystemCategories returns a copy of the seed catalogue.
func SystemCategories() []SystemCategory {
	out := make([]SystemCategory, len(systemCategories))
	copy(out, systemCategories)
	return out
}

// LookupSystemCategory finds catalogue metadata by case-insensitive name.
func LookupSystemCategory(name string) (SystemCategory, bool) {
	key := models.NameKey(name)
	for _, sc := range systemCategories {
		if models.NameKey(sc.Name) == key {
			return sc, true
		}
	}
	return SystemCategory{}, false
}

// Decorate copies catalogue metadata onto system categories in list.
func Decorate(list []models.Category) {
	for i := range list {
		if !list[i].IsSystem {
			continue
		}
		if sc, ok := LookupSystemCategory(list[i].Name); ok {
			list[i].Emoji, list[i].Color = sc.Emoji, sc.Color
		}
	}
}

// EnsureSystemCategories makes every catalogue entry an active personal
// category of userID. Safe to repeat; returns how many rows it created or
// reactivated.
func EnsureSystemCategories(tx *gorm.DB, userID uint) (int, error) {
	changed := 0
	for _, sc := range systemCategories {
		_, outcome, err := SaveCategory(tx, models.NewCategory(userID, nil, sc.Name, true))
		if errors.Is(err, ErrCategoryExists) {
			continue
		}
		if err != nil {
			return changed, err
		}
		if outcome != 0 {
			changed++
		}
	}
	return changed, nil
}

// Seed re-seeds system categories for every known user, reactivating any
// that were deactivated.
func Seed(ctx context.Context, db *gorm.DB) error {
	var ids []uint
	if err := db.WithContext(ctx).Model(&models.User{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return err
	}
	for _, id := range ids {
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			_, err := EnsureSystemCategories(tx, id)
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

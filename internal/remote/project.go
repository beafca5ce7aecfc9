package remote

import (
	"fmt"
	"strings"

	"github.com/mrlokans/favsync/internal/entities"
)

const (
	minutesPerHour = 60
	minutesPerDay  = 24 * minutesPerHour
)

// Project maps a backend favorite onto the display-ready cache entry.
// AddedAt is taken from FavoritedAt and left zero when the backend omits it.
func Project(f Favorite) entities.FavoriteEntry {
	entry := entities.FavoriteEntry{
		ID:          f.ID,
		Title:       f.Title,
		Image:       f.Image,
		Price:       f.Price,
		Currency:    f.Currency,
		Rating:      f.Rating,
		ReviewCount: f.ReviewCount,
		Duration:    strings.TrimSpace(f.Duration),
		Location:    strings.TrimSpace(f.Location),
	}

	if entry.Image == "" && len(f.Images) > 0 {
		entry.Image = f.Images[0]
	}
	if entry.Duration == "" {
		entry.Duration = FormatDuration(f.DurationMinutes)
	}
	if entry.Location == "" {
		entry.Location = FormatLocation(f.City, f.Country)
	}
	if f.Company != nil {
		entry.CompanyName = strings.TrimSpace(f.Company.Name)
	}
	if f.FavoritedAt != nil {
		entry.AddedAt = f.FavoritedAt.UTC()
	}
	return entry
}

// FormatDuration renders a duration in minutes the way tour cards show it:
// "45m", "2h", "2h 30m", "1 day", "3 days". Whole days win over hours.
func FormatDuration(minutes int) string {
	switch {
	case minutes <= 0:
		return ""
	case minutes >= minutesPerDay && minutes%minutesPerDay == 0:
		days := minutes / minutesPerDay
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	case minutes < minutesPerHour:
		return fmt.Sprintf("%dm", minutes)
	case minutes%minutesPerHour == 0:
		return fmt.Sprintf("%dh", minutes/minutesPerHour)
	default:
		return fmt.Sprintf("%dh %dm", minutes/minutesPerHour, minutes%minutesPerHour)
	}
}

// FormatLocation joins the non-empty parts as "City, Country".
func FormatLocation(city, country string) string {
	parts := make([]string, 0, 2)
	for _, p := range []string{city, country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

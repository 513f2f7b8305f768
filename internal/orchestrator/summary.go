package orchestrator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperjump/quanhday/internal/models"
)

const addressPlaceholder = "Chưa có địa chỉ"

// FormatSummary lists at most limit results, numbered, with distance in km to one
// decimal, category and address, then a count of the rest. No results yields the
// widen-the-radius message.
func FormatSummary(results []*models.SearchResult, radiusKm float64, limit int) string {
	if len(results) == 0 {
		return fmt.Sprintf("Không tìm thấy kết quả nào trong bán kính %s km. Bạn thử mở rộng bán kính tìm kiếm nhé!",
			strconv.FormatFloat(radiusKm, 'f', -1, 64))
	}
	if limit <= 0 {
		limit = 10
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tìm thấy %d kết quả gần bạn:\n", len(results))
	for i, r := range results {
		if i == limit {
			break
		}
		fmt.Fprintf(&b, "\n%d. %s - %.1f km\n", i+1, r.Name(), r.DistanceKm())
		category := r.Entity().Category
		if category == "" {
			category = "Khác"
		}
		fmt.Fprintf(&b, "   Danh mục: %s\n", category)
		address := r.Address()
		if address == "" {
			address = addressPlaceholder
		}
		fmt.Fprintf(&b, "   Địa chỉ: %s\n", address)
	}
	if rest := len(results) - limit; rest > 0 {
		fmt.Fprintf(&b, "\n...và %d kết quả khác.", rest)
	}
	return strings.TrimRight(b.String(), "\n")
}

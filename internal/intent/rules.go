package intent

import "github.com/hyperjump/quanhday/internal/models"

// Rule maps keywords to a category. Keywords are lower-case NFC strings.
type Rule struct {
	Keywords []string
	Category string
	Type     models.SearchType
}

// DefaultRules is scanned in order and the first rule with a keyword found in
// the text wins. Location rules come before event rules, so a word present in
// both resolves to the location category.
var DefaultRules = []Rule{
	{Keywords: []string{"cafe", "cà phê", "coffee", "caphe"}, Category: "Quán Cafe", Type: models.SearchTypeLocation},
	{Keywords: []string{"nhà hàng", "restaurant", "quán ăn"}, Category: "Nhà hàng", Type: models.SearchTypeLocation},
	{Keywords: []string{"bida", "bi-a", "billiard"}, Category: "Quán Bida", Type: models.SearchTypeLocation},
	{Keywords: []string{"quán net", "internet", "cyber"}, Category: "Quán Net", Type: models.SearchTypeLocation},
	{Keywords: []string{"gaming", "game", "playstation"}, Category: "Gaming", Type: models.SearchTypeLocation},
	{Keywords: []string{"bar", "pub", "quán nhậu", "bia"}, Category: "Bar/Pub", Type: models.SearchTypeLocation},
	{Keywords: []string{"giải trí", "karaoke", "rạp phim", "cinema"}, Category: "Giải trí", Type: models.SearchTypeLocation},
	{Keywords: []string{"workshop", "lớp học", "hội thảo"}, Category: "Workshop", Type: models.SearchTypeLocation},
	{Keywords: []string{"sân bóng", "gym", "thể thao", "sân cầu lông"}, Category: "Thể thao", Type: models.SearchTypeLocation},
	{Keywords: []string{"mua sắm", "shopping", "trung tâm thương mại", "chợ"}, Category: "Mua sắm", Type: models.SearchTypeLocation},
	{Keywords: []string{"thư viện", "học bài", "study", "coworking", "co-working"}, Category: "Học tập", Type: models.SearchTypeLocation},

	{Keywords: []string{"âm nhạc", "nhạc", "concert", "music", "live show"}, Category: "Âm nhạc", Type: models.SearchTypeEvent},
	{Keywords: []string{"ẩm thực", "food"}, Category: "Ẩm thực", Type: models.SearchTypeEvent},
	{Keywords: []string{"giải đấu", "marathon", "thi đấu"}, Category: "Thể thao", Type: models.SearchTypeEvent},
	{Keywords: []string{"tiệc", "party"}, Category: "Tiệc", Type: models.SearchTypeEvent},
	{Keywords: []string{"meetup", "gặp gỡ", "giao lưu"}, Category: "Gặp gỡ", Type: models.SearchTypeEvent},
	{Keywords: []string{"văn hóa", "triển lãm", "lễ hội", "nghệ thuật"}, Category: "Văn hóa", Type: models.SearchTypeEvent},
}

var (
	eventTypeWords    = []string{"sự kiện", "event"}
	locationTypeWords = []string{"địa điểm", "quán", "nhà hàng"}

	// searchWords mark a chat message as a search request even without a category.
	searchWords = []string{"tìm", "kiếm", "gần", "ở đâu", "quanh", "find", "near", "nearby"}
)

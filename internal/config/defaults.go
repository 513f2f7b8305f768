package config

import "time"

// Storage drivers.
const (
	DriverMemory    = "memory"
	DriverSQLite    = "sqlite"
	DriverPostgres  = "postgres"
	DriverRedis     = "redis"
	DriverFirestore = "firestore"
)

// Chat backends.
const (
	BackendGemini  = "gemini"
	BackendOffline = "offline"
)

const defaultSystemPrompt = `Bạn là trợ lý khám phá địa điểm và sự kiện quanh người dùng.
Trả lời ngắn gọn bằng tiếng Việt. Khi tin nhắn kèm kết quả tìm kiếm, chỉ dựa vào các kết quả đó,
giữ nguyên tên và khoảng cách, và gợi ý mở rộng bán kính nếu không có kết quả.`

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverSQLite
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/quanhday/data/db/quanhday.db"
	}
	if cfg.Storage.Postgres.MaxConns == 0 {
		cfg.Storage.Postgres.MaxConns = 10
	}
	if cfg.Storage.Redis.Addr == "" {
		cfg.Storage.Redis.Addr = "localhost:6379"
	}
	if cfg.Storage.Redis.Prefix == "" {
		cfg.Storage.Redis.Prefix = "quanhday"
	}
	if cfg.Search.DefaultRadiusKm == 0 {
		cfg.Search.DefaultRadiusKm = 10
	}
	if cfg.Search.SummaryLimit == 0 {
		cfg.Search.SummaryLimit = 10
	}
	if cfg.Search.UpcomingLimit == 0 {
		cfg.Search.UpcomingLimit = 10
	}
	if cfg.Chat.Backend == "" {
		cfg.Chat.Backend = BackendGemini
	}
	if cfg.Chat.Endpoint == "" {
		cfg.Chat.Endpoint = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Chat.Model == "" {
		cfg.Chat.Model = "gemini-1.5-flash"
	}
	if cfg.Chat.Timeout == 0 {
		cfg.Chat.Timeout = 30 * time.Second
	}
	if cfg.Chat.Temperature == 0 {
		cfg.Chat.Temperature = 0.7
	}
	if cfg.Chat.HistoryTurns == 0 {
		cfg.Chat.HistoryTurns = 20
	}
	if cfg.Chat.SystemPrompt == "" {
		cfg.Chat.SystemPrompt = defaultSystemPrompt
	}
	if cfg.Geocode.BaseURL == "" {
		cfg.Geocode.BaseURL = "https://nominatim.openstreetmap.org"
	}
	if cfg.Geocode.UserAgent == "" {
		cfg.Geocode.UserAgent = "quanhday/1.0"
	}
	if cfg.Geocode.Timeout == 0 {
		cfg.Geocode.Timeout = 5 * time.Second
	}
	if cfg.Catalog.Extensions == nil {
		cfg.Catalog.Extensions = []string{".yaml", ".yml", ".json", ".xlsx"}
	}
	if cfg.Catalog.Debounce == 0 {
		cfg.Catalog.Debounce = 400 * time.Millisecond
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Catalog.Directories) > 0 && cfg.Catalog.Recursive == nil {
		t := true
		cfg.Catalog.Recursive = &t
	}
}

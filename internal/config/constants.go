package config

// Default paths for local storage
const (
	// DefaultDatabasePath is the default path for the local cache database
	DefaultDatabasePath = "./favsync.db"

	// DefaultCacheDir is where the file cache backend keeps one document per scope
	DefaultCacheDir = "./favorites-cache"
)

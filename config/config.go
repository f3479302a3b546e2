package config

import (
	"log"

	"github.com/spf13/viper"
)

// Configuration stores all the configurations
type Configuration struct {
	Server        ServerConfiguration
	Neo4j         DatabaseConfiguration
	Redis         RedisConfiguration
	Elasticsearch ElasticsearchConfiguration
	Cache         CacheConfiguration
	Invalidation  InvalidationConfiguration
}

// ServerConfiguration stores the port and other web server settings
type ServerConfiguration struct {
	Port string
}

// DatabaseConfiguration stores data for database connection
type DatabaseConfiguration struct {
	URI string
}

// RedisConfiguration stores data for Redis connection
type RedisConfiguration struct {
	Addr            string
	DefaultCacheTTL string
}

// ElasticsearchConfiguration stores data for Elasticsearch connection
type ElasticsearchConfiguration struct {
	URL string
}

// CacheConfiguration stores the key layout and write policy of the
// authorization and identity caches.
type CacheConfiguration struct {
	ResRelKey          string
	TokenPrefix        string
	AccountTokenPrefix string
	RoleInfoPrefix     string
	TokenTTL           string
	WriteRetries       int
}

// InvalidationConfiguration bounds the token-invalidation queue.
type InvalidationConfiguration struct {
	QueueSize    int
	WorkRetries  int
	RelPageSize  int
	DrainTimeout string
}

var config *Configuration

func InitConfig() error {
	viper.AddConfigPath("config") // path to look for the config file in
	viper.SetConfigName("config") // name of the config file (without extension)
	viper.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name

	viper.AutomaticEnv() // read in environment variables that match

	// Set default configurations
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("neo4j.uri", "bolt://localhost:7687")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("elasticsearch.url", "http://localhost:9200")
	viper.SetDefault("redis.defaultCacheTTL", "10m")
	viper.SetDefault("log.dir", "logging")
	viper.SetDefault("cache.resRelKey", "cordon:cache:res:rel")
	viper.SetDefault("cache.tokenPrefix", "cordon:cache:token:")
	viper.SetDefault("cache.accountTokenPrefix", "cordon:cache:account:tokens:")
	viper.SetDefault("cache.roleInfoPrefix", "cordon:cache:role:info:")
	viper.SetDefault("cache.tokenTTL", "24h")
	viper.SetDefault("cache.writeRetries", 3)
	viper.SetDefault("invalidation.queueSize", 1024)
	viper.SetDefault("invalidation.workRetries", 3)
	viper.SetDefault("invalidation.relPageSize", 100)
	viper.SetDefault("invalidation.drainTimeout", "10s")

	// Attempt to read the config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found. Using default settings and environment variables.")
		} else {
			return err
		}
	}

	// Unmarshal the configuration into the Configuration struct
	err := viper.Unmarshal(&config)
	if err != nil {
		return err
	}

	return nil
}

// GetConfig returns the loaded configuration
func GetConfig() *Configuration {
	return config
}

// GetString retrieves a string value from the configuration
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt retrieves an integer value from the configuration
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool retrieves a boolean value from the configuration
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration retrieves a duration value from the configuration
func GetDuration(key string) string {
	return viper.GetString(key)
}

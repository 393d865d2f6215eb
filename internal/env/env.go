package env

import (
	"os"
	"time"
)

const (
	AWSRegion        = "AWS_REGION"
	AWSID            = "AWS_ID"
	AWSSecret        = "AWS_SECRET"
	AWSToken         = "AWS_TOKEN"
	DynamoDBEndpoint = "DYNAMODB_ENDPOINT"
	UserSecretKey    = "USER_SECRET"
	ChatRedisURL     = "CHAT_REDIS_URL"
	ChatRedisPass    = "CHAT_REDIS_PASS"
	WebUrl           = "WEB_URL"

	CallRingTimeout  = "HUB_CALL_RING_TIMEOUT"
	PresenceDebounce = "HUB_PRESENCE_DEBOUNCE"
	HeartbeatTimeout = "HUB_HEARTBEAT_TIMEOUT"
)

func init() {
	required := []string{
		AWSRegion,
		AWSID,
		AWSSecret,
		// AWSToken,
		UserSecretKey,
		ChatRedisURL,
		WebUrl,
	}
	for _, key := range required {
		if os.Getenv(key) == "" {
			panic("env: required environment variable not set: " + key)
		}
	}
}

func Get(key string) string {
	return os.Getenv(key)
}

func GetOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func MustGet(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic("env: required environment variable not set: " + key)
	}
	return val
}

func GetDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		panic("env: invalid duration in " + key + ": " + val)
	}
	return d
}

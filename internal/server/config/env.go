package config

import (
	"os"
	"strconv"
	"time"
)

// parseEnv overlays Config fields from environment variables. Unset or
// malformed variables leave the current value in place.
//
// Recognized variables: ENDPOINT_ADDR, DATABASE_DSN, REDIS_ADDR,
// KAFKA_BROKER_ADDR, KAFKA_TOPIC_USER_CREATED, SECRET_KEY,
// ACCESS_TOKEN_EXPIRE_MINUTES, REFRESH_TOKEN_EXPIRE_DAYS,
// MAX_ACTIVE_SESSIONS, MAX_LOGIN_ATTEMPTS, LOGIN_BLOCK_SECONDS.
func parseEnv(config *Config) {
	setString := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if v, ok := os.LookupEnv(name); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setDuration := func(name string, unit time.Duration, dst *time.Duration) {
		if v, ok := os.LookupEnv(name); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = time.Duration(n) * unit
			}
		}
	}

	setString("ENDPOINT_ADDR", &config.EndpointAddr)
	setString("DATABASE_DSN", &config.DatabaseDSN)
	setString("REDIS_ADDR", &config.RedisAddr)
	setString("KAFKA_BROKER_ADDR", &config.KafkaBrokerAddr)
	setString("KAFKA_TOPIC_USER_CREATED", &config.KafkaTopicUserCreated)
	setString("SECRET_KEY", &config.SecretKey)

	setDuration("ACCESS_TOKEN_EXPIRE_MINUTES", time.Minute, &config.AccessTokenValidityDuration)
	setDuration("REFRESH_TOKEN_EXPIRE_DAYS", 24*time.Hour, &config.RefreshTokenValidityDuration)
	setDuration("LOGIN_BLOCK_SECONDS", time.Second, &config.LoginBlockDuration)

	setInt("MAX_ACTIVE_SESSIONS", &config.MaxActiveSessions)
	setInt("MAX_LOGIN_ATTEMPTS", &config.MaxLoginAttempts)
}

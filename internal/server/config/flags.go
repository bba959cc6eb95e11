package config

import (
	"flag"
	"os"
	"time"

	"github.com/avolkov/authgate/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-rd string  Redis address
//	-k string   Kafka broker address
//	-kt string  Kafka topic for user-created events
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-r int      refresh token validity, days
//	-m int      max active sessions per user
//	-l int      max login attempts per (IP, login) pair
//	-w int      login block window, seconds
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components. Duration
// flags are accepted as integers and converted to time.Duration values.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-rd", "-k", "-kt", "-s", "-t", "-r", "-m", "-l", "-w"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisAddr, "rd", config.RedisAddr, "redis address")
	fs.StringVar(&config.KafkaBrokerAddr, "k", config.KafkaBrokerAddr, "kafka broker address")
	fs.StringVar(&config.KafkaTopicUserCreated, "kt", config.KafkaTopicUserCreated, "kafka topic for user-created events")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Hours()/24), "refresh_token_validity_duration (in days)")
	loginBlockDuration := fs.Int("w", int(config.LoginBlockDuration.Seconds()), "login_block_duration (in seconds)")

	fs.IntVar(&config.MaxActiveSessions, "m", config.MaxActiveSessions, "max active sessions per user")
	fs.IntVar(&config.MaxLoginAttempts, "l", config.MaxLoginAttempts, "max login attempts per (ip, login) pair")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * 24 * time.Hour
	config.LoginBlockDuration = time.Duration(*loginBlockDuration) * time.Second
}

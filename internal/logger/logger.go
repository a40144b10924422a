// Package logger wires the gateway's structured logging: a process-wide
// Laisky/zap logger built through Laisky/go-utils' console logger factory,
// plus an optional alert hook that pushes error-level log lines to a
// webhook. This mirrors common/logger/logger.go in the teacher almost
// exactly; the gateway has no daily-rotated log file requirement (it is
// meant to run as a single foreground process behind a process supervisor),
// so SetupLogger's file-sink branch is dropped and only console + alert
// remain.
package logger

import (
	"context"
	"os"
	"sync"

	gutils "github.com/Laisky/go-utils/v5"
	glog "github.com/Laisky/go-utils/v5/log"
	"github.com/Laisky/zap"

	"github.com/laisky/relay-gateway/internal/env"
)

var (
	// Logger is the process-wide structured logger.
	Logger glog.Logger

	initOnce  sync.Once
	alertOnce sync.Once
)

func init() {
	initLogger()
}

func initLogger() {
	initOnce.Do(func() {
		level := glog.LevelInfo
		if env.Bool("DEBUG", false) {
			level = glog.LevelDebug
		}

		var err error
		Logger, err = glog.NewConsoleWithName("relay-gateway", level)
		if err != nil {
			panic(err)
		}
	})
}

// SetupAlerting wires an optional error-level alert hook, pushing log lines
// at zap.ErrorLevel and above to a webhook configured via LOG_PUSH_API. It is
// a no-op when that env var is unset, same as the teacher's
// SetupEnhancedLogger for deployments that don't want alerting.
func SetupAlerting(ctx context.Context) {
	alertOnce.Do(func() {
		pushAPI := env.String("LOG_PUSH_API", "")
		opts := []zap.Option{}

		if pushAPI != "" {
			rateLimiter, err := gutils.NewRateLimiter(ctx, gutils.RateLimiterArgs{
				Max:     1,
				NPerSec: 1,
			})
			if err != nil {
				Logger.Panic("create ratelimiter", zap.Error(err))
			}

			alertPusher, err := glog.NewAlert(ctx, pushAPI,
				glog.WithAlertType(env.String("LOG_PUSH_TYPE", "relay-gateway")),
				glog.WithAlertToken(env.String("LOG_PUSH_TOKEN", "")),
				glog.WithAlertHookLevel(zap.ErrorLevel),
				glog.WithRateLimiter(rateLimiter),
			)
			if err != nil {
				Logger.Panic("create AlertPusher", zap.Error(err))
			}

			opts = append(opts, zap.HooksWithFields(alertPusher.GetZapHook()))
		}

		hostname, err := os.Hostname()
		if err != nil {
			Logger.Panic("get hostname", zap.Error(err))
		}

		Logger = Logger.WithOptions(opts...).With(zap.String("host", hostname))

		if env.Bool("DEBUG", false) {
			_ = Logger.ChangeLevel("debug")
		} else {
			_ = Logger.ChangeLevel("info")
		}
	})
}

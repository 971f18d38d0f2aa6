package observability

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var redisInstrumentationOnce sync.Once

// InstrumentRedisClient wires redis command and pool observability into the provided client.
// It is safe to call multiple times; instrumentation is installed once per process.
func InstrumentRedisClient(client redis.UniversalClient, logger *slog.Logger) {
	if client == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}

	redisInstrumentationOnce.Do(func() {
		hook, err := newRedisMetricsHook(otel.Meter(meterName), client.PoolStats)
		if err != nil {
			logger.Warn("redis observability instrumentation disabled", "error", err)
			return
		}
		client.AddHook(hook)
		logger.Info("redis observability instrumentation enabled")
	})
}

// redisMetricsHook counts commands and classifies token key lookups. A token
// key is "live" when EXISTS finds it or DEL removes it.
type redisMetricsHook struct {
	cmdTotal    metric.Int64Counter
	cmdErrors   metric.Int64Counter
	cmdLatency  metric.Float64Histogram
	liveLookups metric.Int64Counter
	deadLookups metric.Int64Counter

	cmdTotalAtomic  atomic.Int64
	cmdErrorAtomic  atomic.Int64
	liveAtomic      atomic.Int64
	deadAtomic      atomic.Int64
	poolStatsReader func() *redis.PoolStats
}

func newRedisMetricsHook(meter metric.Meter, poolStats func() *redis.PoolStats) (*redisMetricsHook, error) {
	cmdTotal, err := meter.Int64Counter(
		"redis.command.total",
		metric.WithDescription("Total number of Redis commands executed"),
	)
	if err != nil {
		return nil, err
	}
	cmdErrors, err := meter.Int64Counter(
		"redis.command.errors",
		metric.WithDescription("Total number of Redis command errors"),
	)
	if err != nil {
		return nil, err
	}
	cmdLatency, err := meter.Float64Histogram(
		"redis.command.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Redis command latency in seconds"),
	)
	if err != nil {
		return nil, err
	}
	liveLookups, err := meter.Int64Counter(
		"redis.token_key.live",
		metric.WithDescription("Token key lookups or deletes that found a live key"),
	)
	if err != nil {
		return nil, err
	}
	deadLookups, err := meter.Int64Counter(
		"redis.token_key.absent",
		metric.WithDescription("Token key lookups or deletes that found no key"),
	)
	if err != nil {
		return nil, err
	}

	poolSaturationGauge, err := meter.Float64ObservableGauge(
		"redis.pool.saturation",
		metric.WithUnit("1"),
		metric.WithDescription("Redis pool saturation ratio (used_conns / total_conns)"),
	)
	if err != nil {
		return nil, err
	}
	liveRatioGauge, err := meter.Float64ObservableGauge(
		"redis.token_key.live_ratio",
		metric.WithUnit("1"),
		metric.WithDescription("Share of token key lookups that found a live key"),
	)
	if err != nil {
		return nil, err
	}
	commandErrorRateGauge, err := meter.Float64ObservableGauge(
		"redis.command.error_rate",
		metric.WithUnit("1"),
		metric.WithDescription("Redis command error rate (errors / total commands)"),
	)
	if err != nil {
		return nil, err
	}

	hook := &redisMetricsHook{
		cmdTotal:        cmdTotal,
		cmdErrors:       cmdErrors,
		cmdLatency:      cmdLatency,
		liveLookups:     liveLookups,
		deadLookups:     deadLookups,
		poolStatsReader: poolStats,
	}

	_, err = meter.RegisterCallback(func(ctx context.Context, observer metric.Observer) error {
		if hook.poolStatsReader != nil {
			if stats := hook.poolStatsReader(); stats != nil && stats.TotalConns > 0 {
				used := stats.TotalConns - stats.IdleConns
				observer.ObserveFloat64(poolSaturationGauge, clampRatio(float64(used)/float64(stats.TotalConns)))
			}
		}
		live := hook.liveAtomic.Load()
		dead := hook.deadAtomic.Load()
		if live+dead > 0 {
			observer.ObserveFloat64(liveRatioGauge, clampRatio(float64(live)/float64(live+dead)))
		}
		total := hook.cmdTotalAtomic.Load()
		if total > 0 {
			observer.ObserveFloat64(commandErrorRateGauge, clampRatio(float64(hook.cmdErrorAtomic.Load())/float64(total)))
		}
		return nil
	}, poolSaturationGauge, liveRatioGauge, commandErrorRateGauge)
	if err != nil {
		return nil, err
	}

	return hook, nil
}

func (h *redisMetricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h *redisMetricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		h.observe(ctx, cmd, err, time.Since(start))
		return err
	}
}

func (h *redisMetricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		h.cmdLatency.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
			attribute.String("command", "pipeline"),
			attribute.String("status", redisCommandStatus(err)),
		))
		for _, cmd := range cmds {
			h.observe(ctx, cmd, cmd.Err(), -1)
		}
		return err
	}
}

// observe records one command. A negative duration skips the latency sample,
// which pipelines record once for the whole batch.
func (h *redisMetricsHook) observe(ctx context.Context, cmd redis.Cmder, err error, duration time.Duration) {
	command := strings.ToLower(cmd.Name())
	status := redisCommandStatus(err)

	h.cmdTotalAtomic.Add(1)
	h.cmdTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("command", command),
		attribute.String("status", status),
	))
	if err != nil && !errors.Is(err, redis.Nil) {
		h.cmdErrorAtomic.Add(1)
		h.cmdErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("command", command),
			attribute.String("error_type", classifyRedisError(err)),
		))
	}
	if duration >= 0 {
		h.cmdLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(
			attribute.String("command", command),
			attribute.String("status", status),
		))
	}

	live, dead, ok := classifyTokenKeyOutcome(cmd)
	if !ok {
		return
	}
	if live > 0 {
		h.liveAtomic.Add(live)
		h.liveLookups.Add(ctx, live, metric.WithAttributes(attribute.String("command", command)))
	}
	if dead > 0 {
		h.deadAtomic.Add(dead)
		h.deadLookups.Add(ctx, dead, metric.WithAttributes(attribute.String("command", command)))
	}
}

func redisCommandStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, redis.Nil):
		return "miss"
	default:
		return "error"
	}
}

func classifyRedisError(err error) string {
	errStr := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, context.DeadlineExceeded), strings.Contains(errStr, "timeout"):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case strings.Contains(errStr, "connection"), strings.Contains(errStr, "refused"):
		return "connection"
	default:
		return "other"
	}
}

// classifyTokenKeyOutcome splits the keys touched by EXISTS and DEL into
// live and absent counts. Other commands are not classified.
func classifyTokenKeyOutcome(cmd redis.Cmder) (live int64, absent int64, ok bool) {
	name := strings.ToLower(cmd.Name())
	if name != "exists" && name != "del" {
		return 0, 0, false
	}
	intCmd, castOK := cmd.(*redis.IntCmd)
	if !castOK || intCmd.Err() != nil {
		return 0, 0, false
	}
	keys := int64(len(cmd.Args()) - 1)
	if keys <= 0 {
		return 0, 0, false
	}
	found := intCmd.Val()
	if found > keys {
		found = keys
	}
	return found, keys - found, true
}

func clampRatio(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

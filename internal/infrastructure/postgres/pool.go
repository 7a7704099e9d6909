package postgres

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"

	"github.com/jhoicas/meu-agente-api/pkg/config"
)

// slowQuery consultas por encima de este umbral se registran en warn.
const slowQuery = 500 * time.Millisecond

// NewPool crea el pool de conexiones. Montos de registros financieros y
// backups viajan como NUMERIC ↔ shopspring/decimal en todas las conexiones.
func NewPool(ctx context.Context, cfg config.DBConfig, log zerolog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}

	if cfg.ForceIPv4 {
		// Docker sin IPv6 frente a hosts gestionados que publican AAAA.
		poolConfig.ConnConfig.DialFunc = dialIPv4
	}
	rp := poolConfig.ConnConfig.RuntimeParams
	rp["application_name"] = "meu-agente"
	if cfg.StatementTimeout > 0 {
		rp["statement_timeout"] = strconv.FormatInt(cfg.StatementTimeout.Milliseconds(), 10)
	}

	// El scheduler abre hasta BACKUP_CONCURRENCY transacciones a la vez además del tráfico HTTP.
	poolConfig.MaxConns = int32(cfg.MaxConns)
	if poolConfig.MaxConns <= 0 {
		poolConfig.MaxConns = 25
	}
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	poolConfig.ConnConfig.Tracer = &tracelog.TraceLog{
		Logger:   queryLogger(log),
		LogLevel: tracelog.LogLevelInfo,
	}
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("crear pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping DB: %w", err)
	}
	log.Info().Int32("max_conns", poolConfig.MaxConns).Str("host", poolConfig.ConnConfig.Host).Msg("pool PostgreSQL listo")
	return pool, nil
}

// queryLogger lleva los eventos de pgx a zerolog: errores siempre, consultas
// lentas como warn. Los argumentos nunca se registran (datos financieros).
func queryLogger(log zerolog.Logger) tracelog.LoggerFunc {
	return func(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
		if level > tracelog.LogLevelWarn {
			d, _ := data["time"].(time.Duration)
			if d < slowQuery {
				return
			}
			level = tracelog.LogLevelWarn
			msg = "consulta lenta"
		}
		ev := log.Warn()
		if level == tracelog.LogLevelError {
			ev = log.Error()
		}
		if err, ok := data["err"].(error); ok {
			ev = ev.Err(err)
		}
		if d, ok := data["time"].(time.Duration); ok {
			ev = ev.Dur("took", d)
		}
		if sql, ok := data["sql"].(string); ok {
			ev = ev.Str("sql", sql)
		}
		ev.Msg(msg)
	}
}

func dialIPv4(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	d := &net.Dialer{}
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip4", host)
	if err != nil || len(ips) == 0 {
		return d.DialContext(ctx, network, addr)
	}
	return d.DialContext(ctx, "tcp4", net.JoinHostPort(ips[0].String(), port))
}

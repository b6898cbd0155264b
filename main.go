package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/1fge/nextblock-stream-monitor/ingest"
	nextblock_go "github.com/1fge/nextblock-stream-monitor/pkg/nextblock-go"
	"github.com/1fge/nextblock-stream-monitor/pkg/nextblock-go/clients/stream_client"
	"github.com/1fge/nextblock-stream-monitor/pkg/nextblock-go/pkg"
	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const privateKeyEnv = "NEXT_BLOCK_SHRED_PRIVATE_KEY"

type options struct {
	region         string
	secure         bool
	accounts       string
	recvTimeout    time.Duration
	connectTimeout time.Duration
	reconnectEvery time.Duration
	metricsAddr    string
	dump           bool
}

func loadPrivateKey() (string, error) {
	// a missing .env is fine, the key may come from the environment itself
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return "", err
	}

	privateKey := os.Getenv(privateKeyEnv)
	if privateKey == "" {
		return "", errors.Wrapf(pkg.ErrInvalidCredential, "set `%s` to your base58-encoded solana private key", privateKeyEnv)
	}

	return privateKey, nil
}

func parseAccounts(s string) ([]solana.PublicKey, error) {
	var accounts []solana.PublicKey
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}

		account, err := solana.PublicKeyFromBase58(field)
		if err != nil {
			return nil, errors.Wrapf(err, "account filter %q", field)
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "nextblock-stream-monitor",
		Short:        "Stream relay transactions from nextblock before they land",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.region, "region", os.Getenv("REGION"), "relay region (ny, fra, amsterdam, london, singapore, tokyo, slc)")
	flags.BoolVar(&opts.secure, "secure", false, "connect over TLS")
	flags.StringVar(&opts.accounts, "accounts", "", "comma separated base58 accounts to filter on")
	flags.DurationVar(&opts.recvTimeout, "recv-timeout", 30*time.Second, "reconnect when nothing is received for this long (0 disables)")
	flags.DurationVar(&opts.connectTimeout, "connect-timeout", stream_client.DefaultConnectTimeout, "connection handshake timeout")
	flags.DurationVar(&opts.reconnectEvery, "reconnect-every", time.Second, "minimum time between subscription attempts")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", os.Getenv("METRICS_ADDR"), "serve prometheus metrics on this address")
	flags.BoolVar(&opts.dump, "dump", false, "dump every event")

	return cmd
}

func run(ctx context.Context, opts *options) error {
	privateKey, err := loadPrivateKey()
	if err != nil {
		return err
	}

	cred, err := pkg.LoadCredential(privateKey)
	if err != nil {
		return err
	}
	log.Println("pubkey:", cred.PublicKey().String())

	accounts, err := parseAccounts(opts.accounts)
	if err != nil {
		return err
	}

	endpoint := nextblock_go.Resolve(nextblock_go.ParseRegion(opts.region))
	client := stream_client.New(endpoint, cred,
		stream_client.WithAccounts(accounts...),
		stream_client.WithSecure(opts.secure),
		stream_client.WithConnectTimeout(opts.connectTimeout),
	)

	var db *sql.DB
	if dsn := os.Getenv("MYSQL_DSN"); dsn != "" {
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := ensureSightingsTable(db); err != nil {
			return errors.Wrap(err, "create sightings table")
		}
	}

	var metrics *ingest.Metrics
	if opts.metricsAddr != "" {
		metrics = ingest.NewMetrics(prometheus.DefaultRegisterer)
		go serveMetrics(opts.metricsAddr)
	}

	monitor, err := NewMonitor(client, monitorConfig{
		reconnectEvery: opts.reconnectEvery,
		recvTimeout:    opts.recvTimeout,
		metrics:        metrics,
		db:             db,
		dumpEvents:     opts.dump,
	})
	if err != nil {
		return err
	}

	return monitor.Run(ctx)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	log.Println("Metrics", "serving on "+addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Println("Metrics (R)", err)
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Fatal(err)
	}
}

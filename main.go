package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/golang/glog"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mqy/pairchat/auth"
	"github.com/mqy/pairchat/journal"
	"github.com/mqy/pairchat/presence"
	"github.com/mqy/pairchat/router"
	"github.com/mqy/pairchat/server"
	"github.com/mqy/pairchat/store"
	"github.com/mqy/pairchat/ws"
)

const (
	storeMysql  = "mysql"
	storeSqlite = "sqlite"
	storeBolt   = "bolt"

	journalQueueSize = 4096
	journalMaxBytes  = 4096
)

var (
	flagAddr    = flag.String("addr", "127.0.0.1:8000", "server address, ip:port")
	flagPidFile = flag.String("pid-file", "pairchat.pid", "pid file")

	flagStore      = flag.String("store", storeSqlite, "message store: mysql, sqlite or bolt")
	flagMysqlDsn   = flag.String("mysql-dsn", "root:@tcp(127.0.0.1:3306)/pairchat?charset=utf8mb4&collation=utf8mb4_unicode_ci", "mysql server dsn")
	flagSqlitePath = flag.String("sqlite-path", "pairchat.db", "sqlite database file")
	flagBoltPath   = flag.String("bolt-path", "pairchat.bolt", "bbolt database file")

	flagJournal      = flag.Bool("journal", false, "publish message events to kafka")
	flagKafkaBrokers = flag.String("kafka-brokers", "127.0.0.1:9092", "comma separated kafka brokers")
	flagKafkaTopic   = flag.String("kafka-topic", "pairchat-events", "kafka topic of the event journal")

	flagJwtSecret = flag.String("jwt-secret", "", "HS256 secret of bearer tokens; empty trusts the x-uid cookie (dev only)")

	flagMaxPayloadBytes = flag.Int("max-payload-bytes", router.DefaultMaxPayloadBytes, "max encrypted payload size")
	flagFetchLimit      = flag.Int("fetch-limit", router.DefaultFetchLimit, "default number of messages per conversation fetch")

	flagPprofDir       = flag.String("pprof-dir", "pprof", "dir to save pprof data files")
	flagDisableMetrics = flag.Bool("disable-metrics", false, "disable prometheus metrics")
)

func main() {
	flag.Parse()

	// NOTE: os.Exit() does not call defers.
	os.Exit(run())
}

func run() int {
	defer glog.Flush()

	if v := validateFlags(); v > 0 {
		return v
	}

	pid := os.Getpid()

	if err := savePid(*flagPidFile, pid); err != nil {
		return errorf("pid file: %v", err)
	}
	defer func() {
		_ = os.Remove(*flagPidFile)
	}()

	pprofDir := filepath.Join(*flagPprofDir, strconv.Itoa(pid))
	if err := os.MkdirAll(pprofDir, 0750); err != nil {
		return errorf("--pprof-dir: error create dir `%s`: %v", pprofDir, err)
	}
	defer func() {
		_ = os.RemoveAll(pprofDir)
	}()

	st, err := openStore()
	if err != nil {
		return errorf("open store: %v", err)
	}

	glog.Info("pairchat server is starting")

	var loops []server.Loop
	jn := journal.Nop
	if *flagJournal {
		k := journal.NewKafka(journal.NewKafkaWriter(strings.Split(*flagKafkaBrokers, ","), *flagKafkaTopic),
			journalQueueSize, journalMaxBytes)
		jn = k
		loops = append(loops, k)
	}

	registry := presence.NewRegistry(st)
	rt := router.New(st, st, registry, jn, router.Config{
		MaxPayloadBytes: *flagMaxPayloadBytes,
		FetchLimit:      *flagFetchLimit,
	})
	hub := ws.NewHub(newAuthClient(), st, rt, registry, *flagMaxPayloadBytes)
	loops = append(loops, hub)

	mux := http.NewServeMux()
	if !*flagDisableMetrics {
		mux.Handle("/metrics", promhttp.HandlerFor(
			prometheus.DefaultGatherer,
			promhttp.HandlerOpts{},
		))
	}
	mux.Handle("/ws", hub)

	srv := server.New(&server.Config{Addr: *flagAddr, Handler: mux, Loops: loops})
	if _, err := srv.Listen(); err != nil {
		_ = st.Close()
		return errorf("%v", err)
	}

	stopNotifyChan := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go srv.Run(ctx, stopNotifyChan)

	glog.Infof("`kill -USR1 %d` to dump goroutines; `kill -USR2 %d` to start/stop profiler; `CTRL+c` or `kill %d` to graceful stop", pid, pid, pid)

	var stopping bool

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGUSR1, syscall.SIGUSR2, syscall.SIGTERM, syscall.SIGINT)

	var prof *Profiler

	for sig := range sigCh {
		switch sig {
		case syscall.SIGUSR1:
			dumpGoroutines(pprofDir)
		case syscall.SIGUSR2:
			if prof == nil {
				prof = StartProfiler(pprofDir)
			} else {
				prof.Stop()
				prof = nil
			}
		case syscall.SIGTERM, syscall.SIGINT:
			if stopping {
				glog.Infof("pairchat server is already in stop")
				continue
			}
			stopping = true
			glog.Infof("received signal `%s` stopping", sig.String())
			go func() {
				if prof != nil {
					prof.Stop()
				}
				cancel()
				<-stopNotifyChan
				close(stopNotifyChan)
				if err := st.Close(); err != nil {
					glog.Errorf("close store: %v", err)
				}
				signal.Stop(sigCh)
				close(sigCh)
			}()
		}
	}

	glog.Info("pairchat server exited")
	return 0
}

func openStore() (store.IStore, error) {
	switch *flagStore {
	case storeBolt:
		s, err := store.OpenBoltStore(*flagBoltPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case storeMysql, storeSqlite:
	default:
		return nil, fmt.Errorf("unknown store %q", *flagStore)
	}

	driver, dsn := store.DialectMysql, *flagMysqlDsn
	if *flagStore == storeSqlite {
		driver, dsn = store.DialectSqlite, *flagSqlitePath+"?_busy_timeout=5000&_journal_mode=WAL"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open error, driver: %s, err: %w", driver, err)
	}
	if driver == store.DialectSqlite {
		// one writer at a time, sqlite locks the whole file anyway
		db.SetMaxOpenConns(1)
	} else {
		db.SetConnMaxLifetime(time.Minute * 3)
		db.SetMaxOpenConns(100)
		db.SetMaxIdleConns(1)
	}

	s, err := store.NewSQLStore(db, driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func newAuthClient() auth.Client {
	if *flagJwtSecret != "" {
		return auth.NewTokenClient([]byte(*flagJwtSecret))
	}
	glog.Warning("--jwt-secret is empty, trusting the x-uid cookie")
	return &auth.MockClient{}
}

func validateFlags() int {
	if *flagAddr == "" {
		return errorf("--addr is required")
	}
	if err := validateAddr(*flagAddr); err != nil {
		return errorf("--addr: %v", err)
	}
	if *flagPidFile == "" {
		return errorf("--pid-file is required")
	}
	if *flagPprofDir == "" {
		return errorf("--pprof-dir is required")
	}

	switch *flagStore {
	case storeMysql:
		if *flagMysqlDsn == "" {
			return errorf("--mysql-dsn is required")
		}
	case storeSqlite:
		if *flagSqlitePath == "" {
			return errorf("--sqlite-path is required")
		}
	case storeBolt:
		if *flagBoltPath == "" {
			return errorf("--bolt-path is required")
		}
	default:
		return errorf("--store MUST be one of %s, %s, %s", storeMysql, storeSqlite, storeBolt)
	}

	if *flagJournal {
		if *flagKafkaBrokers == "" {
			return errorf("--kafka-brokers is required")
		}
		if *flagKafkaTopic == "" {
			return errorf("--kafka-topic is required")
		}
	}

	if *flagMaxPayloadBytes <= 0 {
		return errorf("--max-payload-bytes is required positive integer")
	}
	if *flagFetchLimit <= 0 || *flagFetchLimit > router.MaxFetchLimit {
		return errorf("--fetch-limit MUST in range [1, %d]", router.MaxFetchLimit)
	}

	return 0
}

func validateAddr(s string) error {
	ips, _, err := net.SplitHostPort(s)
	if err != nil {
		return fmt.Errorf("error split host port from `%s`: %v", s, err)
	}
	ip := net.ParseIP(ips)
	if ip == nil {
		return fmt.Errorf("error parse IP from host `%s`", ips)
	}
	if !ip.IsLoopback() && !ip.IsPrivate() {
		return fmt.Errorf("`%s` is not loopback or private address", ips)
	}
	return nil
}

func errorf(fmt string, args ...interface{}) int {
	glog.Errorf(fmt, args...)
	return 1
}

func savePid(name string, pid int) error {
	if _, err := os.Stat(name); err == nil {
		// Ok, see, if we have a stale lockfile here
		content, err := os.ReadFile(name)
		if err != nil {
			return err
		}
		if len(content) > 0 {
			oldPid, err := strconv.Atoi(strings.TrimSpace(string(content)))
			if err != nil {
				return err
			}

			proc, err := os.FindProcess(oldPid)
			if err != nil {
				return err
			}
			defer proc.Release()

			if err := proc.Signal(syscall.Signal(0)); err == nil {
				return fmt.Errorf("pid file: exists with pid: %d, the process is running", oldPid)
			}
			glog.Infof("pid file exists with pid: %d, but is not running", oldPid)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("pid file: stat error: %v", err)
	}

	if err := os.WriteFile(name, []byte(strconv.Itoa(pid)), 0600); err != nil {
		return fmt.Errorf("pid file: write error: %v", err)
	}
	glog.Infof("pid file: write pid done")
	return nil
}

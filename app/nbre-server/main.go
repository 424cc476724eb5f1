package main

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf"
	"github.com/nebulasio/go-nbre/api"
	"github.com/nebulasio/go-nbre/business/domain/chainsync"
	"github.com/nebulasio/go-nbre/business/domain/rank"
	"github.com/nebulasio/go-nbre/business/domain/reward"
	"github.com/nebulasio/go-nbre/business/domain/window"
	"github.com/nebulasio/go-nbre/entities"
	"github.com/nebulasio/go-nbre/external/elastic"
	"github.com/nebulasio/go-nbre/external/fixture"
	"github.com/nebulasio/go-nbre/external/kafka"
	"github.com/nebulasio/go-nbre/external/neb"
	"github.com/nebulasio/go-nbre/infrastructure/store/pebbledb"
	"github.com/nebulasio/go-nbre/metrics"
	"github.com/nebulasio/go-nbre/pkg/dfloat"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kprom"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const prefix = "NBRE"

type config struct {
	Server struct {
		HttpHost         string `conf:"default:0.0.0.0:8000"`
		MetricsHttpHost  string `conf:"default:0.0.0.0:9999"`
		MetricsNamespace string `conf:"default:nbre"`
	}
	Store struct {
		Folder string `conf:"default:store"`
	}
	Source struct {
		// live reads from the node and the transaction index, fixture from a json file
		Mode        string `conf:"default:live"`
		FixturePath string `conf:"default:fixture.json"`
	}
	Elastic struct {
		Addresses []string      `conf:"default:http://localhost:9200"`
		Index     string        `conf:"default:nebulas-transactions"`
		Timeout   time.Duration `conf:"default:30s"`
	}
	Node struct {
		Url           string        `conf:"default:http://localhost:8685"`
		Timeout       time.Duration `conf:"default:10s"`
		CacheTtl      time.Duration `conf:"default:1h"`
		CacheCapacity uint64        `conf:"default:100000"`
	}
	Kafka struct {
		Enabled          bool     `conf:"default:false"`
		BootstrapServers []string `conf:"default:localhost:9092"`
		RankTopic        string   `conf:"default:nbre-nr"`
		RewardTopic      string   `conf:"default:nbre-dip"`
	}
	Rank struct {
		BlockInterval     uint64 `conf:"default:128"`
		TopK              int    `conf:"default:3"`
		Version           uint64 `conf:"default:2"`
		NormalizationUnit string `conf:"default:1000000000000000000"`
		A                 string `conf:"default:100"`
		B                 string `conf:"default:2"`
		C                 string `conf:"default:6"`
		D                 string `conf:"default:9"`
		Theta             string `conf:"default:1"`
		Mu                string `conf:"default:1"`
		Lambda            string `conf:"default:2"`
	}
	Dip struct {
		StartBlock      uint64 `conf:"default:1"`
		BlockInterval   uint64 `conf:"default:5760"`
		RewardAddress   string `conf:"required"`
		CoinbaseAddress string `conf:"required"`
		Alpha           string `conf:"default:8"`
		Beta            string `conf:"default:1"`
		RewardPool      string `conf:"default:1000000000000000000000"`
		Version         uint64 `conf:"default:2"`
		NrVersion       uint64 `conf:"default:2"`
	}
	Workers struct {
		Count     int `conf:"default:4"`
		QueueSize int `conf:"default:64"`
	}
	Sync struct {
		CheckInterval time.Duration `conf:"default:15s"`
	}
}

// source bundles the providers the engines read from.
type source interface {
	ReadTransactions(ctx context.Context, startHeight, endHeight uint64) ([]entities.TransactionInfo, error)
	LatestHeight(ctx context.Context) (uint64, error)
	GetBalance(ctx context.Context, address entities.Address, height uint64) (*big.Int, error)
	Deployer(ctx context.Context, contract entities.Address) (entities.Address, error)
	GetChainStatus(ctx context.Context) (entities.ChainStatus, error)
	TailHeight(ctx context.Context) (uint64, error)
}

type liveSource struct {
	*elastic.Client
	*neb.CachingReader
	node *neb.Client
}

func (ls *liveSource) GetChainStatus(ctx context.Context) (entities.ChainStatus, error) {
	return ls.node.GetChainStatus(ctx)
}

func (ls *liveSource) TailHeight(ctx context.Context) (uint64, error) {
	return ls.node.TailHeight(ctx)
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("main: exited with error: %s", err.Error())
	}
}

func run() error {
	zapConfig := zap.NewProductionConfig()
	// this is just for sugar, to display a readable date instead of an epoch time
	zapConfig.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.DateTime)

	logger, err := zapConfig.Build()
	if err != nil {
		return fmt.Errorf("creating logger: %v", err)
	}
	defer logger.Sync()
	sLogger := logger.Sugar()

	var cfg config
	if err := conf.Parse(os.Args[1:], prefix, &cfg); err != nil {
		switch err {
		case conf.ErrHelpWanted:
			usage, err := conf.Usage(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config usage: %v", err)
			}
			fmt.Println(usage)
			return nil
		case conf.ErrVersionWanted:
			version, err := conf.VersionString(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config version: %v", err)
			}
			fmt.Println(version)
			return nil
		}
		return fmt.Errorf("parsing config: %v", err)
	}

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %v", err)
	}
	log.Printf("main: Config :\n%v\n", out)

	rankConfig, err := rankConfigFrom(cfg)
	if err != nil {
		return errors.Wrap(err, "reading rank config")
	}
	dipParams, err := dipParamsFrom(cfg)
	if err != nil {
		return errors.Wrap(err, "reading dip config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := pebbledb.NewStore(cfg.Store.Folder)
	if err != nil {
		return errors.Wrap(err, "creating store")
	}
	defer store.Close()

	src, err := newSource(ctx, cfg, sLogger)
	if err != nil {
		return errors.Wrap(err, "creating source")
	}

	m := metrics.NewMetrics(cfg.Server.MetricsNamespace)

	var rankPublisher rank.ResultPublisher = kafka.NopPublisher{}
	var rewardPublisher reward.ResultPublisher = kafka.NopPublisher{}
	if cfg.Kafka.Enabled {
		kafkaMetrics := kprom.NewMetrics(cfg.Server.MetricsNamespace,
			kprom.Registerer(prometheus.DefaultRegisterer),
			kprom.Gatherer(prometheus.DefaultGatherer))
		kcl, err := kgo.NewClient(
			kgo.WithHooks(kafkaMetrics),
			kgo.SeedBrokers(cfg.Kafka.BootstrapServers...),
			kgo.ProducerBatchCompression(kgo.ZstdCompression()),
		)
		if err != nil {
			return errors.Wrap(err, "creating kafka client")
		}
		defer kcl.Close()
		kafkaClient := kafka.NewClient(kcl, kafka.Topics{Rank: cfg.Kafka.RankTopic, Reward: cfg.Kafka.RewardTopic}, m, sLogger)
		rankPublisher, rewardPublisher = kafkaClient, kafkaClient
	} else {
		sLogger.Warn("Kafka publishing disabled")
	}

	pool := window.NewPool(cfg.Workers.Count, cfg.Workers.QueueSize, sLogger)

	rankEngine := rank.NewEngine(src, src, rankConfig, sLogger)
	rankHandler := rank.NewHandler(rankEngine, pool, src, store, rankPublisher, m, sLogger)
	rewardEngine := reward.NewEngine(rankHandler, src, src, dipParams, sLogger)
	rewardHandler := reward.NewHandler(rewardEngine, pool, dipParams, store, rewardPublisher, m, sLogger)

	if err := restore(store, rankHandler, rewardHandler, sLogger); err != nil {
		return errors.Wrap(err, "restoring results")
	}

	poolErrors := make(chan error, 1)
	go func() {
		poolErrors <- pool.Start(ctx)
	}()

	if cfg.Sync.CheckInterval <= 0 {
		return errors.Errorf("invalid check interval [%s]", cfg.Sync.CheckInterval)
	}
	processor := chainsync.NewProcessor(src, src, rewardHandler, store, m, cfg.Sync.CheckInterval, sLogger)
	syncErrors := make(chan error, 1)
	go func() {
		syncErrors <- processor.Synchronize(ctx)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	handler := api.NewHandler(processor, rankHandler, rewardHandler, cfg.Rank.Version, sLogger)
	serverErrors := make(chan error, 1)
	go func() {
		sLogger.Infow("Starting server", "addr", cfg.Server.HttpHost)
		serverErrors <- http.ListenAndServe(cfg.Server.HttpHost, handler.Routes())
	}()

	metricsErrors := make(chan error, 1)
	go func() {
		sLogger.Infow("Starting metrics server", "addr", cfg.Server.MetricsHttpHost)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsErrors <- http.ListenAndServe(cfg.Server.MetricsHttpHost, mux)
	}()

	sLogger.Info("Service started")

	for {
		select {
		case <-shutdown:
			sLogger.Info("Received shutdown signal, shutting down...")
			return nil
		case err := <-poolErrors:
			return errors.Wrap(err, "worker pool stopped")
		case err := <-syncErrors:
			return errors.Wrap(err, "synchronization stopped")
		case err := <-serverErrors:
			return errors.Wrap(err, "server error")
		case err := <-metricsErrors:
			return errors.Wrap(err, "metrics server error")
		}
	}
}

func newSource(ctx context.Context, cfg config, logger *zap.SugaredLogger) (source, error) {
	switch cfg.Source.Mode {
	case "fixture":
		logger.Infow("Reading chain data from fixture", "path", cfg.Source.FixturePath)
		provider, err := fixture.Load(cfg.Source.FixturePath)
		if err != nil {
			return nil, err
		}
		return provider, nil
	case "live":
		index, err := elastic.NewClient(cfg.Elastic.Addresses, cfg.Elastic.Index, cfg.Elastic.Timeout, logger)
		if err != nil {
			return nil, errors.Wrap(err, "creating elastic client")
		}
		node := neb.NewClient(cfg.Node.Url, cfg.Node.Timeout)
		reader := neb.NewCachingReader(node, cfg.Node.CacheTtl, cfg.Node.CacheCapacity)
		go reader.Start(ctx)
		return &liveSource{Client: index, CachingReader: reader, node: node}, nil
	default:
		return nil, errors.Errorf("unknown source mode [%s]", cfg.Source.Mode)
	}
}

func restore(store *pebbledb.Store, ranks *rank.Handler, rewards *reward.Handler, logger *zap.SugaredLogger) error {
	rankResults, err := store.GetRankResults()
	if err != nil {
		return errors.Wrap(err, "loading rank results")
	}
	ranks.Restore(rankResults)

	rewardResults, err := store.GetRewardResults()
	if err != nil {
		return errors.Wrap(err, "loading reward results")
	}
	rewards.Restore(rewardResults)

	logger.Infow("Restored results", "nr", len(rankResults), "dip", len(rewardResults))
	return nil
}

func rankConfigFrom(cfg config) (rank.Config, error) {
	values, err := parseFloats(map[string]string{
		"unit":   cfg.Rank.NormalizationUnit,
		"a":      cfg.Rank.A,
		"b":      cfg.Rank.B,
		"c":      cfg.Rank.C,
		"d":      cfg.Rank.D,
		"theta":  cfg.Rank.Theta,
		"mu":     cfg.Rank.Mu,
		"lambda": cfg.Rank.Lambda,
	})
	if err != nil {
		return rank.Config{}, err
	}
	if _, err := rank.ScoreFor(cfg.Rank.Version); err != nil {
		return rank.Config{}, err
	}

	return rank.Config{
		BlockInterval:     cfg.Rank.BlockInterval,
		TopK:              cfg.Rank.TopK,
		NormalizationUnit: values["unit"],
		Params: entities.RankParams{
			A:      values["a"],
			B:      values["b"],
			C:      values["c"],
			D:      values["d"],
			Theta:  values["theta"],
			Mu:     values["mu"],
			Lambda: values["lambda"],
		},
	}, nil
}

func dipParamsFrom(cfg config) (entities.DIPParams, error) {
	values, err := parseFloats(map[string]string{
		"alpha": cfg.Dip.Alpha,
		"beta":  cfg.Dip.Beta,
	})
	if err != nil {
		return entities.DIPParams{}, err
	}
	rewardAddress, err := entities.ParseAddress(cfg.Dip.RewardAddress)
	if err != nil {
		return entities.DIPParams{}, errors.Wrap(err, "reward address")
	}
	coinbase, err := entities.ParseAddress(cfg.Dip.CoinbaseAddress)
	if err != nil {
		return entities.DIPParams{}, errors.Wrap(err, "coinbase address")
	}
	pool, err := entities.ParseWei(cfg.Dip.RewardPool)
	if err != nil {
		return entities.DIPParams{}, errors.Wrap(err, "reward pool")
	}
	if _, err := reward.VoteFor(cfg.Dip.Version); err != nil {
		return entities.DIPParams{}, err
	}

	return entities.DIPParams{
		StartBlock:      cfg.Dip.StartBlock,
		BlockInterval:   cfg.Dip.BlockInterval,
		RewardAddress:   rewardAddress,
		CoinbaseAddress: coinbase,
		Alpha:           values["alpha"],
		Beta:            values["beta"],
		RewardPool:      pool,
		Version:         cfg.Dip.Version,
		NRVersion:       cfg.Dip.NrVersion,
	}, nil
}

func parseFloats(raw map[string]string) (map[string]dfloat.Float, error) {
	values := make(map[string]dfloat.Float, len(raw))
	for name, s := range raw {
		v, err := dfloat.Parse(s)
		if err != nil {
			return nil, errors.Wrapf(err, "parameter [%s]", name)
		}
		values[name] = v
	}
	return values, nil
}

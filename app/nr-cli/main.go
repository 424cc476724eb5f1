package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ardanlabs/conf"
	"github.com/nebulasio/go-nbre/business/domain/rank"
	"github.com/nebulasio/go-nbre/business/domain/reward"
	"github.com/nebulasio/go-nbre/entities"
	"github.com/nebulasio/go-nbre/external/elastic"
	"github.com/nebulasio/go-nbre/external/fixture"
	"github.com/nebulasio/go-nbre/pkg/dfloat"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const prefix = "NBRE_CLI"

type config struct {
	// nr prints ranks, dip prints rewards, index loads the fixture transactions into elastic
	Mode        string `conf:"default:nr"`
	FixturePath string `conf:"default:fixture.json"`
	Start       uint64 `conf:"default:1"`
	End         uint64 `conf:"optional"`
	Rank        struct {
		BlockInterval uint64 `conf:"default:128"`
		TopK          int    `conf:"default:3"`
		Version       uint64 `conf:"default:2"`
	}
	Dip struct {
		CoinbaseAddress string `conf:"optional"`
		Alpha           string `conf:"default:8"`
		Beta            string `conf:"default:1"`
		RewardPool      string `conf:"default:1000000000000000000000"`
		Version         uint64 `conf:"default:2"`
	}
	Elastic struct {
		Addresses []string      `conf:"default:http://localhost:9200"`
		Index     string        `conf:"default:nebulas-transactions"`
		Timeout   time.Duration `conf:"default:30s"`
	}
}

// engineRanker ranks in place, without a result cache.
type engineRanker struct {
	engine *rank.Engine
}

func (r engineRanker) Scores(ctx context.Context, start, end, version uint64) ([]entities.NRInfo, error) {
	return r.engine.Compute(ctx, start, end, version)
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("main: exited with error: %s", err.Error())
	}
}

func run() error {
	logger, err := zap.NewDevelopment()
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

	provider, err := fixture.Load(cfg.FixturePath)
	if err != nil {
		return errors.Wrap(err, "loading fixture")
	}

	ctx := context.Background()
	end := cfg.End
	if end == 0 {
		if end, err = provider.TailHeight(ctx); err != nil {
			return errors.Wrap(err, "getting tail height")
		}
	}

	rankConfig := rank.DefaultConfig()
	rankConfig.BlockInterval = cfg.Rank.BlockInterval
	rankConfig.TopK = cfg.Rank.TopK
	engine := rank.NewEngine(provider, provider, rankConfig, sLogger)
	meta := &entities.ResultMeta{StartHeight: cfg.Start, EndHeight: end}

	switch cfg.Mode {
	case "nr":
		nrs, err := engine.Compute(ctx, cfg.Start, end, cfg.Rank.Version)
		if err != nil {
			return errors.Wrap(err, "computing nr")
		}
		meta.Version = cfg.Rank.Version
		return printJSON(entities.NRResult{NRs: nrs, Meta: meta})

	case "dip":
		params, err := dipParamsFrom(cfg, end)
		if err != nil {
			return errors.Wrap(err, "reading dip config")
		}
		dips, err := reward.NewEngine(engineRanker{engine: engine}, provider, provider, params, sLogger).Compute(ctx, cfg.Start, end)
		if err != nil {
			return errors.Wrap(err, "computing dip")
		}
		meta.Version = cfg.Dip.Version
		return printJSON(entities.DIPResult{Dips: dips, Meta: meta})

	case "index":
		txs, err := provider.ReadTransactions(ctx, cfg.Start, end)
		if err != nil {
			return errors.Wrap(err, "reading fixture transactions")
		}
		client, err := elastic.NewClient(cfg.Elastic.Addresses, cfg.Elastic.Index, cfg.Elastic.Timeout, sLogger)
		if err != nil {
			return errors.Wrap(err, "creating elastic client")
		}
		if err := client.IndexTransactions(ctx, txs); err != nil {
			return errors.Wrap(err, "indexing transactions")
		}
		sLogger.Infow("Indexed transactions", "count", len(txs), "start", cfg.Start, "end", end)
		return nil

	default:
		return errors.Errorf("unknown mode [%s]", cfg.Mode)
	}
}

func dipParamsFrom(cfg config, end uint64) (entities.DIPParams, error) {
	alpha, err := dfloat.Parse(cfg.Dip.Alpha)
	if err != nil {
		return entities.DIPParams{}, errors.Wrap(err, "alpha")
	}
	beta, err := dfloat.Parse(cfg.Dip.Beta)
	if err != nil {
		return entities.DIPParams{}, errors.Wrap(err, "beta")
	}
	pool, err := entities.ParseWei(cfg.Dip.RewardPool)
	if err != nil {
		return entities.DIPParams{}, errors.Wrap(err, "reward pool")
	}

	var coinbase entities.Address
	if cfg.Dip.CoinbaseAddress != "" {
		if coinbase, err = entities.ParseAddress(cfg.Dip.CoinbaseAddress); err != nil {
			return entities.DIPParams{}, errors.Wrap(err, "coinbase address")
		}
	}

	return entities.DIPParams{
		StartBlock:      cfg.Start,
		BlockInterval:   end - cfg.Start + 1,
		CoinbaseAddress: coinbase,
		Alpha:           alpha,
		Beta:            beta,
		RewardPool:      pool,
		Version:         cfg.Dip.Version,
		NRVersion:       cfg.Rank.Version,
	}, nil
}

func printJSON(result any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// Package main implements the mela daemon. It wires the persistence, the
// sequencer and the batch committer around the counter application and runs
// until interrupted.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.dedis.ch/mela"
	"go.dedis.ch/mela/contracts/counter"
	"go.dedis.ch/mela/core/action"
	"go.dedis.ch/mela/core/action/pool/mem"
	"go.dedis.ch/mela/core/batch"
	"go.dedis.ch/mela/core/sequencer"
	"go.dedis.ch/mela/core/sequencer/blockstore"
	"go.dedis.ch/mela/core/sequencer/types"
	"go.dedis.ch/mela/core/state"
	"go.dedis.ch/mela/core/store/kv"
	"go.dedis.ch/mela/core/transition"
	"go.dedis.ch/mela/crypto/common"
	"go.dedis.ch/mela/serde/json"
	"golang.org/x/xerrors"
)

func main() {
	app := &cli.App{
		Name:  "mela",
		Usage: "deterministic state machine sequencer",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "blocksize",
				Usage: "maximum number of actions per block",
				Value: 10,
			},
			&cli.DurationFlag{
				Name:  "blocktime",
				Usage: "maximum time before a block is sealed",
				Value: 5 * time.Second,
			},
			&cli.IntFlag{
				Name:  "batchsize",
				Usage: "number of blocks per settlement batch",
				Value: 4,
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "path of the database file",
				Value: "mela.db",
			},
			&cli.StringFlag{
				Name:  "domain",
				Usage: "hex-encoded domain salt of the deployment",
			},
			&cli.StringFlag{
				Name:  "metrics",
				Usage: "address of the Prometheus endpoint, disabled when empty",
			},
		},
		Action: run,
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cliCtx *cli.Context) error {
	salt, err := hex.DecodeString(cliCtx.String("domain"))
	if err != nil {
		return xerrors.Errorf("couldn't decode domain salt: %v", err)
	}

	domain := action.Domain{
		Name:    "mela",
		Version: "v1",
		Salt:    salt,
	}

	db, err := kv.New(cliCtx.String("db"))
	if err != nil {
		return xerrors.Errorf("couldn't open db: %v", err)
	}

	defer db.Close()

	reg := transition.NewRegistry()
	counter.RegisterTransitions(reg)

	fac := action.NewFactory(domain,
		common.NewPublicKeyFactory(), common.NewSignatureFactory())

	blocks := blockstore.NewDiskStore(db, json.NewContext(), types.NewBlockFactory(fac))

	err = blocks.Load()
	if err != nil {
		return xerrors.Errorf("couldn't load blocks: %v", err)
	}

	value, err := blocks.LoadState()
	if err != nil {
		return xerrors.Errorf("couldn't load state: %v", err)
	}

	if value == nil {
		value = counter.Genesis()
	}

	srvc, err := sequencer.NewService(sequencer.ServiceParam{
		Config: sequencer.Config{
			BlockSize: cliCtx.Int("blocksize"),
			BlockTime: cliCtx.Duration("blocktime"),
			Domain:    domain,
		},
		Pool:      mem.NewPool(),
		Registry:  reg,
		Container: state.NewContainer(value),
		Blocks:    blocks,
		States:    blocks.StateAdapter(),
	})
	if err != nil {
		return xerrors.Errorf("couldn't create sequencer: %v", err)
	}

	committer, err := batch.NewCommitter(batch.Config{
		Threshold: cliCtx.Int("batchsize"),
	}, logRelayer{})
	if err != nil {
		return xerrors.Errorf("couldn't create committer: %v", err)
	}

	err = srvc.Listen()
	if err != nil {
		return xerrors.Errorf("couldn't start sequencer: %v", err)
	}

	err = committer.Listen(srvc)
	if err != nil {
		return xerrors.Errorf("couldn't start committer: %v", err)
	}

	addr := cliCtx.String("metrics")
	if addr != "" {
		for _, c := range mela.PromCollectors {
			err = prometheus.DefaultRegisterer.Register(c)
			if err != nil {
				return xerrors.Errorf("couldn't register collector: %v", err)
			}
		}

		go func() {
			err := http.ListenAndServe(addr, promhttp.Handler())
			if err != nil {
				mela.Logger.Err(err).Msg("metrics endpoint failed")
			}
		}()

		mela.Logger.Info().Str("addr", addr).Msg("metrics endpoint registered")
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	<-sigs

	mela.Logger.Info().Msg("shutting down")

	err = committer.Close()
	if err != nil {
		return xerrors.Errorf("couldn't stop committer: %v", err)
	}

	err = srvc.Close()
	if err != nil {
		return xerrors.Errorf("couldn't stop sequencer: %v", err)
	}

	return nil
}

// logRelayer writes the settlement commitments to the logs. It stands for the
// settlement layer when none is deployed.
//
// - implements batch.Relayer
type logRelayer struct{}

func (logRelayer) Relay(_ context.Context, b batch.Batch) error {
	mela.Logger.Info().
		Str("batch", b.GetID()).
		Stringer("commitment", b.GetCommitment()).
		Int("blocks", len(b.GetBlocks())).
		Msg("batch settled")

	return nil
}

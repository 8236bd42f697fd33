package main

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/kjk/recstore/alert"
	"github.com/kjk/recstore/log"
	"github.com/kjk/recstore/metrics"
	"github.com/kjk/recstore/recstore"
)

func init() {
	cmdMain.AddCommand(cmdTorture)

	f := cmdTorture.Flags()
	f.IntVarP(&flagTorture.Iterations, "iterations", "n", 10000, "Number of open / verify / write / close cycles")
	f.StringVar(&flagTorture.Syncer, "syncer", "file", "How to make writes durable: file, data, write_through or buffered")
	f.Int64Var(&flagTorture.Seed, "seed", 0, "Seed for random records, 0 for time-based")
	f.StringVar(&flagTorture.MetricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address e.g. localhost:9090")
}

var flagTorture struct {
	Iterations  int
	Syncer      string
	Seed        int64
	MetricsAddr string
}

var errCorruptAtLoad = errors.New("corrupt at load")
var errMismatch = errors.New("loaded record doesn't match last written")

var cmdTorture = &cobra.Command{
	Use:   "torture <file>",
	Short: "Repeatedly open, verify last record, write a random record and close. Kill it at random times to test crash safety",
	Args:  cobra.ExactArgs(1),
	RunE:  runTortureCmd,
}

type tortureConfig struct {
	Path       string
	Iterations int
	Syncer     string
	Rand       *rand.Rand
	Observers  []recstore.Observer
	Out        io.Writer
}

type tortureResult struct {
	Iterations int
	Written    int
	Expected   *point
	Loaded     *point
}

func runTortureCmd(cmd *cobra.Command, args []string) error {
	seed := flagTorture.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	c := &tortureConfig{
		Path:       args[0],
		Iterations: flagTorture.Iterations,
		Syncer:     flagTorture.Syncer,
		Rand:       rand.New(rand.NewSource(seed)),
		Out:        cmd.OutOrStdout(),
	}

	collector := metrics.NewCollector("recstore")
	c.Observers = append(c.Observers, collector)
	if flagTorture.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		if err := collector.Register(reg); err != nil {
			return err
		}
		go func() {
			h := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
			err := http.ListenAndServe(flagTorture.MetricsAddr, h)
			log.IfErrf(err)
		}()
	}
	if ac := alertConfig(); ac != nil {
		n, err := alert.New(ac)
		if err != nil {
			return err
		}
		defer n.Stop()
		c.Observers = append(c.Observers, n)
	}

	res, err := torture(c)
	fmt.Fprintf(c.Out, "seed: %d, iterations: %d, written: %d\n", seed, res.Iterations, res.Written)
	return err
}

// torture verifies that the last record read back after re-opening is
// the record written before closing
func torture(c *tortureConfig) (*tortureResult, error) {
	res := &tortureResult{}
	var expected *point
	for res.Iterations < c.Iterations {
		res.Iterations++
		log.Verbosef("Test: %d\n", res.Iterations)

		syncer, err := syncerByName(c.Syncer)
		if err != nil {
			return res, err
		}
		opts := &recstore.Options{
			Syncer:    syncer,
			Observers: c.Observers,
		}
		s := recstore.Open[point](c.Path, opts)
		if s.Status().IsError() {
			return res, fmt.Errorf("open '%s' failed with %s: %w", c.Path, s.Status(), s.Err())
		}
		if s.RecordCount() > 0 {
			if s.WasCorruptAtLoad() {
				_ = s.Close()
				fmt.Fprintf(c.Out, "Corrupt At Load\n")
				return res, errCorruptAtLoad
			}
			loaded, st := s.LoadLastRecord()
			if st == recstore.ReadOkay && expected != nil && *loaded != *expected {
				_ = s.Close()
				res.Expected = expected
				res.Loaded = loaded
				fmt.Fprintf(c.Out, "Expected: %s\nLoaded: %s\n", expected, loaded)
				log.Logf("torture: mismatch after %d iterations:\n%s", res.Iterations, spew.Sdump(res))
				return res, errMismatch
			}
		}

		expected = &point{
			X: c.Rand.Uint32(),
			Y: c.Rand.Uint32(),
			Z: c.Rand.Uint32(),
		}
		err = s.Write(expected)
		cerr := s.Close()
		if err != nil {
			return res, err
		}
		if cerr != nil {
			return res, cerr
		}
		res.Written++
	}
	return res, nil
}

// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// The stripedict-smoke binary runs the concurrency properties described
// in spec.md §8 (properties 13-15: a churning writer against readers,
// against enumerators, and a quiescent multi-enumerator pass) and reports
// pass/fail, exactly the oracle role spec.md §1 assigns to the source's
// own smoke-test harness. It can also expose a separate, prepopulated
// sample dictionary's stats as Prometheus metrics, and an
// expvar/pprof/loglevel debug endpoint for watching a long run (these run
// for 20s+ apiece) from the outside.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aristanetworks/stripedict/glog"
	"github.com/aristanetworks/stripedict/internal/smoke"
	"github.com/aristanetworks/stripedict/logger"
	"github.com/aristanetworks/stripedict/metrics"
	"github.com/aristanetworks/stripedict/monitor"
	"github.com/aristanetworks/stripedict/sliceutils"
	"github.com/aristanetworks/stripedict/test"

	alog "github.com/aristanetworks/glog"
)

func main() {
	duration := flag.Duration("duration", 20*time.Second,
		"how long to run the reader-churn and enumerator-churn properties")
	passes := flag.Int("quiescent-passes", 20,
		"how many quiescent enumeration passes to run once churn settles")
	metricsAddr := flag.String("metrics-addr", "",
		"if set, serve Prometheus metrics for a sample dictionary at this address")
	debugAddr := flag.String("debug-addr", "",
		"if set, serve /debug (expvar, pprof, loglevel) at this address")
	useGlog := flag.Bool("glog", false, "log through aristanetworks/glog instead of staying quiet")
	flag.Parse()

	var log logger.Logger = logger.NopLogger{}
	if *useGlog {
		log = &glog.Glog{}
	}

	if *debugAddr != "" {
		http.Handle("/debug/loglevel", monitor.NewLoglevelHandler())
		srv := monitor.NewMonitorServer(*debugAddr)
		go srv.Run()
		log.Infof("stripedict-smoke: debug endpoints on %s", *debugAddr)
	}

	if *metricsAddr != "" {
		sample := smoke.NewPrepopulated()
		reg := prometheus.NewRegistry()
		reg.MustRegister(metrics.NewCollector(sample))
		go func() {
			http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			alog.Errorf("metrics server exited: %v", http.ListenAndServe(*metricsAddr, nil))
		}()
		log.Infof("stripedict-smoke: metrics on %s/metrics", *metricsAddr)
	}

	failed := false
	run := func(name string, f func() error) {
		log.Infof("stripedict-smoke: running %s", name)
		if err := f(); err != nil {
			failed = true
			fmt.Fprintf(os.Stderr, "%s: FAIL: %v\n", name, err)
			return
		}
		fmt.Printf("%s: PASS\n", name)
	}

	run("property-13-readers-vs-churn", func() error { return smoke.RunReaders(*duration) })
	run("property-14-enumerators-vs-churn", func() error { return smoke.RunEnumerators(*duration) })
	run("property-15-quiescent-enumerators", func() error { return smoke.RunQuiescentEnumerators(*passes) })

	demoChurnedKeys(log)

	if failed {
		os.Exit(1)
	}
}

// demoChurnedKeys runs a short, paced burst of churn against a fresh
// dictionary and logs the surviving key sample through log (silent unless
// --glog is set), purely to give an operator something concrete to look at
// after the pass/fail lines above. Bursts are paced with an exponential
// backoff, reset once before the first burst so the pauses lengthen from
// burst to burst up to MaxInterval, rather than a fixed sleep, the same
// way gnmireverse/client paces its retry loop.
func demoChurnedKeys(log logger.Logger) {
	d := smoke.NewPrepopulated()
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Millisecond
	bo.MaxInterval = 20 * time.Millisecond
	bo.MaxElapsedTime = 0
	bo.Reset()

	const bursts = 5
	for i := 0; i < bursts; i++ {
		for j := 0; j < smoke.KeySpace/2; j++ {
			k := fmt.Sprintf("%d", smoke.KeySpace/2+j)
			if j%3 == 0 {
				d.Remove(k)
			} else {
				d.Set(k, k)
			}
		}
		time.Sleep(bo.NextBackOff())
	}

	var sample []string
	d.Range(func(k, v string) bool {
		sample = append(sample, k)
		return len(sample) < 10
	})
	log.Infof("stripedict-smoke: %d pairs survived churn; sample: %s",
		d.Count(), test.PrettyPrint(sliceutils.ToAnySlice(sample)))
}

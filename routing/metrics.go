// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package routing

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/platinasystems/ffuroute/route"
)

const (
	metricNamespace = "ffu_routing"

	typeLabel   = "type"
	resultLabel = "result"
)

// Collector exports switch statistics to prometheus; each scrape takes the
// switch lock.
type Collector struct {
	sw *Switch

	routes       *prometheus.Desc
	cascades     *prometheus.Desc
	slices       *prometheus.Desc
	dirty        *prometheus.Desc
	moves        *prometheus.Desc
	repartitions *prometheus.Desc
	commitErrors *prometheus.Desc
	arpRedirects *prometheus.Desc
}

func NewCollector(sw *Switch) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(metricNamespace, "", name),
			help, labels, nil)
	}
	return &Collector{
		sw:           sw,
		routes:       desc("routes", "Installed routes by type.", typeLabel),
		cascades:     desc("cascades", "Route slice cascades by type.", typeLabel),
		slices:       desc("slices_in_use", "TCAM slices holding at least one case."),
		dirty:        desc("dirty_routes", "Routes awaiting hardware commit."),
		moves:        desc("moves_total", "Routes moved to keep prefix order."),
		repartitions: desc("repartitions_total", "Slice range changes by result.", resultLabel),
		commitErrors: desc("commit_errors_total", "Failed hardware commits."),
		arpRedirects: desc("arp_redirects_total", "ARP redirects processed."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.routes,
		c.cascades,
		c.slices,
		c.dirty,
		c.moves,
		c.repartitions,
		c.commitErrors,
		c.arpRedirects,
	} {
		ch <- d
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.sw.Stats()
	for t, n := range st.Routes {
		typ := route.Type(t).String()
		ch <- prometheus.MustNewConstMetric(c.routes, prometheus.GaugeValue,
			float64(n), typ)
		ch <- prometheus.MustNewConstMetric(c.cascades, prometheus.GaugeValue,
			float64(st.Cascades[t]), typ)
	}
	ch <- prometheus.MustNewConstMetric(c.slices, prometheus.GaugeValue,
		float64(st.SlicesInUse))
	ch <- prometheus.MustNewConstMetric(c.dirty, prometheus.GaugeValue,
		float64(st.Dirty))
	ch <- prometheus.MustNewConstMetric(c.moves, prometheus.CounterValue,
		float64(st.Moves))
	for i, n := range st.Repartitions {
		ch <- prometheus.MustNewConstMetric(c.repartitions, prometheus.CounterValue,
			float64(n), repartitionResultNames[i])
	}
	ch <- prometheus.MustNewConstMetric(c.commitErrors, prometheus.CounterValue,
		float64(st.CommitErrors))
	ch <- prometheus.MustNewConstMetric(c.arpRedirects, prometheus.CounterValue,
		float64(st.ArpRedirects))
}

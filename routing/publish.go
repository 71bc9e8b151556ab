// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package routing

import (
	"fmt"

	"github.com/platinasystems/redis/publisher"

	"github.com/platinasystems/ffuroute/route"
)

// Printer publishes one "key: value" line per call.
type Printer interface {
	Print(a ...interface{}) (int, error)
}

var _ Printer = (*publisher.Publisher)(nil)

const publishPrefix = "ffu.routing."

// PublishStats prints the switch statistics as redis keys under
// "ffu.routing.".
func (sw *Switch) PublishStats(p Printer) error {
	st := sw.Stats()
	var kvs [][2]interface{}
	for t := route.Type(0); t < route.NType; t++ {
		kvs = append(kvs,
			[2]interface{}{fmt.Sprint(t, ".routes"), st.Routes[t]},
			[2]interface{}{fmt.Sprint(t, ".cascades"), st.Cascades[t]})
	}
	kvs = append(kvs,
		[2]interface{}{"slices", st.SlicesInUse},
		[2]interface{}{"dirty", st.Dirty},
		[2]interface{}{"phase", st.Phase},
		[2]interface{}{"commit.errors", st.CommitErrors})
	for i, n := range st.Repartitions {
		kvs = append(kvs, [2]interface{}{
			"repartitions." + repartitionResultNames[i], n})
	}
	for _, kv := range kvs {
		if _, err := p.Print(publishPrefix, kv[0], ": ", kv[1]); err != nil {
			return err
		}
	}
	return nil
}

// Publish sends the statistics to the local redis server.
func (sw *Switch) Publish() error {
	pub, err := publisher.New()
	if err != nil {
		return err
	}
	defer pub.Close()
	return sw.PublishStats(pub)
}

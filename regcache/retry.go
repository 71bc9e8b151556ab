// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package regcache

import (
	"time"

	"github.com/jpillora/backoff"
	"github.com/platinasystems/log"
)

// Retry is a Committer that retries a failed commit with exponential
// backoff.  Routing itself never retries; this is for callers that own the
// retry policy.
type Retry struct {
	Committer
	Attempts int
	Backoff  backoff.Backoff

	sleep func(time.Duration)
}

func NewRetry(c Committer, attempts int, min, max time.Duration) *Retry {
	return &Retry{
		Committer: c,
		Attempts:  attempts,
		Backoff: backoff.Backoff{
			Min:    min,
			Max:    max,
			Factor: 2,
		},
		sleep: time.Sleep,
	}
}

// Read passes read back through to a wrapped Cache.
func (r *Retry) Read(address, index uint32) ([]uint32, bool) {
	if c, ok := r.Committer.(*Cache); ok {
		return c.Read(address, index)
	}
	return nil, false
}

func (r *Retry) Commit(b *Batch) (err error) {
	r.Backoff.Reset()
	for i := 1; ; i++ {
		if err = r.Committer.Commit(b); err == nil || i >= r.Attempts {
			return
		}
		d := r.Backoff.Duration()
		log.Print("warn", "regcache: commit attempt ", i, ": ", err, "; retry in ", d)
		r.sleep(d)
	}
}

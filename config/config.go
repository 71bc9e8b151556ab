// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package config holds the switch-up parameters of the routing manager.
package config

import (
	"io/ioutil"
	"strconv"
	"time"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
	"github.com/platinasystems/flags"
	"github.com/platinasystems/parms"

	"github.com/platinasystems/ffuroute/regcache"
	"github.com/platinasystems/ffuroute/route"
	"github.com/platinasystems/ffuroute/tcam"
)

const (
	DefaultSlices           = 32
	DefaultRowsPerSlice     = 1024
	DefaultArpRedirectBatch = 16

	DefaultCommitBackoffMin = 10 * time.Millisecond
	DefaultCommitBackoffMax = time.Second
)

type Config struct {
	// Physical FFU slices and rows per slice.
	Slices       int `json:"slices"`
	RowsPerSlice int `json:"rowsPerSlice"`

	// Slice ranges granted at switch-up by class name, e.g.
	// "ip4-unicast": [0, 7].
	Ranges map[string][2]int `json:"ranges,omitempty"`

	// Pending ARP redirects handled per ProcessArpRedirects call.
	ArpRedirectBatch int `json:"arpRedirectBatch"`

	// Validate all tables after every mutation.
	Validate bool `json:"validate"`

	// Commit attempts per batch made by the committer Committer returns.
	CommitRetries int `json:"commitRetries"`
}

func Default() *Config {
	return &Config{
		Slices:           DefaultSlices,
		RowsPerSlice:     DefaultRowsPerSlice,
		ArpRedirectBatch: DefaultArpRedirectBatch,
		CommitRetries:    1,
	}
}

// Load reads a YAML configuration over the defaults.
func Load(path string) (*Config, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Unmarshal(b)
}

func Unmarshal(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, errors.Wrap(err, "config")
	}
	return c, c.Check()
}

// Parse overrides c from goes style arguments:
//
//	slices=N rows=N arp-batch=N retries=N [-validate]
//
// and returns the arguments it did not consume.
func (c *Config) Parse(args []string) ([]string, error) {
	flag, args := flags.New(args, "-validate")
	parm, args := parms.New(args, "slices", "rows", "arp-batch", "retries")
	if flag.ByName["-validate"] {
		c.Validate = true
	}
	for _, x := range []struct {
		name string
		v    *int
	}{
		{"slices", &c.Slices},
		{"rows", &c.RowsPerSlice},
		{"arp-batch", &c.ArpRedirectBatch},
		{"retries", &c.CommitRetries},
	} {
		s := parm.ByName[x.name]
		if len(s) == 0 {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return args, errors.Wrapf(err, "%s", x.name)
		}
		*x.v = n
	}
	return args, c.Check()
}

func (c *Config) Check() error {
	if c.Slices <= 0 || c.RowsPerSlice <= 0 {
		return errors.Errorf("config: %d slices of %d rows", c.Slices, c.RowsPerSlice)
	}
	if c.CommitRetries <= 0 {
		return errors.Errorf("config: commit retries %d", c.CommitRetries)
	}
	if c.ArpRedirectBatch <= 0 {
		return errors.Errorf("config: arp redirect batch %d", c.ArpRedirectBatch)
	}
	for name, r := range c.Ranges {
		if _, ok := route.ClassByName(name); !ok {
			return errors.Errorf("config: unknown class %q", name)
		}
		rr := tcam.Range{First: r[0], Last: r[1]}
		if !rr.Valid() || rr.Last >= c.Slices {
			return errors.Errorf("config: %s range %v", name, rr)
		}
	}
	return nil
}

// Range returns the switch-up range of class cl.
func (c *Config) Range(cl route.Class) tcam.Range {
	if r, ok := c.Ranges[cl.String()]; ok {
		return tcam.Range{First: r[0], Last: r[1]}
	}
	return tcam.NoRange
}

// Committer returns hw, wrapped to retry failed commits with backoff when
// more than one attempt is configured.  The routing switch never retries
// on its own.
func (c *Config) Committer(hw regcache.Committer) regcache.Committer {
	if c.CommitRetries <= 1 {
		return hw
	}
	return regcache.NewRetry(hw, c.CommitRetries, DefaultCommitBackoffMin,
		DefaultCommitBackoffMax)
}

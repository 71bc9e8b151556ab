// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

//go:build !tcamshadow
// +build !tcamshadow

package routing

const shadowEnabled = false

type shadow struct{}

func (*State) recordShadow(*Entry) {}

func (*State) checkShadow(Reader) []string { return nil }

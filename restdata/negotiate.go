// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/diffeo/go-datastore/datastore"
)

// wildcard is the Accept entry that matches any format.
const wildcard = "*/*"

// candidate is one acceptable format named by an Accept header.
type candidate struct {
	format  Format
	quality float64
}

// Negotiate picks the response format for an Accept header out of an
// ordered list of acceptable formats.
//
// Each entry in the header names a media type and an optional
// quality.  "*/*" stands for the first acceptable format, unless an
// earlier entry already named it.  A concrete entry matches the first
// acceptable format whose media type contains it.  The candidate with
// the highest quality wins, and ties go to whichever was named first.
//
// If nothing matches, returns a validation error listing the
// acceptable media types, with the header as its data.
func Negotiate(accept string, acceptable []Format) (Format, error) {
	var candidates []candidate
	find := func(f Format) int {
		for i, c := range candidates {
			if c.format == f {
				return i
			}
		}
		return -1
	}

	for _, entry := range strings.Split(accept, ",") {
		parts := strings.Split(entry, ";")
		mediaType := strings.ToLower(strings.TrimSpace(parts[0]))
		quality := parseQuality(parts[1:])

		if strings.Contains(mediaType, wildcard) {
			if len(acceptable) > 0 && find(acceptable[0]) < 0 {
				candidates = append(candidates, candidate{acceptable[0], quality})
			}
			continue
		}
		for _, f := range acceptable {
			if !strings.Contains(f.MediaType(), mediaType) {
				continue
			}
			if i := find(f); i >= 0 {
				candidates[i].quality = quality
			} else {
				candidates = append(candidates, candidate{f, quality})
			}
			break
		}
	}

	if len(candidates) == 0 {
		types := make([]string, len(acceptable))
		for i, f := range acceptable {
			types[i] = f.MediaType()
		}
		return JSON, datastore.ValidationError(
			fmt.Sprintf("Only %s can be placed in the 'Accept' header for this request", strings.Join(types, ", ")),
			datastore.Dict{"Accept": accept},
		)
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.quality > best.quality {
			best = c
		}
	}
	return best.format, nil
}

// parseQuality finds a "q=" parameter among the parameters of an
// Accept entry.  Missing or unparsable qualities are 1.
func parseQuality(params []string) float64 {
	for _, param := range params {
		kv := strings.SplitN(param, "=", 2)
		if len(kv) != 2 || strings.TrimSpace(kv[0]) != "q" {
			continue
		}
		if q, err := strconv.ParseFloat(strings.TrimSpace(kv[1]), 64); err == nil {
			return q
		}
	}
	return 1
}

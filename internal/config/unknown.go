package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownKeys are the valid dotted keys in the config file.
var knownKeys = map[string]bool{
	"auth": true, "auth.client_id": true, "auth.client_secret": true, "auth.redirect_uri": true,
	"vault": true, "vault.dir": true, "vault.locale": true,
	"sync": true, "sync.interval_seconds": true, "sync.remote_dir": true, "sync.watch": true,
	"logging": true, "logging.log_level": true,
	"network": true, "network.timeout": true,
}

// knownKeysList is the sorted slice form of knownKeys, so suggestions are
// deterministic when two candidates have the same edit distance.
var knownKeysList = func() []string {
	keys := make([]string, 0, len(knownKeys))
	for k := range knownKeys {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}()

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	var errs []error

	for _, key := range md.Undecoded() {
		keyStr := key.String()

		if suggestion := closestMatch(keyStr, knownKeysList); suggestion != "" {
			errs = append(errs, fmt.Errorf("unknown config key %q; did you mean %q?", keyStr, suggestion))
			continue
		}

		errs = append(errs, fmt.Errorf("unknown config key %q", keyStr))
	}

	return errors.Join(errs...)
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		if d := levenshtein(unknown, k); d < bestDist {
			bestDist = d
			best = k
		}
	}

	return best
}

// levenshtein computes the edit distance between two strings using two rows.
func levenshtein(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}

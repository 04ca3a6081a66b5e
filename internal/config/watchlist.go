package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// WatchedWallet is one wallet entry of the watchlist file.
type WatchedWallet struct {
	Address string `yaml:"address"`
	Label   string `yaml:"label"`
}

// Watchlist is the optional YAML file of wallets to track and creators to filter.
type Watchlist struct {
	Wallets   []WatchedWallet `yaml:"wallets"`
	Blacklist []string        `yaml:"blacklist"`
	Whitelist []string        `yaml:"whitelist"`
}

// LoadWatchlist reads a watchlist file. Entries with an empty address are dropped.
func LoadWatchlist(filename string) (*Watchlist, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read watchlist: %w", err)
	}

	var wl Watchlist
	if err := yaml.Unmarshal(data, &wl); err != nil {
		return nil, fmt.Errorf("parse watchlist: %w", err)
	}

	wallets := wl.Wallets[:0]
	for _, w := range wl.Wallets {
		w.Address = strings.TrimSpace(w.Address)
		if w.Address == "" {
			continue
		}
		wallets = append(wallets, w)
	}
	wl.Wallets = wallets
	wl.Blacklist = compact(wl.Blacklist)
	wl.Whitelist = compact(wl.Whitelist)

	return &wl, nil
}

// SaveWatchlist writes a watchlist file.
func SaveWatchlist(filename string, wl *Watchlist) error {
	data, err := yaml.Marshal(wl)
	if err != nil {
		return fmt.Errorf("marshal watchlist: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("write watchlist: %w", err)
	}
	return nil
}

// Merge folds env-provided creator lists into the watchlist.
func (wl *Watchlist) Merge(cfg *Config) {
	wl.Blacklist = compact(append(wl.Blacklist, cfg.CreatorBlacklist...))
	wl.Whitelist = compact(append(wl.Whitelist, cfg.CreatorWhitelist...))
}

func compact(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

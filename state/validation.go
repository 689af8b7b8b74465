package state

import (
	"fmt"
	"net/netip"
	"regexp"
)

var namePattern, _ = regexp.Compile("^[0-9a-z._-]+$")

func NameValidator(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("%s is not a valid name, must match pattern %s", s, namePattern.String())
	}
	if len(s) > 100 {
		return fmt.Errorf("len(\"%s\") = %d > 100 is too long", s, len(s))
	}
	return nil
}

func BindValidator(s string) error {
	_, err := netip.ParseAddrPort(s)
	return err
}

func LocalConfigValidator(cfg *LocalCfg) error {
	err := NameValidator(string(cfg.Id))
	if err != nil {
		return err
	}
	if cfg.DebugBind != "" {
		if err := BindValidator(cfg.DebugBind); err != nil {
			return fmt.Errorf("debug_bind is invalid: %w", err)
		}
	}
	if cfg.Sim != nil {
		seen := make(map[string]bool)
		for _, peer := range cfg.Sim.Peers {
			if err := NameValidator(peer.Name); err != nil {
				return err
			}
			if seen[peer.Name] {
				return fmt.Errorf("duplicate sim peer: %s", peer.Name)
			}
			seen[peer.Name] = true
			if peer.FailRate < 0 || peer.FailRate > 1 {
				return fmt.Errorf("sim peer %s: fail_rate must be within [0, 1]", peer.Name)
			}
		}
	}
	return nil
}

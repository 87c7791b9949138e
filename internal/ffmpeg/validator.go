// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ffrunner - FFmpeg 进程监管与进度解析工具

package ffmpeg

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Validator decides whether an address may be handed to FFmpeg as input
// or output. Check returns nil for an accepted address.
type Validator interface {
	Check(address string) error
}

// AddressError names the rule that rejected an address.
type AddressError struct {
	Address string
	Rule    string
	Blocked bool
}

func (e *AddressError) Error() string {
	if e.Blocked {
		return fmt.Sprintf("%q blocked by %q", e.Address, e.Rule)
	}
	return fmt.Sprintf("%q matches no allow rule", e.Address)
}

// hasRules reports whether v can reject anything. Validators other than
// the ones built by NewValidator are assumed to.
func hasRules(v Validator) bool {
	if v == nil {
		return false
	}
	if p, ok := v.(*addressPolicy); ok {
		return len(p.allow) > 0 || len(p.block) > 0
	}
	return true
}

type addressPolicy struct {
	allow []*regexp.Regexp
	block []*regexp.Regexp
}

// NewValidator compiles allow and block expressions. Blank expressions are
// skipped; an empty allow list accepts everything not blocked.
func NewValidator(allow, block []string) (Validator, error) {
	var err error
	p := &addressPolicy{}

	if p.allow, err = compileRules("allow", allow); err != nil {
		return nil, err
	}
	if p.block, err = compileRules("block", block); err != nil {
		return nil, err
	}

	return p, nil
}

func compileRules(kind string, exprs []string) ([]*regexp.Regexp, error) {
	var rules []*regexp.Regexp
	for _, exp := range exprs {
		exp = strings.TrimSpace(exp)
		if exp == "" {
			continue
		}
		re, err := regexp.Compile(exp)
		if err != nil {
			return nil, fmt.Errorf("invalid %s expression '%s': %w", kind, exp, err)
		}
		rules = append(rules, re)
	}
	return rules, nil
}

// Check matches block rules against the address as given and, for local
// paths, against its cleaned form. Allow rules see the cleaned form only so
// that "/media/../etc" cannot pass an "^/media/" rule.
func (p *addressPolicy) Check(address string) error {
	forms := addressForms(address)

	for _, re := range p.block {
		for _, form := range forms {
			if re.MatchString(form) {
				return &AddressError{Address: address, Rule: re.String(), Blocked: true}
			}
		}
	}

	if len(p.allow) == 0 {
		return nil
	}
	canonical := forms[len(forms)-1]
	for _, re := range p.allow {
		if re.MatchString(canonical) {
			return nil
		}
	}
	return &AddressError{Address: address}
}

// addressForms returns the raw address followed by its canonical form.
func addressForms(address string) []string {
	if strings.Contains(address, "://") || address == "" || address == "-" {
		return []string{address}
	}
	clean := filepath.Clean(address)
	if clean == address {
		return []string{address}
	}
	return []string{address, clean}
}

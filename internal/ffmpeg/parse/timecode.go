// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ffrunner - FFmpeg 进程监管与进度解析工具

package parse

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidTimecode is returned for text that is not an FFmpeg timecode.
var ErrInvalidTimecode = errors.New("invalid timecode")

// ParseTimecode parses FFmpeg's `[-]H:MM:SS[.frac]` notation. Hours are not
// bounded, "N/A" and anything else malformed is rejected.
func ParseTimecode(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimecode, s)
	}

	h, err := parseDigits(parts[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimecode, s)
	}
	m, err := parseDigits(parts[1])
	if err != nil || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimecode, s)
	}

	secText, fracText, hasFrac := strings.Cut(parts[2], ".")
	sec, err := parseDigits(secText)
	if err != nil || sec > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimecode, s)
	}

	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second

	if hasFrac {
		if _, err := parseDigits(fracText); err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimecode, s)
		}
		// nanosecond resolution is plenty, extra digits are dropped
		if len(fracText) > 9 {
			fracText = fracText[:9]
		}
		ns, _ := strconv.ParseInt(fracText+strings.Repeat("0", 9-len(fracText)), 10, 64)
		d += time.Duration(ns)
	}

	if neg {
		d = -d
	}
	return d, nil
}

// parseDigits accepts only ASCII digits, unlike strconv.Atoi which takes signs.
func parseDigits(s string) (int64, error) {
	if s == "" {
		return 0, ErrInvalidTimecode
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, ErrInvalidTimecode
		}
	}
	return strconv.ParseInt(s, 10, 64)
}

// FormatTimecode renders d as HH:MM:SS.mmm, the form FFmpeg accepts for -ss/-to.
func FormatTimecode(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	ms := d / time.Millisecond
	return fmt.Sprintf("%s%02d:%02d:%02d.%03d", sign, h, m, s, ms)
}
